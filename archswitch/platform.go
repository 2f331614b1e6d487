package archswitch

import "runtime"

var goos = runtime.GOOS
var goarch = runtime.GOARCH
