package stack

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineKey returns the calling goroutine's runtime id, parsed from its
// stack trace header the same way the teacher eventloop package derives a
// debug-only goroutine id: there is no supported public API for this, so it
// is read out of the "goroutine N [...]" line runtime.Stack always emits.
func goroutineKey() int64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, _ := strconv.ParseInt(string(buf), 10, 64)
	return id
}
