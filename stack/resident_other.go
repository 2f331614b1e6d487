//go:build !linux

package stack

import "errors"

// ErrResidentUnsupported is returned by Resident on platforms without a
// cheap RSS reporting mechanism.
var ErrResidentUnsupported = errors.New("stack: Resident is not supported on this platform")

// Resident is unsupported outside Linux; see resident_linux.go.
func Resident() (int64, error) {
	return 0, ErrResidentUnsupported
}
