//go:build linux

package stack

import (
	"os"
	"strconv"
	"strings"
)

// Resident reports the process's current resident set size in bytes, read
// from /proc/self/statm. It exists so tests can assert the round-trip
// property that allocating and releasing N stacks returns RSS to within a
// small margin of its baseline.
func Resident() (int64, error) {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0, &AllocError{Op: "statm", Err: os.ErrInvalid}
	}
	pages, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, err
	}
	return pages * int64(platformPageSize()), nil
}
