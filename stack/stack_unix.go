//go:build unix

package stack

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func platformPageSize() int {
	return unix.Getpagesize()
}

func platformReserve(total int) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, total,
		unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE,
	)
	if err != nil {
		return 0, &AllocError{Op: "mmap", Size: total, Err: err}
	}
	return uintptr(unsafe.Pointer(&b[0])), nil
}

func platformCommit(addr uintptr, size int) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	if err := unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return &AllocError{Op: "mprotect", Size: size, Err: err}
	}
	return nil
}

func platformRelease(addr uintptr, total int) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), total)
	if err := unix.Munmap(b); err != nil {
		return &AllocError{Op: "munmap", Size: total, Err: err}
	}
	return nil
}
