//go:build windows

package stack

import (
	"golang.org/x/sys/windows"
)

// windowsPageSize is not probed via GetSystemInfo since every supported
// Windows/amd64 target uses a 4KiB page; avoiding the extra syscall keeps
// New() allocation-free on the fast path.
const windowsPageSize = 4096

func platformPageSize() int {
	return windowsPageSize
}

func platformReserve(total int) (uintptr, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(total), windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return 0, &AllocError{Op: "VirtualAlloc(MEM_RESERVE)", Size: total, Err: err}
	}
	return addr, nil
}

// platformCommit commits the usable [addr, addr+size) region as read-write,
// then commits one additional guard page immediately below it, marked
// PAGE_GUARD, so the OS itself raises STATUS_GUARD_PAGE_VIOLATION on first
// touch below the usable region. The OS does not grow these stacks: the
// context switch leaves the thread information block's stack limits
// unchanged (see archswitch), and with the default single guard page the
// reservation ends at that page. Growth goes through CheckFault and Grow,
// as on other platforms.
func platformCommit(addr uintptr, size int) error {
	if _, err := windows.VirtualAlloc(addr, uintptr(size), windows.MEM_COMMIT, windows.PAGE_READWRITE); err != nil {
		return &AllocError{Op: "VirtualAlloc(MEM_COMMIT)", Size: size, Err: err}
	}
	guardAddr := addr - windowsPageSize
	if _, err := windows.VirtualAlloc(guardAddr, windowsPageSize, windows.MEM_COMMIT, windows.PAGE_READWRITE|windows.PAGE_GUARD); err != nil {
		return &AllocError{Op: "VirtualAlloc(MEM_COMMIT|PAGE_GUARD)", Size: windowsPageSize, Err: err}
	}
	return nil
}

func platformRelease(addr uintptr, _ int) error {
	if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return &AllocError{Op: "VirtualFree", Size: 0, Err: err}
	}
	return nil
}
