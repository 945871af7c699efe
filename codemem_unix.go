// Completion: 100% - executable code memory via mmap complete
//go:build linux

package legalize

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ExecutableCopy maps an anonymous region, copies the emitted code
// into it, and flips the protection to read+execute. The returned
// slice must be released with ReleaseExecutable.
func ExecutableCopy(code []byte) ([]byte, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("no code to map")
	}
	mem, err := unix.Mmap(-1, 0, len(code),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", len(code), err)
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("mprotect: %w", err)
	}
	return mem, nil
}

// ReleaseExecutable unmaps a region returned by ExecutableCopy.
func ReleaseExecutable(mem []byte) error {
	return unix.Munmap(mem)
}
