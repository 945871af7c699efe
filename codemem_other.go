// Completion: 100% - stub for platforms without mmap support
//go:build !linux

package legalize

import "fmt"

// ExecutableCopy is only implemented on Linux.
func ExecutableCopy(code []byte) ([]byte, error) {
	return nil, fmt.Errorf("executable code memory is not supported on this platform")
}

// ReleaseExecutable is only implemented on Linux.
func ReleaseExecutable(mem []byte) error {
	return fmt.Errorf("executable code memory is not supported on this platform")
}
