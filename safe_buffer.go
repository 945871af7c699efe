// Completion: 100% - committed code buffer complete
package legalize

import (
	"bytes"
	"fmt"
	"os"
)

// SafeBuffer wraps bytes.Buffer with explicit lifecycle management.
// Emission fills the buffer, Commit freezes it, and any later write
// panics. This catches passes that keep appending machine code after
// the function has been finalized.
type SafeBuffer struct {
	buf       *bytes.Buffer
	committed bool
	name      string // For debugging
}

// NewSafeBuffer creates a new SafeBuffer with a name for debugging
func NewSafeBuffer(name string) *SafeBuffer {
	return &SafeBuffer{
		buf:  &bytes.Buffer{},
		name: name,
	}
}

// Write appends bytes to the buffer. Panics if buffer is committed.
func (sb *SafeBuffer) Write(p []byte) (n int, err error) {
	if sb.committed {
		panic(fmt.Sprintf("SafeBuffer(%s): Cannot write to committed buffer", sb.name))
	}
	return sb.buf.Write(p)
}

// Bytes returns the buffer contents. Safe to call after commit.
func (sb *SafeBuffer) Bytes() []byte {
	return sb.buf.Bytes()
}

// Len returns the buffer length
func (sb *SafeBuffer) Len() int {
	return sb.buf.Len()
}

// Commit marks the buffer as complete. After this, no more writes allowed.
func (sb *SafeBuffer) Commit() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "SafeBuffer(%s): Committed with %d bytes\n", sb.name, sb.buf.Len())
	}
	sb.committed = true
}

// Reset clears the buffer and uncommits it. Safe to call anytime.
func (sb *SafeBuffer) Reset() {
	if VerboseMode && sb.committed {
		fmt.Fprintf(os.Stderr, "SafeBuffer(%s): Reset called on committed buffer, clearing %d bytes\n",
			sb.name, sb.buf.Len())
	}
	sb.buf.Reset()
	sb.committed = false
}

// IsCommitted returns true if the buffer has been committed
func (sb *SafeBuffer) IsCommitted() bool {
	return sb.committed
}
