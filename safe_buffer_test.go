// Completion: 100% - code buffer tests complete
package legalize

import (
	"testing"
)

func TestSafeBufferBasicUsage(t *testing.T) {
	sb := NewSafeBuffer("test")

	sb.Write([]byte("hello"))
	if sb.Len() != 5 {
		t.Errorf("Expected length 5, got %d", sb.Len())
	}

	sb.Commit()

	// Reading is safe after commit
	if string(sb.Bytes()) != "hello" {
		t.Errorf("Expected 'hello', got '%s'", string(sb.Bytes()))
	}
}

func TestSafeBufferPreventsWriteAfterCommit(t *testing.T) {
	sb := NewSafeBuffer("test")
	sb.Write([]byte("data"))
	sb.Commit()

	// This should panic
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when writing to committed buffer")
		}
	}()

	sb.Write([]byte("more"))
}

func TestSafeBufferReset(t *testing.T) {
	sb := NewSafeBuffer("test")

	sb.Write([]byte("first"))
	sb.Commit()

	// Reset should allow reuse
	sb.Reset()
	if sb.IsCommitted() {
		t.Error("Buffer should not be committed after reset")
	}

	sb.Write([]byte("second"))
	if string(sb.Bytes()) != "second" {
		t.Errorf("Expected 'second', got '%s'", string(sb.Bytes()))
	}
}
