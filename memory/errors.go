package memory

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrAllocationFailed marks every error returned when an allocation or resize could not be
	// satisfied, whether because of the byte budget or because the system allocator failed
	ErrAllocationFailed = errors.New("allocation failed")
	// ErrBudgetExceeded is wrapped by allocation failures caused by the Info's byte budget
	ErrBudgetExceeded = errors.New("memory limit exceeded")
	// ErrInvalidSize is returned when an allocation is requested with a size that is not positive
	ErrInvalidSize = errors.New("allocation size must be positive")
	// ErrLeakDetected is wrapped by every LeakError
	ErrLeakDetected = errors.New("allocations were not released")
)

// LeakError is returned by Info.Destroy when allocations were still outstanding. Leaks is only
// populated when the Info was created with InfoCreateLeakDetection.
type LeakError struct {
	Leaks []Record
	Count int
	Bytes int
}

func (e *LeakError) Error() string {
	return fmt.Sprintf("%d allocations totalling %d bytes were not released", e.Count, e.Bytes)
}

func (e *LeakError) Unwrap() error {
	return ErrLeakDetected
}

// Report lists every leaked record, one per line, in the order the allocations were made
func (e *LeakError) Report() string {
	var sb strings.Builder
	sb.WriteString("--- Allocation Report ---\n")
	for _, leak := range e.Leaks {
		fmt.Fprintf(&sb, "address: %s, size: %d\n", leak.Address, leak.Size)
	}

	return sb.String()
}
