//go:build !debug_njvm_memory

package memutils

const (
	// DebugMargin is the number of bytes of debug data that should be placed after each allocation
	// made through a tracked allocator
	DebugMargin int = 0
	// DebugMemory indicates whether the module was built with the debug_njvm_memory build tag. When it
	// is true, call counting and call logging are always on and leaked memory is fatal.
	DebugMemory bool = false
)

// ValidateMagicValue verifies that the easy-to-identify marker written by WriteMagicValue is still present.
// It returns true if the value is still present and false otherwise.
// This method no-ops unless the debug_njvm_memory build tag is present.
func ValidateMagicValue(data []byte, offset int) bool {
	return true
}

// WriteMagicValue writes an easy-to-identify marker across DebugMargin bytes at the provided offset.
// This method no-ops unless the debug_njvm_memory build tag is present.
func WriteMagicValue(data []byte, offset int) {
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_njvm_memory build tag is present
func DebugValidate(validatable Validatable) {
}
