package vm

// ErrorCode is the error state of a VM. Operations that fail in a way the interpreter is expected
// to recover from set the error code instead of returning an error or panicking.
type ErrorCode int32

const (
	ErrNone ErrorCode = iota
	// ErrMemory indicates that an allocation could not be satisfied, either because the VM's
	// byte budget was exhausted or because the system allocator ran out of memory
	ErrMemory
	// ErrInvalidArgument indicates that an operation was called with an argument it cannot accept,
	// such as a negative allocation size
	ErrInvalidArgument
)

var errorCodeMapping = make(map[ErrorCode]string)

func (c ErrorCode) String() string {
	name, ok := errorCodeMapping[c]
	if !ok {
		return "ErrUnknown"
	}
	return name
}

func init() {
	errorCodeMapping[ErrNone] = "ErrNone"
	errorCodeMapping[ErrMemory] = "ErrMemory"
	errorCodeMapping[ErrInvalidArgument] = "ErrInvalidArgument"
}
