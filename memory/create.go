package memory

import (
	"fmt"
	"strings"
)

// CreateFlags indicate specific Info behaviors to activate or deactivate
type CreateFlags int32

var createFlagsMapping = make(map[CreateFlags]string)

func (f CreateFlags) Register(str string) {
	createFlagsMapping[f] = str
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for i := 0; i < 32; i++ {
		bit := CreateFlags(1) << i
		if f&bit == 0 {
			continue
		}

		name, ok := createFlagsMapping[bit]
		if !ok {
			name = fmt.Sprintf("UnknownCreateFlag(%#x)", uint32(bit))
		}
		names = append(names, name)
	}

	return strings.Join(names, "|")
}

const (
	// InfoCreateLeakDetection keeps a record of every live allocation so that allocations that are
	// never released can be reported when the Info is destroyed. Releasing or resizing an address that
	// has no record is treated as a programmer error and panics.
	InfoCreateLeakDetection CreateFlags = 1 << iota
	// InfoCreateDebugMemory logs every allocate, resize, and release call at debug level and keeps
	// a running call balance that can be read with Info.CallBalance
	InfoCreateDebugMemory
	// InfoCreateDisableLimit turns off byte budget enforcement. The limit can still be read and
	// written but allocations are never checked against it.
	InfoCreateDisableLimit
	// InfoCreateStrictLeakCheck causes Info.Destroy to panic after reporting unreleased allocations
	// instead of returning an error
	InfoCreateStrictLeakCheck
)

func init() {
	InfoCreateLeakDetection.Register("InfoCreateLeakDetection")
	InfoCreateDebugMemory.Register("InfoCreateDebugMemory")
	InfoCreateDisableLimit.Register("InfoCreateDisableLimit")
	InfoCreateStrictLeakCheck.Register("InfoCreateStrictLeakCheck")
}

// NoLimit is the byte budget that places no limit on the bytes an Info may have outstanding
const NoLimit int = 0

// CreateOptions contains optional settings when creating an Info
type CreateOptions struct {
	// Flags indicates specific Info behaviors to activate or deactivate
	Flags CreateFlags
	// Limit is the maximum number of bytes the Info may have outstanding at once, or NoLimit
	Limit int
}
