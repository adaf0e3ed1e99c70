// Package trace replays recorded sequences of allocation calls against a VM, so that leaks and
// budget failures in a call sequence can be found without running the interpreter that made them.
//
// A trace is a text file with one call per line:
//
//	alloc <name> <size>    allocate size bytes and call the block name
//	resize <name> <size>   resize the block; an unknown name allocates, a size of 0 frees
//	free <name>            release the block
//	limit <bytes>          change the byte budget, 0 for no limit
//
// Blank lines and lines starting with # are ignored.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

type Kind int32

const (
	OpAlloc Kind = iota
	OpResize
	OpFree
	OpLimit
)

var kindMapping = make(map[Kind]string)

func (k Kind) String() string {
	name, ok := kindMapping[k]
	if !ok {
		return fmt.Sprintf("UnknownKind(%d)", int32(k))
	}

	return name
}

func init() {
	kindMapping[OpAlloc] = "alloc"
	kindMapping[OpResize] = "resize"
	kindMapping[OpFree] = "free"
	kindMapping[OpLimit] = "limit"
}

// Op is a single call read from a trace
type Op struct {
	// Line is the 1-based line of the trace the call was read from
	Line int
	Kind Kind
	// Name identifies the block the call acts upon. It is empty for OpLimit.
	Name string
	// Size is the requested size for OpAlloc and OpResize, and the new budget for OpLimit
	Size int
}

func (o Op) String() string {
	switch o.Kind {
	case OpFree:
		return o.Kind.String() + " " + o.Name
	case OpLimit:
		return o.Kind.String() + " " + strconv.Itoa(o.Size)
	}

	return o.Kind.String() + " " + o.Name + " " + strconv.Itoa(o.Size)
}

// Parse reads every call in a trace. Errors identify the offending line.
func Parse(r io.Reader) ([]Op, error) {
	var ops []Op

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		op, err := parseOp(strings.Fields(text))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		op.Line = line
		ops = append(ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read trace")
	}

	return ops, nil
}

func parseOp(fields []string) (Op, error) {
	switch fields[0] {
	case "alloc":
		return parseSized(OpAlloc, fields, 1)
	case "resize":
		return parseSized(OpResize, fields, 0)
	case "free":
		if len(fields) != 2 {
			return Op{}, errors.Newf("free takes a name, but was given %d arguments", len(fields)-1)
		}
		return Op{Kind: OpFree, Name: fields[1]}, nil
	case "limit":
		if len(fields) != 2 {
			return Op{}, errors.Newf("limit takes a byte count, but was given %d arguments", len(fields)-1)
		}

		size, err := parseSize(fields[1], 0)
		if err != nil {
			return Op{}, err
		}
		return Op{Kind: OpLimit, Size: size}, nil
	}

	return Op{}, errors.Newf("unknown call %q", fields[0])
}

func parseSized(kind Kind, fields []string, minSize int) (Op, error) {
	if len(fields) != 3 {
		return Op{}, errors.Newf("%s takes a name and a size, but was given %d arguments", kind, len(fields)-1)
	}

	size, err := parseSize(fields[2], minSize)
	if err != nil {
		return Op{}, err
	}

	return Op{Kind: kind, Name: fields[1], Size: size}, nil
}

func parseSize(text string, minSize int) (int, error) {
	size, err := strconv.Atoi(text)
	if err != nil {
		return 0, errors.Newf("%q is not a size", text)
	}

	if size < minSize {
		return 0, errors.Newf("size must be at least %d, but was %d", minSize, size)
	}

	return size, nil
}
