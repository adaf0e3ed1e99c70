package trace

import (
	"sort"

	"github.com/byteninja/njvm/memory"
	"github.com/byteninja/njvm/vm"
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Failure is a call that the VM could not satisfy
type Failure struct {
	Op   Op
	Code vm.ErrorCode
}

// Leak is a block that was still allocated when the trace ended
type Leak struct {
	Name    string
	Address memory.Address
	Size    int
}

// Result describes a replayed trace
type Result struct {
	// Calls is the number of calls that were replayed
	Calls int
	// Failures lists the calls that failed, in trace order
	Failures []Failure
	// Leaks lists the blocks still allocated at the end of the trace, oldest first when the VM
	// has leak detection enabled and by name otherwise
	Leaks []Leak
	// Peak is the most bytes that were allocated at once during the trace
	Peak int
}

// Replay makes each call in ops against v. Calls the VM cannot satisfy are recorded as failures and
// the replay continues; freeing a block whose allocation failed does nothing. A trace that misuses
// a name, such as freeing a block that was never allocated, stops the replay with an error.
//
// Blocks still allocated at the end of the trace are reported as leaks but are not released, so
// destroying v afterward reports them as well.
func Replay(v *vm.VM, ops []Op) (*Result, error) {
	result := &Result{}
	blocks := make(map[string]memory.Address)
	failed := make(map[string]struct{})

	for _, op := range ops {
		v.ClearError()
		result.Calls++

		switch op.Kind {
		case OpAlloc:
			if _, exists := blocks[op.Name]; exists {
				return result, errors.Newf("line %d: %s is already allocated", op.Line, op.Name)
			}

			address := v.Alloc(op.Size)
			if address == memory.NullAddress {
				failed[op.Name] = struct{}{}
			} else {
				blocks[op.Name] = address
				delete(failed, op.Name)
			}
		case OpResize:
			address, exists := blocks[op.Name]
			if !exists && op.Size == 0 {
				if _, wasFailed := failed[op.Name]; wasFailed {
					delete(failed, op.Name)
					break
				}
				return result, errors.Newf("line %d: cannot resize %s to 0, it is not allocated", op.Line, op.Name)
			}

			newAddress := v.Realloc(address, op.Size)
			if op.Size == 0 {
				delete(blocks, op.Name)
			} else if newAddress != memory.NullAddress {
				blocks[op.Name] = newAddress
				delete(failed, op.Name)
			} else if !exists {
				failed[op.Name] = struct{}{}
			}
		case OpFree:
			address, exists := blocks[op.Name]
			if !exists {
				if _, wasFailed := failed[op.Name]; wasFailed {
					delete(failed, op.Name)
					break
				}
				return result, errors.Newf("line %d: cannot free %s, it is not allocated", op.Line, op.Name)
			}

			v.Free(address)
			delete(blocks, op.Name)
		case OpLimit:
			v.Memory().SetLimit(op.Size)
		default:
			return result, errors.Newf("line %d: unknown call kind %s", op.Line, op.Kind)
		}

		if code := v.LastError(); code != vm.ErrNone {
			result.Failures = append(result.Failures, Failure{Op: op, Code: code})
		}

		if tracked := v.Memory().Tracked(); tracked > result.Peak {
			result.Peak = tracked
		}
	}

	result.Leaks = leaks(v, blocks)
	return result, nil
}

func leaks(v *vm.VM, blocks map[string]memory.Address) []Leak {
	if len(blocks) == 0 {
		return nil
	}

	names := make(map[memory.Address]string, len(blocks))
	for name, address := range blocks {
		names[address] = name
	}

	var result []Leak
	if records := v.Memory().Leaks(); records != nil {
		for _, record := range records {
			result = append(result, Leak{
				Name:    names[record.Address],
				Address: record.Address,
				Size:    record.Size,
			})
		}
		return result
	}

	for name, address := range blocks {
		result = append(result, Leak{
			Name:    name,
			Address: address,
			Size:    len(v.Bytes(address)),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

// LeakedBytes returns the sum of the sizes of every leak
func (r *Result) LeakedBytes() int {
	total := 0
	for _, leak := range r.Leaks {
		total += leak.Size
	}
	return total
}

// BuildJSON returns a json document describing the result
func (r *Result) BuildJSON() string {
	writer := jwriter.NewWriter()

	root := writer.Object()
	root.Name("Calls").Int(r.Calls)
	root.Name("Peak").Int(r.Peak)

	failures := root.Name("Failures").Array()
	for _, failure := range r.Failures {
		obj := failures.Object()
		obj.Name("Line").Int(failure.Op.Line)
		obj.Name("Call").String(failure.Op.String())
		obj.Name("Error").String(failure.Code.String())
		obj.End()
	}
	failures.End()

	leaks := root.Name("Leaks").Array()
	for _, leak := range r.Leaks {
		obj := leaks.Object()
		obj.Name("Name").String(leak.Name)
		obj.Name("Address").String(leak.Address.String())
		obj.Name("Size").Int(leak.Size)
		obj.End()
	}
	leaks.End()

	root.Name("LeakedBytes").Int(r.LeakedBytes())
	root.End()

	return string(writer.Bytes())
}
