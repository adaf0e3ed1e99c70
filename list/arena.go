package list

import (
	"math"

	"github.com/cockroachdb/errors"
)

// Handle is a stable numeric reference to a node held by an Arena. Handles remain valid until the
// node is released and may be reused afterward.
type Handle uint32

const (
	// Nil is the Handle that refers to no node. The zero value of Links uses it for both sides.
	Nil Handle = 0

	chunkShift = 6
	chunkSize  = 1 << chunkShift
	chunkMask  = chunkSize - 1
)

// Links is the pair of references that makes a type linkable. Embed it in a node type and return
// its address from the node's Links method.
type Links struct {
	next  Handle
	prev  Handle
	owner uint32
}

// Linked returns true if the node owning these links is currently a member of some list
func (l *Links) Linked() bool {
	return l.owner != 0
}

func (l *Links) reset() {
	l.next = Nil
	l.prev = Nil
	l.owner = 0
}

// Linkable is the capability a node type needs in order to be held by an Arena and linked into a
// List: a pointer to the node must expose its embedded Links.
type Linkable[T any] interface {
	*T
	Links() *Links
}

type slot[T any] struct {
	value T
	used  bool
}

// Arena owns the storage for every node of a single node type. Nodes are stored by value in
// fixed-size chunks, so a pointer returned from New or Get stays valid until the node is released.
//
// Lists created from the same Arena may move nodes between each other; a node can only be a member
// of one of them at a time.
type Arena[T any, P Linkable[T]] struct {
	chunks    [][]slot[T]
	freeSlots []Handle
	count     int
	listIDs   uint32
}

// NewArena creates an empty Arena
func NewArena[T any, P Linkable[T]]() *Arena[T, P] {
	return &Arena[T, P]{}
}

// New creates a zero-valued node and returns its handle along with a pointer to it
func (a *Arena[T, P]) New() (Handle, P) {
	var handle Handle
	if len(a.freeSlots) > 0 {
		handle = a.freeSlots[len(a.freeSlots)-1]
		a.freeSlots = a.freeSlots[:len(a.freeSlots)-1]
	} else {
		index := a.capacity()
		if uint64(index) >= math.MaxUint32-chunkSize {
			panic(errors.AssertionFailedf("arena cannot hold more than %d nodes", index))
		}
		a.chunks = append(a.chunks, make([]slot[T], chunkSize))
		for i := chunkSize - 1; i > 0; i-- {
			a.freeSlots = append(a.freeSlots, Handle(index+i+1))
		}
		handle = Handle(index + 1)
	}

	s := a.slot(handle)
	s.used = true
	a.count++
	return handle, P(&s.value)
}

// Get retrieves a pointer to the node referenced by handle. It panics if the handle does not
// refer to a live node.
func (a *Arena[T, P]) Get(handle Handle) P {
	s := a.slot(handle)
	if !s.used {
		panic(errors.AssertionFailedf("handle %d refers to a released node", handle))
	}

	return P(&s.value)
}

// Release returns a node's storage to the arena. The node must not be linked into a list.
func (a *Arena[T, P]) Release(handle Handle) {
	s := a.slot(handle)
	if !s.used {
		panic(errors.AssertionFailedf("handle %d was released twice", handle))
	}
	if P(&s.value).Links().Linked() {
		panic(errors.AssertionFailedf("handle %d was released while still linked into a list", handle))
	}

	var zero T
	s.value = zero
	s.used = false
	a.count--
	a.freeSlots = append(a.freeSlots, handle)
}

// Live returns true if handle refers to a node that has not been released
func (a *Arena[T, P]) Live(handle Handle) bool {
	if handle == Nil || int(handle) > a.capacity() {
		return false
	}

	return a.slot(handle).used
}

// Len returns the number of live nodes in the arena
func (a *Arena[T, P]) Len() int {
	return a.count
}

func (a *Arena[T, P]) capacity() int {
	return len(a.chunks) * chunkSize
}

func (a *Arena[T, P]) slot(handle Handle) *slot[T] {
	if handle == Nil {
		panic(errors.AssertionFailedf("attempted to dereference the nil handle"))
	}

	index := int(handle - 1)
	if index >= a.capacity() {
		panic(errors.AssertionFailedf("handle %d is out of range for an arena holding %d slots", handle, a.capacity()))
	}

	return &a.chunks[index>>chunkShift][index&chunkMask]
}

func (a *Arena[T, P]) links(handle Handle) *Links {
	return a.Get(handle).Links()
}

func (a *Arena[T, P]) nextListID() uint32 {
	a.listIDs++
	return a.listIDs
}
