// Package list provides a bidirectional linked list over caller-defined node types. Nodes live by
// value in an Arena and are linked through Links embedded in the node itself, so the list never
// allocates or frees anything on its own.
package list

import (
	"github.com/byteninja/njvm/memutils"
	"github.com/cockroachdb/errors"
)

// List is a doubly linked list of nodes held by an Arena. Misuse that would corrupt linkage (popping
// an empty list, unlinking a node that is not a member, linking a node twice) panics.
//
// List is not safe for concurrent use.
type List[T any, P Linkable[T]] struct {
	arena *Arena[T, P]
	id    uint32

	length int
	head   Handle
	tail   Handle
}

// New creates an empty list whose nodes are drawn from arena
func New[T any, P Linkable[T]](arena *Arena[T, P]) *List[T, P] {
	return &List[T, P]{
		arena: arena,
		id:    arena.nextListID(),
	}
}

// Arena retrieves the arena that holds this list's nodes
func (l *List[T, P]) Arena() *Arena[T, P] { return l.arena }

// Len returns the number of nodes in the list
func (l *List[T, P]) Len() int { return l.length }

// Head returns the first node in the list, or Nil if the list is empty
func (l *List[T, P]) Head() Handle { return l.head }

// Tail returns the last node in the list, or Nil if the list is empty
func (l *List[T, P]) Tail() Handle { return l.tail }

// Contains returns true if handle refers to a live node that is linked into this list
func (l *List[T, P]) Contains(handle Handle) bool {
	if !l.arena.Live(handle) {
		return false
	}

	return l.arena.links(handle).owner == l.id
}

// Next returns the node following handle, or Nil if handle is the tail
func (l *List[T, P]) Next(handle Handle) Handle {
	return l.member(handle).next
}

// Prev returns the node preceding handle, or Nil if handle is the head
func (l *List[T, P]) Prev(handle Handle) Handle {
	return l.member(handle).prev
}

// Push appends a node to the end of the list
func (l *List[T, P]) Push(handle Handle) {
	node := l.unlinked(handle)
	node.owner = l.id
	node.next = Nil

	if l.length == 0 {
		node.prev = Nil
		l.head = handle
		l.tail = handle
	} else {
		node.prev = l.tail
		l.arena.links(l.tail).next = handle
		l.tail = handle
	}

	l.length++
	memutils.DebugValidate(l)
}

// Pop removes the last node from the list and returns it
func (l *List[T, P]) Pop() Handle {
	if l.length == 0 {
		panic(errors.AssertionFailedf("attempted to pop from an empty list"))
	}

	handle := l.tail
	node := l.arena.links(handle)
	newTail := node.prev

	l.length--
	if l.length == 0 {
		l.head = Nil
		l.tail = Nil
	} else {
		l.arena.links(newTail).next = Nil
		l.tail = newTail
	}

	node.reset()
	memutils.DebugValidate(l)
	return handle
}

// Unlink removes a node from any position in the list and returns it
func (l *List[T, P]) Unlink(handle Handle) Handle {
	if l.length == 0 {
		panic(errors.AssertionFailedf("attempted to unlink node %d from an empty list", handle))
	}

	node := l.member(handle)

	switch {
	case l.head == handle && l.tail == handle:
		l.head = Nil
		l.tail = Nil
	case l.tail == handle:
		l.arena.links(node.prev).next = Nil
		l.tail = node.prev
	case l.head == handle:
		l.arena.links(node.next).prev = Nil
		l.head = node.next
	default:
		l.arena.links(node.prev).next = node.next
		l.arena.links(node.next).prev = node.prev
	}

	node.reset()
	l.length--
	memutils.DebugValidate(l)
	return handle
}

// Link inserts a node so that it becomes the element at index, counting from the head. An index
// equal to Len appends the node to the end of the list. This walks the list from the head, so it
// is O(index).
func (l *List[T, P]) Link(handle Handle, index int) {
	if index < 0 || index > l.length {
		panic(errors.AssertionFailedf("attempted to link a node at index %d in a list of length %d", index, l.length))
	}

	if index == l.length {
		l.Push(handle)
		return
	}

	current := l.head
	for i := 0; i < index; i++ {
		current = l.arena.links(current).next
	}

	l.InsertBefore(handle, current)
}

// InsertBefore links a node into the list immediately before mark, which must be a member
func (l *List[T, P]) InsertBefore(handle Handle, mark Handle) {
	markNode := l.member(mark)
	node := l.unlinked(handle)

	node.owner = l.id
	node.next = mark
	node.prev = markNode.prev

	if markNode.prev != Nil {
		l.arena.links(markNode.prev).next = handle
	} else {
		l.head = handle
	}
	markNode.prev = handle

	l.length++
	memutils.DebugValidate(l)
}

// InsertAfter links a node into the list immediately after mark, which must be a member
func (l *List[T, P]) InsertAfter(handle Handle, mark Handle) {
	markNode := l.member(mark)
	if markNode.next == Nil {
		l.Push(handle)
		return
	}

	l.InsertBefore(handle, markNode.next)
}

// Visit calls visitor once for each node from head to tail, stopping early if visitor returns
// false. The visitor may unlink the node it was handed, but no other.
func (l *List[T, P]) Visit(visitor func(handle Handle, node P) bool) {
	for handle := l.head; handle != Nil; {
		node := l.arena.Get(handle)
		next := node.Links().next

		if !visitor(handle, node) {
			return
		}

		handle = next
	}
}

// VisitBackward calls visitor once for each node from tail to head, stopping early if visitor
// returns false. The visitor may unlink the node it was handed, but no other.
func (l *List[T, P]) VisitBackward(visitor func(handle Handle, node P) bool) {
	for handle := l.tail; handle != Nil; {
		node := l.arena.Get(handle)
		prev := node.Links().prev

		if !visitor(handle, node) {
			return
		}

		handle = prev
	}
}

// Clear unlinks every node in the list and returns their handles in head-to-tail order. The
// nodes themselves are left in the arena.
func (l *List[T, P]) Clear() []Handle {
	handles := make([]Handle, 0, l.length)

	for handle := l.head; handle != Nil; {
		node := l.arena.links(handle)
		next := node.next
		node.reset()
		handles = append(handles, handle)
		handle = next
	}

	l.head = Nil
	l.tail = Nil
	l.length = 0
	return handles
}

// Validate walks the list from the head and verifies that every link agrees with its
// reverse reference, that every node is owned by this list, and that the length is accurate
func (l *List[T, P]) Validate() error {
	if l.length == 0 {
		if l.head != Nil || l.tail != Nil {
			return errors.Newf("list is empty but has head %d and tail %d", l.head, l.tail)
		}
		return nil
	}

	if l.head == Nil || l.tail == Nil {
		return errors.Newf("list has length %d but has head %d and tail %d", l.length, l.head, l.tail)
	}

	count := 0
	prev := Nil
	for handle := l.head; handle != Nil; {
		if count >= l.length {
			return errors.Newf("list has length %d but more nodes than that are reachable from the head", l.length)
		}
		if !l.arena.Live(handle) {
			return errors.Newf("node %d is linked into the list but has been released", handle)
		}

		node := l.arena.links(handle)
		if node.owner != l.id {
			return errors.Newf("node %d is reachable from the list but is owned by list %d", handle, node.owner)
		}
		if node.prev != prev {
			return errors.Newf("node %d lists node %d as its previous node, but was reached from node %d", handle, node.prev, prev)
		}

		count++
		prev = handle
		handle = node.next
	}

	if prev != l.tail {
		return errors.Newf("the last node reachable from the head is %d, but the tail is %d", prev, l.tail)
	}

	if count != l.length {
		return errors.Newf("the list has a length of %d, but only %d nodes are reachable from the head", l.length, count)
	}

	return nil
}

func (l *List[T, P]) member(handle Handle) *Links {
	node := l.arena.links(handle)
	if node.owner != l.id {
		panic(errors.AssertionFailedf("node %d is not a member of this list", handle))
	}

	return node
}

func (l *List[T, P]) unlinked(handle Handle) *Links {
	node := l.arena.links(handle)
	if node.owner != 0 {
		panic(errors.AssertionFailedf("node %d is already linked into a list", handle))
	}

	return node
}
