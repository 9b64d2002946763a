package structure

import "errors"

// NullIndex marks an absent slot reference.
const NullIndex int32 = -1

var (
	ErrCapacityExhausted = errors.New("arena: capacity exhausted")
)

// Arena is a fixed-capacity pool of T addressed by int32 slot index.
//
// Allocation advances a cursor and never reuses a slot, so an index handed out
// stays valid (and unique) for the lifetime of the arena. The backing slice is
// allocated once in NewArena and never grows.
type Arena[T any] struct {
	slots []T
	next  int32
}

// NewArena pre-allocates an arena with room for capacity values.
func NewArena[T any](capacity int32) *Arena[T] {
	if capacity <= 0 {
		panic("arena: capacity must be positive")
	}
	return &Arena[T]{
		slots: make([]T, capacity),
	}
}

// Alloc reserves the next slot. The caller overwrites the whole value, the
// arena does not clear it.
func (a *Arena[T]) Alloc() (int32, error) {
	if int(a.next) >= len(a.slots) {
		return NullIndex, ErrCapacityExhausted
	}
	idx := a.next
	a.next++
	return idx, nil
}

// At returns the value stored in slot idx. idx must come from Alloc.
func (a *Arena[T]) At(idx int32) *T {
	return &a.slots[idx]
}

// Len returns the number of slots handed out so far.
func (a *Arena[T]) Len() int32 {
	return a.next
}

// Cap returns the fixed capacity.
func (a *Arena[T]) Cap() int32 {
	return int32(len(a.slots))
}

// Available returns how many slots can still be allocated.
func (a *Arena[T]) Available() int32 {
	return int32(len(a.slots)) - a.next
}
