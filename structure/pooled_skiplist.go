package structure

import (
	"errors"
	"math/rand"
)

// PooledSkiplist is a set of int32 keys kept in ascending order, backed by a
// node arena sized at construction. It holds the occupied level indices of
// one book side so the best price can be found without scanning the table.
//
// Design:
// - All nodes have fixed MaxLevel forward links (wastes some memory but enables pooling)
// - Freed nodes go back to an index-linked free list; the arena never grows
// - Uses random level generation for probabilistic balancing

const (
	SkiplistMaxLevel = 16 // Maximum level height
	SkiplistP        = 4  // 1/P probability of level increase
)

var (
	ErrMaxCapacityReached = errors.New("skiplist: max capacity reached")
)

// SkiplistNode represents a node in the pooled skiplist.
type SkiplistNode struct {
	Forward [SkiplistMaxLevel]int32 // Forward links (fixed size for pooling)
	Key     int32
	Level   int32 // Actual level of this node (1 to MaxLevel)
}

// PooledSkiplist is an arena-backed skiplist of int32 keys.
type PooledSkiplist struct {
	nodes    []SkiplistNode // Pre-allocated node arena
	head     int32          // Head sentinel node index
	freeHead int32          // Head of free list
	count    int32          // Number of keys in list
	level    int32          // Current max level in use
	rng      *rand.Rand
}

// NewPooledSkiplist creates a skiplist able to hold capacity keys.
func NewPooledSkiplist(capacity int32, seed int64) *PooledSkiplist {
	// +1 for head sentinel
	totalCap := capacity + 1
	sl := &PooledSkiplist{
		nodes:    make([]SkiplistNode, totalCap),
		head:     0,
		freeHead: NullIndex,
		level:    1,
		rng:      rand.New(rand.NewSource(seed)),
	}

	sl.nodes[0].Level = SkiplistMaxLevel
	for i := 0; i < SkiplistMaxLevel; i++ {
		sl.nodes[0].Forward[i] = NullIndex
	}

	// Free list threads through Forward[0], starting at index 1.
	if totalCap > 1 {
		sl.freeHead = 1
		for i := int32(1); i < totalCap-1; i++ {
			sl.nodes[i].Forward[0] = i + 1
		}
		sl.nodes[totalCap-1].Forward[0] = NullIndex
	}

	return sl
}

func (sl *PooledSkiplist) alloc() (int32, error) {
	if sl.freeHead == NullIndex {
		return NullIndex, ErrMaxCapacityReached
	}
	idx := sl.freeHead
	sl.freeHead = sl.nodes[idx].Forward[0]

	for i := 0; i < SkiplistMaxLevel; i++ {
		sl.nodes[idx].Forward[i] = NullIndex
	}
	return idx, nil
}

func (sl *PooledSkiplist) free(idx int32) {
	sl.nodes[idx].Forward[0] = sl.freeHead
	sl.freeHead = idx
}

func (sl *PooledSkiplist) randomLevel() int32 {
	level := int32(1)
	for level < SkiplistMaxLevel && sl.rng.Intn(SkiplistP) == 0 {
		level++
	}
	return level
}

// findPath walks towards key and records, per level, the last node whose key
// is strictly less than key.
func (sl *PooledSkiplist) findPath(key int32, update *[SkiplistMaxLevel]int32) int32 {
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for sl.nodes[x].Forward[i] != NullIndex && sl.nodes[sl.nodes[x].Forward[i]].Key < key {
			x = sl.nodes[x].Forward[i]
		}
		if update != nil {
			update[i] = x
		}
	}
	return sl.nodes[x].Forward[0]
}

// Insert adds key. Returns false if it was already present.
func (sl *PooledSkiplist) Insert(key int32) (bool, error) {
	var update [SkiplistMaxLevel]int32
	x := sl.findPath(key, &update)

	if x != NullIndex && sl.nodes[x].Key == key {
		return false, nil
	}

	newNode, err := sl.alloc()
	if err != nil {
		return false, err
	}

	newLevel := sl.randomLevel()
	if newLevel > sl.level {
		for i := sl.level; i < newLevel; i++ {
			update[i] = sl.head
		}
		sl.level = newLevel
	}

	sl.nodes[newNode].Key = key
	sl.nodes[newNode].Level = newLevel
	for i := int32(0); i < newLevel; i++ {
		sl.nodes[newNode].Forward[i] = sl.nodes[update[i]].Forward[i]
		sl.nodes[update[i]].Forward[i] = newNode
	}

	sl.count++
	return true, nil
}

// MustInsert is like Insert but panics on error.
// Use only when capacity is known to cover every possible key.
func (sl *PooledSkiplist) MustInsert(key int32) bool {
	inserted, err := sl.Insert(key)
	if err != nil {
		panic(err)
	}
	return inserted
}

// Contains checks if key is in the set.
func (sl *PooledSkiplist) Contains(key int32) bool {
	x := sl.findPath(key, nil)
	return x != NullIndex && sl.nodes[x].Key == key
}

// Delete removes key. Returns false if it was not present.
func (sl *PooledSkiplist) Delete(key int32) bool {
	var update [SkiplistMaxLevel]int32
	x := sl.findPath(key, &update)

	if x == NullIndex || sl.nodes[x].Key != key {
		return false
	}

	for i := int32(0); i < sl.level; i++ {
		if sl.nodes[update[i]].Forward[i] != x {
			break
		}
		sl.nodes[update[i]].Forward[i] = sl.nodes[x].Forward[i]
	}

	sl.free(x)

	for sl.level > 1 && sl.nodes[sl.head].Forward[sl.level-1] == NullIndex {
		sl.level--
	}

	sl.count--
	return true
}

// Min returns the smallest key.
func (sl *PooledSkiplist) Min() (int32, bool) {
	x := sl.nodes[sl.head].Forward[0]
	if x == NullIndex {
		return 0, false
	}
	return sl.nodes[x].Key, true
}

// Max returns the largest key. It follows the highest links first, so it
// costs O(log N) rather than a walk of the bottom list.
func (sl *PooledSkiplist) Max() (int32, bool) {
	if sl.count == 0 {
		return 0, false
	}
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for sl.nodes[x].Forward[i] != NullIndex {
			x = sl.nodes[x].Forward[i]
		}
	}
	return sl.nodes[x].Key, true
}

// Count returns the number of keys.
func (sl *PooledSkiplist) Count() int32 {
	return sl.count
}

// Capacity returns the number of keys the arena can hold.
func (sl *PooledSkiplist) Capacity() int32 {
	return int32(len(sl.nodes)) - 1 // -1 for head sentinel
}

// InOrderSlice returns all keys in ascending order.
func (sl *PooledSkiplist) InOrderSlice() []int32 {
	result := make([]int32, 0, sl.count)
	x := sl.nodes[sl.head].Forward[0]
	for x != NullIndex {
		result = append(result, sl.nodes[x].Key)
		x = sl.nodes[x].Forward[0]
	}
	return result
}

// SkiplistIterator provides ordered traversal over the skiplist.
// Usage:
//
//	iter := sl.Iterator()
//	for iter.Valid() {
//	    key := iter.Key()
//	    // ...
//	    iter.Next()
//	}
type SkiplistIterator struct {
	sl      *PooledSkiplist
	current int32
}

// Iterator returns an iterator positioned at the smallest key.
func (sl *PooledSkiplist) Iterator() *SkiplistIterator {
	return &SkiplistIterator{
		sl:      sl,
		current: sl.nodes[sl.head].Forward[0],
	}
}

// Valid returns true if the iterator points to a valid element.
func (it *SkiplistIterator) Valid() bool {
	return it.current != NullIndex
}

// Next advances the iterator to the next element.
func (it *SkiplistIterator) Next() {
	if it.current != NullIndex {
		it.current = it.sl.nodes[it.current].Forward[0]
	}
}

// Key returns the key at the current iterator position.
// Only valid when Valid() returns true.
func (it *SkiplistIterator) Key() int32 {
	return it.sl.nodes[it.current].Key
}
