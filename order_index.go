package book

// orderIndex maps a live order id to its arena slot.
type orderIndex struct {
	slots map[uint64]int32
}

func newOrderIndex(hint int) orderIndex {
	return orderIndex{slots: make(map[uint64]int32, hint)}
}

// insert records id at slot. It returns false, and changes nothing, when id is
// already live.
func (ix *orderIndex) insert(id uint64, slot int32) bool {
	if _, ok := ix.slots[id]; ok {
		return false
	}
	ix.slots[id] = slot
	return true
}

func (ix *orderIndex) lookup(id uint64) (int32, bool) {
	slot, ok := ix.slots[id]
	return slot, ok
}

func (ix *orderIndex) remove(id uint64) {
	delete(ix.slots, id)
}

func (ix *orderIndex) len() int {
	return len(ix.slots)
}
