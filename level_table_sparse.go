package book

import (
	"github.com/huandu/skiplist"
)

// sparseLevels keeps only occupied levels, ordered by key. Any price whose
// distance from base fits in an int64 is accepted.
type sparseLevels struct {
	base  int64
	sides [2]*skiplist.SkipList
}

func newSparseLevels(base int64) *sparseLevels {
	return &sparseLevels{
		base: base,
		sides: [2]*skiplist.SkipList{
			skiplist.New(skiplist.Int64),
			skiplist.New(skiplist.Int64),
		},
	}
}

func (t *sparseLevels) key(price int64) (int64, error) {
	key := price - t.base
	// the subtraction wrapped if the operands differ in sign and the result
	// does not carry the sign of price
	if (price^t.base) < 0 && (key^price) < 0 {
		return 0, ErrPriceOutOfRange
	}
	return key, nil
}

func (t *sparseLevels) price(key int64) int64 {
	return key + t.base
}

func (t *sparseLevels) lookup(side Side, key int64) *PriceLevel {
	el := t.sides[sideIndex(side)].Get(key)
	if el == nil {
		return nil
	}
	lvl, _ := el.Value.(*PriceLevel)
	return lvl
}

func (t *sparseLevels) acquire(side Side, key int64) *PriceLevel {
	list := t.sides[sideIndex(side)]
	if el := list.Get(key); el != nil {
		lvl, _ := el.Value.(*PriceLevel)
		return lvl
	}

	lvl := new(PriceLevel)
	*lvl = newPriceLevel()
	list.Set(key, lvl)
	return lvl
}

func (t *sparseLevels) occupied(Side, int64) {}

func (t *sparseLevels) vacated(side Side, key int64) {
	t.sides[sideIndex(side)].Remove(key)
}

func (t *sparseLevels) best(side Side) (int64, *PriceLevel, bool) {
	list := t.sides[sideIndex(side)]

	var el *skiplist.Element
	if side == Bid {
		el = list.Back()
	} else {
		el = list.Front()
	}
	if el == nil {
		return 0, nil, false
	}

	lvl, _ := el.Value.(*PriceLevel)
	return el.Key().(int64), lvl, true
}

func (t *sparseLevels) walk(side Side, fn func(key int64, lvl *PriceLevel) bool) {
	list := t.sides[sideIndex(side)]

	if side == Bid {
		for el := list.Back(); el != nil; el = el.Prev() {
			lvl, _ := el.Value.(*PriceLevel)
			if !fn(el.Key().(int64), lvl) {
				return
			}
		}
		return
	}

	for el := list.Front(); el != nil; el = el.Next() {
		lvl, _ := el.Value.(*PriceLevel)
		if !fn(el.Key().(int64), lvl) {
			return
		}
	}
}

func (t *sparseLevels) levels(side Side) int64 {
	return int64(t.sides[sideIndex(side)].Len())
}
