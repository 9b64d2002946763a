package book

import (
	"github.com/0x5487/panoptes/structure"
)

// LevelMode selects the price level table implementation.
type LevelMode string

const (
	// LevelModeDense pre-allocates one level per tick in
	// [NormalizationBase, NormalizationBase+MaxPriceLevels).
	LevelModeDense LevelMode = "dense"
	// LevelModeSparse keeps only occupied levels in an ordered map and accepts any price.
	LevelModeSparse LevelMode = "sparse"
)

// levelTable owns the price levels of both sides. Keys are normalized prices.
type levelTable interface {
	// key maps a literal price to its level key.
	key(price int64) (int64, error)
	// price is the inverse of key.
	price(key int64) int64
	// lookup returns the level at key, or nil when the table holds none.
	lookup(side Side, key int64) *PriceLevel
	// acquire returns the level at key, creating it when needed. key must come from key().
	acquire(side Side, key int64) *PriceLevel
	// occupied and vacated are called when a level turns non-empty and empty.
	occupied(side Side, key int64)
	vacated(side Side, key int64)
	// best returns the innermost non-empty level: highest bid, lowest ask.
	best(side Side) (int64, *PriceLevel, bool)
	// walk visits non-empty levels best first until fn returns false.
	walk(side Side, fn func(key int64, lvl *PriceLevel) bool)
	// levels returns the number of non-empty levels on side.
	levels(side Side) int64
}

// denseLevels is a direct-mapped table: one PriceLevel per representable tick,
// allocated once and never created or destroyed afterwards.
type denseLevels struct {
	base   int64
	size   int64
	sides  [2][]PriceLevel
	active [2]int64

	// lo and hi bound the keys ever occupied per side, so scans skip the
	// untouched ends of the table.
	lo [2]int64
	hi [2]int64

	// occupancy is nil unless tracking is enabled.
	occupancy [2]*structure.PooledSkiplist
}

func newDenseLevels(base int64, size int32, trackOccupancy bool) *denseLevels {
	t := &denseLevels{
		base: base,
		size: int64(size),
	}
	for s := 0; s < 2; s++ {
		levels := make([]PriceLevel, size)
		for i := range levels {
			levels[i] = newPriceLevel()
		}
		t.sides[s] = levels
		t.lo[s] = int64(size)
		t.hi[s] = -1
		if trackOccupancy {
			t.occupancy[s] = structure.NewPooledSkiplist(size, int64(s)+1)
		}
	}
	return t
}

func (t *denseLevels) key(price int64) (int64, error) {
	k := price - t.base
	if k < 0 || k >= t.size {
		return 0, ErrPriceOutOfRange
	}
	return k, nil
}

func (t *denseLevels) price(key int64) int64 {
	return key + t.base
}

func (t *denseLevels) lookup(side Side, key int64) *PriceLevel {
	if key < 0 || key >= t.size {
		return nil
	}
	return &t.sides[sideIndex(side)][key]
}

func (t *denseLevels) acquire(side Side, key int64) *PriceLevel {
	return &t.sides[sideIndex(side)][key]
}

func (t *denseLevels) occupied(side Side, key int64) {
	s := sideIndex(side)
	t.active[s]++
	if key < t.lo[s] {
		t.lo[s] = key
	}
	if key > t.hi[s] {
		t.hi[s] = key
	}
	if t.occupancy[s] != nil {
		// capacity equals the table size, every key fits
		t.occupancy[s].MustInsert(int32(key))
	}
}

func (t *denseLevels) vacated(side Side, key int64) {
	s := sideIndex(side)
	t.active[s]--
	if t.occupancy[s] != nil {
		t.occupancy[s].Delete(int32(key))
	}
}

func (t *denseLevels) best(side Side) (int64, *PriceLevel, bool) {
	s := sideIndex(side)
	if t.active[s] == 0 {
		return 0, nil, false
	}

	if occ := t.occupancy[s]; occ != nil {
		var k int32
		var ok bool
		if side == Bid {
			k, ok = occ.Max()
		} else {
			k, ok = occ.Min()
		}
		if !ok {
			return 0, nil, false
		}
		return int64(k), &t.sides[s][k], true
	}

	var found int64 = -1
	t.walk(side, func(key int64, _ *PriceLevel) bool {
		found = key
		return false
	})
	if found < 0 {
		return 0, nil, false
	}
	return found, &t.sides[s][found], true
}

func (t *denseLevels) walk(side Side, fn func(key int64, lvl *PriceLevel) bool) {
	s := sideIndex(side)
	levels := t.sides[s]

	if occ := t.occupancy[s]; occ != nil && side == Ask {
		for it := occ.Iterator(); it.Valid(); it.Next() {
			k := int64(it.Key())
			if !fn(k, &levels[k]) {
				return
			}
		}
		return
	}

	if side == Bid {
		for k := t.hi[s]; k >= t.lo[s]; k-- {
			if levels[k].empty() {
				continue
			}
			if !fn(k, &levels[k]) {
				return
			}
		}
		return
	}

	for k := t.lo[s]; k <= t.hi[s]; k++ {
		if levels[k].empty() {
			continue
		}
		if !fn(k, &levels[k]) {
			return
		}
	}
}

func (t *denseLevels) levels(side Side) int64 {
	return t.active[sideIndex(side)]
}
