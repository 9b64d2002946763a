package structure

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPooledSkiplist_BasicOperations(t *testing.T) {
	sl := NewPooledSkiplist(100, 42)

	// Test empty
	_, ok := sl.Min()
	assert.False(t, ok)
	_, ok = sl.Max()
	assert.False(t, ok)
	assert.Equal(t, int32(0), sl.Count())

	// Insert
	inserted, err := sl.Insert(100)
	assert.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = sl.Insert(50)
	assert.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = sl.Insert(150)
	assert.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int32(3), sl.Count())

	// Duplicate
	inserted, err = sl.Insert(100)
	assert.NoError(t, err)
	assert.False(t, inserted)

	// Contains
	assert.True(t, sl.Contains(100))
	assert.True(t, sl.Contains(50))
	assert.False(t, sl.Contains(999))

	min, ok := sl.Min()
	assert.True(t, ok)
	assert.Equal(t, int32(50), min)

	max, ok := sl.Max()
	assert.True(t, ok)
	assert.Equal(t, int32(150), max)
}

func TestPooledSkiplist_Delete(t *testing.T) {
	sl := NewPooledSkiplist(100, 42)

	for _, v := range []int32{50, 25, 75, 10, 30, 60, 80} {
		sl.MustInsert(v)
	}

	assert.True(t, sl.Delete(10))
	assert.Equal(t, int32(6), sl.Count())
	assert.False(t, sl.Contains(10))

	assert.True(t, sl.Delete(80))
	max, _ := sl.Max()
	assert.Equal(t, int32(75), max)

	// Delete non-existent
	assert.False(t, sl.Delete(999))
}

func TestPooledSkiplist_OracleTest(t *testing.T) {
	sl := NewPooledSkiplist(1000, 42)
	oracle := make(map[int32]bool)

	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 10000; i++ {
		key := int32(rng.Intn(1000))

		if rng.Intn(2) == 0 {
			sl.MustInsert(key)
			oracle[key] = true
		} else {
			sl.Delete(key)
			delete(oracle, key)
		}

		assert.Equal(t, int32(len(oracle)), sl.Count())
	}

	expected := make([]int32, 0, len(oracle))
	for k := range oracle {
		expected = append(expected, k)
	}
	sort.Slice(expected, func(i, j int) bool { return expected[i] < expected[j] })

	assert.Equal(t, expected, sl.InOrderSlice())

	if len(expected) > 0 {
		min, _ := sl.Min()
		max, _ := sl.Max()
		assert.Equal(t, expected[0], min)
		assert.Equal(t, expected[len(expected)-1], max)
	}
}

func TestPooledSkiplist_Capacity(t *testing.T) {
	sl := NewPooledSkiplist(3, 42)
	assert.Equal(t, int32(3), sl.Capacity())

	for i := int32(0); i < 3; i++ {
		inserted, err := sl.Insert(i)
		assert.NoError(t, err)
		assert.True(t, inserted)
	}

	_, err := sl.Insert(999)
	assert.ErrorIs(t, err, ErrMaxCapacityReached)

	// Freed nodes are reused.
	assert.True(t, sl.Delete(1))
	inserted, err := sl.Insert(999)
	assert.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, []int32{0, 2, 999}, sl.InOrderSlice())
}

func TestPooledSkiplist_Iterator(t *testing.T) {
	sl := NewPooledSkiplist(100, 42)

	for _, v := range []int32{50, 25, 75, 10, 30, 60, 80, 5, 15} {
		sl.MustInsert(v)
	}

	expected := []int32{5, 10, 15, 25, 30, 50, 60, 75, 80}
	i := 0
	for iter := sl.Iterator(); iter.Valid(); iter.Next() {
		assert.Equal(t, expected[i], iter.Key(), "position %d", i)
		i++
	}
	assert.Equal(t, len(expected), i)

	// Empty skiplist iterator
	assert.False(t, NewPooledSkiplist(10, 42).Iterator().Valid())
}

func BenchmarkPooledSkiplist_InsertDelete(b *testing.B) {
	sl := NewPooledSkiplist(1100, 42)
	for i := int32(0); i < 1000; i++ {
		sl.MustInsert(i * 2)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		key := int32(i%1000)*2 + 1
		sl.MustInsert(key)
		sl.Delete(key)
	}
}

func BenchmarkPooledSkiplist_Max(b *testing.B) {
	sl := NewPooledSkiplist(1100, 42)
	for i := int32(0); i < 1000; i++ {
		sl.MustInsert(i)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sl.Max()
	}
}

// FuzzPooledSkiplist verifies skiplist invariants under random operations.
func FuzzPooledSkiplist(f *testing.F) {
	f.Add([]byte{0, 1, 2, 3, 4, 5})
	f.Add([]byte{5, 4, 3, 2, 1, 0})
	f.Add([]byte{1, 1, 1, 1, 1})
	f.Add([]byte{0, 0, 0, 1, 1, 1})

	f.Fuzz(func(t *testing.T, data []byte) {
		sl := NewPooledSkiplist(1000, 42)
		oracle := make(map[int32]bool)

		for _, b := range data {
			key := int32(b % 100) // Limit range to increase collisions

			if b%2 == 0 {
				sl.MustInsert(key)
				oracle[key] = true
			} else {
				sl.Delete(key)
				delete(oracle, key)
			}
		}

		if int32(len(oracle)) != sl.Count() {
			t.Errorf("Count mismatch: oracle=%d, skiplist=%d", len(oracle), sl.Count())
		}

		slice := sl.InOrderSlice()
		for i := 1; i < len(slice); i++ {
			if slice[i-1] >= slice[i] {
				t.Errorf("Not sorted at index %d: %d >= %d", i, slice[i-1], slice[i])
			}
		}

		for key := range oracle {
			if !sl.Contains(key) {
				t.Errorf("Missing key %d in skiplist", key)
			}
		}
	})
}
