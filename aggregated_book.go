package book

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/igrmk/treemap/v2"
)

// AggregatedBook maintains a simplified view of the order book,
// tracking only price levels and their aggregated sizes (depth).
// It is designed for downstream services that need to rebuild
// order book state from BookLog events received via message queue.
type AggregatedBook struct {
	mu    sync.RWMutex
	seqID atomic.Uint64 // Last processed SequenceID for gap detection and deduplication
	stale atomic.Bool   // set by Publish on a gap, cleared by OnRebuild
	ask   *treemap.TreeMap[int64, int64]
	bid   *treemap.TreeMap[int64, int64]
}

// NewAggregatedBook creates a new AggregatedBook instance with empty ask and bid sides.
func NewAggregatedBook() *AggregatedBook {
	return &AggregatedBook{
		ask: treemap.New[int64, int64](),
		bid: treemap.New[int64, int64](),
	}
}

// SequenceID returns the last processed sequence ID.
// Used for synchronization and gap detection during rebuild.
func (ab *AggregatedBook) SequenceID() uint64 {
	return ab.seqID.Load()
}

func (ab *AggregatedBook) tree(side Side) *treemap.TreeMap[int64, int64] {
	if side == Bid {
		return ab.bid
	}
	return ab.ask
}

// Replay applies a BookLog event to update the aggregated book state.
// Events already seen are ignored. Reject events only advance the sequence ID.
// A log that skips a sequence returns ErrSequenceGap and is not applied;
// the caller is expected to rebuild from a snapshot.
func (ab *AggregatedBook) Replay(log *BookLog) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	last := ab.seqID.Load()
	if log.SequenceID <= last {
		return nil
	}
	if log.SequenceID != last+1 {
		return fmt.Errorf("%w: expected %d, got %d", ErrSequenceGap, last+1, log.SequenceID)
	}

	change := CalculateDepthChange(log)
	if change.SizeDiff != 0 {
		ab.apply(change)
	}

	ab.seqID.Store(log.SequenceID)
	return nil
}

func (ab *AggregatedBook) apply(change DepthChange) {
	tree := ab.tree(change.Side)

	size, _ := tree.Get(change.Price)
	size += change.SizeDiff
	if size <= 0 {
		tree.Del(change.Price)
		return
	}
	tree.Set(change.Price, size)
}

// Publish replays logs so the book can sit directly behind a publisher.
// The first gap marks the view stale; later logs are ignored until OnRebuild.
func (ab *AggregatedBook) Publish(logs ...*BookLog) {
	for _, log := range logs {
		if ab.stale.Load() {
			return
		}
		if err := ab.Replay(log); err != nil {
			ab.stale.Store(true)
			logger.Warn("aggregated book is stale until rebuilt", "seq_id", log.SequenceID, "error", err)
			return
		}
	}
}

// Stale reports whether Publish saw a sequence gap since the last rebuild.
func (ab *AggregatedBook) Stale() bool {
	return ab.stale.Load()
}

// OnRebuild initializes or resets the aggregated book from a snapshot.
// This should be called before replaying events from the message queue.
// A nil snapshot resets the book to empty.
func (ab *AggregatedBook) OnRebuild(snap *BookSnapshot) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	ab.ask.Clear()
	ab.bid.Clear()
	ab.seqID.Store(0)
	ab.stale.Store(false)

	if snap == nil {
		return nil
	}

	for _, orders := range [][]RestingOrder{snap.Bids, snap.Asks} {
		for _, o := range orders {
			if !o.Side.Valid() || o.Size <= 0 {
				return fmt.Errorf("%w: snapshot order %d", ErrInvalidParam, o.ID)
			}
			ab.apply(DepthChange{Side: o.Side, Price: o.Price, SizeDiff: int64(o.Size)})
		}
	}

	ab.seqID.Store(snap.SeqID)
	return nil
}

// Depth returns the aggregated size at a specific price level for the given side.
// Returns zero if the price level does not exist.
func (ab *AggregatedBook) Depth(side Side, price int64) (int64, error) {
	if !side.Valid() {
		return 0, ErrInvalidSide
	}

	ab.mu.RLock()
	defer ab.mu.RUnlock()

	size, _ := ab.tree(side).Get(price)
	return size, nil
}

// Best returns the best price on side and its aggregated size.
func (ab *AggregatedBook) Best(side Side) (Quote, bool) {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	var price, size int64
	var ok bool

	switch side {
	case Bid:
		it := ab.bid.Reverse()
		if ok = it.Valid(); ok {
			price, size = it.Key(), it.Value()
		}
	case Ask:
		it := ab.ask.Iterator()
		if ok = it.Valid(); ok {
			price, size = it.Key(), it.Value()
		}
	}

	if !ok {
		return Quote{}, false
	}
	return Quote{Price: price, Volume: size}, true
}

// BBO returns the best bid and ask of the aggregated view.
func (ab *AggregatedBook) BBO() (bid, ask Quote, hasBid, hasAsk bool) {
	bid, hasBid = ab.Best(Bid)
	ask, hasAsk = ab.Best(Ask)
	return bid, ask, hasBid, hasAsk
}

// Levels returns up to limit price levels of side, best first.
func (ab *AggregatedBook) Levels(side Side, limit uint32) []*DepthItem {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	result := make([]*DepthItem, 0, limit)
	add := func(price, size int64) bool {
		result = append(result, &DepthItem{ID: uint32(len(result)), Price: price, Volume: size})
		return uint32(len(result)) < limit
	}

	if limit == 0 || !side.Valid() {
		return result
	}

	if side == Bid {
		for it := ab.bid.Reverse(); it.Valid(); it.Next() {
			if !add(it.Key(), it.Value()) {
				break
			}
		}
		return result
	}

	for it := ab.ask.Iterator(); it.Valid(); it.Next() {
		if !add(it.Key(), it.Value()) {
			break
		}
	}
	return result
}
