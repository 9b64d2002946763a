package book

import (
	"context"
	"math/bits"
	"sync/atomic"
)

// DefaultRingSize is the slot count of an AsyncPublishLog when none is given.
const DefaultRingSize = 1 << 16

// DefaultPublishBatch caps how many logs the consumer hands to the target in one Publish call.
const DefaultPublishBatch = 512

// AsyncPublishLog hands logs to a background consumer through a RingBuffer,
// so a slow target never stalls the book. When the ring is full the log is
// dropped and counted. The consumer forwards whatever accumulated since its
// last pass as one Publish call, up to DefaultPublishBatch logs.
type AsyncPublishLog struct {
	ring    *RingBuffer[BookLog]
	dropped atomic.Uint64
	started atomic.Bool
	done    chan struct{}
}

// batchForwarder copies logs out of the ring and publishes them in batches.
// The pointers passed to the target are only valid during Publish.
type batchForwarder struct {
	target  PublishLog
	pending []BookLog
	ptrs    []*BookLog
}

func (f *batchForwarder) OnEvent(log *BookLog) {
	f.pending = append(f.pending, *log)
	if len(f.pending) == cap(f.pending) {
		f.flush()
	}
}

func (f *batchForwarder) OnBatchEnd() {
	f.flush()
}

func (f *batchForwarder) flush() {
	if len(f.pending) == 0 {
		return
	}
	f.ptrs = f.ptrs[:0]
	for i := range f.pending {
		f.ptrs = append(f.ptrs, &f.pending[i])
	}
	f.target.Publish(f.ptrs...)
	f.pending = f.pending[:0]
}

// NewAsyncPublishLog creates an AsyncPublishLog in front of target. size is
// rounded up to a power of 2. Call Start before publishing.
func NewAsyncPublishLog(size int64, target PublishLog) *AsyncPublishLog {
	if size <= 0 {
		size = DefaultRingSize
	}
	if size&(size-1) != 0 {
		size = 1 << bits.Len64(uint64(size))
	}

	fwd := &batchForwarder{
		target:  target,
		pending: make([]BookLog, 0, DefaultPublishBatch),
		ptrs:    make([]*BookLog, 0, DefaultPublishBatch),
	}
	return &AsyncPublishLog{
		ring: NewRingBuffer[BookLog](size, fwd),
		done: make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Calls after the first are no-ops.
func (a *AsyncPublishLog) Start() {
	if !a.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(a.done)
		a.ring.Run()
	}()
}

// Publish copies logs into the ring without blocking.
func (a *AsyncPublishLog) Publish(logs ...*BookLog) {
	for _, log := range logs {
		seq, slot := a.ring.TryClaim()
		if slot == nil {
			a.dropped.Add(1)
			continue
		}
		*slot = *log
		a.ring.Commit(seq)
	}
}

// Dropped returns how many logs were discarded because the ring was full or closed.
func (a *AsyncPublishLog) Dropped() uint64 {
	return a.dropped.Load()
}

// Pending returns how many logs wait in the ring.
func (a *AsyncPublishLog) Pending() int64 {
	return a.ring.GetPendingEvents()
}

// Shutdown stops accepting logs and waits until the queued ones reach the target.
func (a *AsyncPublishLog) Shutdown(ctx context.Context) error {
	if err := a.ring.Shutdown(ctx); err != nil {
		return err
	}
	if !a.started.Load() {
		return nil
	}

	// the last batch is flushed after the consumer passes the final sequence
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
