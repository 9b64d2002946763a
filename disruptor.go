package book

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

// idleSpins is how many empty polls the consumer yields for before it starts sleeping.
const idleSpins = 128

const idleSleep = 50 * time.Microsecond

// EventHandler consumes events from a RingBuffer. The pointer refers to the
// ring slot and is only valid until OnEvent returns.
type EventHandler[T any] interface {
	OnEvent(event *T)
}

// BatchHandler is implemented by handlers that want to know when the consumer
// has handled every event that was available in one pass.
type BatchHandler interface {
	OnBatchEnd()
}

// RingBuffer is a multi-producer single-consumer ring of pre-allocated slots.
type RingBuffer[T any] struct {
	// Cache line padding to avoid false sharing
	_                [56]byte
	producerSequence atomic.Int64
	_                [56]byte
	consumerSequence atomic.Int64
	_                [56]byte

	buffer     []T
	bufferMask int64
	capacity   int64

	// published[i] holds the sequence last committed into slot i
	published []int64

	handler    EventHandler[T]
	batchEnd   BatchHandler
	isShutdown atomic.Bool
}

// NewRingBuffer creates a ring with capacity slots. capacity must be a power of 2.
func NewRingBuffer[T any](capacity int64, handler EventHandler[T]) *RingBuffer[T] {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		panic("size must be a power of 2")
	}

	rb := &RingBuffer[T]{
		buffer:     make([]T, capacity),
		published:  make([]int64, capacity),
		capacity:   capacity,
		bufferMask: capacity - 1,
		handler:    handler,
	}
	rb.batchEnd, _ = handler.(BatchHandler)

	rb.producerSequence.Store(-1)
	rb.consumerSequence.Store(-1)

	for i := range rb.published {
		atomic.StoreInt64(&rb.published[i], -1)
	}

	return rb
}

// claim reserves the next sequence. When wait is false it gives up as soon as
// the ring is full.
func (rb *RingBuffer[T]) claim(wait bool) int64 {
	for {
		if rb.isShutdown.Load() {
			return -1
		}

		current := rb.producerSequence.Load()
		next := current + 1

		// the producer may not lap the consumer
		if next-rb.capacity > rb.consumerSequence.Load() {
			if !wait {
				return -1
			}
			runtime.Gosched()
			continue
		}

		if rb.producerSequence.CompareAndSwap(current, next) {
			return next
		}
		runtime.Gosched()
	}
}

// Claim reserves a slot and returns its sequence and a pointer for in-place
// writes. It blocks while the ring is full. Every claimed sequence must be
// passed to Commit. It returns (-1, nil) after Shutdown.
func (rb *RingBuffer[T]) Claim() (int64, *T) {
	seq := rb.claim(true)
	if seq < 0 {
		return -1, nil
	}
	return seq, &rb.buffer[seq&rb.bufferMask]
}

// TryClaim is Claim without blocking: it returns (-1, nil) when the ring is full.
func (rb *RingBuffer[T]) TryClaim() (int64, *T) {
	seq := rb.claim(false)
	if seq < 0 {
		return -1, nil
	}
	return seq, &rb.buffer[seq&rb.bufferMask]
}

// Commit makes a claimed slot visible to the consumer.
func (rb *RingBuffer[T]) Commit(seq int64) {
	atomic.StoreInt64(&rb.published[seq&rb.bufferMask], seq)
}

// Publish copies event into the ring, blocking while it is full.
// Events published after Shutdown are dropped.
func (rb *RingBuffer[T]) Publish(event T) {
	seq, slot := rb.Claim()
	if slot == nil {
		return
	}
	*slot = event
	rb.Commit(seq)
}

// TryPublish copies event into the ring and reports false, without waiting,
// when the ring is full or shut down.
func (rb *RingBuffer[T]) TryPublish(event T) bool {
	seq, slot := rb.TryClaim()
	if slot == nil {
		return false
	}
	*slot = event
	rb.Commit(seq)
	return true
}

// Start runs the consumer in a new goroutine.
func (rb *RingBuffer[T]) Start() {
	go rb.Run()
}

// Run consumes events until Shutdown, then drains what was claimed before it.
func (rb *RingBuffer[T]) Run() {
	next := rb.consumerSequence.Load() + 1
	idle := 0

	for {
		available := rb.producerSequence.Load()

		if rb.isShutdown.Load() {
			// producers that claimed before the flag was set still commit
			if next <= rb.producerSequence.Load() {
				for next <= rb.producerSequence.Load() {
					next = rb.consume(next, rb.producerSequence.Load())
				}
				rb.endBatch()
			}
			return
		}

		if next > available {
			idle++
			if idle < idleSpins {
				runtime.Gosched()
			} else {
				time.Sleep(idleSleep)
			}
			continue
		}

		idle = 0
		next = rb.consume(next, available)
		rb.endBatch()
	}
}

func (rb *RingBuffer[T]) endBatch() {
	if rb.batchEnd != nil {
		rb.batchEnd.OnBatchEnd()
	}
}

// consume hands sequences [next, available] to the handler and returns the
// next sequence to read.
func (rb *RingBuffer[T]) consume(next, available int64) int64 {
	for next <= available {
		index := next & rb.bufferMask

		// the slot is claimed but its producer may not have committed yet
		for atomic.LoadInt64(&rb.published[index]) != next {
			runtime.Gosched()
		}

		rb.handler.OnEvent(&rb.buffer[index])
		rb.consumerSequence.Store(next)
		next++
	}
	return next
}

// Shutdown stops accepting events and waits until everything already claimed
// has been handled, or ctx is done.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	rb.isShutdown.Store(true)

	for {
		if rb.ConsumerSequence() >= rb.ProducerSequence() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			runtime.Gosched()
		}
	}
}

// ConsumerSequence returns the last handled sequence.
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.consumerSequence.Load()
}

// ProducerSequence returns the last claimed sequence.
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.producerSequence.Load()
}

// GetPendingEvents returns how many claimed events have not been handled yet.
func (rb *RingBuffer[T]) GetPendingEvents() int64 {
	return rb.producerSequence.Load() - rb.consumerSequence.Load()
}
