package book

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	ID    int64
	Value int64
}

// funcHandler adapts a function to EventHandler.
type funcHandler[T any] struct {
	fn func(*T)
}

func (h *funcHandler[T]) OnEvent(e *T) {
	h.fn(e)
}

func shutdownWithin(t *testing.T, rb interface{ Shutdown(context.Context) error }, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))
}

func TestRingBuffer_InOrder(t *testing.T) {
	var processed []int64
	rb := NewRingBuffer[testEvent](16, &funcHandler[testEvent]{fn: func(e *testEvent) {
		processed = append(processed, e.ID)
	}})
	rb.Start()

	// more events than slots, Publish waits for the consumer
	for i := int64(1); i <= 100; i++ {
		rb.Publish(testEvent{ID: i})
	}
	shutdownWithin(t, rb, time.Second)

	require.Len(t, processed, 100)
	for i, id := range processed {
		assert.Equal(t, int64(i+1), id)
	}
	assert.Equal(t, int64(99), rb.ConsumerSequence())
	assert.Equal(t, int64(99), rb.ProducerSequence())
	assert.Equal(t, int64(0), rb.GetPendingEvents())
}

func TestRingBuffer_ClaimCommit(t *testing.T) {
	var got testEvent
	rb := NewRingBuffer[testEvent](16, &funcHandler[testEvent]{fn: func(e *testEvent) {
		got = *e
	}})
	go rb.Run()

	seq, slot := rb.Claim()
	require.Equal(t, int64(0), seq)
	slot.ID = 42
	slot.Value = 100
	rb.Commit(seq)

	shutdownWithin(t, rb, time.Second)
	assert.Equal(t, testEvent{ID: 42, Value: 100}, got)
}

func TestRingBuffer_AfterShutdown(t *testing.T) {
	rb := NewRingBuffer[testEvent](16, &funcHandler[testEvent]{fn: func(e *testEvent) {}})
	rb.Start()
	shutdownWithin(t, rb, time.Second)

	seq, slot := rb.Claim()
	assert.Equal(t, int64(-1), seq)
	assert.Nil(t, slot)
	assert.False(t, rb.TryPublish(testEvent{ID: 1}))
}

func TestRingBuffer_TryPublishWhenFull(t *testing.T) {
	release := make(chan struct{})
	var handled atomic.Int64
	rb := NewRingBuffer[testEvent](4, &funcHandler[testEvent]{fn: func(e *testEvent) {
		<-release
		handled.Add(1)
	}})

	// no consumer yet, so the ring fills up
	for i := 0; i < 4; i++ {
		assert.True(t, rb.TryPublish(testEvent{ID: int64(i)}))
	}
	assert.False(t, rb.TryPublish(testEvent{ID: 99}))
	assert.Equal(t, int64(4), rb.GetPendingEvents())

	rb.Start()
	close(release)
	shutdownWithin(t, rb, time.Second)
	assert.Equal(t, int64(4), handled.Load())
}

func TestRingBuffer_ShutdownTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	rb := NewRingBuffer[testEvent](16, &funcHandler[testEvent]{fn: func(e *testEvent) {
		<-block
	}})
	rb.Start()
	rb.Publish(testEvent{ID: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rb.Shutdown(ctx), context.DeadlineExceeded)
}

func TestRingBuffer_ConcurrentPublish(t *testing.T) {
	var count atomic.Int64
	rb := NewRingBuffer[testEvent](1024, &funcHandler[testEvent]{fn: func(e *testEvent) {
		count.Add(1)
	}})
	rb.Start()

	const publishers = 10
	const perPublisher = 500

	var wg sync.WaitGroup
	wg.Add(publishers)
	for i := 0; i < publishers; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				rb.Publish(testEvent{ID: int64(id*perPublisher + j)})
			}
		}(i)
	}
	wg.Wait()

	shutdownWithin(t, rb, 5*time.Second)
	assert.Equal(t, int64(publishers*perPublisher), count.Load())
}

func TestRingBuffer_PowerOf2Validation(t *testing.T) {
	h := &funcHandler[testEvent]{fn: func(e *testEvent) {}}

	for _, size := range []int64{15, 0, -1} {
		assert.Panics(t, func() { NewRingBuffer[testEvent](size, h) }, "size %d", size)
	}
	assert.NotPanics(t, func() { NewRingBuffer[testEvent](16, h) })
}

func BenchmarkRingBuffer_Publish(b *testing.B) {
	rb := NewRingBuffer[testEvent](1<<16, &funcHandler[testEvent]{fn: func(e *testEvent) {}})
	rb.Start()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		rb.Publish(testEvent{ID: int64(i)})
	}

	b.StopTimer()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = rb.Shutdown(ctx)
}

type batchCounter struct {
	mu      sync.Mutex
	events  int
	batches []int
}

func (h *batchCounter) OnEvent(*testEvent) {
	h.mu.Lock()
	h.events++
	h.mu.Unlock()
}

func (h *batchCounter) OnBatchEnd() {
	h.mu.Lock()
	h.batches = append(h.batches, h.events)
	h.events = 0
	h.mu.Unlock()
}

func (h *batchCounter) snapshot() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.batches...)
}

func TestRingBuffer_BatchEnd(t *testing.T) {
	h := &batchCounter{}
	rb := NewRingBuffer[testEvent](16, h)

	for i := int64(1); i <= 10; i++ {
		require.True(t, rb.TryPublish(testEvent{ID: i}))
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		rb.Run()
	}()
	shutdownWithin(t, rb, time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, []int{10}, h.snapshot())
}
