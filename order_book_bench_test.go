package book

import (
	"math/rand"
	"testing"

	"github.com/0x5487/panoptes/protocol"
)

func benchMessages(n int, seed int64) []protocol.WireMessage {
	rng := rand.New(rand.NewSource(seed))
	msgs := make([]protocol.WireMessage, n)
	for i := range msgs {
		side := Bid
		price := int64(1_500_000 - rng.Intn(500))
		if rng.Intn(2) == 0 {
			side = Ask
			price = int64(1_500_001 + rng.Intn(500))
		}
		msgs[i] = protocol.WireMessage{
			OrderID: uint64(i + 1),
			Price:   price,
			Size:    int32(1 + rng.Intn(1000)),
			Event:   protocol.EventAdd,
			Side:    side,
		}
	}
	return msgs
}

func BenchmarkAddOrder(b *testing.B) {
	for _, mode := range levelModeCases() {
		b.Run(mode.name, func(b *testing.B) {
			msgs := benchMessages(b.N, 42)
			book := newTestBook(b, mode.apply, func(o *Options) { o.ArenaCapacity = int32(b.N) + 1 })

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = book.AddOrder(&msgs[i])
			}
		})
	}
}

// BenchmarkAddCancelCycle keeps the book at a steady depth of 10k orders.
func BenchmarkAddCancelCycle(b *testing.B) {
	const depth = 10_000

	for _, mode := range levelModeCases() {
		b.Run(mode.name, func(b *testing.B) {
			adds := benchMessages(b.N+depth, 7)
			book := newTestBook(b, mode.apply, func(o *Options) { o.ArenaCapacity = int32(b.N+depth) + 1 })
			for i := 0; i < depth; i++ {
				_ = book.AddOrder(&adds[i])
			}

			cancel := protocol.WireMessage{Event: protocol.EventCancel}

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = book.AddOrder(&adds[depth+i])
				cancel.OrderID = uint64(i + 1)
				book.CancelOrder(&cancel)
			}
		})
	}
}

func BenchmarkBestOfBook(b *testing.B) {
	for _, mode := range levelModeCases() {
		b.Run(mode.name, func(b *testing.B) {
			msgs := benchMessages(10_000, 1)
			book := newTestBook(b, mode.apply)
			for i := range msgs[:4000] {
				_ = book.AddOrder(&msgs[i])
			}

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				book.BestOfBook(Bid)
				book.BestOfBook(Ask)
			}
		})
	}
}

func BenchmarkApplyWithPublisher(b *testing.B) {
	msgs := benchMessages(b.N, 3)
	book := newTestBook(b, func(o *Options) {
		o.ArenaCapacity = int32(b.N) + 1
		o.Publisher = NewDiscardPublishLog()
	})

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = book.Apply(&msgs[i])
	}
}
