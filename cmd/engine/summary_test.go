package main

import (
	"strings"
	"testing"
	"time"

	book "github.com/0x5487/panoptes"
	"github.com/0x5487/panoptes/internal/ingest"
	"github.com/0x5487/panoptes/protocol"
	"github.com/stretchr/testify/assert"
)

type fixedBBO struct {
	bid, ask       book.Quote
	hasBid, hasAsk bool
}

func (f fixedBBO) BBO() (book.Quote, book.Quote, bool, bool) {
	return f.bid, f.ask, f.hasBid, f.hasAsk
}

func TestPrintSummary(t *testing.T) {
	started := time.Unix(100, 0)
	sum := &ingest.Summary{
		SessionID: "s1",
		Started:   started,
		Ended:     started.Add(2 * time.Second),
		EndReason: ingest.EndOfStream,
		Messages:  1000,
		Rejected: map[protocol.RejectReason]uint64{
			protocol.RejectReasonPriceRange:  2,
			protocol.RejectReasonDuplicateID: 1,
		},
		Unknown: 3,
		Latency: ingest.LatencyStats{Count: 2, Total: 30 * time.Microsecond, Min: 10 * time.Microsecond, Max: 20 * time.Microsecond},
	}

	var out strings.Builder
	printSummary(&out, sum, fixedBBO{
		bid:    book.Quote{Price: 1_500_999, Volume: 100},
		hasBid: true,
	}, nil)

	got := out.String()
	assert.Contains(t, got, "Messages processed: 1000")
	assert.Contains(t, got, "Rejected: 3")
	assert.Contains(t, got, "  duplicate_order_id: 1\n  price_out_of_range: 2\n")
	assert.Contains(t, got, "Unknown order ids: 3")
	assert.Contains(t, got, "Latency: avg 15µs")
	assert.Contains(t, got, "BBO: 100 @ 150.0999 -- empty\n")
	assert.NotContains(t, got, "Aggregated")
}

func TestPrintSummary_Aggregated(t *testing.T) {
	sum := &ingest.Summary{SessionID: "s1", EndReason: ingest.EndOfStream}

	agg := book.NewAggregatedBook()
	agg.Publish(
		&book.BookLog{SequenceID: 1, Type: book.LogTypeOpen, Side: book.Bid, Price: 1_500_000, Size: 10},
		&book.BookLog{SequenceID: 2, Type: book.LogTypeOpen, Side: book.Ask, Price: 1_501_000, Size: 7},
	)

	var out strings.Builder
	printSummary(&out, sum, agg, agg)
	assert.Contains(t, out.String(), "Aggregated BBO: 10 @ 150.0000 -- 7 @ 150.1000 (seq 2)\n")

	agg.Publish(&book.BookLog{SequenceID: 5, Type: book.LogTypeOpen, Side: book.Bid, Price: 1_500_000, Size: 1})
	out.Reset()
	printSummary(&out, sum, agg, agg)
	assert.Contains(t, out.String(), "Aggregated BBO: stale since seq 2\n")
}
