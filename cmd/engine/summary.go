package main

import (
	"fmt"
	"io"
	"sort"

	book "github.com/0x5487/panoptes"
	"github.com/0x5487/panoptes/internal/ingest"
	"github.com/0x5487/panoptes/protocol"
)

type topOfBook interface {
	BBO() (bid, ask book.Quote, hasBid, hasAsk bool)
}

type aggregatedView interface {
	topOfBook
	SequenceID() uint64
	Stale() bool
}

// printSummary writes the session report. agg may be nil.
func printSummary(w io.Writer, sum *ingest.Summary, b topOfBook, agg aggregatedView) {
	fmt.Fprintf(w, "Session %s ended: %s (%s)\n", sum.SessionID, sum.EndReason, sum.Ended.Sub(sum.Started))
	fmt.Fprintf(w, "Messages processed: %d\n", sum.Messages)

	fmt.Fprintf(w, "Rejected: %d\n", sum.TotalRejected())
	reasons := make([]string, 0, len(sum.Rejected))
	for r := range sum.Rejected {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "  %s: %d\n", r, sum.Rejected[protocol.RejectReason(r)])
	}

	fmt.Fprintf(w, "Unknown order ids: %d\n", sum.Unknown)

	if sum.Latency.Count > 0 {
		fmt.Fprintf(w, "Latency: avg %s min %s max %s over %d samples\n",
			sum.Latency.Avg(), sum.Latency.Min, sum.Latency.Max, sum.Latency.Count)
	} else {
		fmt.Fprintln(w, "Latency: no samples")
	}

	bid, ask, hasBid, hasAsk := b.BBO()
	fmt.Fprintf(w, "BBO: %s -- %s\n", quote(bid, hasBid), quote(ask, hasAsk))

	if agg == nil {
		return
	}
	if agg.Stale() {
		fmt.Fprintf(w, "Aggregated BBO: stale since seq %d\n", agg.SequenceID())
		return
	}
	bid, ask, hasBid, hasAsk = agg.BBO()
	fmt.Fprintf(w, "Aggregated BBO: %s -- %s (seq %d)\n", quote(bid, hasBid), quote(ask, hasAsk), agg.SequenceID())
}

func quote(q book.Quote, ok bool) string {
	if !ok {
		return "empty"
	}
	return fmt.Sprintf("%d @ %s", q.Volume, book.FormatPrice(q.Price))
}
