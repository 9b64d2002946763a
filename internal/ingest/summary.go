package ingest

import (
	"time"

	"github.com/0x5487/panoptes/protocol"
)

// EndReason says why a session stopped.
type EndReason string

const (
	EndOfStream   EndReason = "end_of_stream"
	EndIdle       EndReason = "idle_timeout"
	EndCanceled   EndReason = "canceled"
	EndFatalError EndReason = "fatal_error"
)

// LatencyStats aggregates the accepted latency samples.
type LatencyStats struct {
	Count uint64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (l *LatencyStats) observe(d time.Duration) {
	if l.Count == 0 || d < l.Min {
		l.Min = d
	}
	if d > l.Max {
		l.Max = d
	}
	l.Count++
	l.Total += d
}

// Avg returns the mean sample, zero without samples.
func (l LatencyStats) Avg() time.Duration {
	if l.Count == 0 {
		return 0
	}
	return l.Total / time.Duration(l.Count)
}

// Summary describes one ingestion session.
type Summary struct {
	SessionID string
	Started   time.Time
	Ended     time.Time
	EndReason EndReason

	// Messages counts decoded records handed to the book, rejects included.
	Messages uint64
	// Malformed counts datagrams too short to hold a record.
	Malformed uint64
	Rejected  map[protocol.RejectReason]uint64
	// Unknown counts cancels and executes of ids that were not resting.
	Unknown uint64
	Latency LatencyStats
}

// TotalRejected sums rejects over all reasons.
func (s *Summary) TotalRejected() uint64 {
	var n uint64
	for _, c := range s.Rejected {
		n += c
	}
	return n
}
