// Package sink forwards book logs to external brokers.
//
// Sinks run on the consumer side of the async publisher, never on the book's
// goroutine. Every sink sits behind a circuit breaker: while the broker is
// failing, logs are dropped and counted instead of stalling the consumer.
package sink

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	book "github.com/0x5487/panoptes"
	"github.com/0x5487/panoptes/protocol"
	"github.com/sony/gobreaker/v2"
)

const (
	DefaultWriteTimeout    = 2 * time.Second
	DefaultTripFailures    = 5
	DefaultBreakerCooldown = 10 * time.Second
)

type options struct {
	logger     *slog.Logger
	serializer protocol.Serializer
	timeout    time.Duration
	failures   uint32
	cooldown   time.Duration
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithSerializer(s protocol.Serializer) Option {
	return func(o *options) { o.serializer = s }
}

// WithWriteTimeout bounds a single broker write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open before a trial write is let through.
func WithBreaker(failures uint32, cooldown time.Duration) Option {
	return func(o *options) {
		o.failures = failures
		o.cooldown = cooldown
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:     slog.Default(),
		serializer: protocol.JSONSerializer{},
		timeout:    DefaultWriteTimeout,
		failures:   DefaultTripFailures,
		cooldown:   DefaultBreakerCooldown,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newBreaker(name string, o options) *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     o.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.logger.Warn("sink breaker state changed", "sink", name, "from", from.String(), "to", to.String())
		},
	})
}

// Stats counts the logs a sink handed to its broker and the ones it lost.
type Stats struct {
	Sent    uint64
	Dropped uint64
}

type counters struct {
	sent    atomic.Uint64
	dropped atomic.Uint64
}

func (c *counters) stats() Stats {
	return Stats{Sent: c.sent.Load(), Dropped: c.dropped.Load()}
}

func encodeLogs(s protocol.Serializer, logs []*book.BookLog) ([][]byte, error) {
	payloads := make([][]byte, 0, len(logs))
	for _, log := range logs {
		b, err := s.Marshal(log)
		if err != nil {
			return nil, fmt.Errorf("sink: encode log %d: %w", log.SequenceID, err)
		}
		payloads = append(payloads, b)
	}
	return payloads, nil
}
