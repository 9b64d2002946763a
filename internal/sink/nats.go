package sink

import (
	"errors"
	"fmt"
	"log/slog"

	book "github.com/0x5487/panoptes"
	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"
)

// Conn is the part of *nats.Conn the sink uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

// NATS publishes every log on one subject, at most once.
type NATS struct {
	conn    Conn
	subject string
	breaker *gobreaker.CircuitBreaker[struct{}]
	opts    options
	counters
}

// DialNATS connects to url and returns a sink publishing on subject.
func DialNATS(url, subject string, opts ...Option) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("panoptes"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("sink: connect nats %s: %w", url, err)
	}
	return NewNATS(nc, subject, opts...), nil
}

func NewNATS(conn Conn, subject string, opts ...Option) *NATS {
	o := buildOptions(opts)
	return &NATS{
		conn:    conn,
		subject: subject,
		breaker: newBreaker("nats", o),
		opts:    o,
	}
}

// Publish implements book.PublishLog.
func (n *NATS) Publish(logs ...*book.BookLog) {
	payloads, err := encodeLogs(n.opts.serializer, logs)
	if err != nil {
		n.opts.logger.Error("nats sink: encode failed", "error", err)
		n.dropped.Add(uint64(len(logs)))
		return
	}

	for _, payload := range payloads {
		_, err := n.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, n.conn.Publish(n.subject, payload)
		})
		if err != nil {
			n.dropped.Add(1)
			if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
				n.opts.logger.Error("nats sink: publish failed", "error", err, "subject", n.subject)
			}
			continue
		}
		n.sent.Add(1)
	}
}

func (n *NATS) Stats() Stats {
	return n.stats()
}

// Close drains buffered messages and closes the connection.
func (n *NATS) Close() error {
	err := n.conn.Drain()
	n.conn.Close()
	s := n.stats()
	n.opts.logger.Info("nats sink closed", slog.Uint64("sent", s.Sent), slog.Uint64("dropped", s.Dropped))
	return err
}
