package sink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	book "github.com/0x5487/panoptes"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes every log as one message keyed by book id, so a single
// partition carries a book's logs in sequence order.
type Kafka struct {
	writer  MessageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
	opts    options
	counters
}

// NewKafkaWriter builds the writer used in production. Writes are
// synchronous, so a full batch from the async publisher goes out at once
// and a partial one waits at most BatchTimeout.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    book.DefaultPublishBatch,
		BatchTimeout: 5 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafka(w MessageWriter, opts ...Option) *Kafka {
	o := buildOptions(opts)
	return &Kafka{
		writer:  w,
		breaker: newBreaker("kafka", o),
		opts:    o,
	}
}

// Publish implements book.PublishLog.
func (k *Kafka) Publish(logs ...*book.BookLog) {
	if len(logs) == 0 {
		return
	}

	payloads, err := encodeLogs(k.opts.serializer, logs)
	if err != nil {
		k.opts.logger.Error("kafka sink: encode failed", "error", err)
		k.dropped.Add(uint64(len(logs)))
		return
	}

	msgs := make([]kafka.Message, len(logs))
	for i, log := range logs {
		msgs[i] = kafka.Message{
			Key:   []byte(log.BookID),
			Value: payloads[i],
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(log.Type)},
			},
		}
	}

	_, err = k.breaker.Execute(func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), k.opts.timeout)
		defer cancel()
		return struct{}{}, k.writer.WriteMessages(ctx, msgs...)
	})
	if err != nil {
		k.dropped.Add(uint64(len(logs)))
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			k.opts.logger.Error("kafka sink: write failed", "error", err, "logs", len(logs))
		}
		return
	}
	k.sent.Add(uint64(len(logs)))
}

func (k *Kafka) Stats() Stats {
	return k.stats()
}

// Close flushes pending messages and closes the writer.
func (k *Kafka) Close() error {
	err := k.writer.Close()
	s := k.stats()
	k.opts.logger.Info("kafka sink closed", slog.Uint64("sent", s.Sent), slog.Uint64("dropped", s.Dropped))
	return err
}
