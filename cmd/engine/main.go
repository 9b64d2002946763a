// Command engine receives market-data datagrams, keeps the order book for one
// instrument and prints a summary when the stream ends.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	book "github.com/0x5487/panoptes"
	"github.com/0x5487/panoptes/internal/config"
	"github.com/0x5487/panoptes/internal/ingest"
	"github.com/0x5487/panoptes/internal/logging"
	"github.com/0x5487/panoptes/internal/metrics"
	"github.com/0x5487/panoptes/internal/sink"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, v, err := config.Load(os.Getenv("PANOPTES_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		return 1
	}

	logger, level, syncLog := logging.New(cfg.Log)
	defer func() { _ = syncLog() }()
	slog.SetDefault(logger)
	book.SetLogger(logger)

	config.Watch(v, logger, func(next *config.Config) {
		level.SetLevel(logging.ParseLevel(next.Log.Level))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Error("metrics server failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	pub, err := newPublisher(cfg.Publish, logger, m)
	if err != nil {
		logger.Error("publisher setup failed", "error", err)
		return 1
	}
	defer pub.close()

	opts := cfg.Book.Options()
	opts.Publisher = pub.target()

	b, err := book.NewOrderBook(opts)
	if err != nil {
		logger.Error("order book setup failed", "error", err)
		return 1
	}
	logger.Info("order book ready",
		"book_id", b.ID(),
		"version", book.EngineVersion,
		"level_mode", string(opts.LevelMode),
		"arena_capacity", opts.ArenaCapacity,
	)

	srv := ingest.NewServer(ingest.Config{
		Addr:        cfg.Ingest.Addr,
		IdleTimeout: cfg.Ingest.IdleTimeout,
		BufferSize:  cfg.Ingest.BufferSize,
		MaxLatency:  cfg.Ingest.MaxLatency,
	}, b, ingest.WithLogger(logger), ingest.WithMetrics(m))

	sum, err := srv.Run(ctx)
	if sum != nil {
		var view aggregatedView
		if pub.agg != nil {
			view = pub.agg
		}
		printSummary(os.Stdout, sum, b, view)
	}
	if err != nil {
		logger.Error("ingest failed", "error", err)
		return 1
	}
	return 0
}

type publisher struct {
	agg     *book.AggregatedBook
	async   *book.AsyncPublishLog
	closers []func() error
	logger  *slog.Logger
}

// newPublisher chains the configured broker sinks behind one async ring.
// The aggregated view is fed synchronously so it never misses a log.
func newPublisher(cfg config.PublishConfig, logger *slog.Logger, m *metrics.Metrics) (*publisher, error) {
	p := &publisher{logger: logger}
	if !cfg.Enabled() {
		return p, nil
	}
	if cfg.Aggregate {
		p.agg = book.NewAggregatedBook()
	}

	var targets []book.PublishLog
	if len(cfg.Kafka.Brokers) > 0 {
		k := sink.NewKafka(sink.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), sink.WithLogger(logger))
		targets = append(targets, k)
		p.closers = append(p.closers, k.Close)
	}
	if cfg.NATS.URL != "" {
		n, err := sink.DialNATS(cfg.NATS.URL, cfg.NATS.Subject, sink.WithLogger(logger))
		if err != nil {
			p.close()
			return nil, err
		}
		targets = append(targets, n)
		p.closers = append(p.closers, n.Close)
	}

	if len(targets) == 0 {
		return p, nil
	}

	p.async = book.NewAsyncPublishLog(cfg.RingSize, book.NewMultiPublishLog(targets...))
	p.async.Start()
	m.RegisterPublishDropped(p.async.Dropped)
	return p, nil
}

// target returns the publisher the book writes to, nil when nothing is configured.
func (p *publisher) target() book.PublishLog {
	switch {
	case p.agg != nil && p.async != nil:
		return book.NewMultiPublishLog(p.agg, p.async)
	case p.agg != nil:
		return p.agg
	case p.async != nil:
		return p.async
	}
	return nil
}

// close drains the ring first so the sinks see every published log.
func (p *publisher) close() {
	if p.async != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.async.Shutdown(ctx); err != nil {
			p.logger.Warn("publisher shutdown incomplete", "pending", p.async.Pending(), "error", err)
		}
		cancel()
	}
	for _, c := range p.closers {
		if err := c(); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn("sink close failed", "error", err)
		}
	}
	p.async = nil
	p.closers = nil
}
