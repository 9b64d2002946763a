package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	book "github.com/0x5487/panoptes"
	"github.com/0x5487/panoptes/internal/metrics"
	"github.com/0x5487/panoptes/protocol"
	"github.com/rs/xid"
)

var ErrTransport = errors.New("ingest: transport failure")

// statsEvery is how many messages pass between two book gauge refreshes.
const statsEvery = 4096

// Book is the part of the engine the server drives.
type Book interface {
	Apply(msg *protocol.WireMessage) (book.Result, error)
	Stats() book.BookStats
}

type Config struct {
	Addr string
	// IdleTimeout ends the session when no datagram arrives for this long
	// after the first one. Zero disables it.
	IdleTimeout time.Duration
	BufferSize  int
	// MaxLatency bounds the accepted latency samples, see LatencyStats.
	MaxLatency time.Duration
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithClock replaces time.Now as the receive timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server receives one wire record per datagram and applies it to a book.
// A Server runs one session at a time.
type Server struct {
	cfg     Config
	book    Book
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewServer(cfg Config, b Book, opts ...Option) *Server {
	if cfg.BufferSize < protocol.RecordSize {
		cfg.BufferSize = 1024
	}

	s := &Server{
		cfg:    cfg,
		book:   b,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run binds cfg.Addr over UDP and serves one session on it.
func (s *Server) Run(ctx context.Context) (*Summary, error) {
	conn, err := net.ListenPacket("udp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %w", ErrTransport, s.cfg.Addr, err)
	}
	defer conn.Close()

	s.logger.Info("ingest listening", "addr", conn.LocalAddr().String())
	return s.Serve(ctx, conn)
}

// Serve reads datagrams from conn until an end-of-stream record, the idle
// timeout or ctx is done. conn is closed when ctx is done. The summary is
// returned on every path; the error is non-nil only for fatal failures.
func (s *Server) Serve(ctx context.Context, conn net.PacketConn) (*Summary, error) {
	sum := &Summary{
		SessionID: xid.New().String(),
		Started:   s.now(),
		Rejected:  make(map[protocol.RejectReason]uint64),
	}
	logger := s.logger.With("session_id", sum.SessionID)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	end := func(reason EndReason) {
		sum.EndReason = reason
		sum.Ended = s.now()
		if s.metrics != nil {
			s.metrics.ObserveBook(s.book.Stats())
		}
		logger.Info("ingest session ended",
			"reason", string(reason),
			"messages", sum.Messages,
			"rejected", sum.TotalRejected(),
			"unknown", sum.Unknown,
		)
	}

	buf := make([]byte, s.cfg.BufferSize)
	var msg protocol.WireMessage
	started := false

	for {
		if started && s.cfg.IdleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil && ctx.Err() == nil {
				end(EndFatalError)
				return sum, fmt.Errorf("%w: set deadline: %w", ErrTransport, err)
			}
		}

		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				end(EndCanceled)
				return sum, nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				end(EndIdle)
				return sum, nil
			}
			end(EndFatalError)
			return sum, fmt.Errorf("%w: read: %w", ErrTransport, err)
		}
		received := s.now()

		if !started {
			started = true
			logger.Info("ingest stream started")
		}

		if err := protocol.DecodeInto(&msg, buf[:n]); err != nil {
			sum.Malformed++
			sum.Rejected[protocol.RejectReasonMalformed]++
			if s.metrics != nil {
				s.metrics.Reject(protocol.RejectReasonMalformed)
			}
			logger.Debug("malformed datagram", "size", n)
			continue
		}

		if msg.Event == protocol.EventEndOfStream {
			if s.metrics != nil {
				s.metrics.Message(msg.Event)
			}
			end(EndOfStream)
			return sum, nil
		}

		if latency := received.Sub(time.Unix(0, msg.Timestamp)); latency > 0 && (s.cfg.MaxLatency <= 0 || latency < s.cfg.MaxLatency) {
			sum.Latency.observe(latency)
			if s.metrics != nil {
				s.metrics.ObserveLatency(latency)
			}
		}

		sum.Messages++
		if s.metrics != nil {
			s.metrics.Message(msg.Event)
		}

		res, err := s.book.Apply(&msg)
		if err != nil {
			if !book.IsMessageError(err) {
				end(EndFatalError)
				return sum, fmt.Errorf("apply order %d: %w", msg.OrderID, err)
			}
			reason := book.RejectReasonFor(err)
			sum.Rejected[reason]++
			if s.metrics != nil {
				s.metrics.Reject(reason)
			}
			logger.Debug("message rejected", "order_id", msg.OrderID, "event", msg.Event.String(), "reason", string(reason))
			continue
		}

		if res.Unknown {
			sum.Unknown++
			if s.metrics != nil {
				s.metrics.UnknownOrders.Inc()
			}
		}

		if s.metrics != nil && sum.Messages%statsEvery == 0 {
			s.metrics.ObserveBook(s.book.Stats())
		}
	}
}
