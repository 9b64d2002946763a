package replay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/0x5487/panoptes/protocol"
)

type Option func(*Sender)

// WithConfirm makes Send print a prompt to out and wait for a line on in
// before the first record goes out.
func WithConfirm(in io.Reader, out io.Writer) Option {
	return func(s *Sender) {
		s.confirmIn = in
		s.confirmOut = out
	}
}

// WithEndOfStream makes Send finish with an end-of-stream record.
func WithEndOfStream(enabled bool) Option {
	return func(s *Sender) { s.endOfStream = enabled }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) { s.logger = l }
}

// WithClock replaces time.Now as the send timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Sender) { s.now = now }
}

// Sender writes records to a connectionless transport, one record per datagram,
// as fast as the socket accepts them.
type Sender struct {
	conn        net.Conn
	now         func() time.Time
	logger      *slog.Logger
	confirmIn   io.Reader
	confirmOut  io.Writer
	endOfStream bool
}

// Dial connects a UDP socket to target.
func Dial(target string, opts ...Option) (*Sender, error) {
	conn, err := net.Dial("udp", target)
	if err != nil {
		return nil, fmt.Errorf("replay: dial %s: %w", target, err)
	}
	return NewSender(conn, opts...), nil
}

func NewSender(conn net.Conn, opts ...Option) *Sender {
	s := &Sender{
		conn:   conn,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send transmits every record of ds, stamping each with the current time just
// before it is written. It returns the number of records sent.
func (s *Sender) Send(ctx context.Context, ds *Dataset) (int, error) {
	if s.confirmIn != nil {
		if err := s.confirm(ds.Len()); err != nil {
			return 0, err
		}
	}

	buf := make([]byte, protocol.RecordSize)
	started := s.now()

	sent := 0
	for i := 0; i < ds.Len(); i++ {
		if i%1024 == 0 && ctx.Err() != nil {
			return sent, ctx.Err()
		}

		copy(buf, ds.Record(i))
		_ = protocol.PutTimestamp(buf, s.now().UnixNano())

		if _, err := s.conn.Write(buf); err != nil {
			return sent, fmt.Errorf("replay: send record %d: %w", i, err)
		}
		sent++
	}

	if s.endOfStream {
		eos := protocol.Encode(buf, protocol.EndOfStream(s.now().UnixNano()))
		if _, err := s.conn.Write(eos); err != nil {
			return sent, fmt.Errorf("replay: send end of stream: %w", err)
		}
	}

	s.logger.Info("replay finished", "records", sent, "elapsed", s.now().Sub(started).String())
	return sent, nil
}

func (s *Sender) confirm(n int) error {
	if s.confirmOut != nil {
		fmt.Fprintf(s.confirmOut, "Loaded %d messages. Press Enter to start sending...\n", n)
	}
	if _, err := bufio.NewReader(s.confirmIn).ReadString('\n'); err != nil && err != io.EOF {
		return fmt.Errorf("replay: read confirmation: %w", err)
	}
	return nil
}

// Close releases the socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
