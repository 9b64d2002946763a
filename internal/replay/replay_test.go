package replay

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/0x5487/panoptes/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generated(t *testing.T, count int) []byte {
	t.Helper()
	opts := DefaultGenerateOptions()
	opts.Count = count

	var buf bytes.Buffer
	n, err := Generate(&buf, opts)
	require.NoError(t, err)
	require.Equal(t, count, n)
	return buf.Bytes()
}

func TestGenerate(t *testing.T) {
	data := generated(t, 1000)
	require.Len(t, data, 1000*protocol.RecordSize)

	ds := NewDataset(data)
	first, err := ds.Message(0)
	require.NoError(t, err)
	assert.Equal(t, protocol.WireMessage{
		Timestamp: 34_200_000_000_000,
		OrderID:   1000,
		Price:     1_500_000,
		Size:      100,
		Event:     protocol.EventAdd,
		Side:      protocol.SideBid,
	}, first)

	last, err := ds.Message(999)
	require.NoError(t, err)
	assert.Equal(t, uint64(1999), last.OrderID)
	assert.Equal(t, int64(1_500_999), last.Price)
	assert.Equal(t, int64(34_200_000_000_000+999*10_000), last.Timestamp)
}

func TestGenerateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "messages.bin")

	n, err := GenerateFile(path, DefaultGenerateOptions())
	require.NoError(t, err)
	assert.Equal(t, 1000, n)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1000*protocol.RecordSize), info.Size())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("trailing bytes ignored", func(t *testing.T) {
		path := filepath.Join(dir, "partial.bin")
		data := append(generated(t, 3), 0x01, 0x02, 0x03)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		ds, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 3, ds.Len())
		assert.Equal(t, 3, ds.Trailing)
	})

	t.Run("empty", func(t *testing.T) {
		path := filepath.Join(dir, "empty.bin")
		require.NoError(t, os.WriteFile(path, make([]byte, 10), 0o644))

		_, err := LoadFile(path)
		assert.ErrorIs(t, err, ErrEmptyDataset)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "nope.bin"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func listen(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func receive(t *testing.T, conn net.PacketConn, n int) []protocol.WireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	buf := make([]byte, 64)
	msgs := make([]protocol.WireMessage, 0, n)
	for len(msgs) < n {
		read, _, err := conn.ReadFrom(buf)
		require.NoError(t, err)
		require.Equal(t, protocol.RecordSize, read)

		msg, err := protocol.Decode(buf[:read])
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestSender(t *testing.T) {
	sendTime := time.Unix(0, 1_700_000_000_000_000_000)
	clock := func() time.Time { return sendTime }

	t.Run("restamps every record", func(t *testing.T) {
		conn := listen(t)
		ds := NewDataset(generated(t, 5))

		s, err := Dial(conn.LocalAddr().String(), WithClock(clock))
		require.NoError(t, err)
		defer s.Close()

		sent, err := s.Send(context.Background(), ds)
		require.NoError(t, err)
		assert.Equal(t, 5, sent)

		msgs := receive(t, conn, 5)
		for i, msg := range msgs {
			assert.Equal(t, sendTime.UnixNano(), msg.Timestamp)
			assert.Equal(t, uint64(1000+i), msg.OrderID)
		}

		// the dataset keeps its original timestamps
		orig, _ := ds.Message(0)
		assert.Equal(t, int64(34_200_000_000_000), orig.Timestamp)
	})

	t.Run("end of stream", func(t *testing.T) {
		conn := listen(t)
		s, err := Dial(conn.LocalAddr().String(), WithClock(clock), WithEndOfStream(true))
		require.NoError(t, err)
		defer s.Close()

		_, err = s.Send(context.Background(), NewDataset(generated(t, 2)))
		require.NoError(t, err)

		msgs := receive(t, conn, 3)
		assert.Equal(t, protocol.EventEndOfStream, msgs[2].Event)
	})

	t.Run("confirm gate", func(t *testing.T) {
		conn := listen(t)
		var prompt strings.Builder
		s, err := Dial(conn.LocalAddr().String(), WithConfirm(strings.NewReader("\n"), &prompt))
		require.NoError(t, err)
		defer s.Close()

		sent, err := s.Send(context.Background(), NewDataset(generated(t, 1)))
		require.NoError(t, err)
		assert.Equal(t, 1, sent)
		assert.Contains(t, prompt.String(), "Loaded 1 messages")
	})

	t.Run("canceled", func(t *testing.T) {
		conn := listen(t)
		s, err := Dial(conn.LocalAddr().String())
		require.NoError(t, err)
		defer s.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		sent, err := s.Send(ctx, NewDataset(generated(t, 10)))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, sent)
	})
}
