package protocol

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		msgs := []WireMessage{
			{Timestamp: 34200000000000, OrderID: 1000, Price: 1_500_000, Size: 100, Event: EventAdd, Side: SideBid},
			{Timestamp: -1, OrderID: math.MaxUint64, Price: math.MinInt64, Size: math.MaxInt32, Event: EventCancel, Side: SideAsk},
			{Timestamp: math.MaxInt64, OrderID: 0, Price: -42, Size: -7, Event: EventExecute, Side: 'Q', Reserved: [2]byte{0xAB, 0xCD}},
		}

		for _, msg := range msgs {
			buf := Encode(nil, msg)
			require.Len(t, buf, RecordSize)

			got, err := Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, msg, got)
		}
	})

	t.Run("field layout", func(t *testing.T) {
		buf := make([]byte, RecordSize)
		binary.LittleEndian.PutUint64(buf[0:8], 7)
		binary.LittleEndian.PutUint64(buf[8:16], 1000)
		binary.LittleEndian.PutUint64(buf[16:24], 1_500_000)
		binary.LittleEndian.PutUint32(buf[24:28], 100)
		buf[28] = 'A'
		buf[29] = 'B'

		msg, err := Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, int64(7), msg.Timestamp)
		assert.Equal(t, uint64(1000), msg.OrderID)
		assert.Equal(t, int64(1_500_000), msg.Price)
		assert.Equal(t, int32(100), msg.Size)
		assert.Equal(t, EventAdd, msg.Event)
		assert.Equal(t, SideBid, msg.Side)
	})

	t.Run("short buffer", func(t *testing.T) {
		for _, n := range []int{0, 1, 16, RecordSize - 1} {
			_, err := Decode(make([]byte, n))
			assert.ErrorIs(t, err, ErrMalformedInput, "len=%d", n)
		}
	})

	t.Run("longer buffer uses the first record", func(t *testing.T) {
		buf := Encode(nil, WireMessage{OrderID: 9, Event: EventAdd, Side: SideAsk})
		buf = append(buf, 0xFF, 0xFF, 0xFF)

		msg, err := Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, uint64(9), msg.OrderID)
	})

	t.Run("no validation of field values", func(t *testing.T) {
		buf := make([]byte, RecordSize)
		for i := range buf {
			buf[i] = 0xFF
		}
		msg, err := Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, EventType(0xFF), msg.Event)
		assert.False(t, msg.Side.Valid())
	})
}

func TestEncodeReusesBuffer(t *testing.T) {
	dst := make([]byte, 0, 64)
	out := Encode(dst, WireMessage{OrderID: 1})
	assert.Len(t, out, RecordSize)
	assert.Equal(t, &dst[:1][0], &out[0])
}

func TestAppendEncode(t *testing.T) {
	var file []byte
	for i := 0; i < 3; i++ {
		file = AppendEncode(file, WireMessage{OrderID: uint64(i + 1), Event: EventAdd, Side: SideBid})
	}
	require.Len(t, file, 3*RecordSize)

	for i := 0; i < 3; i++ {
		msg, err := Decode(file[i*RecordSize:])
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), msg.OrderID)
	}
}

func TestPutTimestamp(t *testing.T) {
	buf := Encode(nil, WireMessage{Timestamp: 1, OrderID: 5, Event: EventAdd, Side: SideBid})
	require.NoError(t, PutTimestamp(buf, 99))

	msg, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(99), msg.Timestamp)
	assert.Equal(t, uint64(5), msg.OrderID)

	assert.ErrorIs(t, PutTimestamp(buf[:8], 1), ErrMalformedInput)
}

func TestEndOfStream(t *testing.T) {
	msg, err := Decode(Encode(nil, EndOfStream(5)))
	require.NoError(t, err)
	assert.Equal(t, EventEndOfStream, msg.Event)
	assert.Equal(t, "end_of_stream", msg.Event.String())
}

func TestJSONSerializer(t *testing.T) {
	type payload struct {
		ID    uint64 `json:"id"`
		Price int64  `json:"price"`
	}
	var ser Serializer = JSONSerializer{}

	data, err := ser.Marshal(payload{ID: 1, Price: 1_500_000})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"price":1500000}`, string(data))

	var out payload
	require.NoError(t, ser.Unmarshal(data, &out))
	assert.Equal(t, uint64(1), out.ID)
}

func BenchmarkDecode(b *testing.B) {
	buf := Encode(nil, WireMessage{Timestamp: 1, OrderID: 1000, Price: 1_500_000, Size: 100, Event: EventAdd, Side: SideBid})
	var msg WireMessage

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = DecodeInto(&msg, buf)
	}
}
