package protocol

import (
	"encoding/binary"
	"errors"
)

// RecordSize is the size in bytes of one encoded WireMessage.
const RecordSize = 32

const (
	offTimestamp = 0
	offOrderID   = 8
	offPrice     = 16
	offSize      = 24
	offEvent     = 28
	offSide      = 29
	offReserved  = 30
)

// ByteOrder is the byte order of every multi-byte field in a record.
// Producer and consumer both run on little-endian hosts (x86-64, arm64), so
// this matches their native layout; it is fixed here instead of negotiated.
var ByteOrder = binary.LittleEndian

// ErrMalformedInput is returned when a buffer is shorter than RecordSize.
var ErrMalformedInput = errors.New("protocol: buffer shorter than record size")

// Decode reads one record from the first RecordSize bytes of buf.
// Only the length is checked; field values are returned as they are on the wire.
func Decode(buf []byte) (WireMessage, error) {
	var msg WireMessage
	if err := DecodeInto(&msg, buf); err != nil {
		return WireMessage{}, err
	}
	return msg, nil
}

// DecodeInto is Decode without the return copy, for callers that reuse a message.
func DecodeInto(msg *WireMessage, buf []byte) error {
	if len(buf) < RecordSize {
		return ErrMalformedInput
	}
	_ = buf[RecordSize-1] // bounds check hint

	msg.Timestamp = int64(ByteOrder.Uint64(buf[offTimestamp:]))
	msg.OrderID = ByteOrder.Uint64(buf[offOrderID:])
	msg.Price = int64(ByteOrder.Uint64(buf[offPrice:]))
	msg.Size = int32(ByteOrder.Uint32(buf[offSize:]))
	msg.Event = EventType(buf[offEvent])
	msg.Side = Side(buf[offSide])
	msg.Reserved[0] = buf[offReserved]
	msg.Reserved[1] = buf[offReserved+1]
	return nil
}

// Encode writes msg into dst, growing it when it is too small, and returns
// the RecordSize-long slice holding the record.
func Encode(dst []byte, msg WireMessage) []byte {
	if cap(dst) < RecordSize {
		dst = make([]byte, RecordSize)
	} else {
		dst = dst[:RecordSize]
	}

	ByteOrder.PutUint64(dst[offTimestamp:], uint64(msg.Timestamp))
	ByteOrder.PutUint64(dst[offOrderID:], msg.OrderID)
	ByteOrder.PutUint64(dst[offPrice:], uint64(msg.Price))
	ByteOrder.PutUint32(dst[offSize:], uint32(msg.Size))
	dst[offEvent] = byte(msg.Event)
	dst[offSide] = byte(msg.Side)
	dst[offReserved] = msg.Reserved[0]
	dst[offReserved+1] = msg.Reserved[1]
	return dst
}

// AppendEncode appends the encoded record to dst.
func AppendEncode(dst []byte, msg WireMessage) []byte {
	n := len(dst)
	dst = append(dst, make([]byte, RecordSize)...)
	Encode(dst[n:], msg)
	return dst
}

// PutTimestamp overwrites the timestamp field of an encoded record in place.
func PutTimestamp(record []byte, ts int64) error {
	if len(record) < RecordSize {
		return ErrMalformedInput
	}
	ByteOrder.PutUint64(record[offTimestamp:], uint64(ts))
	return nil
}

// EndOfStream returns the control record that ends an ingestion session.
func EndOfStream(ts int64) WireMessage {
	return WireMessage{Timestamp: ts, Event: EventEndOfStream}
}
