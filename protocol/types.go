package protocol

import "fmt"

// EventType identifies what a wire message does to the book (one ASCII byte on the wire).
type EventType byte

const (
	EventAdd     EventType = 'A'
	EventCancel  EventType = 'X'
	EventExecute EventType = 'E'

	// EventEndOfStream is a control record: the producer has nothing more to send.
	// It carries no order fields and never reaches the book.
	EventEndOfStream EventType = 'Z'
)

func (e EventType) String() string {
	switch e {
	case EventAdd:
		return "add"
	case EventCancel:
		return "cancel"
	case EventExecute:
		return "execute"
	case EventEndOfStream:
		return "end_of_stream"
	default:
		return "unknown"
	}
}

// Side represents the order side (one ASCII byte on the wire).
type Side byte

const (
	SideBid Side = 'B'
	SideAsk Side = 'A'
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	default:
		return "unknown"
	}
}

// MarshalText encodes the side as "bid" or "ask" in JSON payloads.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "bid":
		*s = SideBid
	case "ask":
		*s = SideAsk
	default:
		return fmt.Errorf("protocol: unknown side %q", text)
	}
	return nil
}

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

// PriceScale is the fixed-point scale of WireMessage.Price (4 implied decimals).
const PriceScale = 10_000

// WireMessage is the fixed 32-byte market-data record shared verbatim by
// producer and consumer.
//
//	offset size field
//	0      8    Timestamp (ns since the producer's reference epoch)
//	8      8    OrderID
//	16     8    Price (fixed point, PriceScale)
//	24     4    Size
//	28     1    Event
//	29     1    Side
//	30     2    Reserved
type WireMessage struct {
	Timestamp int64
	OrderID   uint64
	Price     int64
	Size      int32
	Event     EventType
	Side      Side
	Reserved  [2]byte
}

// LogType represents the type of a book event log.
type LogType string

const (
	LogTypeOpen    LogType = "open"
	LogTypeCancel  LogType = "cancel"
	LogTypeExecute LogType = "execute"
	LogTypeReject  LogType = "reject"
)

// RejectReason represents the reason why a message was not applied.
type RejectReason string

const (
	RejectReasonNone         RejectReason = ""
	RejectReasonMalformed    RejectReason = "malformed_input"
	RejectReasonPriceRange   RejectReason = "price_out_of_range"
	RejectReasonDuplicateID  RejectReason = "duplicate_order_id"
	RejectReasonInvalidSize  RejectReason = "invalid_size"
	RejectReasonInvalidSide  RejectReason = "invalid_side"
	RejectReasonUnknownEvent RejectReason = "unknown_event"
)
