package book

import (
	"sync"

	"github.com/0x5487/panoptes/protocol"
)

// BookLog represents an event in the order book.
// SequenceID increases by one for every event the book emits, so downstream
// consumers can order, deduplicate and detect gaps.
// Open, Cancel and Execute change book state; Reject does not.
type BookLog struct {
	SequenceID   uint64       `json:"seq_id"`
	BookID       string       `json:"book_id"`
	Type         LogType      `json:"type"`
	OrderID      uint64       `json:"order_id"`
	Side         Side         `json:"side"`
	Price        int64        `json:"price"` // literal wire price
	Size         int32        `json:"size"`
	RejectReason RejectReason `json:"reject_reason,omitempty"`
	Timestamp    int64        `json:"timestamp"` // producer timestamp of the message
}

var bookLogPool = sync.Pool{
	New: func() any {
		return new(BookLog)
	},
}

func acquireBookLog() *BookLog {
	return bookLogPool.Get().(*BookLog)
}

func releaseBookLog(log *BookLog) {
	*log = BookLog{}
	bookLogPool.Put(log)
}

func newOrderLog(seqID uint64, bookID string, typ LogType, order *RestingOrder, ts int64) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.BookID = bookID
	log.Type = typ
	log.OrderID = order.ID
	log.Side = order.Side
	log.Price = order.Price
	log.Size = order.Size
	log.Timestamp = ts
	return log
}

func newRejectLog(seqID uint64, bookID string, msg *protocol.WireMessage, reason RejectReason) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.BookID = bookID
	log.Type = LogTypeReject
	log.OrderID = msg.OrderID
	log.Side = msg.Side
	log.Price = msg.Price
	log.Size = msg.Size
	log.RejectReason = reason
	log.Timestamp = msg.Timestamp
	return log
}
