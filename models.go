package book

import (
	"github.com/0x5487/panoptes/protocol"
	"github.com/0x5487/panoptes/structure"
)

type Side = protocol.Side

const (
	Bid Side = protocol.SideBid
	Ask Side = protocol.SideAsk
)

type LogType = protocol.LogType

const (
	LogTypeOpen    LogType = protocol.LogTypeOpen
	LogTypeCancel  LogType = protocol.LogTypeCancel
	LogTypeExecute LogType = protocol.LogTypeExecute
	LogTypeReject  LogType = protocol.LogTypeReject
)

type RejectReason = protocol.RejectReason

// Order is the arena-resident state of an order. A slot keeps its last
// contents after the order leaves the book.
type Order struct {
	ID    uint64
	Level int64 // normalized price, the level table key
	Size  int32
	Side  Side

	// Intrusive list links, arena slot indices
	prev int32
	next int32
}

// RestingOrder is a copy of a live order with its literal price.
type RestingOrder struct {
	ID    uint64 `json:"id"`
	Side  Side   `json:"side"`
	Price int64  `json:"price"`
	Size  int32  `json:"size"`
}

// PriceLevel is the FIFO queue of orders resting at one price on one side.
type PriceLevel struct {
	head   int32
	tail   int32
	Volume int64 // sum of resident sizes
	Count  int32 // resident orders
}

func newPriceLevel() PriceLevel {
	return PriceLevel{head: structure.NullIndex, tail: structure.NullIndex}
}

func (l *PriceLevel) empty() bool {
	return l.head == structure.NullIndex
}

// Quote is the best price on one side and the volume resting there.
type Quote struct {
	Price  int64 `json:"price"`
	Volume int64 `json:"volume"`
}

// LevelView is a read-only copy of a price level.
type LevelView struct {
	Side   Side  `json:"side"`
	Price  int64 `json:"price"`
	Volume int64 `json:"volume"`
	Count  int32 `json:"count"`
}

// Result describes what Apply did with a message.
type Result struct {
	Event protocol.EventType
	// Unknown is set when a cancel or execute named an id that is not resting.
	// The book is left unchanged.
	Unknown bool
}

// BookStats contains statistics about the order book.
type BookStats struct {
	BidOrders  int64  `json:"bid_orders"`
	AskOrders  int64  `json:"ask_orders"`
	BidLevels  int64  `json:"bid_levels"`
	AskLevels  int64  `json:"ask_levels"`
	UsedSlots  int32  `json:"used_slots"`
	Capacity   int32  `json:"capacity"`
	SequenceID uint64 `json:"seq_id"`
}

// DepthItem is one price of a depth ladder.
type DepthItem struct {
	ID     uint32 `json:"id"`
	Price  int64  `json:"price"`
	Volume int64  `json:"volume"`
	Count  int32  `json:"count"`
}

// Depth is a best-first ladder of both sides.
type Depth struct {
	Bids []*DepthItem `json:"bids"`
	Asks []*DepthItem `json:"asks"`
}

// DepthChange represents a change in the order book depth.
type DepthChange struct {
	Side     Side
	Price    int64
	SizeDiff int64
}

func sideIndex(side Side) int {
	if side == Bid {
		return 0
	}
	return 1
}
