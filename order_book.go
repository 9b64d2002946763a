package book

import (
	"fmt"

	"github.com/0x5487/panoptes/protocol"
	"github.com/0x5487/panoptes/structure"
	"github.com/rs/xid"
)

// Options configures an OrderBook. All memory is sized from it at construction.
type Options struct {
	ArenaCapacity     int32
	MaxPriceLevels    int32
	NormalizationBase int64
	LevelMode         LevelMode
	TrackOccupancy    bool
	IndexHint         int

	// Publisher receives a BookLog per event. Nil disables log creation entirely.
	Publisher PublishLog
}

// DefaultOptions returns the production geometry: ten million order slots and
// one million ticks per side starting at $100.0000.
func DefaultOptions() Options {
	return Options{
		ArenaCapacity:     DefaultArenaCapacity,
		MaxPriceLevels:    DefaultMaxPriceLevels,
		NormalizationBase: DefaultNormalizationBase,
		LevelMode:         LevelModeDense,
		IndexHint:         DefaultIndexHint,
	}
}

// OrderBook is a single-instrument L1 book driven by wire messages.
// It is not safe for concurrent use: one goroutine owns it.
type OrderBook struct {
	id        xid.ID
	bookID    string
	arena     *structure.Arena[Order]
	index     orderIndex
	levels    levelTable
	resting   [2]int64
	seqID     uint64
	publisher PublishLog
}

// NewOrderBook allocates the arena, the index and the level table.
func NewOrderBook(opts Options) (*OrderBook, error) {
	if opts.ArenaCapacity <= 0 {
		return nil, fmt.Errorf("%w: arena capacity %d", ErrInvalidParam, opts.ArenaCapacity)
	}

	var levels levelTable
	switch opts.LevelMode {
	case LevelModeDense, "":
		if opts.MaxPriceLevels <= 0 {
			return nil, fmt.Errorf("%w: max price levels %d", ErrInvalidParam, opts.MaxPriceLevels)
		}
		levels = newDenseLevels(opts.NormalizationBase, opts.MaxPriceLevels, opts.TrackOccupancy)
	case LevelModeSparse:
		levels = newSparseLevels(opts.NormalizationBase)
	default:
		return nil, fmt.Errorf("%w: level mode %q", ErrInvalidParam, opts.LevelMode)
	}

	hint := opts.IndexHint
	if hint <= 0 || hint > int(opts.ArenaCapacity) {
		hint = int(opts.ArenaCapacity)
	}

	id := xid.New()
	return &OrderBook{
		id:        id,
		bookID:    id.String(),
		arena:     structure.NewArena[Order](opts.ArenaCapacity),
		index:     newOrderIndex(hint),
		levels:    levels,
		publisher: opts.Publisher,
	}, nil
}

// ID returns the unique id of this book instance.
func (book *OrderBook) ID() xid.ID {
	return book.id
}

// SequenceID returns the sequence id of the last emitted event.
func (book *OrderBook) SequenceID() uint64 {
	return book.seqID
}

// Apply dispatches msg on its event type.
// Message-level errors leave the book untouched, see IsMessageError.
func (book *OrderBook) Apply(msg *protocol.WireMessage) (Result, error) {
	res := Result{Event: msg.Event}

	switch msg.Event {
	case protocol.EventAdd:
		return res, book.AddOrder(msg)
	case protocol.EventCancel:
		res.Unknown = !book.CancelOrder(msg)
	case protocol.EventExecute:
		res.Unknown = !book.ExecuteOrder(msg)
	default:
		return res, book.reject(msg, ErrUnknownEvent)
	}

	return res, nil
}

// AddOrder rests a new order at the tail of its price level.
func (book *OrderBook) AddOrder(msg *protocol.WireMessage) error {
	if _, ok := book.index.lookup(msg.OrderID); ok {
		return book.reject(msg, ErrDuplicateOrder)
	}
	if msg.Size <= 0 {
		return book.reject(msg, ErrInvalidSize)
	}
	if !msg.Side.Valid() {
		return book.reject(msg, ErrInvalidSide)
	}
	key, err := book.levels.key(msg.Price)
	if err != nil {
		return book.reject(msg, err)
	}

	slot, err := book.arena.Alloc()
	if err != nil {
		return fmt.Errorf("add order %d: %w", msg.OrderID, err)
	}

	order := book.arena.At(slot)
	*order = Order{
		ID:    msg.OrderID,
		Level: key,
		Size:  msg.Size,
		Side:  msg.Side,
		prev:  structure.NullIndex,
		next:  structure.NullIndex,
	}

	lvl := book.levels.acquire(msg.Side, key)
	wasEmpty := lvl.empty()
	book.pushBack(lvl, slot, order)
	if wasEmpty {
		book.levels.occupied(msg.Side, key)
	}

	book.index.insert(msg.OrderID, slot)
	book.resting[sideIndex(msg.Side)]++

	book.seqID++
	if book.publisher != nil {
		book.publishOrder(LogTypeOpen, order, msg.Timestamp)
	}
	return nil
}

// CancelOrder removes a resting order. It returns false, leaving the book
// unchanged, when the id is not resting.
func (book *OrderBook) CancelOrder(msg *protocol.WireMessage) bool {
	return book.removeOrder(msg, LogTypeCancel)
}

// ExecuteOrder removes a resting order that traded. Executions are treated
// as full fills whatever their size.
func (book *OrderBook) ExecuteOrder(msg *protocol.WireMessage) bool {
	return book.removeOrder(msg, LogTypeExecute)
}

func (book *OrderBook) removeOrder(msg *protocol.WireMessage, typ LogType) bool {
	slot, ok := book.index.lookup(msg.OrderID)
	if !ok {
		return false
	}

	order := book.arena.At(slot)
	lvl := book.levels.lookup(order.Side, order.Level)
	book.unlink(lvl, slot, order)
	if lvl.empty() {
		book.levels.vacated(order.Side, order.Level)
	}

	book.index.remove(order.ID)
	book.resting[sideIndex(order.Side)]--

	book.seqID++
	if book.publisher != nil {
		book.publishOrder(typ, order, msg.Timestamp)
	}
	return true
}

// pushBack appends slot to the tail of lvl.
func (book *OrderBook) pushBack(lvl *PriceLevel, slot int32, order *Order) {
	order.prev = lvl.tail
	order.next = structure.NullIndex
	if lvl.tail != structure.NullIndex {
		book.arena.At(lvl.tail).next = slot
	} else {
		lvl.head = slot
	}
	lvl.tail = slot

	lvl.Volume += int64(order.Size)
	lvl.Count++
}

// unlink removes slot from lvl wherever it sits in the list.
func (book *OrderBook) unlink(lvl *PriceLevel, slot int32, order *Order) {
	if order.prev != structure.NullIndex {
		book.arena.At(order.prev).next = order.next
	} else {
		lvl.head = order.next
	}

	if order.next != structure.NullIndex {
		book.arena.At(order.next).prev = order.prev
	} else {
		lvl.tail = order.prev
	}

	order.prev = structure.NullIndex
	order.next = structure.NullIndex

	lvl.Volume -= int64(order.Size)
	lvl.Count--
}

func (book *OrderBook) reject(msg *protocol.WireMessage, err error) error {
	book.seqID++
	if book.publisher != nil {
		log := newRejectLog(book.seqID, book.bookID, msg, RejectReasonFor(err))
		book.publisher.Publish(log)
		releaseBookLog(log)
	}
	return err
}

func (book *OrderBook) publishOrder(typ LogType, order *Order, ts int64) {
	ro := book.restingOrder(order)
	log := newOrderLog(book.seqID, book.bookID, typ, &ro, ts)
	book.publisher.Publish(log)
	releaseBookLog(log)
}

func (book *OrderBook) restingOrder(order *Order) RestingOrder {
	return RestingOrder{
		ID:    order.ID,
		Side:  order.Side,
		Price: book.levels.price(order.Level),
		Size:  order.Size,
	}
}

// BestOfBook returns the best price on side and the volume resting there.
// It reports false when the side has no liquidity.
func (book *OrderBook) BestOfBook(side Side) (Quote, bool) {
	if !side.Valid() {
		return Quote{}, false
	}

	_, lvl, ok := book.levels.best(side)
	if !ok {
		return Quote{}, false
	}

	head := book.arena.At(lvl.head)
	return Quote{
		Price:  book.levels.price(head.Level),
		Volume: lvl.Volume,
	}, true
}

// BBO returns the best bid and the best ask.
func (book *OrderBook) BBO() (bid, ask Quote, hasBid, hasAsk bool) {
	bid, hasBid = book.BestOfBook(Bid)
	ask, hasAsk = book.BestOfBook(Ask)
	return bid, ask, hasBid, hasAsk
}

// Level returns the state of the level at price on side.
func (book *OrderBook) Level(side Side, price int64) (LevelView, error) {
	if !side.Valid() {
		return LevelView{}, ErrInvalidSide
	}
	key, err := book.levels.key(price)
	if err != nil {
		return LevelView{}, err
	}

	view := LevelView{Side: side, Price: price}
	if lvl := book.levels.lookup(side, key); lvl != nil {
		view.Volume = lvl.Volume
		view.Count = lvl.Count
	}
	return view, nil
}

// Orders returns the ids resting at price on side in time priority.
func (book *OrderBook) Orders(side Side, price int64) ([]uint64, error) {
	if !side.Valid() {
		return nil, ErrInvalidSide
	}
	key, err := book.levels.key(price)
	if err != nil {
		return nil, err
	}

	lvl := book.levels.lookup(side, key)
	if lvl == nil {
		return []uint64{}, nil
	}

	ids := make([]uint64, 0, lvl.Count)
	for slot := lvl.head; slot != structure.NullIndex; {
		order := book.arena.At(slot)
		ids = append(ids, order.ID)
		slot = order.next
	}
	return ids, nil
}

// Order finds a resting order by id.
func (book *OrderBook) Order(id uint64) (RestingOrder, bool) {
	slot, ok := book.index.lookup(id)
	if !ok {
		return RestingOrder{}, false
	}
	return book.restingOrder(book.arena.At(slot)), true
}

// Stats returns usage statistics for the order book.
func (book *OrderBook) Stats() BookStats {
	return BookStats{
		BidOrders:  book.resting[0],
		AskOrders:  book.resting[1],
		BidLevels:  book.levels.levels(Bid),
		AskLevels:  book.levels.levels(Ask),
		UsedSlots:  book.arena.Len(),
		Capacity:   book.arena.Cap(),
		SequenceID: book.seqID,
	}
}

// Depth returns up to limit non-empty levels per side, best first.
func (book *OrderBook) Depth(limit uint32) (*Depth, error) {
	if limit == 0 {
		return nil, ErrInvalidParam
	}

	return &Depth{
		Bids: book.depth(Bid, limit),
		Asks: book.depth(Ask, limit),
	}, nil
}

func (book *OrderBook) depth(side Side, limit uint32) []*DepthItem {
	result := make([]*DepthItem, 0, limit)

	var i uint32
	book.levels.walk(side, func(key int64, lvl *PriceLevel) bool {
		result = append(result, &DepthItem{
			ID:     i,
			Price:  book.levels.price(key),
			Volume: lvl.Volume,
			Count:  lvl.Count,
		})
		i++
		return i < limit
	})

	return result
}

// Snapshot copies every resting order, levels best first and orders in time
// priority within a level.
func (book *OrderBook) Snapshot() *BookSnapshot {
	return &BookSnapshot{
		BookID: book.bookID,
		SeqID:  book.seqID,
		Bids:   book.snapshotSide(Bid),
		Asks:   book.snapshotSide(Ask),
	}
}

func (book *OrderBook) snapshotSide(side Side) []RestingOrder {
	orders := make([]RestingOrder, 0, book.resting[sideIndex(side)])

	book.levels.walk(side, func(_ int64, lvl *PriceLevel) bool {
		for slot := lvl.head; slot != structure.NullIndex; {
			order := book.arena.At(slot)
			orders = append(orders, book.restingOrder(order))
			slot = order.next
		}
		return true
	})

	return orders
}
