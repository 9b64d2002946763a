package book

// BookSnapshot contains the full state of an OrderBook.
type BookSnapshot struct {
	BookID string         `json:"book_id"`
	SeqID  uint64         `json:"seq_id"` // Sequence ID of the last event included
	Bids   []RestingOrder `json:"bids"`   // Best price first, time priority within a price
	Asks   []RestingOrder `json:"asks"`   // Best price first, time priority within a price
}
