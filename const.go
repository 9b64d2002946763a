package book

const (
	// EngineVersion is the current version of the book engine
	EngineVersion = "v1.0.0"

	// DefaultArenaCapacity is the number of order slots pre-allocated per book.
	// Slots are not reclaimed, so this bounds the number of Add messages per session.
	DefaultArenaCapacity = 10_000_000

	// DefaultMaxPriceLevels is the number of addressable ticks per side in dense mode.
	DefaultMaxPriceLevels = 1_000_000

	// DefaultNormalizationBase is subtracted from a wire price to get its level index.
	// 1,000,000 is $100.0000 at the wire scale, below any expected price of the instrument.
	DefaultNormalizationBase = 1_000_000

	// DefaultIndexHint pre-sizes the id index.
	DefaultIndexHint = 1 << 20
)
