package book

import (
	"errors"

	"github.com/0x5487/panoptes/protocol"
	"github.com/0x5487/panoptes/structure"
)

var (
	ErrInvalidParam      = errors.New("the param is invalid")
	ErrPriceOutOfRange   = errors.New("price is outside the level table")
	ErrDuplicateOrder    = errors.New("order id is already resting")
	ErrInvalidSize       = errors.New("order size must be positive")
	ErrInvalidSide       = errors.New("unknown order side")
	ErrUnknownEvent      = errors.New("unknown event type")
	ErrCapacityExhausted = structure.ErrCapacityExhausted
	ErrSequenceGap       = errors.New("book log sequence gap")
)

// IsMessageError reports whether err only concerns the offending message.
// Such errors are skipped by the caller; anything else is fatal for the session.
func IsMessageError(err error) bool {
	return RejectReasonFor(err) != protocol.RejectReasonNone
}

// RejectReasonFor maps a message-level error to its reject reason.
// It returns RejectReasonNone for nil and for fatal errors.
func RejectReasonFor(err error) protocol.RejectReason {
	switch {
	case err == nil:
		return protocol.RejectReasonNone
	case errors.Is(err, protocol.ErrMalformedInput):
		return protocol.RejectReasonMalformed
	case errors.Is(err, ErrPriceOutOfRange):
		return protocol.RejectReasonPriceRange
	case errors.Is(err, ErrDuplicateOrder):
		return protocol.RejectReasonDuplicateID
	case errors.Is(err, ErrInvalidSize):
		return protocol.RejectReasonInvalidSize
	case errors.Is(err, ErrInvalidSide):
		return protocol.RejectReasonInvalidSide
	case errors.Is(err, ErrUnknownEvent):
		return protocol.RejectReasonUnknownEvent
	default:
		return protocol.RejectReasonNone
	}
}
