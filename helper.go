package book

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CalculateDepthChange calculates the depth change based on the book log.
// It returns a DepthChange struct indicating which side and price level should be updated.
func CalculateDepthChange(log *BookLog) DepthChange {
	switch log.Type {
	case LogTypeOpen:
		return DepthChange{
			Side:     log.Side,
			Price:    log.Price,
			SizeDiff: int64(log.Size),
		}
	case LogTypeCancel, LogTypeExecute:
		// Executions remove the whole resting order.
		return DepthChange{
			Side:     log.Side,
			Price:    log.Price,
			SizeDiff: -int64(log.Size),
		}
	case LogTypeReject:
		// Rejected messages never touched the book, so no depth change.
		return DepthChange{}
	}

	return DepthChange{}
}

// priceDecimals matches protocol.PriceScale.
const priceDecimals = 4

// FormatPrice renders a wire price with its four implied decimals, e.g. 1500000 as "150.0000".
func FormatPrice(price int64) string {
	return decimal.New(price, -priceDecimals).StringFixed(priceDecimals)
}

// ParsePrice converts a decimal string to a wire price. More than four
// decimals is an error, not a rounding.
func ParsePrice(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}

	scaled := d.Shift(priceDecimals)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidParam, s, priceDecimals)
	}
	return scaled.IntPart(), nil
}
