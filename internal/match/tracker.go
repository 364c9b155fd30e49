package match

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"position-matcher/internal/types"
)

var (
	ErrInvalidFill          = errors.New("invalid fill")
	ErrInsufficientQuantity = errors.New("insufficient remaining quantity")
	ErrSymbolMismatch       = errors.New("symbol mismatch")
)

// fillTracker wraps one fill and tracks how much of it is still unmatched.
// remaining only ever decreases; 0 <= remaining <= fill.Quantity.
type fillTracker struct {
	fill      types.Fill
	remaining int64
	precision int32
}

func newFillTracker(f types.Fill, precision int32) (*fillTracker, error) {
	if f.Quantity <= 0 {
		return nil, fmt.Errorf("%w: fill %s has quantity %d", ErrInvalidFill, f.ID, f.Quantity)
	}
	return &fillTracker{fill: f, remaining: f.Quantity, precision: precision}, nil
}

// consume takes n units off the tracker and reports whether the fill is now
// fully matched. n must satisfy 0 < n <= remaining.
func (t *fillTracker) consume(n int64) (bool, error) {
	if n <= 0 || n > t.remaining {
		return false, fmt.Errorf("%w: fill %s has %d remaining, asked for %d",
			ErrInsufficientQuantity, t.fill.ID, t.remaining, n)
	}
	t.remaining -= n
	return t.remaining == 0, nil
}

// allocateFee returns the slice of the fill's total fee proportional to n
// units, rounded to the money precision. Pure: does not depend on how much of
// the fill has already been consumed.
func (t *fillTracker) allocateFee(n int64) decimal.Decimal {
	return t.fill.Fee.
		Mul(decimal.NewFromInt(n)).
		Div(decimal.NewFromInt(t.fill.Quantity)).
		Round(t.precision)
}

func (t *fillTracker) consumed() int64 {
	return t.fill.Quantity - t.remaining
}
