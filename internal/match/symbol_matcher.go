package match

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"position-matcher/internal/types"
)

// SymbolMatcher owns the long and short open-lot queues for a single symbol
// and pairs opening fills with closing fills in FIFO order. It is not safe for
// concurrent use; the coordinator feeds it one globally time-ordered stream.
type SymbolMatcher struct {
	symbol    string
	precision int32

	openLong  []*fillTracker
	openShort []*fillTracker

	closed     []types.Position
	warnings   []types.Warning
	matchCount int
}

func NewSymbolMatcher(symbol string, precision int32) *SymbolMatcher {
	return &SymbolMatcher{symbol: symbol, precision: precision}
}

// ProcessFill consumes one fill in stream order. Opening fills (BUY,
// SELL_SHORT) join the back of their queue and emit nothing. Closing fills
// (SELL, BUY_TO_COVER) drain the front of the opposite queue and return the
// closed positions they produced. A closing remainder with no lot left to
// drain is recorded as an ORPHAN_FILL warning, never an error.
func (m *SymbolMatcher) ProcessFill(fill types.Fill) ([]types.Position, error) {
	if fill.Symbol != m.symbol {
		return nil, fmt.Errorf("%w: matcher owns %s, fill %s is for %s",
			ErrSymbolMismatch, m.symbol, fill.ID, fill.Symbol)
	}
	if !fill.Direction.Valid() {
		return nil, fmt.Errorf("%w: fill %s has unknown direction %q",
			ErrInvalidFill, fill.ID, fill.Direction)
	}

	if fill.Direction.IsOpening() {
		tracker, err := newFillTracker(fill, m.precision)
		if err != nil {
			return nil, err
		}
		if fill.Direction == types.Buy {
			m.openLong = append(m.openLong, tracker)
		} else {
			m.openShort = append(m.openShort, tracker)
		}
		return nil, nil
	}

	return m.drain(fill)
}

// drain walks the FIFO queue matching the closing fill, emitting one closed
// position per consumed lot slice until the closing quantity is exhausted or
// the queue runs dry.
func (m *SymbolMatcher) drain(closing types.Fill) ([]types.Position, error) {
	closingTracker, err := newFillTracker(closing, m.precision)
	if err != nil {
		return nil, err
	}

	queue := &m.openLong
	if closing.Direction == types.BuyToCover {
		queue = &m.openShort
	}

	var emitted []types.Position
	for closingTracker.remaining > 0 && len(*queue) > 0 {
		front := (*queue)[0]

		matchQty := front.remaining
		if closingTracker.remaining < matchQty {
			matchQty = closingTracker.remaining
		}

		pos := m.buildClosed(front, closingTracker, matchQty)
		emitted = append(emitted, pos)
		m.closed = append(m.closed, pos)
		m.matchCount++

		done, err := front.consume(matchQty)
		if err != nil {
			return nil, err
		}
		if done {
			*queue = (*queue)[1:]
		}
		if _, err := closingTracker.consume(matchQty); err != nil {
			return nil, err
		}
	}

	if closingTracker.remaining > 0 {
		m.warnings = append(m.warnings, types.Warning{
			Kind:     types.WarnOrphanFill,
			Symbol:   m.symbol,
			FillID:   closing.ID,
			Quantity: closingTracker.remaining,
			Message: fmt.Sprintf("closing fill %s has %d unmatched units with no open %s lot",
				closing.ID, closingTracker.remaining, closing.Direction.Side()),
		})
	}

	return emitted, nil
}

// buildClosed creates one closed position of matchQty units, open side from
// the front lot, close side from the closing fill.
func (m *SymbolMatcher) buildClosed(open, closing *fillTracker, matchQty int64) types.Position {
	side := closing.fill.Direction.Side()
	qty := decimal.NewFromInt(matchQty)
	mult := decimal.NewFromInt(open.fill.ContractMultiplier())

	var realized decimal.Decimal
	if side == types.SideLong {
		realized = closing.fill.Price.Sub(open.fill.Price).Mul(qty).Mul(mult)
	} else {
		realized = open.fill.Price.Sub(closing.fill.Price).Mul(qty).Mul(mult)
	}
	realized = realized.Round(m.precision)

	openFee := open.allocateFee(matchQty)
	closeFee := closing.allocateFee(matchQty)

	return types.Position{
		ID:            uuid.NewString(),
		Symbol:        m.symbol,
		Side:          side,
		Status:        types.StatusClosed,
		Quantity:      matchQty,
		OpenPrice:     open.fill.Price,
		ClosePrice:    closing.fill.Price,
		OpenTime:      open.fill.FilledAt,
		CloseTime:     closing.fill.FilledAt,
		OpenFee:       openFee,
		CloseFee:      closeFee,
		RealizedPnL:   realized,
		NetPnL:        realized.Sub(openFee).Sub(closeFee),
		HoldingPeriod: closing.fill.FilledAt.Sub(open.fill.FilledAt),
		OpenFillID:    open.fill.ID,
		CloseFillID:   closing.fill.ID,
	}
}

// Finalize converts every lot still resident in either queue into an open
// position sized by its remaining (not original) quantity, then clears both
// queues. A second call finds empty queues and returns nothing.
func (m *SymbolMatcher) Finalize() []types.Position {
	var out []types.Position
	for _, queue := range [][]*fillTracker{m.openLong, m.openShort} {
		for _, tracker := range queue {
			if tracker.remaining <= 0 {
				continue
			}
			openFee := tracker.allocateFee(tracker.remaining)
			out = append(out, types.Position{
				ID:         uuid.NewString(),
				Symbol:     m.symbol,
				Side:       tracker.fill.Direction.Side(),
				Status:     types.StatusOpen,
				Quantity:   tracker.remaining,
				OpenPrice:  tracker.fill.Price,
				OpenTime:   tracker.fill.FilledAt,
				OpenFee:    openFee,
				NetPnL:     openFee.Neg(),
				OpenFillID: tracker.fill.ID,
			})
		}
	}
	m.openLong = nil
	m.openShort = nil
	return out
}

// Stats describes the matcher after any number of ProcessFill calls.
// Taken before Finalize, the lot counts reveal unresolved exposure.
type Stats struct {
	Matches       int
	OpenLongLots  int
	OpenShortLots int
}

func (m *SymbolMatcher) Statistics() Stats {
	return Stats{
		Matches:       m.matchCount,
		OpenLongLots:  len(m.openLong),
		OpenShortLots: len(m.openShort),
	}
}

// Warnings returns the data-quality findings accumulated so far.
func (m *SymbolMatcher) Warnings() []types.Warning {
	return m.warnings
}

// ClosedPositions returns everything matched so far, for inspection.
func (m *SymbolMatcher) ClosedPositions() []types.Position {
	return m.closed
}
