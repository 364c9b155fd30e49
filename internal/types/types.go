package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the broker-reported side of an executed fill.
type Direction string

const (
	Buy        Direction = "BUY"
	Sell       Direction = "SELL"
	SellShort  Direction = "SELL_SHORT"
	BuyToCover Direction = "BUY_TO_COVER"
)

// Valid reports whether d is one of the four known fill directions.
func (d Direction) Valid() bool {
	switch d {
	case Buy, Sell, SellShort, BuyToCover:
		return true
	}
	return false
}

// IsOpening reports whether a fill with this direction opens exposure.
func (d Direction) IsOpening() bool {
	return d == Buy || d == SellShort
}

// IsClosing reports whether a fill with this direction reduces exposure.
func (d Direction) IsClosing() bool {
	return d == Sell || d == BuyToCover
}

// Side is the book a direction belongs to: BUY/SELL work the long book,
// SELL_SHORT/BUY_TO_COVER work the short book.
func (d Direction) Side() Side {
	if d == SellShort || d == BuyToCover {
		return SideShort
	}
	return SideLong
}

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// Fill is one executed trade as reported by the ingestion side.
// The matching core treats fills as read-only.
type Fill struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Direction  Direction       `json:"direction"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Fee        decimal.Decimal `json:"fee"`
	FilledAt   time.Time       `json:"filled_at"`
	IsOption   bool            `json:"is_option"`
	Multiplier int64           `json:"multiplier"` // 100 for options, 1 otherwise
}

// ContractMultiplier returns the declared multiplier, defaulting to 1 when the
// ingestion side left it unset.
func (f Fill) ContractMultiplier() int64 {
	if f.Multiplier <= 0 {
		return 1
	}
	return f.Multiplier
}

// Position pairs an opening lot slice with a closing lot slice (CLOSED), or
// records a still-unmatched lot after a run (OPEN). Immutable once emitted.
type Position struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Status        PositionStatus  `json:"status"`
	Quantity      int64           `json:"quantity"`
	OpenPrice     decimal.Decimal `json:"open_price"`
	ClosePrice    decimal.Decimal `json:"close_price"`
	OpenTime      time.Time       `json:"open_time"`
	CloseTime     time.Time       `json:"close_time"`
	OpenFee       decimal.Decimal `json:"open_fee"`
	CloseFee      decimal.Decimal `json:"close_fee"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	NetPnL        decimal.Decimal `json:"net_pnl"`
	HoldingPeriod time.Duration   `json:"holding_period"`
	OpenFillID    string          `json:"open_fill_id"`
	CloseFillID   string          `json:"close_fill_id,omitempty"`
}

type WarningKind string

const (
	// WarnOrphanFill: a closing fill (or remainder of one) found no open lot
	// to drain. The remainder is dropped, never synthesized into a position.
	WarnOrphanFill WarningKind = "ORPHAN_FILL"
	// WarnDanglingShort: short lots survived the whole stream with no cover
	// activity anywhere, e.g. a short with no borrow record.
	WarnDanglingShort WarningKind = "DANGLING_SHORT"
)

// Warning is a non-fatal data-quality finding surfaced in the run summary.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Symbol   string      `json:"symbol"`
	FillID   string      `json:"fill_id,omitempty"`
	Quantity int64       `json:"quantity,omitempty"`
	Message  string      `json:"message"`
}

type RunMode string

const (
	ModePreview RunMode = "PREVIEW"
	ModeCommit  RunMode = "COMMIT"
)

// RunSummary aggregates one matching run.
type RunSummary struct {
	TotalFills       int       `json:"total_fills"`
	PositionsCreated int       `json:"positions_created"`
	ClosedCount      int       `json:"closed_count"`
	OpenCount        int       `json:"open_count"`
	SymbolsProcessed int       `json:"symbols_processed"`
	Warnings         []Warning `json:"warnings"`
}

// MatchResult is the full output of one run: the positions, the fill-to-position
// back-references for the caller's own storage, and the summary.
type MatchResult struct {
	RunID         string            `json:"run_id"`
	Mode          RunMode           `json:"mode"`
	Positions     []Position        `json:"positions"`
	FillPositions map[string]string `json:"fill_positions"`
	Summary       RunSummary        `json:"summary"`
}
