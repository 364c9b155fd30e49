package interfaces

import (
	"context"

	"position-matcher/internal/types"
)

// FillSource loads the full fill stream for one account, ordered by fill
// timestamp ascending. Chronological order is a precondition of FIFO matching,
// not something the coordinator re-checks.
type FillSource interface {
	LoadFills(ctx context.Context) ([]types.Fill, error)
}

// RunStore persists one completed matching run atomically: every position
// insert and fill back-reference update commits together or not at all.
type RunStore interface {
	SaveRun(ctx context.Context, result *types.MatchResult) error
}
