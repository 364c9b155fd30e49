package interfaces

import (
	"context"

	"position-matcher/internal/types"
)

type Coordinator interface {
	MatchAll(ctx context.Context, mode types.RunMode) (*types.MatchResult, error)
}
