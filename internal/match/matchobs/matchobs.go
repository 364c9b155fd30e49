package matchobs

import (
	"context"
	"time"

	"position-matcher/internal/interfaces"
	"position-matcher/internal/logger"
	"position-matcher/internal/trace"
	"position-matcher/internal/types"
)

type observableCoordinator struct {
	coordinator interfaces.Coordinator
}

var _ interfaces.Coordinator = (*observableCoordinator)(nil)

func Wrap(c interfaces.Coordinator) interfaces.Coordinator {
	return &observableCoordinator{coordinator: c}
}

func (oc *observableCoordinator) MatchAll(ctx context.Context, mode types.RunMode) (*types.MatchResult, error) {
	ctx, span := trace.StartSpan(ctx, "coordinator.MatchAll")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting matching run",
		"mode", mode,
	)

	result, err := oc.coordinator.MatchAll(ctx, mode)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Matching run failed", err,
			"mode", mode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Matching run completed",
		"mode", mode,
		"run_id", result.RunID,
		"total_fills", result.Summary.TotalFills,
		"positions_created", result.Summary.PositionsCreated,
		"closed", result.Summary.ClosedCount,
		"open", result.Summary.OpenCount,
		"symbols", result.Summary.SymbolsProcessed,
		"warnings", len(result.Summary.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
