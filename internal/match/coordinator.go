package match

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"position-matcher/internal/interfaces"
	"position-matcher/internal/logger"
	"position-matcher/internal/runlog"
	"position-matcher/internal/store"
	"position-matcher/internal/types"
)

// coordinator streams the account's chronological fill stream through
// per-symbol matchers and persists the result when asked to commit.
type coordinator struct {
	cfg    *store.Config
	source interfaces.FillSource
	runs   interfaces.RunStore
}

func newCoordinator(cfg *store.Config, source interfaces.FillSource, runs interfaces.RunStore) *coordinator {
	return &coordinator{cfg: cfg, source: source, runs: runs}
}

// MatchAll runs one full matching pass. Everything before persistence is a
// pure function of the loaded fill list; PREVIEW stops there, COMMIT hands the
// result to the run store, which must apply it in one transaction.
func (c *coordinator) MatchAll(ctx context.Context, mode types.RunMode) (*types.MatchResult, error) {
	if mode != types.ModePreview && mode != types.ModeCommit {
		return nil, fmt.Errorf("unknown run mode %q", mode)
	}

	fills, err := c.source.LoadFills(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load fills", err)
		return nil, fmt.Errorf("loading fills: %w", err)
	}
	logger.Debug(ctx, "Fills loaded", "count", len(fills))

	// Matchers are created lazily, on first sight of a symbol. symbols keeps
	// first-seen order so the emitted position list is deterministic.
	matchers := make(map[string]*SymbolMatcher)
	var symbols []string

	result := &types.MatchResult{
		RunID:         uuid.NewString(),
		Mode:          mode,
		FillPositions: make(map[string]string),
	}

	for _, fill := range fills {
		m := matchers[fill.Symbol]
		if m == nil {
			m = NewSymbolMatcher(fill.Symbol, c.cfg.MoneyPrecision)
			matchers[fill.Symbol] = m
			symbols = append(symbols, fill.Symbol)
			logger.Debug(ctx, "Symbol matcher created", "symbol", fill.Symbol)
		}

		closed, err := m.ProcessFill(fill)
		if err != nil {
			logger.ErrorWithErr(ctx, "Fill rejected", err, "fill_id", fill.ID, "symbol", fill.Symbol)
			return nil, fmt.Errorf("processing fill %s: %w", fill.ID, err)
		}
		for _, pos := range closed {
			result.Positions = append(result.Positions, pos)
			result.FillPositions[pos.OpenFillID] = pos.ID
			result.FillPositions[pos.CloseFillID] = pos.ID
			result.Summary.ClosedCount++
			logger.Match(ctx, pos.Symbol, string(pos.Side), pos.Quantity,
				pos.RealizedPnL.String(), pos.NetPnL.String())
		}
	}

	// Unresolved short exposure is structurally suspicious: a short book with
	// no cover activity anywhere in the stream. Read before Finalize, which
	// clears the queues.
	var warnings []types.Warning
	if c.cfg.Warnings.FlagDanglingShorts {
		for _, sym := range symbols {
			if st := matchers[sym].Statistics(); st.OpenShortLots > 0 {
				warnings = append(warnings, types.Warning{
					Kind:   types.WarnDanglingShort,
					Symbol: sym,
					Message: fmt.Sprintf("%d short lot(s) never covered for %s",
						st.OpenShortLots, sym),
				})
			}
		}
	}

	for _, sym := range symbols {
		m := matchers[sym]
		for _, pos := range m.Finalize() {
			result.Positions = append(result.Positions, pos)
			result.FillPositions[pos.OpenFillID] = pos.ID
			result.Summary.OpenCount++
		}
		warnings = append(warnings, m.Warnings()...)
	}
	sort.SliceStable(warnings, func(i, j int) bool { return warnings[i].Symbol < warnings[j].Symbol })

	result.Summary.TotalFills = len(fills)
	result.Summary.PositionsCreated = len(result.Positions)
	result.Summary.SymbolsProcessed = len(symbols)
	result.Summary.Warnings = warnings

	for _, w := range warnings {
		logger.Anomaly(ctx, w.Symbol, string(w.Kind), "fill_id", w.FillID, "quantity", w.Quantity, "message", w.Message)
	}

	if mode == types.ModeCommit {
		if err := c.runs.SaveRun(ctx, result); err != nil {
			logger.ErrorWithErr(ctx, "Failed to persist matching run", err, "run_id", result.RunID)
			return nil, fmt.Errorf("persisting run %s: %w", result.RunID, err)
		}
		logger.Info(ctx, "Matching run committed", "run_id", result.RunID,
			"positions", result.Summary.PositionsCreated)
	} else {
		logger.Info(ctx, "Matching run previewed, nothing written", "run_id", result.RunID,
			"positions", result.Summary.PositionsCreated)
	}

	_ = runlog.AppendRun(runlog.RunEntry{
		RunID:            result.RunID,
		Mode:             string(mode),
		TotalFills:       result.Summary.TotalFills,
		PositionsCreated: result.Summary.PositionsCreated,
		ClosedCount:      result.Summary.ClosedCount,
		OpenCount:        result.Summary.OpenCount,
		SymbolsProcessed: result.Summary.SymbolsProcessed,
		WarningCount:     len(warnings),
	})
	for _, w := range warnings {
		_ = runlog.AppendWarning(runlog.WarningEntry{
			RunID:    result.RunID,
			Kind:     string(w.Kind),
			Symbol:   w.Symbol,
			FillID:   w.FillID,
			Quantity: w.Quantity,
			Message:  w.Message,
		})
	}

	return result, nil
}
