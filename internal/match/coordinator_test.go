package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"position-matcher/internal/store"
	"position-matcher/internal/types"
)

type stubSource struct {
	fills []types.Fill
	err   error
}

func (s *stubSource) LoadFills(ctx context.Context) ([]types.Fill, error) {
	return s.fills, s.err
}

type recordingStore struct {
	saved []*types.MatchResult
	err   error
}

func (r *recordingStore) SaveRun(ctx context.Context, result *types.MatchResult) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, result)
	return nil
}

func testConfig() *store.Config {
	cfg := &store.Config{Mode: "PREVIEW", DBPath: "unused.db", MoneyPrecision: 2}
	cfg.Warnings.FlagDanglingShorts = true
	return cfg
}

func newTestCoordinator(t *testing.T, fills []types.Fill) (*coordinator, *recordingStore) {
	t.Helper()
	t.Setenv("MATCHER_LOG_DIR", t.TempDir())
	runs := &recordingStore{}
	return newCoordinator(testConfig(), &stubSource{fills: fills}, runs), runs
}

func TestPreviewComputesWithoutPersisting(t *testing.T) {
	c, runs := newTestCoordinator(t, []types.Fill{
		makeFill("b1", "AAPL", types.Buy, 100, "10", "2", t0),
		makeFill("s1", "AAPL", types.Sell, 100, "12", "2", t0.Add(time.Hour)),
	})

	result, err := c.MatchAll(context.Background(), types.ModePreview)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs.saved) != 0 {
		t.Errorf("preview mode must not write, saw %d saves", len(runs.saved))
	}
	if result.Summary.ClosedCount != 1 || result.Summary.OpenCount != 0 {
		t.Errorf("unexpected summary: %+v", result.Summary)
	}
}

func TestCommitPersistsExactlyOnce(t *testing.T) {
	c, runs := newTestCoordinator(t, []types.Fill{
		makeFill("b1", "AAPL", types.Buy, 100, "10", "2", t0),
		makeFill("s1", "AAPL", types.Sell, 100, "12", "2", t0.Add(time.Hour)),
	})

	result, err := c.MatchAll(context.Background(), types.ModeCommit)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs.saved) != 1 {
		t.Fatalf("expected one persisted run, got %d", len(runs.saved))
	}
	if runs.saved[0] != result {
		t.Error("persisted result must be the returned result")
	}
	if result.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestSymbolsAreMatchedIndependently(t *testing.T) {
	c, _ := newTestCoordinator(t, []types.Fill{
		makeFill("a1", "AAPL", types.Buy, 100, "10", "0", t0),
		makeFill("t1", "TSLA", types.Buy, 50, "200", "0", t0.Add(time.Minute)),
		makeFill("a2", "AAPL", types.Sell, 100, "12", "0", t0.Add(2*time.Minute)),
		makeFill("t2", "TSLA", types.Sell, 50, "210", "0", t0.Add(3*time.Minute)),
	})

	result, err := c.MatchAll(context.Background(), types.ModePreview)
	if err != nil {
		t.Fatal(err)
	}
	s := result.Summary
	if s.TotalFills != 4 || s.SymbolsProcessed != 2 || s.ClosedCount != 2 || s.OpenCount != 0 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.PositionsCreated != len(result.Positions) {
		t.Errorf("positions_created %d disagrees with emitted list %d",
			s.PositionsCreated, len(result.Positions))
	}
}

func TestFillPositionBackReferences(t *testing.T) {
	c, _ := newTestCoordinator(t, []types.Fill{
		makeFill("buy", "AAPL", types.Buy, 100, "10", "0", t0),
		makeFill("sell", "AAPL", types.Sell, 60, "12", "0", t0.Add(time.Hour)),
	})

	result, err := c.MatchAll(context.Background(), types.ModePreview)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Positions) != 2 {
		t.Fatalf("expected one closed and one open position, got %d", len(result.Positions))
	}

	var closedPos, openPos types.Position
	for _, p := range result.Positions {
		if p.Status == types.StatusClosed {
			closedPos = p
		} else {
			openPos = p
		}
	}

	if got := result.FillPositions["sell"]; got != closedPos.ID {
		t.Errorf("closing fill must reference its closed position, got %s", got)
	}
	// A fill split across several positions keeps its LAST assignment; the
	// open remainder is emitted after the closed slice.
	if got := result.FillPositions["buy"]; got != openPos.ID {
		t.Errorf("split opening fill must keep the last assignment, got %s want %s", got, openPos.ID)
	}
}

func TestDanglingShortFlagged(t *testing.T) {
	c, _ := newTestCoordinator(t, []types.Fill{
		makeFill("short", "GME", types.SellShort, 100, "40", "1", t0),
	})

	result, err := c.MatchAll(context.Background(), types.ModePreview)
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.OpenCount != 1 {
		t.Fatalf("expected the uncovered short finalized open, got %+v", result.Summary)
	}
	var found bool
	for _, w := range result.Summary.Warnings {
		if w.Kind == types.WarnDanglingShort && w.Symbol == "GME" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a DANGLING_SHORT warning, got %+v", result.Summary.Warnings)
	}
}

func TestDanglingShortSuppressedWhenDisabled(t *testing.T) {
	t.Setenv("MATCHER_LOG_DIR", t.TempDir())
	cfg := testConfig()
	cfg.Warnings.FlagDanglingShorts = false
	c := newCoordinator(cfg, &stubSource{fills: []types.Fill{
		makeFill("short", "GME", types.SellShort, 100, "40", "1", t0),
	}}, &recordingStore{})

	result, err := c.MatchAll(context.Background(), types.ModePreview)
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range result.Summary.Warnings {
		if w.Kind == types.WarnDanglingShort {
			t.Errorf("dangling-short warnings should be suppressed: %+v", w)
		}
	}
}

func TestOrphanWarningSurfacesInSummary(t *testing.T) {
	c, _ := newTestCoordinator(t, []types.Fill{
		makeFill("sell", "AAPL", types.Sell, 100, "12", "2", t0),
	})

	result, err := c.MatchAll(context.Background(), types.ModePreview)
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.PositionsCreated != 0 {
		t.Errorf("orphan close must not fabricate positions: %+v", result.Summary)
	}
	if len(result.Summary.Warnings) != 1 || result.Summary.Warnings[0].Kind != types.WarnOrphanFill {
		t.Errorf("expected a single orphan warning, got %+v", result.Summary.Warnings)
	}
}

func TestInvalidFillAbortsBeforePersisting(t *testing.T) {
	c, runs := newTestCoordinator(t, []types.Fill{
		makeFill("bad", "AAPL", types.Buy, 0, "10", "0", t0),
	})

	if _, err := c.MatchAll(context.Background(), types.ModeCommit); !errors.Is(err, ErrInvalidFill) {
		t.Fatalf("expected ErrInvalidFill, got %v", err)
	}
	if len(runs.saved) != 0 {
		t.Error("a fatal input error must not reach the store")
	}
}

func TestLoadFailureAborts(t *testing.T) {
	t.Setenv("MATCHER_LOG_DIR", t.TempDir())
	loadErr := errors.New("db locked")
	c := newCoordinator(testConfig(), &stubSource{err: loadErr}, &recordingStore{})

	if _, err := c.MatchAll(context.Background(), types.ModePreview); !errors.Is(err, loadErr) {
		t.Errorf("expected load error to propagate, got %v", err)
	}
}

func TestPersistFailurePropagates(t *testing.T) {
	t.Setenv("MATCHER_LOG_DIR", t.TempDir())
	saveErr := errors.New("disk full")
	c := newCoordinator(testConfig(), &stubSource{fills: []types.Fill{
		makeFill("b1", "AAPL", types.Buy, 10, "10", "0", t0),
	}}, &recordingStore{err: saveErr})

	if _, err := c.MatchAll(context.Background(), types.ModeCommit); !errors.Is(err, saveErr) {
		t.Errorf("expected save error to propagate, got %v", err)
	}
}

func TestUnknownModeRejected(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)
	if _, err := c.MatchAll(context.Background(), types.RunMode("DRY_RUN")); err == nil {
		t.Error("expected unknown mode to be rejected")
	}
}
