package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"position-matcher/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "matcher.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testFill(id string, dir types.Direction, qty int64, price string, at time.Time) types.Fill {
	return types.Fill{
		ID:         id,
		Symbol:     "AAPL",
		Direction:  dir,
		Quantity:   qty,
		Price:      decimal.RequireFromString(price),
		Fee:        decimal.RequireFromString("1.50"),
		FilledAt:   at,
		Multiplier: 1,
	}
}

func TestInsertAndLoadFillsInChronologicalOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

	// Inserted out of order on purpose; LoadFills must sort by fill time.
	fills := []types.Fill{
		testFill("f3", types.Sell, 100, "12", base.Add(2*time.Hour)),
		testFill("f1", types.Buy, 50, "10", base),
		testFill("f2", types.Buy, 50, "11", base.Add(time.Hour)),
	}
	for i := range fills {
		if err := s.InsertFill(ctx, &fills[i]); err != nil {
			t.Fatal(err)
		}
	}

	loaded, err := s.LoadFills(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 fills, got %d", len(loaded))
	}
	for i, want := range []string{"f1", "f2", "f3"} {
		if loaded[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, loaded[i].ID)
		}
	}
	if !loaded[0].Price.Equal(decimal.RequireFromString("10")) {
		t.Errorf("price must round-trip exactly, got %s", loaded[0].Price)
	}
	if !loaded[0].Fee.Equal(decimal.RequireFromString("1.50")) {
		t.Errorf("fee must round-trip exactly, got %s", loaded[0].Fee)
	}
}

func TestInsertFillIgnoresDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := testFill("f1", types.Buy, 50, "10", time.Now().UTC())

	if err := s.InsertFill(ctx, &f); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertFill(ctx, &f); err != nil {
		t.Fatalf("re-inserting a known fill must be a no-op, got %v", err)
	}

	loaded, err := s.LoadFills(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 {
		t.Errorf("expected 1 fill after duplicate insert, got %d", len(loaded))
	}
}

func matchedRun(openID, closeID string) *types.MatchResult {
	openT := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	closed := types.Position{
		ID:            "pos-1",
		Symbol:        "AAPL",
		Side:          types.SideLong,
		Status:        types.StatusClosed,
		Quantity:      100,
		OpenPrice:     decimal.RequireFromString("10"),
		ClosePrice:    decimal.RequireFromString("12"),
		OpenTime:      openT,
		CloseTime:     openT.Add(time.Hour),
		OpenFee:       decimal.RequireFromString("1.50"),
		CloseFee:      decimal.RequireFromString("1.50"),
		RealizedPnL:   decimal.RequireFromString("200"),
		NetPnL:        decimal.RequireFromString("197"),
		HoldingPeriod: time.Hour,
		OpenFillID:    openID,
		CloseFillID:   closeID,
	}
	return &types.MatchResult{
		RunID:     "run-1",
		Mode:      types.ModeCommit,
		Positions: []types.Position{closed},
		FillPositions: map[string]string{
			openID:  closed.ID,
			closeID: closed.ID,
		},
		Summary: types.RunSummary{
			TotalFills:       2,
			PositionsCreated: 1,
			ClosedCount:      1,
			SymbolsProcessed: 1,
		},
	}
}

func TestSaveRunPersistsPositionsAndBackReferences(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

	open := testFill("f1", types.Buy, 100, "10", base)
	closeF := testFill("f2", types.Sell, 100, "12", base.Add(time.Hour))
	for _, f := range []*types.Fill{&open, &closeF} {
		if err := s.InsertFill(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.SaveRun(ctx, matchedRun("f1", "f2")); err != nil {
		t.Fatal(err)
	}

	positions, err := s.Positions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 stored position, got %d", len(positions))
	}
	p := positions[0]
	if p.ID != "pos-1" || p.Status != types.StatusClosed {
		t.Errorf("unexpected position: %+v", p)
	}
	if !p.NetPnL.Equal(decimal.RequireFromString("197")) {
		t.Errorf("net pnl must round-trip exactly, got %s", p.NetPnL)
	}
	if p.HoldingPeriod != time.Hour {
		t.Errorf("holding period must round-trip, got %s", p.HoldingPeriod)
	}

	var positionID string
	if err := s.db.QueryRowContext(ctx,
		"SELECT position_id FROM fills WHERE id = 'f1'").Scan(&positionID); err != nil {
		t.Fatal(err)
	}
	if positionID != "pos-1" {
		t.Errorf("fill back-reference not applied, got %q", positionID)
	}

	var runs int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM match_runs").Scan(&runs); err != nil {
		t.Fatal(err)
	}
	if runs != 1 {
		t.Errorf("expected 1 run summary row, got %d", runs)
	}
}

func TestSaveRunRollsBackOnFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

	open := testFill("f1", types.Buy, 100, "10", base)
	closeF := testFill("f2", types.Sell, 100, "12", base.Add(time.Hour))
	for _, f := range []*types.Fill{&open, &closeF} {
		if err := s.InsertFill(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	// Duplicate position id inside one run violates the primary key on the
	// second insert; the first insert must roll back with it.
	run := matchedRun("f1", "f2")
	run.Positions = append(run.Positions, run.Positions[0])
	if err := s.SaveRun(ctx, run); err == nil {
		t.Fatal("expected SaveRun to fail on duplicate position id")
	}

	var positions int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM positions").Scan(&positions); err != nil {
		t.Fatal(err)
	}
	if positions != 0 {
		t.Errorf("failed run left %d position rows behind", positions)
	}

	var backRefs int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fills WHERE position_id IS NOT NULL").Scan(&backRefs); err != nil {
		t.Fatal(err)
	}
	if backRefs != 0 {
		t.Errorf("failed run left %d fill back-references behind", backRefs)
	}
}
