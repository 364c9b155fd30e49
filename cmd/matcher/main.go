package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"position-matcher/internal/trace"
	"position-matcher/internal/types"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	modeFlag := flag.String("mode", "", "override run mode: preview or commit")
	seedPath := flag.String("seed", "", "JSONL file of fills to load into the store before matching")
	seedOnly := flag.Bool("seed-only", false, "load fills and exit without matching")
	showN := flag.Int("show", 0, "after the run, print the N most recently opened stored positions")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, st, err := initializeSystem(ctx, *configPath)
	must(err)
	defer st.Close()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	if *seedPath != "" {
		n, err := seedFills(ctx, st, *seedPath)
		must(err)
		log.Printf("Loaded %d fills from %s", n, *seedPath)
		if *seedOnly {
			return
		}
	}

	mode, err := resolveMode(cfg.Mode, *modeFlag)
	must(err)

	coordinator := initializeCoordinator(cfg, st)
	result, err := coordinator.MatchAll(ctx, mode)
	must(err)

	b, _ := json.MarshalIndent(result.Summary, "", "  ")
	fmt.Println(string(b))

	if *showN > 0 {
		positions, err := st.Positions(ctx, *showN)
		must(err)
		for _, p := range positions {
			line, _ := json.Marshal(p)
			fmt.Println(string(line))
		}
	}
}

// resolveMode applies the -mode flag on top of the configured default.
func resolveMode(configured, override string) (types.RunMode, error) {
	mode := configured
	if override != "" {
		mode = strings.ToUpper(override)
	}
	switch types.RunMode(mode) {
	case types.ModePreview:
		return types.ModePreview, nil
	case types.ModeCommit:
		return types.ModeCommit, nil
	}
	return "", fmt.Errorf("unknown run mode %q: must be preview or commit", mode)
}

// seedFills loads one JSON fill record per line into the store.
func seedFills(ctx context.Context, st fillInserter, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	count := 0
	for dec.More() {
		var fill types.Fill
		if err := dec.Decode(&fill); err != nil {
			return count, fmt.Errorf("decoding fill record %d: %w", count+1, err)
		}
		if err := st.InsertFill(ctx, &fill); err != nil {
			return count, fmt.Errorf("inserting fill %s: %w", fill.ID, err)
		}
		count++
	}
	return count, nil
}

type fillInserter interface {
	InsertFill(ctx context.Context, f *types.Fill) error
}
