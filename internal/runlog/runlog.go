package runlog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var mu sync.Mutex

// RunEntry is one line of the daily run log.
type RunEntry struct {
	Time             string `json:"time"`
	RunID            string `json:"run_id"`
	Mode             string `json:"mode"`
	TotalFills       int    `json:"total_fills"`
	PositionsCreated int    `json:"positions_created"`
	ClosedCount      int    `json:"closed_count"`
	OpenCount        int    `json:"open_count"`
	SymbolsProcessed int    `json:"symbols_processed"`
	WarningCount     int    `json:"warning_count"`
}

// WarningEntry is one line of the daily warning log.
type WarningEntry struct {
	Time     string `json:"time"`
	RunID    string `json:"run_id"`
	Kind     string `json:"kind"`
	Symbol   string `json:"symbol"`
	FillID   string `json:"fill_id,omitempty"`
	Quantity int64  `json:"quantity,omitempty"`
	Message  string `json:"message"`
}

func logDir() string {
	if v := os.Getenv("MATCHER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func runsFilepath(t time.Time) string {
	return filepath.Join(logDir(), t.UTC().Format("2006-01-02")+".txt")
}

func warningsFilepath(t time.Time) string {
	return filepath.Join(logDir(), "warnings", t.UTC().Format("2006-01-02")+".txt")
}

func AppendRun(e RunEntry) error {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().UTC()
	e.Time = now.Format("2006-01-02 15:04:05")
	return appendJSON(runsFilepath(now), e)
}

func AppendWarning(e WarningEntry) error {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().UTC()
	e.Time = now.Format("2006-01-02 15:04:05")
	return appendJSON(warningsFilepath(now), e)
}

func appendJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips .txt log files whose mtime is past the retention window
// and removes the originals.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(logDir(), func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, er := os.Stat(p)
		if er != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, e := os.Stat(gz); e == nil {
			// already compressed on an earlier pass
			_ = os.Remove(p)
			return nil
		}
		compressFile(p, gz)
		return nil
	})
}

func compressFile(src, dst string) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		return
	}
	_ = gw.Close()
	_ = out.Close()
	_ = os.Remove(src)
}
