// Package recorder records decoded telemetry records to CSV files with
// automatic rotation, one file per message kind since each kind has its own
// field set.
package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rgoulter/bhtlink/internal/wire"
	"go.uber.org/zap"
)

// Config holds recorder configuration.
type Config struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Path       string `yaml:"path" json:"path"`
	MaxRows    int    `yaml:"max_rows_per_file" json:"maxRowsPerFile"`
	IntervalMs int    `yaml:"interval_ms" json:"intervalMs"`
}

// perKindFile is one open CSV file + rotation state for a single message
// kind (distinguished by its record type name).
type perKindFile struct {
	file    *os.File
	writer  *csv.Writer
	header  []string
	rows    int
	lastRec time.Time
}

// Recorder records decoded telemetry records to per-kind, rotating CSV
// files under dir.
type Recorder struct {
	mu       sync.Mutex
	dir      string
	interval time.Duration
	maxRows  int
	enabled  bool
	log      *zap.Logger

	files map[string]*perKindFile
}

const defaultMaxRowsPerFile = 100_000

// New creates a new Recorder.
func New(cfg Config, log *zap.Logger) *Recorder {
	if cfg.Path == "" {
		cfg.Path = "/var/log/bhtlink"
	}
	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	if interval < 0 {
		interval = 0
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRowsPerFile
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		dir:      cfg.Path,
		interval: interval,
		maxRows:  maxRows,
		enabled:  cfg.Enabled,
		log:      log,
		files:    make(map[string]*perKindFile),
	}
}

// SetEnabled toggles recording at runtime, closing all open files when
// disabled.
func (r *Recorder) SetEnabled(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = on
	if !on {
		r.closeAllLocked()
	}
}

// Handler returns a bht.Handler-compatible callback that records every
// record of the given kind name (used purely for file naming/grouping).
func (r *Recorder) Handler(kind string) func(wire.Record) {
	return func(rec wire.Record) { r.Record(kind, rec) }
}

// Record writes one decoded record's fields as a CSV row, throttled to at
// most one row per interval per kind, rotating to a new file past maxRows.
func (r *Recorder) Record(kind string, rec wire.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return
	}

	now := time.Now()
	pf := r.files[kind]
	if pf != nil && now.Sub(pf.lastRec) < r.interval {
		return
	}

	fields := rec.Fields()
	header := sortedKeys(fields)

	if pf == nil || pf.rows >= r.maxRows || !sameHeader(pf.header, header) {
		newFile, err := r.rotate(kind, now, header)
		if err != nil {
			r.log.Error("recorder rotate failed", zap.String("kind", kind), zap.Error(err))
			return
		}
		pf = newFile
		r.files[kind] = pf
	}
	pf.lastRec = now

	row := make([]string, 0, len(header)+2)
	row = append(row, now.Format(time.RFC3339Nano), fmt.Sprintf("%d", rec.Header().SeqNo))
	for _, k := range header {
		row = append(row, formatValue(fields[k]))
	}
	if err := pf.writer.Write(row); err != nil {
		r.log.Error("recorder write failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	pf.writer.Flush()
	pf.rows++
}

// Close flushes and closes every open file.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeAllLocked()
}

func (r *Recorder) closeAllLocked() {
	for kind, pf := range r.files {
		pf.writer.Flush()
		pf.file.Close()
		delete(r.files, kind)
	}
}

func (r *Recorder) rotate(kind string, now time.Time, header []string) (*perKindFile, error) {
	if old := r.files[kind]; old != nil {
		old.writer.Flush()
		old.file.Close()
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("recorder: mkdir %s: %w", r.dir, err)
	}
	filename := fmt.Sprintf("%s_%s.csv", kind, now.Format("2006-01-02_150405"))
	path := filepath.Join(r.dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	fullHeader := append([]string{"timestamp", "seq_no"}, header...)
	if err := w.Write(fullHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("recorder: write header: %w", err)
	}
	w.Flush()

	r.log.Info("recorder opened file", zap.String("kind", kind), zap.String("path", path))
	return &perKindFile{file: f, writer: w, header: header}, nil
}

func sortedKeys(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("%.6f", val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case []float64:
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
