// Package seed loads catalog fixtures into a catalog store.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/pipeline"
)

// DefaultBatchSize is the number of records written per Put call.
const DefaultBatchSize = 100

// Writer is the catalog surface the loader writes through.
type Writer interface {
	EnsureSchema(ctx context.Context) error
	Put(ctx context.Context, recs ...catalog.Record) error
}

// Entry is one fixture document. The "id" key is optional.
type Entry map[string]any

// Fixture is a catalog fixture file. Sections are loaded in declaration
// order so referenced records exist before the records pointing at them.
type Fixture struct {
	Accounts    []Entry `yaml:"accounts"`
	Performers  []Entry `yaml:"performers"`
	Albums      []Entry `yaml:"albums"`
	Tracks      []Entry `yaml:"tracks"`
	Collections []Entry `yaml:"collections"`
}

// Result summarizes a load.
type Result struct {
	Loaded   map[catalog.Kind]int
	Duration time.Duration
}

// Total returns the number of records written.
func (r Result) Total() int {
	n := 0
	for _, c := range r.Loaded {
		n += c
	}
	return n
}

// Parse decodes a YAML fixture.
func Parse(data []byte) (Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	return f, nil
}

// ReadFile reads and decodes a YAML fixture file.
func ReadFile(path string) (Fixture, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture %s: %w", path, err)
	}
	return Parse(data)
}

// Records converts the fixture into validated records. Entries without an
// id get a random one. Time values of the form "now-<n>d" are resolved
// against now so fixtures stay inside the trending window.
func (f Fixture) Records(now time.Time) ([]catalog.Record, error) {
	sections := []struct {
		kind    catalog.Kind
		entries []Entry
	}{
		{catalog.Account, f.Accounts},
		{catalog.Performer, f.Performers},
		{catalog.Album, f.Albums},
		{catalog.Track, f.Tracks},
		{catalog.Collection, f.Collections},
	}

	var out []catalog.Record
	for _, sec := range sections {
		schema := catalog.SchemaOf(sec.kind)
		for i, e := range sec.entries {
			raw := make(map[string]any, len(e))
			id := ""
			for k, v := range e {
				if k == pipeline.IDField {
					id = fmt.Sprint(v)
					continue
				}
				if fld, ok := schema.Lookup(k); ok && fld.Type == catalog.Time {
					resolved, err := relativeTime(v, now)
					if err != nil {
						return nil, fmt.Errorf("%s[%d].%s: %w", sec.kind.Plural(), i, k, err)
					}
					v = resolved
				}
				raw[k] = v
			}
			if id == "" {
				id = uuid.NewString()
			}
			rec, err := catalog.New(sec.kind, id, raw)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", sec.kind.Plural(), i, err)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// Load creates the schema and writes every fixture record in batches.
func Load(ctx context.Context, w Writer, f Fixture, now time.Time, batchSize int, logger *zap.Logger) (Result, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	recs, err := f.Records(now)
	if err != nil {
		return Result{}, err
	}
	if err := w.EnsureSchema(ctx); err != nil {
		return Result{}, fmt.Errorf("ensure schema: %w", err)
	}

	res := Result{Loaded: make(map[catalog.Kind]int)}
	for off := 0; off < len(recs); off += batchSize {
		batch := recs[off:min(off+batchSize, len(recs))]
		if err := w.Put(ctx, batch...); err != nil {
			return res, fmt.Errorf("put records %d-%d: %w", off, off+len(batch)-1, err)
		}
		for _, r := range batch {
			res.Loaded[r.Kind()]++
		}
		logger.Debug("Fixture batch written", zap.Int("offset", off), zap.Int("size", len(batch)))
	}
	res.Duration = time.Since(start)

	logger.Info("Fixture loaded",
		zap.Int("records", res.Total()),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func relativeTime(v any, now time.Time) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	rest, ok := strings.CutPrefix(s, "now")
	if !ok {
		return v, nil
	}
	if rest == "" {
		return now, nil
	}
	days, ok := strings.CutSuffix(strings.TrimPrefix(rest, "-"), "d")
	if !ok || !strings.HasPrefix(rest, "-") {
		return nil, fmt.Errorf("invalid relative time %q, want now-<days>d", s)
	}
	n, err := strconv.Atoi(days)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid relative time %q, want now-<days>d", s)
	}
	return now.AddDate(0, 0, -n), nil
}
