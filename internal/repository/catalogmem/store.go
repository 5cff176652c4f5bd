// Package catalogmem is an in-process catalog store. It evaluates every
// pipeline stage with the reference evaluator and backs tests, demos and
// the SDK's zero-dependency mode.
package catalogmem

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	domcat "github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/pipeline"
	"github.com/kailas-cloud/musedex/internal/domain/search/request"
)

// Store keeps records in maps keyed by kind and id.
type Store struct {
	mu      sync.RWMutex
	records map[domcat.Kind]map[string]domcat.Record
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[domcat.Kind]map[string]domcat.Record)}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// EnsureSchema is a no-op; maps need no schema.
func (s *Store) EnsureSchema(_ context.Context) error { return nil }

// Size counts the records of every kind.
func (s *Store) Size(ctx context.Context) (map[domcat.Kind]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domcat.Kind]int, len(domcat.Kinds))
	for _, kind := range domcat.Kinds {
		out[kind] = len(s.records[kind])
	}
	return out, nil
}

// Put stores records, replacing existing ones with the same kind and id.
func (s *Store) Put(_ context.Context, recs ...domcat.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		byID, ok := s.records[rec.Kind()]
		if !ok {
			byID = make(map[string]domcat.Record)
			s.records[rec.Kind()] = byID
		}
		byID[rec.ID()] = rec
	}
	return nil
}

// FindByField returns one page of records of kind whose field contains
// pattern under Unicode case folding, ordered by id.
func (s *Store) FindByField(
	ctx context.Context, kind domcat.Kind, field, pattern string, page, pageSize int, populate bool,
) ([]domcat.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matched, err := s.match(kind, field, pattern)
	if err != nil {
		return nil, err
	}

	start, ok := request.Window(page, pageSize)
	if !ok || start >= len(matched) {
		return []domcat.Record{}, nil
	}
	end := min(start+pageSize, len(matched))
	out := slices.Clone(matched[start:end])

	if populate {
		s.populate(kind, out)
	}
	return out, nil
}

// CountByField returns how many records of kind match, ignoring pagination.
func (s *Store) CountByField(ctx context.Context, kind domcat.Kind, field, pattern string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	matched, err := s.match(kind, field, pattern)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (s *Store) match(kind domcat.Kind, field, pattern string) ([]domcat.Record, error) {
	if field != kind.SearchField() {
		return nil, fmt.Errorf("find %s: field %q is not searchable", kind, field)
	}
	fold := cases.Fold()
	needle := fold.String(pattern)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domcat.Record
	for _, rec := range s.records[kind] {
		if strings.Contains(fold.String(rec.String(field)), needle) {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b domcat.Record) int { return cmp.Compare(a.ID(), b.ID()) })
	return out, nil
}

func (s *Store) populate(kind domcat.Kind, recs []domcat.Record) {
	field, target, ok := kind.Populate()
	if !ok {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, rec := range recs {
		if ref, ok := s.records[target][rec.Ref(field)]; ok {
			recs[i] = rec.WithField(field, ref)
		}
	}
}

// Aggregate evaluates every stage of p in process.
func (s *Store) Aggregate(ctx context.Context, p *pipeline.Pipeline) ([]pipeline.Doc, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	docs := s.docs(p.Source, func(domcat.Record) bool { return true })
	out, err := pipeline.Exec(ctx, docs, p.Stages, s, nil)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", p.Source, err)
	}
	return out, nil
}

// Fetch implements pipeline.Source.
func (s *Store) Fetch(ctx context.Context, kind domcat.Kind, field string, keys []string) ([]pipeline.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	return s.docs(kind, func(rec domcat.Record) bool {
		v, ok := rec.Get(field)
		if field == pipeline.IDField {
			v, ok = rec.ID(), true
		}
		if !ok {
			return false
		}
		if r, isRec := v.(domcat.Record); isRec {
			v = r.ID()
		}
		for _, k := range pipeline.Keys(v) {
			if want[k] {
				return true
			}
		}
		return false
	}), nil
}

// docs converts the records of kind accepted by keep, ordered by id.
func (s *Store) docs(kind domcat.Kind, keep func(domcat.Record) bool) []pipeline.Doc {
	s.mu.RLock()
	recs := make([]domcat.Record, 0, len(s.records[kind]))
	for _, rec := range s.records[kind] {
		if keep(rec) {
			recs = append(recs, rec)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(recs, func(a, b domcat.Record) int { return cmp.Compare(a.ID(), b.ID()) })
	out := make([]pipeline.Doc, len(recs))
	for i, rec := range recs {
		out[i] = pipeline.FromRecord(rec)
	}
	return out
}
