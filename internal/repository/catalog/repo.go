package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/musedex/internal/db"
	domcat "github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/pipeline"
	"github.com/kailas-cloud/musedex/internal/domain/search/request"
)

// fetchLimit caps the number of documents a lookup by a non-id field reads.
const fetchLimit = 10000

// store is the consumer interface for catalog operations (ISP).
type store interface {
	Ping(ctx context.Context) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SRandMember(ctx context.Context, key string, count int) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error)
}

// Repo is the Redis catalog store. Each record is a hash at
// <prefix><kind>:<id>, indexed by an FT index per kind; a set per kind
// registers the ids for sampling.
type Repo struct {
	store  store
	prefix string
}

// New creates a catalog repository over the given key prefix.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Ping checks store connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// EnsureSchema creates the FT index of every kind that has none yet.
// Existing indexes are kept as they are.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, kind := range domcat.Kinds {
		name := r.indexName(kind)
		exists, err := r.store.IndexExists(ctx, name)
		if err != nil {
			return fmt.Errorf("probe index %s: %w", kind, err)
		}
		if exists {
			continue
		}
		def, err := buildIndex(name, r.keyPrefix(kind), kind)
		if err != nil {
			return fmt.Errorf("build index %s: %w", kind, err)
		}
		// Another instance may create it between the probe and here.
		if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", kind, err)
		}
	}
	return nil
}

// Size counts the registered ids of every kind.
func (r *Repo) Size(ctx context.Context) (map[domcat.Kind]int, error) {
	out := make(map[domcat.Kind]int, len(domcat.Kinds))
	for _, kind := range domcat.Kinds {
		n, err := r.store.SCard(ctx, r.idsKey(kind))
		if err != nil {
			return nil, fmt.Errorf("size %s: %w", kind, err)
		}
		out[kind] = int(n)
	}
	return out, nil
}

// Put stores records and registers their ids.
func (r *Repo) Put(ctx context.Context, recs ...domcat.Record) error {
	if len(recs) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(recs))
	ids := make(map[domcat.Kind][]string)
	for i, rec := range recs {
		items[i] = db.HashSetItem{Key: r.key(rec.Kind(), rec.ID()), Fields: buildHashFields(rec)}
		ids[rec.Kind()] = append(ids[rec.Kind()], rec.ID())
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("put records: %w", err)
	}
	for kind, list := range ids {
		if err := r.store.SAdd(ctx, r.idsKey(kind), list...); err != nil {
			return fmt.Errorf("register %s ids: %w", kind, err)
		}
	}
	return nil
}

// FindByField returns one page of records of kind whose field contains
// pattern, case-insensitively. With populate the kind's reference field is
// replaced by the referenced record.
func (r *Repo) FindByField(
	ctx context.Context, kind domcat.Kind, field, pattern string, page, pageSize int, populate bool,
) ([]domcat.Record, error) {
	if field != kind.SearchField() {
		return nil, fmt.Errorf("find %s: field %q is not searchable", kind, field)
	}
	offset, ok := request.Window(page, pageSize)
	if !ok {
		return []domcat.Record{}, nil
	}
	sr, err := r.store.SearchList(ctx, r.indexName(kind), db.TagContains(field, pattern), offset, pageSize, nil)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", kind, err)
	}

	recs := make([]domcat.Record, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		recs = append(recs, parseHashFields(kind, r.idFromKey(kind, e.Key), e.Fields))
	}

	if populate {
		if recs, err = r.populate(ctx, kind, recs); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// CountByField returns how many records of kind match, ignoring pagination.
func (r *Repo) CountByField(ctx context.Context, kind domcat.Kind, field, pattern string) (int, error) {
	if field != kind.SearchField() {
		return 0, fmt.Errorf("count %s: field %q is not searchable", kind, field)
	}
	n, err := r.store.SearchCount(ctx, r.indexName(kind), db.TagContains(field, pattern))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

func (r *Repo) populate(ctx context.Context, kind domcat.Kind, recs []domcat.Record) ([]domcat.Record, error) {
	field, target, ok := kind.Populate()
	if !ok || len(recs) == 0 {
		return recs, nil
	}

	var ids []string
	seen := make(map[string]bool)
	for _, rec := range recs {
		if id := rec.Ref(field); id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return recs, nil
	}

	refs, err := r.getMany(ctx, target, ids)
	if err != nil {
		return nil, fmt.Errorf("populate %s.%s: %w", kind, field, err)
	}
	byID := make(map[string]domcat.Record, len(refs))
	for _, ref := range refs {
		byID[ref.ID()] = ref
	}

	out := make([]domcat.Record, len(recs))
	for i, rec := range recs {
		if ref, ok := byID[rec.Ref(field)]; ok {
			rec = rec.WithField(field, ref)
		}
		out[i] = rec
	}
	return out, nil
}

// getMany loads records by id; missing ids are skipped.
func (r *Repo) getMany(ctx context.Context, kind domcat.Kind, ids []string) ([]domcat.Record, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(kind, id)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]domcat.Record, 0, len(hashes))
	for i, h := range hashes {
		if len(h) == 0 {
			continue
		}
		out = append(out, parseHashFields(kind, ids[i], h))
	}
	return out, nil
}

// Fetch implements pipeline.Source for the stages evaluated after push-down.
func (r *Repo) Fetch(ctx context.Context, kind domcat.Kind, field string, keys []string) ([]pipeline.Doc, error) {
	if field == pipeline.IDField {
		recs, err := r.getMany(ctx, kind, keys)
		if err != nil {
			return nil, err
		}
		docs := make([]pipeline.Doc, len(recs))
		for i, rec := range recs {
			docs[i] = pipeline.FromRecord(rec)
		}
		return docs, nil
	}

	if !isTagField(kind, field) {
		return nil, fmt.Errorf("%w: lookup on unindexed field %s.%s", pipeline.ErrUnsupported, kind, field)
	}
	sr, err := r.store.SearchList(ctx, r.indexName(kind), db.TagEquals(field, keys...), 0, fetchLimit, nil)
	if err != nil {
		return nil, err
	}
	docs := make([]pipeline.Doc, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		docs = append(docs, docFromHash(kind, r.idFromKey(kind, e.Key), e.Fields))
	}
	return docs, nil
}

func (r *Repo) keyPrefix(kind domcat.Kind) string { return r.prefix + string(kind) + ":" }

func (r *Repo) key(kind domcat.Kind, id string) string { return r.keyPrefix(kind) + id }

func (r *Repo) indexName(kind domcat.Kind) string { return r.prefix + string(kind) + ":idx" }

func (r *Repo) idsKey(kind domcat.Kind) string { return r.prefix + "ids:" + string(kind) }

func (r *Repo) idFromKey(kind domcat.Kind, key string) string {
	return strings.TrimPrefix(key, r.keyPrefix(kind))
}
