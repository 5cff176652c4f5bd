// Package catalogpg stores the catalog in PostgreSQL. Records live in a
// single table as jsonb documents; pipelines compile to SQL with a CTE per
// pushed-down rollup.
package catalogpg

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domcat "github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/pipeline"
	"github.com/kailas-cloud/musedex/internal/domain/search/request"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS catalog_records (
    kind   TEXT  NOT NULL,
    id     TEXT  NOT NULL,
    search TEXT  NOT NULL DEFAULT '',
    doc    JSONB NOT NULL,
    PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS idx_catalog_records_search ON catalog_records (kind, lower(search));
CREATE INDEX IF NOT EXISTS idx_catalog_records_doc ON catalog_records USING GIN (doc);
`

// Repo is the PostgreSQL catalog store.
type Repo struct {
	pool *pgxpool.Pool
}

// Open connects a pool to dsn and checks connectivity.
func Open(ctx context.Context, dsn string, maxConns int32) (*Repo, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close releases the pool.
func (r *Repo) Close() { r.pool.Close() }

// Ping checks database connectivity.
func (r *Repo) Ping(ctx context.Context) error { return r.pool.Ping(ctx) }

// EnsureSchema creates the records table and its indexes if missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Put upserts records in one batch.
func (r *Repo) Put(ctx context.Context, recs ...domcat.Record) error {
	if len(recs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range recs {
		doc, err := encodeDoc(rec)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", rec.Kind(), rec.ID(), err)
		}
		batch.Queue(`INSERT INTO catalog_records (kind, id, search, doc) VALUES ($1, $2, $3, $4)
ON CONFLICT (kind, id) DO UPDATE SET search = EXCLUDED.search, doc = EXCLUDED.doc`,
			string(rec.Kind()), rec.ID(), rec.Display(), doc)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("put records: %w", err)
	}
	return nil
}

// Size counts the rows of every kind.
func (r *Repo) Size(ctx context.Context) (map[domcat.Kind]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT kind, count(*) FROM catalog_records GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("size: %w", err)
	}
	defer rows.Close()

	out := make(map[domcat.Kind]int, len(domcat.Kinds))
	for _, kind := range domcat.Kinds {
		out[kind] = 0
	}
	for rows.Next() {
		var (
			kind string
			n    int64
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("size: %w", err)
		}
		if k := domcat.Kind(kind); k.IsValid() {
			out[k] = int(n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("size: %w", err)
	}
	return out, nil
}

// FindByField returns one page of records of kind whose search field
// contains pattern, case-insensitively, ordered by id.
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
	rows, err := r.pool.Query(ctx,
		`SELECT id, doc FROM catalog_records WHERE kind = $1 AND search ILIKE $2 ESCAPE '\'
ORDER BY id LIMIT $3 OFFSET $4`,
		string(kind), likePattern(pattern), pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", kind, err)
	}
	recs, err := scanRecords(rows, kind)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", kind, err)
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
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM catalog_records WHERE kind = $1 AND search ILIKE $2 ESCAPE '\'`,
		string(kind), likePattern(pattern)).Scan(&n)
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
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		if id := rec.Ref(field); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return recs, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, doc FROM catalog_records WHERE kind = $1 AND id = ANY($2::text[])`, string(target), ids)
	if err != nil {
		return nil, fmt.Errorf("populate %s.%s: %w", kind, field, err)
	}
	refs, err := scanRecords(rows, target)
	if err != nil {
		return nil, fmt.Errorf("populate %s.%s: %w", kind, field, err)
	}
	byID := make(map[string]domcat.Record, len(refs))
	for _, ref := range refs {
		byID[ref.ID()] = ref
	}
	for i, rec := range recs {
		if ref, ok := byID[rec.Ref(field)]; ok {
			recs[i] = rec.WithField(field, ref)
		}
	}
	return recs, nil
}

// Fetch implements pipeline.Source.
func (r *Repo) Fetch(ctx context.Context, kind domcat.Kind, field string, keys []string) ([]pipeline.Doc, error) {
	q, args, err := fetchQuery(kind, field, keys)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanDocs(rows, nil)
}

func fetchQuery(kind domcat.Kind, field string, keys []string) (string, []any, error) {
	args := []any{string(kind), keys}
	if field == pipeline.IDField {
		return `SELECT id, doc FROM catalog_records WHERE kind = $1 AND id = ANY($2::text[]) ORDER BY id`, args, nil
	}
	f, ok := domcat.SchemaOf(kind).Lookup(field)
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown field %s.%s", pipeline.ErrUnsupported, kind, field)
	}
	args = append(args, field)
	if f.Type == domcat.StringList {
		return `SELECT id, doc FROM catalog_records WHERE kind = $1 AND (doc -> $3::text) ?| $2::text[] ORDER BY id`, args, nil
	}
	return `SELECT id, doc FROM catalog_records WHERE kind = $1 AND (doc ->> $3::text) = ANY($2::text[]) ORDER BY id`, args, nil
}

// likePattern turns a literal substring into an ILIKE pattern.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// encodeDoc stores a record in pipeline document form without its id.
func encodeDoc(rec domcat.Record) ([]byte, error) {
	d := pipeline.FromRecord(rec)
	delete(d, pipeline.IDField)
	return json.Marshal(d)
}

func decodeDoc(id string, raw []byte) (pipeline.Doc, error) {
	d := pipeline.Doc{}
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	d[pipeline.IDField] = id
	return d, nil
}

func recordFromDoc(kind domcat.Kind, d pipeline.Doc) (domcat.Record, error) {
	id := fmt.Sprint(d[pipeline.IDField])
	raw := make(map[string]any, len(d))
	for k, v := range d {
		if k != pipeline.IDField {
			raw[k] = v
		}
	}
	return domcat.New(kind, id, raw)
}

// scanDocs reads (id, doc, extra...) rows. extra names the numeric columns
// following doc; NULL values are left out of the document.
func scanDocs(rows pgx.Rows, extra []string) ([]pipeline.Doc, error) {
	defer rows.Close()
	var out []pipeline.Doc
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		values := make([]*float64, len(extra))
		dest := []any{&id, &raw}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		d, err := decodeDoc(id, raw)
		if err != nil {
			return nil, err
		}
		for i, name := range extra {
			if values[i] != nil {
				d[name] = *values[i]
			}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []pipeline.Doc{}
	}
	return out, nil
}

func scanRecords(rows pgx.Rows, kind domcat.Kind) ([]domcat.Record, error) {
	docs, err := scanDocs(rows, nil)
	if err != nil {
		return nil, err
	}
	recs := make([]domcat.Record, 0, len(docs))
	for _, d := range docs {
		rec, err := recordFromDoc(kind, d)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
