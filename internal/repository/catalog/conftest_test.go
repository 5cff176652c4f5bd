package catalog

import (
	"context"
	"testing"

	"github.com/kailas-cloud/musedex/internal/db"
)

const testPrefix = "musedex:"

// mockStore implements the consumer interface for tests.
type mockStore struct {
	pingFn         func(ctx context.Context) error
	hsetMultiFn    func(ctx context.Context, items []db.HashSetItem) error
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	saddFn         func(ctx context.Context, key string, members ...string) error
	srandMemberFn  func(ctx context.Context, key string, count int) ([]string, error)
	scardFn        func(ctx context.Context, key string) (int64, error)
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn  func(ctx context.Context, name string) (bool, error)
	searchListFn   func(ctx context.Context, index, query string, offset, limit int) (*db.SearchResult, error)
	searchCountFn  func(ctx context.Context, index, query string) (int, error)
	aggregateFn    func(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error)
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) SAdd(ctx context.Context, key string, members ...string) error {
	if m.saddFn != nil {
		return m.saddFn(ctx, key, members...)
	}
	return nil
}

func (m *mockStore) SRandMember(ctx context.Context, key string, count int) ([]string, error) {
	if m.srandMemberFn != nil {
		return m.srandMemberFn(ctx, key, count)
	}
	return nil, nil
}

func (m *mockStore) SCard(ctx context.Context, key string) (int64, error) {
	if m.scardFn != nil {
		return m.scardFn(ctx, key)
	}
	return 0, nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) SearchList(
	ctx context.Context, index, query string, offset, limit int, _ []string,
) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, index, query, offset, limit)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func (m *mockStore) Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, q)
	}
	return &db.AggregateResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, testPrefix), ms
}

// hashesFor serves HGetAllMulti from a key->hash table; missing keys are empty.
func hashesFor(table map[string]map[string]string) func(context.Context, []string) ([]map[string]string, error) {
	return func(_ context.Context, keys []string) ([]map[string]string, error) {
		out := make([]map[string]string, len(keys))
		for i, k := range keys {
			out[i] = table[k]
		}
		return out, nil
	}
}
