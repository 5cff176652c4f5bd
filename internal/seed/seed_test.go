package seed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/repository/catalogmem"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

const fixtureYAML = `
accounts:
  - handle: dj_test
    fullName: Test Account
performers:
  - id: p-muse
    name: Muse
    genres: [rock]
albums:
  - id: a-drones
    title: Drones
    performer: p-muse
    releaseDate: now-10d
    genre: [rock]
tracks:
  - id: t-dead
    title: Dead Inside
    performer: p-muse
    album: a-drones
    plays: 1200
    releaseDate: now-10d
  - id: t-psycho
    title: Psycho
    performer: p-muse
    album: a-drones
    plays: 800
    releaseDate: 2025-06-01
collections:
  - name: Gym
    owner: u-1
    tracks: [t-dead, t-psycho]
    isPublic: true
`

// --- Mocks ---

type mockWriter struct {
	ensureErr error
	putErr    error
	ensured   bool
	puts      [][]catalog.Record
}

func (m *mockWriter) EnsureSchema(context.Context) error {
	m.ensured = true
	return m.ensureErr
}

func (m *mockWriter) Put(_ context.Context, recs ...catalog.Record) error {
	m.puts = append(m.puts, recs)
	return m.putErr
}

// --- Tests ---

func TestRecords(t *testing.T) {
	f, err := Parse([]byte(fixtureYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	recs, err := f.Records(now)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 6 {
		t.Fatalf("expected 6 records, got %d", len(recs))
	}

	byID := map[string]catalog.Record{}
	for _, r := range recs {
		byID[r.ID()] = r
	}
	album, ok := byID["a-drones"]
	if !ok {
		t.Fatal("album a-drones missing")
	}
	if got, _ := album.Time("releaseDate"); !got.Equal(now.AddDate(0, 0, -10)) {
		t.Errorf("relative releaseDate = %v", got)
	}
	if got, _ := byID["t-psycho"].Time("releaseDate"); !got.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("absolute releaseDate = %v", got)
	}
	if byID["t-dead"].Number("plays") != 1200 {
		t.Errorf("plays = %v", byID["t-dead"].Number("plays"))
	}

	// Accounts come first and get a generated id.
	if recs[0].Kind() != catalog.Account {
		t.Fatalf("first record kind = %s", recs[0].Kind())
	}
	if _, err := uuid.Parse(recs[0].ID()); err != nil {
		t.Errorf("generated id %q is not a uuid: %v", recs[0].ID(), err)
	}
}

func TestRecords_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "tracks:\n  - title: x\n    bpm: 120\n", `unknown field "bpm"`},
		{"bad number", "tracks:\n  - title: x\n    plays: lots\n", "tracks[0]"},
		{"bad relative time", "albums:\n  - title: x\n    releaseDate: now+3d\n", "relative time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			_, err = f.Records(now)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_Batches(t *testing.T) {
	f, err := Parse([]byte(fixtureYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	w := &mockWriter{}

	res, err := Load(context.Background(), w, f, now, 4, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !w.ensured {
		t.Error("schema was not ensured")
	}
	if len(w.puts) != 2 || len(w.puts[0]) != 4 || len(w.puts[1]) != 2 {
		t.Errorf("batches = %d", len(w.puts))
	}
	if res.Total() != 6 || res.Loaded[catalog.Track] != 2 {
		t.Errorf("result = %+v", res.Loaded)
	}
}

func TestLoad_WriterErrors(t *testing.T) {
	f, _ := Parse([]byte(fixtureYAML))

	w := &mockWriter{ensureErr: errors.New("no index")}
	if _, err := Load(context.Background(), w, f, now, 0, nil); err == nil || len(w.puts) != 0 {
		t.Fatalf("expected schema failure before writes, got %v", err)
	}

	sentinel := errors.New("write failed")
	w = &mockWriter{putErr: sentinel}
	if _, err := Load(context.Background(), w, f, now, 0, nil); !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped put error, got %v", err)
	}
}

func TestLoad_IntoMemoryStore(t *testing.T) {
	f, _ := Parse([]byte(fixtureYAML))
	store := catalogmem.New()

	if _, err := Load(context.Background(), store, f, now, 0, nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	n, err := store.CountByField(context.Background(), catalog.Track, "title", "in")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("tracks matching %q = %d, want 1", "in", n)
	}
}
