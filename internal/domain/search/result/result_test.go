package result

import (
	"testing"

	"github.com/kailas-cloud/musedex/internal/domain/catalog"
)

func TestNew(t *testing.T) {
	rec := catalog.Reconstruct(catalog.Track, "t1", map[string]any{"title": "Hysteria"})
	r := New(catalog.Track, rec)

	if r.Kind() != catalog.Track {
		t.Errorf("Kind() = %q", r.Kind())
	}
	if r.Record().ID() != "t1" {
		t.Errorf("Record().ID() = %q", r.Record().ID())
	}
	if r.Display() != "Hysteria" {
		t.Errorf("Display() = %q", r.Display())
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{95, 10, 10},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.total, tt.size); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestNewPage_EmptyResults(t *testing.T) {
	p := NewPage(nil, 0, 1, 10)
	if p.Results == nil || len(p.Results) != 0 {
		t.Errorf("Results = %v, want empty non-nil", p.Results)
	}
	if p.TotalPages != 0 {
		t.Errorf("TotalPages = %d", p.TotalPages)
	}
}
