// Package trending holds the derived album rankings surfaced on discovery.
package trending

import (
	"math"
	"time"

	"github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/pipeline"
)

// Source records how a trending list was produced.
type Source string

// Trending sources.
const (
	Ranked  Source = "ranked"
	Sampled Source = "sample"
)

// Document keys produced by the trending pipelines.
const (
	KeyTitle          = "title"
	KeyPerformerName  = "performerName"
	KeyCoverArt       = "coverArt"
	KeyGenre          = "genre"
	KeyReleaseDate    = "releaseDate"
	KeyTotalPlays     = "totalPlays"
	KeyAvgReleaseDate = "avgReleaseDate"
)

// Candidate is one album in the trending list. It is derived per request
// and never stored.
type Candidate struct {
	AlbumRef      string
	Title         string
	PerformerName string
	CoverArt      string
	Genre         []string
	ReleaseDate   *time.Time
	TotalPlays    int64
	// AvgReleaseAt is the mean release instant of the album's tracks; nil
	// for sampled candidates.
	AvgReleaseAt *time.Time
}

// Window returns the cutoff instant months calendar months before now.
func Window(now time.Time, months int) time.Time {
	return now.AddDate(0, -months, 0)
}

// FromDoc maps a projected pipeline document to a candidate.
func FromDoc(d pipeline.Doc) Candidate {
	c := Candidate{
		AlbumRef:      str(d[pipeline.IDField]),
		Title:         str(d[KeyTitle]),
		PerformerName: str(d[KeyPerformerName]),
		CoverArt:      str(d[KeyCoverArt]),
	}
	if l, ok := d[KeyGenre].([]any); ok {
		c.Genre = make([]string, 0, len(l))
		for _, g := range l {
			if s, ok := g.(string); ok {
				c.Genre = append(c.Genre, s)
			}
		}
	}
	// Sums of integer play counts come back as float64 from every backend.
	if n, ok := pipeline.Number(d[KeyTotalPlays]); ok && n > 0 {
		c.TotalPlays = int64(math.Round(n))
	}
	if n, ok := pipeline.Number(d[KeyReleaseDate]); ok {
		t := catalog.FromMillis(n)
		c.ReleaseDate = &t
	}
	if n, ok := pipeline.Number(d[KeyAvgReleaseDate]); ok {
		t := catalog.FromMillis(n)
		c.AvgReleaseAt = &t
	}
	return c
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
