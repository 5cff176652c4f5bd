package trending

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/musedex/internal/domain"
	"github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/pipeline"
	domtrend "github.com/kailas-cloud/musedex/internal/domain/trending"
	"github.com/kailas-cloud/musedex/internal/logger"
	"github.com/kailas-cloud/musedex/internal/metrics"
)

// Defaults for the trending list.
const (
	DefaultLimit        = 10
	DefaultWindowMonths = 1
)

// Lookup aliases used inside the pipelines.
const (
	tracksAs    = "trackData"
	performerAs = "performerData"
)

// Config tunes the trending list.
type Config struct {
	Limit        int
	WindowMonths int
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Service computes the trending albums.
type Service struct {
	agg    Aggregator
	limit  int
	months int
	now    func() time.Time
}

// New creates a trending service.
func New(agg Aggregator, cfg Config) *Service {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.WindowMonths <= 0 {
		cfg.WindowMonths = DefaultWindowMonths
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{agg: agg, limit: cfg.Limit, months: cfg.WindowMonths, now: cfg.Now}
}

// TopPicks returns up to the configured number of albums ranked by total
// track plays among albums whose tracks were, on average, released inside
// the window. When no album qualifies a fresh random sample is returned.
func (s *Service) TopPicks(ctx context.Context) ([]domtrend.Candidate, error) {
	log := logger.FromContext(ctx)
	since := domtrend.Window(s.now().UTC(), s.months)

	docs, err := s.agg.Aggregate(ctx, s.ranked(since))
	if err != nil {
		log.Error("Trending aggregation failed", zap.Error(err))
		return nil, domain.NewStoreError("trending", err)
	}

	source := domtrend.Ranked
	if len(docs) == 0 {
		source = domtrend.Sampled
		docs, err = s.agg.Aggregate(ctx, s.sampled())
		if err != nil {
			log.Error("Trending fallback sample failed", zap.Error(err))
			return nil, domain.NewStoreError("trending sample", err)
		}
	}
	if len(docs) > s.limit {
		docs = docs[:s.limit]
	}

	metrics.TrendingSourceTotal.WithLabelValues(string(source)).Inc()
	log.Debug("Trending albums computed",
		zap.String("source", string(source)),
		zap.Time("since", since),
		zap.Int("count", len(docs)),
	)

	out := make([]domtrend.Candidate, len(docs))
	for i, d := range docs {
		out[i] = domtrend.FromDoc(d)
	}
	return out, nil
}

func (s *Service) ranked(since time.Time) *pipeline.Pipeline {
	return pipeline.From(catalog.Album).
		Lookup(catalog.Track, pipeline.IDField, "album", tracksAs).
		Sum(tracksAs, "plays", domtrend.KeyTotalPlays).
		Avg(tracksAs, "releaseDate", domtrend.KeyAvgReleaseDate).
		Since(domtrend.KeyAvgReleaseDate, since).
		SortDesc(domtrend.KeyTotalPlays).
		Limit(s.limit).
		Lookup(catalog.Performer, "performer", pipeline.IDField, performerAs).
		Project(append(albumFields(),
			pipeline.Field(domtrend.KeyTotalPlays, domtrend.KeyTotalPlays),
			pipeline.Field(domtrend.KeyAvgReleaseDate, domtrend.KeyAvgReleaseDate),
		)...).
		MustBuild()
}

func (s *Service) sampled() *pipeline.Pipeline {
	return pipeline.From(catalog.Album).
		Sample(s.limit).
		Lookup(catalog.Performer, "performer", pipeline.IDField, performerAs).
		Project(albumFields()...).
		MustBuild()
}

func albumFields() []pipeline.Projection {
	return []pipeline.Projection{
		pipeline.Field(domtrend.KeyTitle, "title"),
		pipeline.Field(domtrend.KeyPerformerName, performerAs+".0.name"),
		pipeline.Field(domtrend.KeyCoverArt, "coverArt"),
		pipeline.Field(domtrend.KeyGenre, "genre"),
		pipeline.Field(domtrend.KeyReleaseDate, "releaseDate"),
	}
}
