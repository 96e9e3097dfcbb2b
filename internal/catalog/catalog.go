// Package catalog fronts the external movie catalog with an explicit,
// injectable read-through cache: empty at startup, refreshed on TTL
// expiry or miss, invalidated only by an explicit re-fetch. A persisted
// last-known-good snapshot keeps reads alive when the upstream is down.
package catalog

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
	"github.com/robertarktes/show-schedules-and-bookings/internal/observability"
)

// Source labels on Result tell callers where the data came from;
// SourceSnapshot means the upstream fetch failed and the persisted copy
// was served instead.
const (
	SourceCache    = "cache"
	SourceFetch    = "fetch"
	SourceSnapshot = "snapshot"
)

type Result struct {
	Movie  domain.MovieRef
	Source string
}

type Cache interface {
	GetMovie(ctx context.Context, movieID string) (*domain.MovieRef, error)
	SetMovie(ctx context.Context, movie domain.MovieRef, ttl time.Duration) error
	InvalidateMovie(ctx context.Context, movieID string) error
}

type Snapshots interface {
	Save(ctx context.Context, movie domain.MovieRef) error
	Get(ctx context.Context, movieID string) (domain.MovieRef, error)
	List(ctx context.Context) ([]domain.MovieRef, error)
}

type Service struct {
	source domain.MovieSource
	cache  Cache
	snaps  Snapshots
	ttl    time.Duration
	logger observability.Logger
}

func NewService(source domain.MovieSource, cache Cache, snaps Snapshots, ttl time.Duration, logger observability.Logger) *Service {
	return &Service{source: source, cache: cache, snaps: snaps, ttl: ttl, logger: logger}
}

// Get resolves a movie through cache, then upstream, then the persisted
// snapshot. Only when all three miss does the caller see an error.
func (s *Service) Get(ctx context.Context, movieID string) (Result, error) {
	if cached, err := s.cache.GetMovie(ctx, movieID); err == nil && cached != nil {
		return Result{Movie: *cached, Source: SourceCache}, nil
	} else if err != nil {
		s.logger.WithError(err).Warn("catalog cache read failed")
	}

	movie, err := s.source.FetchMovie(ctx, movieID)
	if err == nil {
		movie.FetchedAt = time.Now().UTC()
		if cerr := s.cache.SetMovie(ctx, movie, s.ttl); cerr != nil {
			s.logger.WithError(cerr).Warn("catalog cache write failed")
		}
		if serr := s.snaps.Save(ctx, movie); serr != nil {
			s.logger.WithError(serr).Warn("catalog snapshot write failed")
		}
		return Result{Movie: movie, Source: SourceFetch}, nil
	}
	s.logger.WithError(err).WithField("movie_id", movieID).Warn("catalog fetch failed, trying snapshot")

	snap, serr := s.snaps.Get(ctx, movieID)
	if serr != nil {
		return Result{}, errors.CombineErrors(err, serr)
	}
	observability.CatalogFallbacksTotal.Inc()
	return Result{Movie: snap, Source: SourceSnapshot}, nil
}

// Refresh is the explicit re-fetch path, the only action besides TTL
// expiry that replaces a cached entry.
func (s *Service) Refresh(ctx context.Context, movieID string) (Result, error) {
	if err := s.cache.InvalidateMovie(ctx, movieID); err != nil {
		s.logger.WithError(err).Warn("catalog cache invalidate failed")
	}
	return s.Get(ctx, movieID)
}

// MovieTitle is a best-effort lookup for payment descriptions; it never
// fails the reservation over catalog trouble.
func (s *Service) MovieTitle(ctx context.Context, movieID string) string {
	res, err := s.Get(ctx, movieID)
	if err != nil || res.Movie.Title == "" {
		return movieID
	}
	return res.Movie.Title
}

// NowPlaying lists every movie known to the snapshot store, with the
// source indicator the original listing API exposed.
func (s *Service) NowPlaying(ctx context.Context) ([]domain.MovieRef, string, error) {
	movies, err := s.snaps.List(ctx)
	if err != nil {
		return nil, "", err
	}
	return movies, SourceSnapshot, nil
}
