package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"github.com/marquee-ott/marquee/internal/clock"
	"github.com/marquee-ott/marquee/internal/shared"
)

// HistoryLimit caps the number of history rows returned to a user.
const HistoryLimit = 50

// MediaPurger schedules deletion of stored objects that are no longer referenced.
type MediaPurger interface {
	PurgeMedia(ctx context.Context, reason string, keys ...string) error
}

// Service implements catalog use-cases.
type Service struct {
	repo     Repository
	cache    *Cache
	audit    shared.AuditRecorder
	purger   MediaPurger
	clock    clock.Clock
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs the catalog service. cache, audit and purger are optional.
func NewService(repo Repository, cache *Cache, audit shared.AuditRecorder, purger MediaPurger, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		audit:    audit,
		purger:   purger,
		clock:    clk,
		logger:   logger,
		validate: validator.New(),
	}
}

// NormalizeTitle trims and NFC-normalises a title.
func NormalizeTitle(title string) string {
	return norm.NFC.String(strings.TrimSpace(title))
}

// ListMovies returns the full catalog ordered by id.
func (s *Service) ListMovies(ctx context.Context) ([]Movie, error) {
	var movies []Movie
	err := s.cached(ctx, keyAll(), &movies, func(ctx context.Context) (any, error) {
		return s.repo.List(ctx, 0, 0)
	})
	if movies == nil {
		movies = []Movie{}
	}
	return movies, err
}

// PageMovies returns one admin listing page.
func (s *Service) PageMovies(ctx context.Context, page, perPage int) ([]Movie, shared.Pagination, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, perPage, total)
	movies, err := s.repo.List(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return movies, p, nil
}

// CountMovies returns the number of catalog entries.
func (s *Service) CountMovies(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// GetMovie loads one movie.
func (s *Service) GetMovie(ctx context.Context, id int64) (Movie, error) {
	var movie Movie
	err := s.cached(ctx, keyMovie(id), &movie, func(ctx context.Context) (any, error) {
		return s.repo.Get(ctx, id)
	})
	return movie, err
}

// LatestMovies returns the n newest movies.
func (s *Service) LatestMovies(ctx context.Context, n int) ([]Movie, error) {
	var movies []Movie
	err := s.cached(ctx, keyLatest(n), &movies, func(ctx context.Context) (any, error) {
		return s.repo.Latest(ctx, n)
	})
	if movies == nil {
		movies = []Movie{}
	}
	return movies, err
}

// CreateMovie validates input and stores a new movie.
func (s *Service) CreateMovie(ctx context.Context, actorID int64, in MovieInput, media MediaChange) (Movie, error) {
	in.Title = NormalizeTitle(in.Title)
	if err := s.validate.Struct(in); err != nil {
		return Movie{}, fmt.Errorf("%w: %w", ErrInvalidMovie, err)
	}
	now := s.clock.Now()
	movie, err := s.repo.Create(ctx, Movie{
		Title:        in.Title,
		Description:  in.Description,
		ThumbnailKey: media.ThumbnailKey,
		VideoKey:     media.VideoKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Movie{}, err
	}
	s.afterWrite(ctx, actorID, "movie.create", movie)
	return movie, nil
}

// UpdateMovie replaces text fields and, when given, media objects. Replaced
// objects are purged.
func (s *Service) UpdateMovie(ctx context.Context, actorID, id int64, in MovieInput, media MediaChange) (Movie, error) {
	in.Title = NormalizeTitle(in.Title)
	if err := s.validate.Struct(in); err != nil {
		return Movie{}, fmt.Errorf("%w: %w", ErrInvalidMovie, err)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Movie{}, err
	}
	next := current
	next.Title = in.Title
	next.Description = in.Description
	next.UpdatedAt = s.clock.Now()

	var stale []string
	if media.ThumbnailKey != "" {
		stale = append(stale, current.ThumbnailKey)
		next.ThumbnailKey = media.ThumbnailKey
	}
	if media.VideoKey != "" {
		stale = append(stale, current.VideoKey)
		next.VideoKey = media.VideoKey
	}

	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		return Movie{}, err
	}
	s.afterWrite(ctx, actorID, "movie.update", updated)
	s.purge(ctx, "movie.update", stale...)
	return updated, nil
}

// DeleteMovie removes a movie and purges its media.
func (s *Service) DeleteMovie(ctx context.Context, actorID, id int64) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.afterWrite(ctx, actorID, "movie.delete", deleted)
	s.purge(ctx, "movie.delete", deleted.ThumbnailKey, deleted.VideoKey)
	return nil
}

// DiscardUploads purges objects that were stored for a write that failed.
func (s *Service) DiscardUploads(ctx context.Context, media MediaChange) {
	s.purge(ctx, "upload.discard", media.ThumbnailKey, media.VideoKey)
}

// AddToWatchlist saves movieID for the user.
func (s *Service) AddToWatchlist(ctx context.Context, userID, movieID int64) error {
	return s.repo.AddToWatchlist(ctx, userID, movieID, s.clock.Now())
}

// RemoveFromWatchlist drops movieID from the user's watchlist.
func (s *Service) RemoveFromWatchlist(ctx context.Context, userID, movieID int64) error {
	return s.repo.RemoveFromWatchlist(ctx, userID, movieID)
}

// Watchlist lists the user's saved movies.
func (s *Service) Watchlist(ctx context.Context, userID int64) ([]Movie, error) {
	movies, err := s.repo.ListWatchlist(ctx, userID)
	if movies == nil {
		movies = []Movie{}
	}
	return movies, err
}

// RecordView counts a view and appends it to the user's history. Cached
// listings pick up the new counter once their TTL lapses.
func (s *Service) RecordView(ctx context.Context, userID, movieID int64) error {
	return s.repo.RecordView(ctx, userID, movieID, s.clock.Now())
}

// History lists the user's latest views.
func (s *Service) History(ctx context.Context, userID int64) ([]HistoryEntry, error) {
	entries, err := s.repo.ListHistory(ctx, userID, HistoryLimit)
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return entries, err
}

func (s *Service) cached(ctx context.Context, parts []string, dest any, loader func(context.Context) (any, error)) error {
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("catalog cache unavailable", slog.Any("error", err))
		return s.load(ctx, dest, loader)
	}
	err = s.cache.FetchJSON(ctx, key, dest, func(ctx context.Context) (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, &loaderError{err: err}
		}
		return value, nil
	})
	if err == nil {
		return nil
	}
	var le *loaderError
	if errors.As(err, &le) {
		return le.err
	}
	s.logger.Warn("catalog cache fetch failed", slog.String("key", key), slog.Any("error", err))
	return s.load(ctx, dest, loader)
}

// load bypasses the cache entirely.
func (s *Service) load(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	return (*Cache)(nil).FetchJSON(ctx, "", dest, loader)
}

type loaderError struct{ err error }

func (e *loaderError) Error() string { return e.err.Error() }
func (e *loaderError) Unwrap() error { return e.err }

func (s *Service) afterWrite(ctx context.Context, actorID int64, action string, movie Movie) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("catalog cache bump failed", slog.Any("error", err))
	}
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "movie",
		EntityID: strconv.FormatInt(movie.ID, 10),
		Meta:     map[string]any{"title": movie.Title},
		At:       s.clock.Now(),
	})
	if err != nil {
		s.logger.Warn("catalog audit failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) purge(ctx context.Context, reason string, keys ...string) {
	if s.purger == nil {
		return
	}
	if err := s.purger.PurgeMedia(ctx, reason, keys...); err != nil {
		s.logger.Error("enqueue media purge failed", slog.String("reason", reason), slog.Any("error", err))
	}
}
