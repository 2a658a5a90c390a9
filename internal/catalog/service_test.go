package catalog_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquee-ott/marquee/internal/catalog"
	"github.com/marquee-ott/marquee/internal/clock"
)

var clockStart = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(repo catalog.Repository, cache *catalog.Cache, purger catalog.MediaPurger, audit *recordingAudit) *catalog.Service {
	return catalog.NewService(repo, cache, audit, purger, clock.NewManual(clockStart), nil)
}

func newCache(t *testing.T) (*catalog.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return catalog.NewCache(client, time.Minute), mr
}

func TestTruncateCountsCharacters(t *testing.T) {
	assert.Equal(t, "short", catalog.Truncate("short", 120))
	long := strings.Repeat("é", 130)
	got := catalog.Truncate(long, 120)
	assert.Equal(t, 120, len([]rune(got)))
	assert.Equal(t, strings.Repeat("é", 120), got)
}

func TestCreateMovieNormalisesAndAudits(t *testing.T) {
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	svc := newService(repo, nil, nil, audit)

	movie, err := svc.CreateMovie(context.Background(), 7, catalog.MovieInput{Title: "  Café Society ", Description: "d"}, catalog.MediaChange{ThumbnailKey: "thumbnails/a.png"})
	require.NoError(t, err)

	assert.Equal(t, "Café Society", movie.Title)
	assert.Equal(t, "thumbnails/a.png", movie.ThumbnailKey)
	assert.Equal(t, clockStart, movie.CreatedAt)
	assert.Equal(t, []string{"movie.create"}, audit.actions())
	assert.Equal(t, int64(7), audit.logs[0].ActorID)
}

func TestCreateMovieRejectsBlankTitle(t *testing.T) {
	svc := newService(newMemoryRepo(), nil, nil, nil)
	_, err := svc.CreateMovie(context.Background(), 1, catalog.MovieInput{Title: "   "}, catalog.MediaChange{})
	assert.ErrorIs(t, err, catalog.ErrInvalidMovie)
}

func TestUpdateMoviePurgesReplacedMedia(t *testing.T) {
	repo := newMemoryRepo(catalog.Movie{ID: 1, Title: "Old", ThumbnailKey: "thumbnails/old.png", VideoKey: "videos/old.mp4"})
	purger := &recordingPurger{}
	svc := newService(repo, nil, purger, &recordingAudit{})

	updated, err := svc.UpdateMovie(context.Background(), 1, 1, catalog.MovieInput{Title: "New"}, catalog.MediaChange{ThumbnailKey: "thumbnails/new.png"})
	require.NoError(t, err)

	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "thumbnails/new.png", updated.ThumbnailKey)
	assert.Equal(t, "videos/old.mp4", updated.VideoKey)
	assert.Equal(t, []string{"thumbnails/old.png"}, purger.keys)
}

func TestUpdateMissingMovie(t *testing.T) {
	svc := newService(newMemoryRepo(), nil, nil, nil)
	_, err := svc.UpdateMovie(context.Background(), 1, 99, catalog.MovieInput{Title: "x"}, catalog.MediaChange{})
	assert.ErrorIs(t, err, catalog.ErrMovieNotFound)
}

func TestDeleteMoviePurgesAllMedia(t *testing.T) {
	repo := newMemoryRepo(catalog.Movie{ID: 3, Title: "Gone", ThumbnailKey: "thumbnails/g.png", VideoKey: "videos/g.mp4"})
	purger := &recordingPurger{}
	audit := &recordingAudit{}
	svc := newService(repo, nil, purger, audit)

	require.NoError(t, svc.DeleteMovie(context.Background(), 1, 3))
	assert.ElementsMatch(t, []string{"thumbnails/g.png", "videos/g.mp4"}, purger.keys)
	assert.Equal(t, []string{"movie.delete"}, audit.actions())

	assert.ErrorIs(t, svc.DeleteMovie(context.Background(), 1, 3), catalog.ErrMovieNotFound)
}

func TestGetMovieServedFromCacheUntilWrite(t *testing.T) {
	repo := newMemoryRepo(catalog.Movie{ID: 1, Title: "One"})
	cache, _ := newCache(t)
	svc := newService(repo, cache, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		movie, err := svc.GetMovie(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "One", movie.Title)
	}
	assert.Equal(t, 1, repo.gets)

	_, err := svc.UpdateMovie(ctx, 1, 1, catalog.MovieInput{Title: "Uno"}, catalog.MediaChange{})
	require.NoError(t, err)
	gets := repo.gets

	movie, err := svc.GetMovie(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Uno", movie.Title)
	assert.Equal(t, gets+1, repo.gets)
}

func TestGetMovieFallsBackWhenCacheDown(t *testing.T) {
	repo := newMemoryRepo(catalog.Movie{ID: 1, Title: "One"})
	cache, mr := newCache(t)
	mr.Close()
	svc := newService(repo, cache, nil, nil)

	movie, err := svc.GetMovie(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "One", movie.Title)

	_, err = svc.GetMovie(context.Background(), 2)
	assert.ErrorIs(t, err, catalog.ErrMovieNotFound)
}

// readOnlyHook rejects cache writes the way a Redis at maxmemory does.
type readOnlyHook struct{}

func (readOnlyHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (readOnlyHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "set" {
			err := errors.New("OOM command not allowed when used memory > 'maxmemory'")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (readOnlyHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestGetMovieLoadsOnceWhenCacheWriteFails(t *testing.T) {
	repo := newMemoryRepo(catalog.Movie{ID: 1, Title: "One"})
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	client.AddHook(readOnlyHook{})
	cache := catalog.NewCache(client, time.Minute).WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc := newService(repo, cache, nil, nil)

	movie, err := svc.GetMovie(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "One", movie.Title)
	assert.Equal(t, 1, repo.gets)
}

func TestRecordViewAppendsHistory(t *testing.T) {
	repo := newMemoryRepo(catalog.Movie{ID: 1, Title: "One"}, catalog.Movie{ID: 2, Title: "Two"})
	svc := newService(repo, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.RecordView(ctx, 5, 1))
	require.NoError(t, svc.RecordView(ctx, 5, 2))
	require.NoError(t, svc.RecordView(ctx, 6, 2))
	assert.ErrorIs(t, svc.RecordView(ctx, 5, 42), catalog.ErrMovieNotFound)

	history, err := svc.History(ctx, 5)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(2), history[0].Movie.ID)
	assert.Equal(t, int64(2), history[0].Movie.ViewCount)
	assert.Equal(t, clockStart, history[0].ViewedAt)
}

func TestPageMovies(t *testing.T) {
	var movies []catalog.Movie
	for i := int64(1); i <= 45; i++ {
		movies = append(movies, catalog.Movie{ID: i, Title: "m"})
	}
	svc := newService(newMemoryRepo(movies...), nil, nil, nil)

	page, pagination, err := svc.PageMovies(context.Background(), 3, 20)
	require.NoError(t, err)
	assert.Len(t, page, 5)
	assert.Equal(t, int64(41), page[0].ID)
	assert.Equal(t, 3, pagination.TotalPages)
	assert.False(t, pagination.HasNext())
}
