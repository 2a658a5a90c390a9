package catalog_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquee-ott/marquee/internal/catalog"
)

type movieJSON struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ViewCount   int64  `json:"view_count"`
	Thumbnail   string `json:"thumbnail"`
	Video       string `json:"video"`
}

func TestAPIListAndGetMovies(t *testing.T) {
	f := newFixture(t, "", catalog.Movie{ID: 1, Title: "One", ThumbnailKey: "thumbnails/1.png", VideoKey: "videos/1.mp4", ViewCount: 3})

	res := f.do(httptest.NewRequest(http.MethodGet, "/api/movies", nil), nil)
	require.Equal(t, http.StatusOK, res.Code)
	movies := decode[[]movieJSON](t, res)
	require.Len(t, movies, 1)
	assert.Equal(t, movieJSON{ID: 1, Title: "One", ViewCount: 3, Thumbnail: "/media/thumbnails/1.png", Video: "/media/videos/1.mp4"}, movies[0])

	res = f.do(httptest.NewRequest(http.MethodGet, "/api/movies/1", nil), nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "One", decode[movieJSON](t, res).Title)

	res = f.do(httptest.NewRequest(http.MethodGet, "/api/movies/404", nil), nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = f.do(httptest.NewRequest(http.MethodGet, "/api/movies/abc", nil), nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestAPIEmptyCatalogIsEmptyArray(t *testing.T) {
	f := newFixture(t, "")
	res := f.do(httptest.NewRequest(http.MethodGet, "/api/movies", nil), nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `[]`, res.Body.String())
}

func TestAPIHomeMovies(t *testing.T) {
	long := strings.Repeat("x", 200)
	f := newFixture(t, "",
		catalog.Movie{ID: 1, Title: "A"},
		catalog.Movie{ID: 2, Title: "B"},
		catalog.Movie{ID: 3, Title: "C"},
		catalog.Movie{ID: 4, Title: "D", Description: long, ThumbnailKey: "thumbnails/d.png"},
	)
	req := httptest.NewRequest(http.MethodGet, "/api/home-movies", nil)
	req.Host = "catalog.test"
	res := f.do(req, nil)
	require.Equal(t, http.StatusOK, res.Code)

	payload := decode[struct {
		Movies []struct {
			ID          int64  `json:"id"`
			Description string `json:"description"`
			Thumbnail   string `json:"thumbnail"`
		} `json:"movies"`
	}](t, res)
	require.Len(t, payload.Movies, 3)
	assert.Equal(t, int64(4), payload.Movies[0].ID)
	assert.Len(t, payload.Movies[0].Description, catalog.HomeDescriptionLimit)
	assert.Equal(t, "http://catalog.test/media/thumbnails/d.png", payload.Movies[0].Thumbnail)
	assert.Equal(t, "", payload.Movies[1].Thumbnail)
}

func TestAPIHomeMoviesUsesConfiguredBaseURL(t *testing.T) {
	f := newFixture(t, "https://cdn.example.com/", catalog.Movie{ID: 1, Title: "A", ThumbnailKey: "thumbnails/a.png"})
	res := f.do(httptest.NewRequest(http.MethodGet, "/api/home-movies", nil), nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"thumbnail":"https://cdn.example.com/media/thumbnails/a.png"`)
}

func TestAPIWatchlistRequiresUser(t *testing.T) {
	f := newFixture(t, "", catalog.Movie{ID: 1, Title: "A"})
	res := f.do(httptest.NewRequest(http.MethodPost, "/api/movies/1/watchlist", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	res = f.do(httptest.NewRequest(http.MethodGet, "/api/history", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAPIWatchlistFlow(t *testing.T) {
	f := newFixture(t, "", catalog.Movie{ID: 1, Title: "A"}, catalog.Movie{ID: 2, Title: "B"})

	for i := 0; i < 2; i++ {
		res := f.do(httptest.NewRequest(http.MethodPost, "/api/movies/2/watchlist", nil), viewer)
		require.Equal(t, http.StatusNoContent, res.Code)
	}
	res := f.do(httptest.NewRequest(http.MethodPost, "/api/movies/9/watchlist", nil), viewer)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = f.do(httptest.NewRequest(http.MethodGet, "/api/watchlist", nil), viewer)
	require.Equal(t, http.StatusOK, res.Code)
	list := decode[[]movieJSON](t, res)
	require.Len(t, list, 1)
	assert.Equal(t, "B", list[0].Title)

	res = f.do(httptest.NewRequest(http.MethodDelete, "/api/movies/2/watchlist", nil), viewer)
	require.Equal(t, http.StatusNoContent, res.Code)
	res = f.do(httptest.NewRequest(http.MethodGet, "/api/watchlist", nil), viewer)
	assert.JSONEq(t, `[]`, res.Body.String())
}

func TestAPIRecordViewAndHistory(t *testing.T) {
	f := newFixture(t, "", catalog.Movie{ID: 1, Title: "A"})

	res := f.do(httptest.NewRequest(http.MethodPost, "/api/movies/1/views", nil), viewer)
	require.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, int64(1), f.repo.movies[1].ViewCount)

	res = f.do(httptest.NewRequest(http.MethodPost, "/api/movies/8/views", nil), viewer)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = f.do(httptest.NewRequest(http.MethodGet, "/api/history", nil), viewer)
	require.Equal(t, http.StatusOK, res.Code)
	history := decode[[]struct {
		Movie    movieJSON `json:"movie"`
		ViewedAt string    `json:"viewed_at"`
	}](t, res)
	require.Len(t, history, 1)
	assert.Equal(t, int64(1), history[0].Movie.ID)
	assert.Equal(t, "2025-03-01T12:00:00Z", history[0].ViewedAt)
}
