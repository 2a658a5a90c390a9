package catalog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquee-ott/marquee/internal/catalog"
	"github.com/marquee-ott/marquee/internal/shared"
	"github.com/marquee-ott/marquee/internal/storage"
	"github.com/marquee-ott/marquee/internal/view"
	_ "github.com/marquee-ott/marquee/testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type staticUsers int

func (n staticUsers) CountUsers(ctx context.Context) (int, error) { return int(n), nil }

type fixture struct {
	repo      *memoryRepo
	purger    *recordingPurger
	service   *catalog.Service
	handler   *catalog.Handler
	mediaRoot string
	router    chi.Router
}

func newFixture(t *testing.T, baseURL string, movies ...catalog.Movie) *fixture {
	t.Helper()
	repo := newMemoryRepo(movies...)
	purger := &recordingPurger{}
	svc := newService(repo, nil, purger, &recordingAudit{})
	root := t.TempDir()
	store, err := storage.NewFilesystemStore(root, "/media")
	require.NoError(t, err)
	templates, err := view.NewEngine()
	require.NoError(t, err)
	h := catalog.NewHandler(nil, svc, storage.NewUploader(store, 1<<20), staticUsers(12), templates, shared.NewCSRFManager("x"), baseURL)

	r := chi.NewRouter()
	r.Get("/home", h.Home)
	r.Route("/admin", h.MountAdminRoutes)
	r.Route("/api", h.MountAPIRoutes)
	return &fixture{repo: repo, purger: purger, service: svc, handler: h, mediaRoot: root, router: r}
}

func (f *fixture) do(req *http.Request, principal *shared.Principal) *httptest.ResponseRecorder {
	ctx := req.Context()
	if principal != nil {
		ctx = shared.ContextWithPrincipal(ctx, principal)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req.WithContext(ctx))
	return res
}

var (
	staff  = &shared.Principal{ID: 1, Email: "admin@example.com", IsStaff: true}
	viewer = &shared.Principal{ID: 5, Email: "viewer@example.com"}
)

func multipartRequest(t *testing.T, target string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, content := range files {
		part, err := mw.CreateFormFile(field, field+".bin")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDashboardCounts(t *testing.T) {
	f := newFixture(t, "", catalog.Movie{ID: 1, Title: "A"}, catalog.Movie{ID: 2, Title: "B"})
	res := f.do(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil), staff)

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, `<span class="value">12</span><span class="label">Users</span>`)
	assert.Contains(t, body, `<span class="value">2</span><span class="label">Movies</span>`)
}

func TestAdminCreateMovieStoresThumbnail(t *testing.T) {
	f := newFixture(t, "")
	req := multipartRequest(t, "/admin/movies/new", map[string]string{"title": "Arrival", "description": "Linguist meets heptapods."}, map[string][]byte{"thumbnail": pngHeader})

	res := f.do(req, staff)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/admin/movies", res.Header().Get("Location"))

	movies, err := f.service.ListMovies(context.Background())
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "Arrival", movies[0].Title)
	require.True(t, strings.HasPrefix(movies[0].ThumbnailKey, "thumbnails/"))
	assert.True(t, strings.HasSuffix(movies[0].ThumbnailKey, ".png"))

	_, err = os.Stat(filepath.Join(f.mediaRoot, filepath.FromSlash(movies[0].ThumbnailKey)))
	assert.NoError(t, err)
}

func TestAdminCreateMovieRejectsWrongFileType(t *testing.T) {
	f := newFixture(t, "")
	req := multipartRequest(t, "/admin/movies/new", map[string]string{"title": "Arrival"}, map[string][]byte{"thumbnail": []byte("plain text, not an image")})

	res := f.do(req, staff)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Unsupported file type.")
	assert.Equal(t, 0, len(f.repo.movies))
}

func TestAdminCreateMovieRequiresTitle(t *testing.T) {
	f := newFixture(t, "")
	req := multipartRequest(t, "/admin/movies/new", map[string]string{"title": " "}, nil)

	res := f.do(req, staff)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "This field is required.")
}

func TestAdminEditAndDelete(t *testing.T) {
	f := newFixture(t, "", catalog.Movie{ID: 4, Title: "Draft", VideoKey: "videos/v.mp4"})

	res := f.do(httptest.NewRequest(http.MethodGet, "/admin/movies/4/edit", nil), staff)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `value="Draft"`)
	assert.Contains(t, res.Body.String(), `href="/media/videos/v.mp4"`)

	res = f.do(multipartRequest(t, "/admin/movies/4/edit", map[string]string{"title": "Final"}, nil), staff)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "Final", f.repo.movies[4].Title)
	assert.Equal(t, "videos/v.mp4", f.repo.movies[4].VideoKey)

	res = f.do(httptest.NewRequest(http.MethodGet, "/admin/movies/4/delete", nil), staff)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Final")

	res = f.do(httptest.NewRequest(http.MethodPost, "/admin/movies/4/delete", nil), staff)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Empty(t, f.repo.movies)
	assert.Equal(t, []string{"videos/v.mp4"}, f.purger.keys)
}

func TestAdminEditUnknownMovieRedirects(t *testing.T) {
	f := newFixture(t, "")
	res := f.do(httptest.NewRequest(http.MethodGet, "/admin/movies/77/edit", nil), staff)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/admin/movies", res.Header().Get("Location"))
}

func TestHomePageShowsLatestMovies(t *testing.T) {
	f := newFixture(t, "",
		catalog.Movie{ID: 1, Title: "Oldest"},
		catalog.Movie{ID: 2, Title: "Second"},
		catalog.Movie{ID: 3, Title: "Third"},
		catalog.Movie{ID: 4, Title: "Newest", ThumbnailKey: "thumbnails/n.png"},
	)
	res := f.do(httptest.NewRequest(http.MethodGet, "/home", nil), viewer)

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Newest")
	assert.Contains(t, body, `src="/media/thumbnails/n.png"`)
	assert.NotContains(t, body, "Oldest")
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	return out
}
