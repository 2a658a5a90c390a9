package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marquee-ott/marquee/internal/auth"
	"github.com/marquee-ott/marquee/internal/platform/httpx"
	"github.com/marquee-ott/marquee/internal/shared"
)

// MountAPIRoutes registers the catalog JSON endpoints.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Get("/movies", h.apiListMovies)
	r.Get("/movies/{id}", h.apiGetMovie)
	r.Get("/home-movies", h.apiHomeMovies)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAPIUser)
		r.Get("/watchlist", h.apiWatchlist)
		r.Post("/movies/{id}/watchlist", h.apiAddToWatchlist)
		r.Delete("/movies/{id}/watchlist", h.apiRemoveFromWatchlist)
		r.Post("/movies/{id}/views", h.apiRecordView)
		r.Get("/history", h.apiHistory)
	})
}

type movieResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ViewCount   int64  `json:"view_count"`
	Thumbnail   string `json:"thumbnail"`
	Video       string `json:"video"`
}

type homeMovieResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
}

type historyResponse struct {
	Movie    movieResponse `json:"movie"`
	ViewedAt time.Time     `json:"viewed_at"`
}

func (h *Handler) toResponse(m Movie) movieResponse {
	return movieResponse{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		ViewCount:   m.ViewCount,
		Thumbnail:   h.mediaURL(m.ThumbnailKey),
		Video:       h.mediaURL(m.VideoKey),
	}
}

func (h *Handler) toResponses(movies []Movie) []movieResponse {
	out := make([]movieResponse, 0, len(movies))
	for _, m := range movies {
		out = append(out, h.toResponse(m))
	}
	return out
}

func (h *Handler) apiListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := h.service.ListMovies(r.Context())
	if err != nil {
		h.apiError(w, "list movies", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponses(movies))
}

func (h *Handler) apiGetMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := movieID(w, r)
	if !ok {
		return
	}
	movie, err := h.service.GetMovie(r.Context(), id)
	if err != nil {
		h.apiError(w, "get movie", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(movie))
}

func (h *Handler) apiHomeMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := h.service.LatestMovies(r.Context(), homeRailSize)
	if err != nil {
		h.apiError(w, "home movies", err)
		return
	}
	out := make([]homeMovieResponse, 0, len(movies))
	for _, m := range movies {
		out = append(out, homeMovieResponse{
			ID:          m.ID,
			Title:       m.Title,
			Description: Truncate(m.Description, HomeDescriptionLimit),
			Thumbnail:   h.absoluteURL(r, h.mediaURL(m.ThumbnailKey)),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movies": out})
}

func (h *Handler) apiWatchlist(w http.ResponseWriter, r *http.Request) {
	movies, err := h.service.Watchlist(r.Context(), actorID(r))
	if err != nil {
		h.apiError(w, "list watchlist", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponses(movies))
}

func (h *Handler) apiAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	id, ok := movieID(w, r)
	if !ok {
		return
	}
	if err := h.service.AddToWatchlist(r.Context(), actorID(r), id); err != nil {
		h.apiError(w, "add to watchlist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) apiRemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	id, ok := movieID(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveFromWatchlist(r.Context(), actorID(r), id); err != nil {
		h.apiError(w, "remove from watchlist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) apiRecordView(w http.ResponseWriter, r *http.Request) {
	id, ok := movieID(w, r)
	if !ok {
		return
	}
	if err := h.service.RecordView(r.Context(), actorID(r), id); err != nil {
		h.apiError(w, "record view", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) apiHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.History(r.Context(), actorID(r))
	if err != nil {
		h.apiError(w, "list history", err)
		return
	}
	out := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyResponse{Movie: h.toResponse(e.Movie), ViewedAt: e.ViewedAt})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) apiError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", movieNotFoundMsg)
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func movieID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", movieNotFoundMsg)
		return 0, false
	}
	return id, true
}

// absoluteURL resolves u against the configured base URL, or the request's
// own origin when none is configured.
func (h *Handler) absoluteURL(r *http.Request, u string) string {
	if u == "" {
		return ""
	}
	if parsed, err := url.Parse(u); err == nil && parsed.IsAbs() {
		return u
	}
	base := strings.TrimRight(h.baseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/" + strings.TrimLeft(u, "/")
}
