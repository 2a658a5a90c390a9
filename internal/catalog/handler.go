package catalog

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/marquee-ott/marquee/internal/shared"
	"github.com/marquee-ott/marquee/internal/storage"
	"github.com/marquee-ott/marquee/internal/view"
)

const (
	adminPerPage     = 20
	homeRailSize     = 3
	maxUploadMemory  = 32 << 20
	movieNotFoundMsg = "Movie not found."
)

// UserCounter reports the number of registered accounts.
type UserCounter interface {
	CountUsers(ctx context.Context) (int, error)
}

// Handler serves catalog pages and the catalog JSON API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	uploader  *storage.Uploader
	users     UserCounter
	templates *view.Engine
	csrf      *shared.CSRFManager
	baseURL   string
	validator *validator.Validate
}

// NewHandler constructs a Handler. baseURL is used to build absolute media
// links; when empty the request host is used.
func NewHandler(logger *slog.Logger, service *Service, uploader *storage.Uploader, users UserCounter, templates *view.Engine, csrf *shared.CSRFManager, baseURL string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		uploader:  uploader,
		users:     users,
		templates: templates,
		csrf:      csrf,
		baseURL:   baseURL,
		validator: validator.New(),
	}
}

// MountAdminRoutes registers the staff catalog pages. Callers guard the group.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Get("/movies", h.listMovies)
	r.Get("/movies/new", h.showCreate)
	r.Post("/movies/new", h.handleCreate)
	r.Get("/movies/{id}/edit", h.showEdit)
	r.Post("/movies/{id}/edit", h.handleEdit)
	r.Get("/movies/{id}/delete", h.showDelete)
	r.Post("/movies/{id}/delete", h.handleDelete)
}

type homeCard struct {
	ID          int64
	Title       string
	Description string
	Thumbnail   string
}

// Home renders the signed-in landing page with the newest movies.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	movies, err := h.service.LatestMovies(r.Context(), homeRailSize)
	status := http.StatusOK
	data := map[string]any{}
	if err != nil {
		h.logger.Error("home movies", slog.Any("error", err))
		status = http.StatusInternalServerError
		data["Error"] = shared.UserSafeMessage(err)
	}
	cards := make([]homeCard, 0, len(movies))
	for _, m := range movies {
		cards = append(cards, homeCard{
			ID:          m.ID,
			Title:       m.Title,
			Description: Truncate(m.Description, HomeDescriptionLimit),
			Thumbnail:   h.mediaURL(m.ThumbnailKey),
		})
	}
	data["Movies"] = cards
	h.render(w, r, "pages/home.html", "Home", data, status)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	var users, movies int
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		users, err = h.users.CountUsers(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		movies, err = h.service.CountMovies(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("dashboard counts", slog.Any("error", err))
		h.render(w, r, "pages/admin_dashboard.html", "Dashboard", map[string]any{"Error": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/admin_dashboard.html", "Dashboard", map[string]any{"UserCount": users, "MovieCount": movies}, http.StatusOK)
}

func (h *Handler) listMovies(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	movies, pagination, err := h.service.PageMovies(r.Context(), page, adminPerPage)
	if err != nil {
		h.logger.Error("list movies", slog.Any("error", err))
		h.render(w, r, "pages/admin_movies.html", "Movies", map[string]any{"Error": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/admin_movies.html", "Movies", map[string]any{"Movies": movies, "Pagination": pagination}, http.StatusOK)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, Movie{}, nil, http.StatusOK)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := h.parseMovieForm(w, r)
	if !ok {
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	draft := Movie{Title: in.Title, Description: in.Description}
	if errs := validationErrors(h.validator, in); len(errs) > 0 {
		h.renderForm(w, r, draft, errs, http.StatusBadRequest)
		return
	}
	media, errs := h.saveUploads(r)
	if len(errs) > 0 {
		h.service.DiscardUploads(r.Context(), media)
		h.renderForm(w, r, draft, errs, http.StatusBadRequest)
		return
	}
	movie, err := h.service.CreateMovie(r.Context(), actorID(r), in, media)
	if err != nil {
		h.service.DiscardUploads(r.Context(), media)
		h.logger.Error("create movie", slog.Any("error", err))
		h.renderForm(w, r, draft, map[string]string{"general": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
		return
	}
	h.redirectWithFlash(w, r, "/admin/movies", "success", "Movie \""+movie.Title+"\" created.")
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	movie, ok := h.loadMovie(w, r)
	if !ok {
		return
	}
	h.renderForm(w, r, movie, nil, http.StatusOK)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	current, ok := h.loadMovie(w, r)
	if !ok {
		return
	}
	in, ok := h.parseMovieForm(w, r)
	if !ok {
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	draft := current
	draft.Title, draft.Description = in.Title, in.Description
	if errs := validationErrors(h.validator, in); len(errs) > 0 {
		h.renderForm(w, r, draft, errs, http.StatusBadRequest)
		return
	}
	media, errs := h.saveUploads(r)
	if len(errs) > 0 {
		h.service.DiscardUploads(r.Context(), media)
		h.renderForm(w, r, draft, errs, http.StatusBadRequest)
		return
	}
	movie, err := h.service.UpdateMovie(r.Context(), actorID(r), current.ID, in, media)
	if err != nil {
		h.service.DiscardUploads(r.Context(), media)
		if errors.Is(err, ErrMovieNotFound) {
			h.redirectWithFlash(w, r, "/admin/movies", "error", movieNotFoundMsg)
			return
		}
		h.logger.Error("update movie", slog.Any("error", err), slog.Int64("movie_id", current.ID))
		h.renderForm(w, r, draft, map[string]string{"general": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
		return
	}
	h.redirectWithFlash(w, r, "/admin/movies", "success", "Movie \""+movie.Title+"\" updated.")
}

func (h *Handler) showDelete(w http.ResponseWriter, r *http.Request) {
	movie, ok := h.loadMovie(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/admin_movie_delete.html", "Delete movie", map[string]any{"Movie": movie}, http.StatusOK)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, "/admin/movies", "error", movieNotFoundMsg)
		return
	}
	if err := h.service.DeleteMovie(r.Context(), actorID(r), id); err != nil {
		if errors.Is(err, ErrMovieNotFound) {
			h.redirectWithFlash(w, r, "/admin/movies", "error", movieNotFoundMsg)
			return
		}
		h.logger.Error("delete movie", slog.Any("error", err), slog.Int64("movie_id", id))
		h.redirectWithFlash(w, r, "/admin/movies", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/admin/movies", "success", "Movie deleted.")
}

func (h *Handler) loadMovie(w http.ResponseWriter, r *http.Request) (Movie, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, "/admin/movies", "error", movieNotFoundMsg)
		return Movie{}, false
	}
	movie, err := h.service.GetMovie(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrMovieNotFound) {
			h.logger.Error("load movie", slog.Any("error", err), slog.Int64("movie_id", id))
		}
		h.redirectWithFlash(w, r, "/admin/movies", "error", shared.UserSafeMessage(err))
		return Movie{}, false
	}
	return movie, true
}

func (h *Handler) parseMovieForm(w http.ResponseWriter, r *http.Request) (MovieInput, bool) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return MovieInput{}, false
	}
	return MovieInput{
		Title:       NormalizeTitle(r.FormValue("title")),
		Description: r.FormValue("description"),
	}, true
}

// saveUploads stores any provided files. Keys already written are returned
// alongside errors so the caller can discard them.
func (h *Handler) saveUploads(r *http.Request) (MediaChange, map[string]string) {
	var media MediaChange
	errs := make(map[string]string)
	if fh := formFile(r, "thumbnail"); fh != nil {
		key, err := h.uploader.Save(r.Context(), storage.Thumbnails, fh)
		if err != nil {
			errs["Thumbnail"] = h.uploadMessage(err)
		}
		media.ThumbnailKey = key
	}
	if fh := formFile(r, "video"); fh != nil {
		key, err := h.uploader.Save(r.Context(), storage.Videos, fh)
		if err != nil {
			errs["Video"] = h.uploadMessage(err)
		}
		media.VideoKey = key
	}
	return media, errs
}

func (h *Handler) uploadMessage(err error) string {
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		return "Unsupported file type."
	case errors.Is(err, storage.ErrTooLarge):
		return "File is too large."
	default:
		h.logger.Error("store upload", slog.Any("error", err))
		return "Upload failed, please try again."
	}
}

func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 || files[0].Size == 0 {
		return nil
	}
	return files[0]
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, movie Movie, errs map[string]string, status int) {
	title := "New movie"
	if movie.ID != 0 {
		title = "Edit movie"
	}
	h.render(w, r, "pages/admin_movie_form.html", title, map[string]any{
		"Movie":        movie,
		"ThumbnailURL": h.mediaURL(movie.ThumbnailKey),
		"VideoURL":     h.mediaURL(movie.VideoKey),
		"Errors":       errs,
	}, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Principal:   shared.PrincipalFromContext(r.Context()),
		Data:        data,
	}); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", template))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func (h *Handler) mediaURL(key string) string {
	if key == "" || h.uploader == nil {
		return ""
	}
	return h.uploader.Store().URL(key)
}

func actorID(r *http.Request) int64 {
	if p := shared.PrincipalFromContext(r.Context()); p != nil {
		return p.ID
	}
	return 0
}

func validationErrors(v *validator.Validate, form any) map[string]string {
	errs := make(map[string]string)
	if err := v.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				switch fe.Tag() {
				case "required":
					errs[fe.Field()] = "This field is required."
				case "max":
					errs[fe.Field()] = "Must be at most " + fe.Param() + " characters."
				default:
					errs[fe.Field()] = fe.Error()
				}
			}
		}
	}
	return errs
}
