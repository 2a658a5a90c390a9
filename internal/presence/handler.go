package presence

import (
	"log/slog"
	"net/http"

	"github.com/marquee-ott/marquee/internal/platform/httpx"
	"github.com/marquee-ott/marquee/internal/shared"
	"github.com/marquee-ott/marquee/internal/view"
)

// Handler exposes presence over JSON and the staff user table.
type Handler struct {
	logger    *slog.Logger
	tracker   *Tracker
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, tracker *Tracker, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, tracker: tracker, templates: templates, csrf: csrf}
}

type usersStatusResponse struct {
	Users []Status `json:"users"`
}

// UsersStatus serves GET /api/users-status.
func (h *Handler) UsersStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.tracker.ListPresence(r.Context())
	if err != nil {
		h.logger.Error("list presence", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, usersStatusResponse{Users: statuses})
}

// AdminList renders the staff user table with online flags.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.tracker.ListPresence(r.Context())
	status := http.StatusOK
	data := map[string]any{"Users": statuses, "Threshold": h.tracker.Threshold()}
	if err != nil {
		h.logger.Error("list presence", slog.Any("error", err))
		status = http.StatusInternalServerError
		data["Error"] = shared.UserSafeMessage(err)
	}

	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/admin_users.html", view.TemplateData{
		Title:       "Users",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Principal:   shared.PrincipalFromContext(r.Context()),
		Data:        data,
	}); err != nil {
		h.logger.Error("render admin users", slog.Any("error", err))
	}
}
