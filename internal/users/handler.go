package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marquee-ott/marquee/internal/auth"
	"github.com/marquee-ott/marquee/internal/platform/httpx"
	"github.com/marquee-ott/marquee/internal/shared"
	"github.com/marquee-ott/marquee/internal/storage"
)

const maxUploadMemory = 8 << 20

// Handler manages profile endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	uploader *storage.Uploader
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, uploader *storage.Uploader) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, uploader: uploader}
}

// MountAPIRoutes registers the profile API below /api.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAPIUser)
		r.Get("/me", h.me)
		r.Post("/profile/update", h.updateProfile)
		r.Post("/profile/delete-pic", h.deletePicture)
	})
}

type meResponse struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	IsStaff       bool   `json:"is_staff"`
	Phone         string `json:"phone"`
	Hobbies       string `json:"hobbies"`
	Bio           string `json:"bio"`
	ProfilePicURL string `json:"profile_pic_url"`
}

func (h *Handler) toResponse(p Profile) meResponse {
	resp := meResponse{
		ID:       p.ID,
		Email:    p.Email,
		Username: p.Username,
		IsStaff:  p.IsStaff,
		Phone:    p.Phone,
		Hobbies:  p.Hobbies,
		Bio:      p.Bio,
	}
	if p.ProfilePicKey != "" && h.uploader != nil {
		resp.ProfilePicURL = h.uploader.Store().URL(p.ProfilePicKey)
	}
	return resp
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	profile, err := h.service.Profile(r.Context(), principal.ID)
	if err != nil {
		h.fail(w, "load profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(profile))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Malformed form body.")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if r.PostForm == nil {
		_ = r.ParseForm()
	}

	in := ProfileInput{
		Phone:   optionalField(r, "phone"),
		Hobbies: optionalField(r, "hobbies"),
		Bio:     optionalField(r, "bio"),
	}

	var picKey string
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["profile_pic"]; len(files) > 0 && files[0].Size > 0 {
			key, err := h.uploader.Save(r.Context(), storage.ProfilePictures, files[0])
			switch {
			case errors.Is(err, storage.ErrUnsupportedType):
				httpx.ValidationProblem(w, map[string]string{"profile_pic": "Unsupported file type."})
				return
			case errors.Is(err, storage.ErrTooLarge):
				httpx.ValidationProblem(w, map[string]string{"profile_pic": "File is too large."})
				return
			case err != nil:
				h.fail(w, "store profile picture", err)
				return
			}
			picKey = key
		}
	}

	profile, err := h.service.UpdateProfile(r.Context(), principal.ID, in, picKey)
	if err != nil {
		h.service.DiscardUpload(r.Context(), picKey)
		h.fail(w, "update profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(profile))
}

func (h *Handler) deletePicture(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	profile, err := h.service.DeletePicture(r.Context(), principal.ID)
	if err != nil {
		h.fail(w, "delete profile picture", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(profile))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidProfile):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Profile fields exceed their maximum length.")
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "Profile not found.")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func optionalField(r *http.Request, name string) *string {
	values, ok := r.PostForm[name]
	if !ok {
		return nil
	}
	v := ""
	if len(values) > 0 {
		v = values[0]
	}
	return &v
}
