package auth

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marquee-ott/marquee/internal/platform/httpx"
	"github.com/marquee-ott/marquee/internal/shared"
)

// MountAPIRoutes registers the JSON auth endpoints used by the front-end.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Get("/csrf", h.apiCSRF)
	r.Post("/register", h.apiRegister)
	r.Post("/login", h.apiLogin)
	r.Group(func(r chi.Router) {
		r.Use(RequireAPIUser)
		r.Post("/logout", h.apiLogout)
		r.Post("/change-password", h.apiChangePassword)
	})
}

type apiRegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"max=100"`
	Password string `json:"password" validate:"required,min=8"`
}

type apiLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type apiChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password" validate:"omitempty,min=8"`
}

func (h *Handler) apiCSRF(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrfManager.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func (h *Handler) apiRegister(w http.ResponseWriter, r *http.Request) {
	var req apiRegisterRequest
	if err := decodeBody(r, &req, func(get func(string) string) {
		req.Email, req.Username, req.Password = get("email"), get("username"), get("password")
	}); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Malformed request body.")
		return
	}
	if errs := apiFieldErrors(validationErrors(h.validator, req)); len(errs) > 0 {
		httpx.ValidationProblem(w, errs)
		return
	}
	_, err := h.service.Register(r.Context(), RegisterInput{Email: req.Email, Username: req.Username, Password: req.Password})
	switch {
	case err == nil:
		httpx.Message(w, http.StatusCreated, "User registered successfully")
	case errors.Is(err, ErrEmailTaken):
		httpx.Problem(w, http.StatusConflict, "Conflict", "user with this email already exists.")
	default:
		h.logger.Error("api register", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req apiLoginRequest
	if err := decodeBody(r, &req, func(get func(string) string) {
		req.Email, req.Password = get("email"), get("password")
	}); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Email and password are required", "")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.Error(w, http.StatusBadRequest, "Email and password are required", "")
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid credentials", "")
		return
	}
	if user.IsStaff {
		httpx.Error(w, http.StatusForbidden, "admin_redirect", "Admins must login from the admin panel.")
		return
	}
	h.startSession(r, user)
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Login successful", "email": user.Email})
}

func (h *Handler) apiLogout(w http.ResponseWriter, r *http.Request) {
	h.endSession(r)
	httpx.Message(w, http.StatusOK, "Logged out successfully")
}

func (h *Handler) apiChangePassword(w http.ResponseWriter, r *http.Request) {
	var req apiChangePasswordRequest
	if err := decodeBody(r, &req, func(get func(string) string) {
		req.OldPassword, req.NewPassword = get("old_password"), get("new_password")
	}); err != nil || req.OldPassword == "" || req.NewPassword == "" {
		httpx.Error(w, http.StatusBadRequest, "Old and new password are required.", "")
		return
	}
	if errs := apiFieldErrors(validationErrors(h.validator, req)); len(errs) > 0 {
		httpx.ValidationProblem(w, errs)
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	if err := h.service.ChangePassword(r.Context(), principal.ID, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, ErrIncorrectPassword) {
			httpx.Error(w, http.StatusBadRequest, "Old password is incorrect.", "")
			return
		}
		h.logger.Error("api change password", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Renew(sess)
	}
	httpx.Message(w, http.StatusOK, "Password changed successfully.")
}

// decodeBody reads a JSON body, or falls back to form values for other
// content types.
func decodeBody(r *http.Request, target any, fromForm func(get func(string) string)) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return httpx.DecodeJSON(r, target)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	fromForm(r.PostFormValue)
	return nil
}

var apiFieldNames = map[string]string{
	"Email":       "email",
	"Username":    "username",
	"Password":    "password",
	"OldPassword": "old_password",
	"NewPassword": "new_password",
}

func apiFieldErrors(errs map[string]string) map[string]string {
	out := make(map[string]string, len(errs))
	for field, msg := range errs {
		if name, ok := apiFieldNames[field]; ok {
			field = name
		}
		out[field] = msg
	}
	return out
}
