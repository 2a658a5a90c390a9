package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/marquee-ott/marquee/internal/shared"
	"github.com/marquee-ott/marquee/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
	r.Group(func(r chi.Router) {
		r.Use(RequireUser)
		r.Post("/logout", h.handleLogout)
		r.Get("/change-password", h.showChangePassword)
		r.Post("/change-password", h.handleChangePassword)
	})
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
	Next     string
}

type registerForm struct {
	Email           string `validate:"required,email,max=254"`
	Username        string `validate:"max=100"`
	Password        string `validate:"required,min=8"`
	ConfirmPassword string `validate:"required"`
}

type changePasswordForm struct {
	OldPassword     string `validate:"required"`
	NewPassword     string `validate:"required,min=8"`
	ConfirmPassword string `validate:"required"`
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if shared.PrincipalFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/home", http.StatusSeeOther)
		return
	}
	h.render(w, r, "pages/login.html", "Sign in", map[string]any{
		"Form": loginForm{Next: safeNext(r.URL.Query().Get("next"))},
	}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Next:     safeNext(r.PostFormValue("next")),
	}
	if form.Next == "" {
		form.Next = safeNext(r.URL.Query().Get("next"))
	}
	errs := validationErrors(h.validator, form)
	if len(errs) == 0 {
		user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
		if err == nil {
			h.startSession(r, user)
			target := form.Next
			if target == "" {
				target = "/home"
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		errs["general"] = "Invalid credentials"
	}
	form.Password = ""
	h.render(w, r, "pages/login.html", "Sign in", map[string]any{"Form": form, "Errors": errs}, http.StatusBadRequest)
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	if shared.PrincipalFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/home", http.StatusSeeOther)
		return
	}
	h.render(w, r, "pages/register.html", "Create account", map[string]any{"Form": registerForm{}}, http.StatusOK)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := registerForm{
		Email:           r.PostFormValue("email"),
		Username:        r.PostFormValue("username"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	errs := validationErrors(h.validator, form)
	if len(errs) == 0 && form.Password != form.ConfirmPassword {
		errs["ConfirmPassword"] = "Passwords do not match."
	}
	if len(errs) == 0 {
		_, err := h.service.Register(r.Context(), RegisterInput{Email: form.Email, Username: form.Username, Password: form.Password})
		switch {
		case err == nil:
			h.redirectWithFlash(w, r, "/auth/login", "success", "Account created successfully! Please log in.")
			return
		case errors.Is(err, ErrEmailTaken):
			errs["Email"] = "Email already registered."
		default:
			h.logger.Error("register user", slog.Any("error", err))
			errs["general"] = "Registration failed, please try again."
		}
	}
	form.Password, form.ConfirmPassword = "", ""
	h.render(w, r, "pages/register.html", "Create account", map[string]any{"Form": form, "Errors": errs}, http.StatusBadRequest)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.endSession(r)
	h.redirectWithFlash(w, r, "/auth/login", "success", "You have logged out successfully.")
}

func (h *Handler) showChangePassword(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/change_password.html", "Change password", map[string]any{}, http.StatusOK)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	form := changePasswordForm{
		OldPassword:     r.PostFormValue("old_password"),
		NewPassword:     r.PostFormValue("new_password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	if errs := validationErrors(h.validator, form); len(errs) > 0 {
		h.render(w, r, "pages/change_password.html", "Change password", map[string]any{"Errors": errs}, http.StatusBadRequest)
		return
	}
	if form.NewPassword != form.ConfirmPassword {
		h.redirectWithFlash(w, r, "/auth/change-password", "error", "New passwords do not match!")
		return
	}
	if err := h.service.ChangePassword(r.Context(), principal.ID, form.OldPassword, form.NewPassword); err != nil {
		if errors.Is(err, ErrIncorrectPassword) {
			h.redirectWithFlash(w, r, "/auth/change-password", "error", "Old password is incorrect!")
			return
		}
		h.logger.Error("change password", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/auth/change-password", "error", shared.UserSafeMessage(err))
		return
	}
	h.endSession(r)
	h.redirectWithFlash(w, r, "/auth/login", "success", "Password changed successfully. Please login again.")
}

// startSession rotates the session id and binds it to user.
func (h *Handler) startSession(r *http.Request, user *User) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		return
	}
	h.sessionManager.Renew(sess)
	sess.Delete(shared.CSRFSessionKey)
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
}

// endSession logs the user out while keeping an anonymous session for flashes.
func (h *Handler) endSession(r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return
	}
	if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
		h.logger.Warn("remove session", slog.Any("error", err))
	}
	h.sessionManager.Terminate(sess)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Principal:   shared.PrincipalFromContext(r.Context()),
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", template))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func validationErrors(v *validator.Validate, form any) map[string]string {
	errs := make(map[string]string)
	if err := v.Struct(form); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = fieldMessage(fieldErr)
			}
		}
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return "Must be at least " + fe.Param() + " characters."
	case "max":
		return "Must be at most " + fe.Param() + " characters."
	default:
		return fe.Error()
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}
