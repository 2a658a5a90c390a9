package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/marquee-ott/marquee/internal/platform/httpx"
	"github.com/marquee-ott/marquee/internal/shared"
)

// LoggedOutMessage is flashed to a session ended because its account was blocked.
const LoggedOutMessage = "You have been logged out."

// PrincipalLookup resolves a session's user id into an account.
type PrincipalLookup interface {
	Lookup(ctx context.Context, id int64) (*User, error)
}

// Gate resolves the request principal from the session on every request.
type Gate struct {
	lookup   PrincipalLookup
	sessions *shared.SessionManager
	logger   *slog.Logger
}

// NewGate constructs a Gate.
func NewGate(lookup PrincipalLookup, sessions *shared.SessionManager, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{lookup: lookup, sessions: sessions, logger: logger}
}

// Middleware attaches an active principal to the request context. Sessions of
// blocked or inactive accounts are terminated and the request continues
// anonymously.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := strconv.ParseInt(sess.User(), 10, 64)
		if err != nil {
			sess.SetUser("")
			next.ServeHTTP(w, r)
			return
		}

		user, err := g.lookup.Lookup(r.Context(), userID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			sess.SetUser("")
			next.ServeHTTP(w, r)
			return
		case err != nil:
			g.logger.Error("resolve principal", slog.Int64("user_id", userID), slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}

		if user.Blocked() {
			g.logger.Info("terminating session of blocked account", slog.Int64("user_id", user.ID))
			g.sessions.Terminate(sess)
			sess.AddFlash(shared.FlashMessage{Kind: "info", Message: LoggedOutMessage})
			next.ServeHTTP(w, r)
			return
		}

		principal := &shared.Principal{ID: user.ID, Email: user.Email, Username: user.Username, IsStaff: user.IsStaff}
		setNoStore(w.Header())
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

func setNoStore(h http.Header) {
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// RequireUser redirects anonymous page requests to the login form.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.PrincipalFromContext(r.Context()) == nil {
			redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff only admits staff principals to admin pages.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := shared.PrincipalFromContext(r.Context())
		if p == nil || !p.IsStaff {
			redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIUser answers 401 for anonymous API requests.
func RequireAPIUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.PrincipalFromContext(r.Context()) == nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication credentials were not provided.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIStaff answers 401 for anonymous and 403 for non-staff API requests.
func RequireAPIStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := shared.PrincipalFromContext(r.Context())
		if p == nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication credentials were not provided.")
			return
		}
		if !p.IsStaff {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "Staff access required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/auth/login?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// safeNext only accepts local absolute paths as post-login targets.
func safeNext(next string) string {
	if next == "" || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return ""
	}
	return next
}
