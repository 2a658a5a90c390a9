package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/marquee-ott/marquee/internal/auth"
	"github.com/marquee-ott/marquee/internal/catalog"
	"github.com/marquee-ott/marquee/internal/observability"
	"github.com/marquee-ott/marquee/internal/presence"
	"github.com/marquee-ott/marquee/internal/shared"
	"github.com/marquee-ott/marquee/internal/users"
	"github.com/marquee-ott/marquee/internal/view"
	"github.com/marquee-ott/marquee/jobs"
	"github.com/marquee-ott/marquee/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Templates       *view.Engine
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	Gate            *auth.Gate
	Tracker         *presence.Tracker
	AuthHandler     *auth.Handler
	PresenceHandler *presence.Handler
	CatalogHandler  *catalog.Handler
	UsersHandler    *users.Handler
	JobHandler      *jobs.Handler
	// Media serves uploaded objects when they live on the local filesystem.
	Media   http.Handler
	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Marquee defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Gate:           params.Gate,
		Tracker:        params.Tracker,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if shared.PrincipalFromContext(r.Context()) != nil {
			http.Redirect(w, r, "/home", http.StatusSeeOther)
			return
		}
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := view.TemplateData{
			Title:       "Marquee",
			CSRFToken:   csrfToken,
			Flash:       flash,
			CurrentPath: r.URL.Path,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := params.Templates.Render(w, "pages/landing.html", data); err != nil {
			params.Logger.Error("render landing", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	if params.CatalogHandler != nil {
		r.With(auth.RequireUser).Get("/home", params.CatalogHandler.Home)
	}
	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireStaff)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
		})
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountAdminRoutes(r)
		}
		if params.PresenceHandler != nil {
			r.Get("/users", params.PresenceHandler.AdminList)
		}
	})

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			params.AuthHandler.MountAPIRoutes(r)
		}
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountAPIRoutes(r)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountAPIRoutes(r)
		}
		if params.PresenceHandler != nil {
			r.With(auth.RequireAPIUser).Get("/users-status", params.PresenceHandler.UsersStatus)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(auth.RequireAPIStaff)
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.Media != nil {
		r.Handle("/media/*", staticCacheHandler(params.Media))
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	if params.Config != nil && len(params.Config.CORSAllowedOrigins) > 0 {
		return cors.New(cors.Options{
			AllowedOrigins:   params.Config.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", shared.CSRFHeader},
			AllowCredentials: true,
		}).Handler(r)
	}
	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Assets are cached for one hour in the browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
