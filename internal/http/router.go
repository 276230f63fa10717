package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pribylovaa/quotes-service/internal/config"
	"github.com/pribylovaa/quotes-service/internal/http/handlers"
	"github.com/pribylovaa/quotes-service/internal/http/middleware"
	"github.com/pribylovaa/quotes-service/internal/pkg/log"
)

// Service — всё, что роутер требует от бизнес-логики.
type Service interface {
	handlers.Service
	middleware.Authenticator
}

// Pinger проверяет доступность хранилища для /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger    *slog.Logger
	Timeout   time.Duration
	BasePath  string // например, "/api"; если пустой — роуты регистрируются на корне.
	BodyLimit int64
	Cookie    config.CookieConfig
	CORS      config.CORSConfig
	Metrics   *middleware.Metrics // nil — без HTTP-метрик.
	Store     Pinger
	Ready     func() bool
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования
		middleware.Logging(opts.Logger),
	)
	if opts.Metrics != nil {
		root.Use(opts.Metrics.Middleware())
	}
	root.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: opts.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	if opts.BodyLimit > 0 {
		root.Use(chimw.RequestSize(opts.BodyLimit))
	}
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	registerProbes(root, opts)

	h := handlers.New(svc, opts.Cookie)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, svc)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, svc)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, auth middleware.Authenticator) {
	r.Get("/", h.Home)
	r.Get("/test", h.Test)

	// auth
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)

	// quotes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(auth))
		r.Post("/addQuote", h.AddQuote)
		r.Post("/deleteQuote", h.DeleteQuote)
		r.Get("/quotes", h.ListQuotes)
	})
}

func registerProbes(r chi.Router, opts Options) {
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready != nil && !opts.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		if opts.Store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := opts.Store.Ping(ctx); err != nil {
				log.From(r.Context()).Warn("healthz_store_ping_failed", log.Err(err))
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
