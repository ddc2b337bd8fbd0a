package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"hyperadmin/internal/auth"
	"hyperadmin/internal/httpx"
	"hyperadmin/internal/users"
)

// RouterConfig carries what NewRouter needs to mount the API.
type RouterConfig struct {
	Logger         *slog.Logger
	APIPrefix      string
	CORSOrigins    []string
	LoginRateLimit int
	RequestTimeout time.Duration
	Auth           *auth.Service
	Users          *users.Service
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(timeout),
		secureHeaders(logger),
		cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"WWW-Authenticate"},
			MaxAge:         300,
		}),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	userHandler := &users.Handler{Service: cfg.Users, Logger: logger}

	r.Route(cfg.APIPrefix, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.LoginRateLimit > 0 {
				r.Use(httprate.Limit(cfg.LoginRateLimit, time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						httpx.Error(w, http.StatusTooManyRequests, "too many login attempts")
					}),
				))
			}
			r.Post("/auth/login", auth.LoginHandler(cfg.Auth, logger))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(auth.JWTMiddleware(cfg.Auth))
			userHandler.MountRoutes(r)
		})
	})

	return r
}

func secureHeaders(logger *slog.Logger) func(http.Handler) http.Handler {
	sm := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "no-referrer",
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sm.Process(w, r); err != nil {
				logger.Warn("secure headers blocked request", "err", err)
				httpx.Error(w, http.StatusBadRequest, "request blocked")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger writes one line per request once the handler returns.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
