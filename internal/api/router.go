// Package api wires the upload service into a chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/stefando/uploadpresigner/internal/metrics"
	"github.com/stefando/uploadpresigner/internal/upload"
)

// Options configures the router.
type Options struct {
	Service *upload.Service
	Logger  logrus.FieldLogger
	// Metrics is optional; when nil no /metrics route is registered.
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	MountPath      string
	RequestTimeout time.Duration
}

// NewRouter creates and configures the chi router
func NewRouter(opts Options) *chi.Mux {
	h := NewHandler(opts.Service, opts.Logger)

	r := chi.NewRouter()

	// Middleware for all routes
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"ETag"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	uploads := func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(opts.RequestTimeout))
		}
		r.Post("/initiate", h.Initiate)
		r.Get("/presign-part", h.PresignPart)
		r.Post("/presign-parts", h.PresignParts)
		r.Post("/complete", h.Complete)
		r.Delete("/abort", h.Abort)
	}

	if opts.MountPath == "" || opts.MountPath == "/" {
		r.Group(uploads)
	} else {
		r.Route(opts.MountPath, uploads)
	}

	return r
}
