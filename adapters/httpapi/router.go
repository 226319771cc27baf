// Package httpapi is the HTTP transport adapter. It mounts resource
// handlers on a chi router, translating between net/http and the
// transport-neutral request/envelope types. A fresh container scope is
// built per request so per-request dependencies are never shared.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/artpar/declarest/adapters/metrics"
	"github.com/artpar/declarest/core/binding"
	"github.com/artpar/declarest/core/handler"
	"github.com/artpar/declarest/core/openapi"
)

const maxBodyBytes = 1 << 20

// Resource declares one mounted resource: a path segment plus the
// container binding that resolves its handler.
type Resource struct {
	Name    string
	Binding string
}

// Config configures the router.
type Config struct {
	// Container is the application-level container; every request gets a
	// child scope of it.
	Container *binding.Container

	Resources []Resource

	Logger  zerolog.Logger
	Metrics *metrics.Collector

	// OpenAPI, when set, serves the generated spec and a Swagger UI.
	OpenAPI *openapi.Generator

	// MetricsHandler overrides the default promhttp handler, for custom
	// registries.
	MetricsHandler http.Handler
}

// NewRouter creates the main HTTP router.
func NewRouter(cfg Config) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(newLoggingMiddleware(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	if cfg.Metrics != nil {
		r.Use(newMetricsMiddleware(cfg.Metrics))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	} else if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	if cfg.OpenAPI != nil {
		r.Get("/.well-known/openapi.json", func(w http.ResponseWriter, r *http.Request) {
			raw, err := cfg.OpenAPI.JSON()
			if err != nil {
				cfg.Logger.Error().Err(err).Msg("openapi generation failed")
				http.Error(w, "spec generation failed", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Write(raw)
		})
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/.well-known/openapi.json"),
		))
	}

	for _, res := range cfg.Resources {
		mount := "/" + strings.Trim(res.Name, "/")
		fn := resourceHandler(cfg, res, mount)
		r.HandleFunc(mount, fn)
		r.HandleFunc(mount+"/*", fn)
	}

	return r
}

// resourceHandler adapts one resource to net/http. The handler is
// resolved from a per-request container scope, so the authentication
// strategy and any overridden dependency bind fresh each request.
func resourceHandler(cfg Config, res Resource, mount string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := cfg.Container.Scope()
		h, err := binding.As[*handler.Restful](scope, res.Binding)
		if err != nil {
			cfg.Logger.Error().Err(err).Str("resource", res.Name).Msg("handler resolution failed")
			writeResponse(w, handler.Failure())
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeResponse(w, handler.InputErrors(map[string]string{
				"body": "request body unreadable or too large",
			}))
			return
		}

		resp := h.Handle(r.Context(), handler.Request{
			Method:  r.Method,
			Path:    strings.TrimPrefix(r.URL.Path, mount),
			Query:   r.URL.Query(),
			Headers: r.Header,
			Body:    body,
		})

		if cfg.Metrics != nil {
			switch resp.Code {
			case http.StatusUnauthorized:
				cfg.Metrics.AuthFailures.WithLabelValues(res.Name).Inc()
			case http.StatusBadRequest:
				cfg.Metrics.InputErrorsTotal.WithLabelValues(res.Name).Inc()
			case http.StatusInternalServerError:
				cfg.Metrics.BackendErrors.WithLabelValues(res.Name).Inc()
			}
			cfg.Metrics.RequestsTotal.WithLabelValues(res.Name, r.Method, statusLabel(resp.Code)).Inc()
		}

		writeResponse(w, resp)
	}
}

func writeResponse(w http.ResponseWriter, resp handler.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Code)
	json.NewEncoder(w).Encode(resp)
}
