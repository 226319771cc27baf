// Package bootstrap wires all dependencies into a running application:
// storage backend, binding container, resource handlers, router, and the
// HTTP server.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/declarest/adapters/clock"
	"github.com/artpar/declarest/adapters/httpapi"
	"github.com/artpar/declarest/adapters/idgen"
	"github.com/artpar/declarest/adapters/memory"
	"github.com/artpar/declarest/adapters/metrics"
	"github.com/artpar/declarest/adapters/remote"
	"github.com/artpar/declarest/adapters/sqlite"
	"github.com/artpar/declarest/config"
	"github.com/artpar/declarest/core/authn"
	"github.com/artpar/declarest/core/backend"
	"github.com/artpar/declarest/core/binding"
	"github.com/artpar/declarest/core/handler"
	"github.com/artpar/declarest/core/model"
	"github.com/artpar/declarest/core/openapi"
	"github.com/artpar/declarest/ports"
)

// App is the assembled application.
type App struct {
	Logger    zerolog.Logger
	Holder    *config.Holder
	Container *binding.Container
	Backend   backend.Backend
	Metrics   *metrics.Collector
	Registry  *prometheus.Registry
	Router    chi.Router
	Server    *http.Server
}

// New assembles the application from configuration. All dependencies are
// bound by name on the container; request handling resolves them through
// per-request child scopes, which is the seam tests and alternate
// deployments use to substitute any of them.
func New(holder *config.Holder, logger zerolog.Logger) (*App, error) {
	cfg := holder.Get()
	ctx := context.Background()

	be, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.New(registry)

	holder.OnChange(func(*config.Config) { collector.ConfigReloads.Inc() })
	holder.OnError(func(error) { collector.ConfigReloadErrors.Inc() })

	container := binding.New()
	container.Bind("logger", logger)
	container.Bind("config_holder", holder)
	container.Bind("clock", ports.Clock(clock.Real{}))
	container.Bind("idgen", ports.IDGenerator(idgen.UUID{}))
	container.Bind("getter", ports.Getter(newGetter(cfg)))
	container.BindShared("backend", func(c *binding.Container) (any, error) {
		return be, nil
	})
	container.BindFactory("authn", func(c *binding.Container) (any, error) {
		strategy, err := buildAuth(holder.Get())
		if err != nil {
			return nil, err
		}
		return strategy, nil
	})

	if err := bindResources(ctx, container, holder, logger); err != nil {
		be.Close()
		return nil, err
	}

	resources := []httpapi.Resource{
		{Name: "users", Binding: "handler:users"},
		{Name: "notes", Binding: "handler:notes"},
	}

	var generator *openapi.Generator
	if cfg.OpenAPI.Enabled {
		generator, err = buildGenerator(container, cfg, resources)
		if err != nil {
			be.Close()
			return nil, err
		}
	}

	routerCfg := httpapi.Config{
		Container: container,
		Resources: resources,
		Logger:    logger,
		OpenAPI:   generator,
	}
	if cfg.Metrics.Enabled {
		routerCfg.Metrics = collector
		routerCfg.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}
	router := httpapi.NewRouter(routerCfg)

	return &App{
		Logger:    logger,
		Holder:    holder,
		Container: container,
		Backend:   be,
		Metrics:   collector,
		Registry:  registry,
		Router:    router,
		Server: &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}, nil
}

// Start serves HTTP until the server is shut down.
func (a *App) Start() error {
	a.Logger.Info().Str("addr", a.Server.Addr).Msg("server listening")
	if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info().Msg("shutting down")
	if err := a.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return a.Backend.Close()
}

func openBackend(cfg *config.Config) (backend.Backend, error) {
	switch cfg.Database.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.Open(cfg.Database.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func newGetter(cfg *config.Config) *remote.Client {
	if cfg.Enrichment.Timeout > 0 {
		return remote.WithHTTPClient(&http.Client{Timeout: cfg.Enrichment.Timeout})
	}
	return remote.New()
}

func buildAuth(cfg *config.Config) (authn.Strategy, error) {
	switch cfg.Auth.Mode {
	case "public":
		return authn.Public{}, nil
	case "secret":
		return authn.NewSecretBearer(cfg.Auth.Header, cfg.Auth.Secret), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}

// bindResources declares the resources, prepares their tables, and binds
// models plus handler factories on the container. Handlers are rebuilt
// per resolution so reloaded page-size and auth settings take effect on
// the next request.
func bindResources(ctx context.Context, container *binding.Container, holder *config.Holder, logger zerolog.Logger) error {
	cfg := holder.Get()

	clk := binding.MustAs[ports.Clock](container, "clock")
	gen := binding.MustAs[ports.IDGenerator](container, "idgen")
	getter := binding.MustAs[ports.Getter](container, "getter")
	be := binding.MustAs[backend.Backend](container, "backend")

	userCols, err := userColumns(clk, getter, cfg.Enrichment.URL)
	if err != nil {
		return fmt.Errorf("users columns: %w", err)
	}
	users := model.NewModels("users", be, userCols)
	if err := users.CreateTable(ctx); err != nil {
		return err
	}
	container.Bind("models:users", users)
	container.BindFactory("handler:users", func(c *binding.Container) (any, error) {
		m, err := binding.As[*model.Models](c, "models:users")
		if err != nil {
			return nil, err
		}
		auth, err := binding.As[authn.Strategy](c, "authn")
		if err != nil {
			return nil, err
		}
		current := holder.Get()
		h, err := handler.NewRestful(handler.Config{
			Models: m,
			ReadableColumns: []string{
				"name", "email", "city", "state", "country", "age", "created", "updated",
			},
			WriteableColumns:  []string{"name", "email", "password"},
			SearchableColumns: []string{"name", "email", "age"},
			DefaultSortColumn: "name",
			Authentication:    auth,
			DefaultPageSize:   current.API.DefaultPageSize,
			MaxPageSize:       current.API.MaxPageSize,
			Logger:            logger,
		})
		if err != nil {
			return nil, err
		}
		return h, nil
	})

	noteCols, err := noteColumns(clk, gen)
	if err != nil {
		return fmt.Errorf("notes columns: %w", err)
	}
	notes := model.NewModels("notes", be, noteCols)
	if err := notes.CreateTable(ctx); err != nil {
		return err
	}
	container.Bind("models:notes", notes)
	container.BindFactory("handler:notes", func(c *binding.Container) (any, error) {
		m, err := binding.As[*model.Models](c, "models:notes")
		if err != nil {
			return nil, err
		}
		auth, err := binding.As[authn.Strategy](c, "authn")
		if err != nil {
			return nil, err
		}
		current := holder.Get()
		h, err := handler.NewRestful(handler.Config{
			Models:            m,
			SearchableColumns: []string{"title", "author_id"},
			Authentication:    auth,
			DefaultPageSize:   current.API.DefaultPageSize,
			MaxPageSize:       current.API.MaxPageSize,
			Logger:            logger,
		})
		if err != nil {
			return nil, err
		}
		return h, nil
	})

	return nil
}

func buildGenerator(container *binding.Container, cfg *config.Config, resources []httpapi.Resource) (*openapi.Generator, error) {
	var specResources []openapi.Resource
	for _, res := range resources {
		h, err := binding.As[*handler.Restful](container, res.Binding)
		if err != nil {
			return nil, fmt.Errorf("resolve %s for openapi: %w", res.Binding, err)
		}
		specResources = append(specResources, openapi.Resource{Name: res.Name, Handler: h})
	}
	return openapi.NewGenerator(
		openapi.Info{Title: cfg.OpenAPI.Title, Version: cfg.OpenAPI.Version},
		[]openapi.Server{{URL: fmt.Sprintf("http://%s", cfg.Server.Addr())}},
		specResources,
	), nil
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Logging.Format == "console" {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
