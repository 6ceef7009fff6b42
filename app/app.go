package app

import (
	"context"
	"log/slog"

	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/grafana/dskit/signals"
	"github.com/pkg/errors"

	"github.com/zachfi/nowplaying/modules/artwork"
	"github.com/zachfi/nowplaying/modules/history"
	"github.com/zachfi/nowplaying/modules/lyrics"
	"github.com/zachfi/nowplaying/modules/poller"
	"github.com/zachfi/nowplaying/modules/store"
)

const metricsNamespace = "nowplaying"

type App struct {
	cfg    Config
	logger *slog.Logger

	Server *server.Server

	store   *store.Store
	artwork *artwork.Artwork
	lyrics  *lyrics.Lyrics
	history *history.History
	poller  *poller.Poller

	ModuleManager *modules.Manager
	serviceMap    map[string]services.Service
}

// New creates and returns a new App.
func New(cfg Config, logger *slog.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
	}

	if a.cfg.Target == "" {
		a.cfg.Target = All
	}

	if err := a.setupModuleManager(); err != nil {
		return nil, errors.Wrap(err, "failed to setup module manager")
	}

	return a, nil
}

// Run starts every service the target needs and blocks until they have
// stopped, either on a signal or because one of them failed.
func (a *App) Run() error {
	serviceMap, err := a.ModuleManager.InitModuleServices(a.cfg.Target)
	if err != nil {
		return errors.Wrap(err, "failed to init module services")
	}
	a.serviceMap = serviceMap

	servs := make([]services.Service, 0, len(serviceMap))
	for _, s := range serviceMap {
		servs = append(servs, s)
	}

	sm, err := services.NewManager(servs...)
	if err != nil {
		return errors.Wrap(err, "failed to create service manager")
	}
	sm.AddListener(a.managerListener(sm))

	handler := signals.NewHandler(a.Server.Log)
	go func() {
		handler.Loop()
		sm.StopAsync()
	}()

	if err := sm.StartAsync(context.Background()); err != nil {
		return errors.Wrap(err, "failed to start service manager")
	}

	return sm.AwaitStopped(context.Background())
}

// managerListener logs the manager's lifecycle and stops everything as soon
// as one module fails.
func (a *App) managerListener(sm *services.Manager) services.ManagerListener {
	healthy := func() {
		a.logger.Info("started", "target", a.cfg.Target, "stream", a.cfg.Poller.URL)
	}
	stopped := func() { a.logger.Info("stopped") }
	failed := func(service services.Service) {
		sm.StopAsync()

		name := moduleName(a.serviceMap, service)
		if errors.Is(service.FailureCase(), modules.ErrStopProcess) {
			a.logger.Info("received stop signal via return error", "module", name, "err", service.FailureCase())
			return
		}
		a.logger.Error("module failed", "module", name, "err", service.FailureCase())
	}

	return services.NewManagerListener(healthy, stopped, failed)
}

// moduleName finds the module that owns service.
func moduleName(serviceMap map[string]services.Service, service services.Service) string {
	for m, s := range serviceMap {
		if s == service {
			return m
		}
	}
	return "unknown"
}
