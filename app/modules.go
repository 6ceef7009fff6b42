package app

import (
	"context"
	"fmt"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"

	"github.com/zachfi/nowplaying/modules/api"
	"github.com/zachfi/nowplaying/modules/artwork"
	"github.com/zachfi/nowplaying/modules/history"
	"github.com/zachfi/nowplaying/modules/lyrics"
	"github.com/zachfi/nowplaying/modules/poller"
	"github.com/zachfi/nowplaying/modules/store"
	"github.com/zachfi/nowplaying/pkg/shoutcast"
)

const (
	Server string = "server"

	Store   string = "store"
	Artwork string = "artwork"
	Lyrics  string = "lyrics"
	History string = "history"
	Poller  string = "poller"
	API     string = "api"

	All string = "all"
)

func (a *App) setupModuleManager() error {
	mm := modules.NewManager(kitlog.NewLogfmtLogger(os.Stderr))
	mm.RegisterModule(Server, a.initServer, modules.UserInvisibleModule)

	mm.RegisterModule(Store, a.initStore, modules.UserInvisibleModule)
	mm.RegisterModule(Artwork, a.initArtwork)
	mm.RegisterModule(Lyrics, a.initLyrics)
	mm.RegisterModule(History, a.initHistory)
	mm.RegisterModule(Poller, a.initPoller)
	mm.RegisterModule(API, a.initAPI)

	mm.RegisterModule(All, nil)

	deps := map[string][]string{
		// Server:       nil,
		Store:   {Server},
		Artwork: {Store},
		Lyrics:  {Server},
		History: {Store, Artwork},
		Poller:  {Store, Artwork, History},
		API:     {Server, Poller, Artwork, History, Lyrics},

		All: {Poller, API},
	}

	for mod, targets := range deps {
		if err := mm.AddDependency(mod, targets...); err != nil {
			return err
		}
	}

	a.ModuleManager = mm

	return nil
}

func (a *App) initStore() (services.Service, error) {
	s, err := store.New(a.cfg.Store, a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+Store)
	}
	a.store = s

	return s, nil
}

func (a *App) initArtwork() (services.Service, error) {
	aw, err := artwork.New(a.cfg.Artwork, a.logger, a.store)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+Artwork)
	}
	a.artwork = aw

	return aw, nil
}

func (a *App) initLyrics() (services.Service, error) {
	l, err := lyrics.New(a.cfg.Lyrics, a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+Lyrics)
	}
	a.lyrics = l

	return l, nil
}

func (a *App) initHistory() (services.Service, error) {
	h, err := history.New(a.cfg.History, a.logger, a.store, a.artwork)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+History)
	}
	a.history = h

	return h, nil
}

func (a *App) initPoller() (services.Service, error) {
	client := shoutcast.NewClient(a.logger, a.cfg.Poller.ProbeTimeout)

	p, err := poller.New(a.cfg.Poller, a.logger, client, a.artwork, a.store, a.history)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+Poller)
	}
	a.poller = p

	return p, nil
}

func (a *App) initAPI() (services.Service, error) {
	a.cfg.API.StationName = a.cfg.Poller.StationName

	h, err := api.New(a.cfg.API, a.logger, a.poller, a.artwork, a.history, a.lyrics)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+API)
	}
	h.RegisterRoutes(a.Server.HTTP)

	return h, nil
}

func (a *App) initServer() (services.Service, error) {
	a.cfg.Server.MetricsNamespace = metricsNamespace
	a.cfg.Server.ExcludeRequestInLog = true
	a.cfg.Server.RegisterInstrumentation = true
	a.cfg.Server.Log = kitlog.NewLogfmtLogger(os.Stderr)

	server, err := server.New(a.cfg.Server)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create server")
	}

	servicesToWaitFor := func() []services.Service {
		svs := []services.Service(nil)
		for m, s := range a.serviceMap {
			// Server should not wait for itself.
			if m != Server {
				svs = append(svs, s)
			}
		}

		return svs
	}

	a.Server = server

	serverDone := make(chan error, 1)

	runFn := func(ctx context.Context) error {
		go func() {
			defer close(serverDone)
			serverDone <- server.Run()
		}()

		select {
		case <-ctx.Done():
			return nil
		case err := <-serverDone:
			if err != nil {
				return err
			}

			return fmt.Errorf("server stopped unexpectedly")
		}
	}

	stoppingFn := func(_ error) error {
		// wait until all modules are done, and then shutdown server.
		for _, s := range servicesToWaitFor() {
			_ = s.AwaitTerminated(context.Background())
		}

		// shutdown HTTP and gRPC servers (this also unblocks Run)
		server.Shutdown()

		// if not closed yet, wait until server stops.
		<-serverDone
		a.logger.Info("server stopped")
		return nil
	}

	return services.NewBasicService(nil, runFn, stoppingFn), nil
}
