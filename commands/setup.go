package commands

import (
	"fmt"

	"github.com/mattsolo1/grove-watch/internal/api"
	"github.com/mattsolo1/grove-watch/internal/config"
	"github.com/mattsolo1/grove-watch/internal/github"
	"github.com/mattsolo1/grove-watch/internal/notify"
	"github.com/mattsolo1/grove-watch/internal/state"
	"github.com/mattsolo1/grove-watch/internal/storage/disk"
	"github.com/mattsolo1/grove-watch/internal/storage/interfaces"
)

// engine bundles everything a command needs to talk to the reconciliation
// core. Close releases the store and flushes pending notifications.
type engine struct {
	cfg        *config.Config
	store      interfaces.KeyValueStorer
	client     *api.Client
	tracker    *state.Tracker
	supervisor *notify.Supervisor
}

func newEngine() (*engine, error) {
	cfg := config.Load()

	store, err := disk.NewSQLiteStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	client := api.NewClient(cfg)
	supervisor := notify.NewSupervisor(notify.FromConfig(cfg))

	tokenFn := func() (string, error) {
		return github.ResolveToken(cfg.GitHub.Token)
	}
	tracker := state.NewTracker(store, client, github.NewClient(), supervisor, tokenFn)

	return &engine{
		cfg:        cfg,
		store:      store,
		client:     client,
		tracker:    tracker,
		supervisor: supervisor,
	}, nil
}

func (e *engine) Close() {
	e.supervisor.Close()
	e.store.Close()
}
