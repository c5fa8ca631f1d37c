package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/viper"

	"github.com/darmiel/linkgate/internal/audit"
	"github.com/darmiel/linkgate/internal/config"
	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/platforms"
	"github.com/darmiel/linkgate/internal/service"
	"github.com/darmiel/linkgate/internal/store"
	"github.com/darmiel/linkgate/pkg/client"
)

type Factory struct {
	// RemoteAddr is the address of the LinkGate server to connect to.
	RemoteAddr string
}

func NewFactory() *Factory {
	return &Factory{}
}

// GetClient returns an authenticated admin API client.
func (f *Factory) GetClient() (*client.Client, error) {
	server := f.RemoteAddr // prio 1: command-line flag
	if server == "" {
		server = viper.GetString(ServerAddrKey) // prio 2: user config / env
	}
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set LINKGATE_SERVER)")
	}
	return client.New(server, client.WithAuthToken(viper.GetString(AuthTokenKey))), nil
}

func (f *Factory) LoadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return nil, fmt.Errorf("config file not specified (use --config)")
	}
	return config.Load(cfgFile)
}

// Runtime is everything serve needs, built from the service configuration.
type Runtime struct {
	Config      *config.Config
	Store       store.Store
	Auditor     core.Auditor
	Coordinator *service.Coordinator
}

func (r *Runtime) Close() error {
	storeErr := r.Store.Close()
	if err := r.Auditor.Close(); err != nil {
		return fmt.Errorf("closing auditor: %w", err)
	}
	if storeErr != nil {
		return fmt.Errorf("closing store: %w", storeErr)
	}
	return nil
}

func (f *Factory) BuildRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	tokenStore, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("creating token store: %w", err)
	}

	auditor, err := audit.New(cfg.Audit)
	if err != nil {
		_ = tokenStore.Close()
		return nil, fmt.Errorf("creating auditor: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Server.UpstreamTimeout}
	clients, err := platforms.BuildRegistry(cfg.Platforms, httpClient)
	if err != nil {
		_ = tokenStore.Close()
		_ = auditor.Close()
		return nil, fmt.Errorf("building platform registry: %w", err)
	}

	coord := service.NewCoordinator(tokenStore, clients,
		service.WithAuditor(auditor),
		service.WithThresholds(cfg.Renewal.StrictThreshold, cfg.Renewal.BatchThreshold),
	)

	return &Runtime{
		Config:      cfg,
		Store:       tokenStore,
		Auditor:     auditor,
		Coordinator: coord,
	}, nil
}
