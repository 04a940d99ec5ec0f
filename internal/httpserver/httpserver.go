// Package httpserver assembles the storage backend, auth chain, policy
// snapshot, method engine, and router into one listening *http.Server.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/shuriken-dav/internal/auth"
	"github.com/sonroyaalmerol/shuriken-dav/internal/authz"
	"github.com/sonroyaalmerol/shuriken-dav/internal/config"
	"github.com/sonroyaalmerol/shuriken-dav/internal/dav"
	"github.com/sonroyaalmerol/shuriken-dav/internal/router"
	"github.com/sonroyaalmerol/shuriken-dav/internal/storage"
	"github.com/sonroyaalmerol/shuriken-dav/internal/storage/postgres"
	"github.com/sonroyaalmerol/shuriken-dav/internal/storage/sqlite"
)

type Server struct {
	http   *http.Server
	logger zerolog.Logger
}

// NewServer wires one Store (postgres or sqlite, per cfg.Storage.Type),
// builds the default owner-on-own-home authz.Policy from the principal
// roster, and hands both to the trusted-header auth chain and the method
// engine before mounting them on the router.
func NewServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Server, func(), error) {
	var store storage.Store
	var err error

	switch cfg.Storage.Type {
	case "postgres":
		store, err = postgres.New(ctx, cfg.Storage.PostgresURL, logger)
	case "sqlite":
		store, err = sqlite.New(cfg.Storage.SQLitePath, logger)
	default:
		err = errors.New("unknown storage type: " + cfg.Storage.Type)
	}
	if err != nil {
		return nil, nil, err
	}

	policy, err := loadPolicy(ctx, cfg, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	authn := auth.NewChain(store, cfg.HTTP.TrustedUserHeader, logger)
	davh := dav.NewHandlers(cfg, store, policy, logger)
	mux := router.New(cfg, davh, authn, logger)

	srv := &Server{
		http: &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
	cleanup := func() {
		store.Close()
	}
	logger.Info().Msgf("listening on %s (storage=%s)", cfg.HTTP.Addr, cfg.Storage.Type)
	return srv, cleanup, nil
}

// loadPolicy builds the startup authz.Policy snapshot: every principal owns
// its own calendar and addressbook home tree. There is no sharing-grant
// source yet (see authz.DefaultPolicy's doc comment), so this is the whole
// policy for now.
func loadPolicy(ctx context.Context, cfg *config.Config, store storage.Store) (authz.Policy, error) {
	principals, err := store.ListPrincipals(ctx)
	if err != nil {
		return authz.Policy{}, err
	}
	refs := make([]authz.PrincipalRef, len(principals))
	for i, p := range principals {
		refs[i] = authz.PrincipalRef{ID: p.ID, Slug: p.Slug}
	}
	return authz.DefaultPolicy(cfg.HTTP.BasePath, refs), nil
}

func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
