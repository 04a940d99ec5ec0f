// Command shuriken-dav-bootstrap creates a principal out of band: this
// server has no directory to source identities from, so the thing actually
// missing before a trusted-header login can succeed is the principal row
// itself. Calendars and addressbooks don't need a bootstrap step — they're
// created over DAV via MKCOL/MKCALENDAR once a principal exists.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/sonroyaalmerol/shuriken-dav/internal/config"
	"github.com/sonroyaalmerol/shuriken-dav/internal/logging"
	"github.com/sonroyaalmerol/shuriken-dav/internal/storage"
	"github.com/sonroyaalmerol/shuriken-dav/internal/storage/postgres"
	"github.com/sonroyaalmerol/shuriken-dav/internal/storage/sqlite"
	"github.com/sonroyaalmerol/shuriken-dav/internal/store/model"
)

func main() {
	var (
		slug        string
		displayName string
		kind        string
	)
	flag.StringVar(&slug, "slug", "", "Principal slug (required); this is the value the trusted-user header must carry")
	flag.StringVar(&displayName, "display", "", "Display name (optional; defaults to slug)")
	flag.StringVar(&kind, "type", "user", "Principal type: user or group")
	flag.Parse()

	if slug == "" {
		fmt.Fprintln(os.Stderr, "usage: shuriken-dav-bootstrap -slug <slug> [-display <name>] [-type user|group]")
		os.Exit(2)
	}
	if displayName == "" {
		displayName = slug
	}

	var principalType model.PrincipalType
	switch kind {
	case "user":
		principalType = model.PrincipalUser
	case "group":
		principalType = model.PrincipalGroup
	default:
		fmt.Fprintf(os.Stderr, "unknown -type %q: want user or group\n", kind)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	logger = logger.With().Str("component", "bootstrap").Logger()

	ctx := context.Background()
	var store storage.Store
	switch cfg.Storage.Type {
	case "postgres":
		store, err = postgres.New(ctx, cfg.Storage.PostgresURL, logger)
	case "sqlite":
		store, err = sqlite.New(cfg.Storage.SQLitePath, logger)
	default:
		err = fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "storage init: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if _, found, err := store.GetPrincipalBySlug(ctx, slug); err != nil {
		fmt.Fprintf(os.Stderr, "check existing principal: %v\n", err)
		os.Exit(1)
	} else if found {
		fmt.Fprintf(os.Stderr, "principal %q already exists\n", slug)
		os.Exit(1)
	}

	now := time.Now().UTC()
	p := model.Principal{
		ID:          uuid.NewString(),
		Type:        principalType,
		Slug:        slug,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreatePrincipal(ctx, p); err != nil {
		fmt.Fprintf(os.Stderr, "create principal: %v\n", err)
		os.Exit(1)
	}

	logger.Info().Str("slug", slug).Str("type", kind).Msg("principal created")
	fmt.Printf("Created principal slug=%s type=%s display=%q\n", slug, kind, displayName)
}
