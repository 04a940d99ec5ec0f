// Package auth resolves the authenticated principal a request carries.
// Password/bearer/basic/proxy authentication schemes are out of scope: the
// core consumes an already-authenticated principal. This package is that
// consumption boundary, not a credential verifier — it trusts an upstream
// reverse proxy (or any other authenticating front door) to have already
// checked the caller's identity and to pass it through in a fixed request
// header, then resolves that header's value to a principal row.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/shuriken-dav/internal/store/model"
)

// Principal is the authenticated identity attached to a request context.
type Principal struct {
	ID      string
	Slug    string
	Display string
}

type ctxKey int

const principalKey ctxKey = 1

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom recovers the principal WithPrincipal attached, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

// PrincipalResolver is the subset of storage.Store identity resolution
// needs.
type PrincipalResolver interface {
	GetPrincipalBySlug(ctx context.Context, slug string) (*model.Principal, bool, error)
}

// Chain resolves the Principal named by a trusted upstream header. There is
// only one scheme because identity verification itself is someone else's
// job; Chain only ever maps an already-vouched-for slug to a database row.
type Chain struct {
	store      PrincipalResolver
	headerName string
	logger     zerolog.Logger
}

// NewChain builds a Chain reading the caller's identity from headerName
// (e.g. "X-Remote-User", the nginx/oauth2-proxy/Authelia convention).
func NewChain(store PrincipalResolver, headerName string, logger zerolog.Logger) *Chain {
	return &Chain{store: store, headerName: headerName, logger: logger}
}

// Authenticate resolves the principal named by req's trusted-identity
// header. It returns an error if the header is absent or names no known
// principal; the router treats both as anonymous (Subject: Public), not as
// a hard failure, since §4.4's PROPFIND on a public share must
// still be reachable without any header at all.
func (c *Chain) Authenticate(ctx context.Context, req *http.Request) (*Principal, error) {
	slug := req.Header.Get(c.headerName)
	if slug == "" {
		return nil, errors.New("no trusted identity header")
	}
	p, found, err := c.store.GetPrincipalBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("unknown principal")
	}
	return &Principal{ID: p.ID, Slug: p.Slug, Display: p.DisplayName}, nil
}
