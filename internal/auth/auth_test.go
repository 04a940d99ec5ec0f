package auth

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/shuriken-dav/internal/store/model"
)

type fakeResolver struct {
	principals map[string]*model.Principal
	err        error
}

func (f fakeResolver) GetPrincipalBySlug(ctx context.Context, slug string) (*model.Principal, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	p, ok := f.principals[slug]
	return p, ok, nil
}

func TestAuthenticateMissingHeader(t *testing.T) {
	chain := NewChain(fakeResolver{principals: map[string]*model.Principal{}}, "X-Remote-User", zerolog.New(io.Discard))
	req := httptest.NewRequest("GET", "/dav/cal/alice", nil)

	p, err := chain.Authenticate(context.Background(), req)
	if err == nil || p != nil {
		t.Fatalf("expected error and nil principal for missing header, got %v, %v", p, err)
	}
}

func TestAuthenticateUnknownPrincipal(t *testing.T) {
	chain := NewChain(fakeResolver{principals: map[string]*model.Principal{}}, "X-Remote-User", zerolog.New(io.Discard))
	req := httptest.NewRequest("GET", "/dav/cal/alice", nil)
	req.Header.Set("X-Remote-User", "ghost")

	p, err := chain.Authenticate(context.Background(), req)
	if err == nil || p != nil {
		t.Fatalf("expected error and nil principal for unknown slug, got %v, %v", p, err)
	}
}

func TestAuthenticateKnownPrincipal(t *testing.T) {
	alice := &model.Principal{ID: "alice-id", Slug: "alice", DisplayName: "Alice"}
	chain := NewChain(fakeResolver{principals: map[string]*model.Principal{"alice": alice}}, "X-Remote-User", zerolog.New(io.Discard))
	req := httptest.NewRequest("GET", "/dav/cal/alice", nil)
	req.Header.Set("X-Remote-User", "alice")

	p, err := chain.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.ID != "alice-id" || p.Slug != "alice" || p.Display != "Alice" {
		t.Fatalf("principal = %+v, want alice-id/alice/Alice", p)
	}
}

func TestAuthenticateStoreError(t *testing.T) {
	chain := NewChain(fakeResolver{err: errors.New("db down")}, "X-Remote-User", zerolog.New(io.Discard))
	req := httptest.NewRequest("GET", "/dav/cal/alice", nil)
	req.Header.Set("X-Remote-User", "alice")

	_, err := chain.Authenticate(context.Background(), req)
	if err == nil {
		t.Fatalf("expected store error to propagate")
	}
}

func TestWithPrincipalRoundTrip(t *testing.T) {
	p := &Principal{ID: "alice-id", Slug: "alice"}
	ctx := WithPrincipal(context.Background(), p)
	got, ok := PrincipalFrom(ctx)
	if !ok || got != p {
		t.Fatalf("PrincipalFrom round trip failed: %v, %v", got, ok)
	}
	if _, ok := PrincipalFrom(context.Background()); ok {
		t.Fatalf("expected no principal on a bare context")
	}
}
