package path

import (
	"context"
	"testing"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
)

func TestParseRawPathHome(t *testing.T) {
	raw, err := ParseRawPath("/api/dav/cal/alice", "/api/dav")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if raw.ResourceType != Calendar || raw.OwnerSlug != "alice" || raw.CollectionSlug != "" {
		t.Fatalf("raw = %+v", raw)
	}
}

func TestParseRawPathFullHref(t *testing.T) {
	raw, err := ParseRawPath("https://dav.example.com/api/dav/card/bob/friends/c1.vcf", "/api/dav")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if raw.ResourceType != Addressbook || raw.OwnerSlug != "bob" || raw.CollectionSlug != "friends" || raw.ResourceSlug != "c1.vcf" {
		t.Fatalf("raw = %+v", raw)
	}
}

func TestParseRawPathInvalidTree(t *testing.T) {
	if _, err := ParseRawPath("/api/dav/xmpp/alice", "/api/dav"); err == nil {
		t.Fatalf("expected error for unknown tree")
	} else if e, ok := apperr.As(err); !ok || e.Kind != apperr.Parse {
		t.Fatalf("expected Parse kind, got %v", err)
	}
}

func TestParseRawPathTooManySegments(t *testing.T) {
	if _, err := ParseRawPath("/api/dav/cal/alice/work/meeting.ics/extra", "/api/dav"); err == nil {
		t.Fatalf("expected error for too many segments")
	}
}

type fakePrincipals struct {
	id    string
	found bool
}

func (f fakePrincipals) LookupPrincipal(ctx context.Context, slugOrID string) (string, bool, error) {
	return f.id, f.found, nil
}

type fakeCollections struct {
	id    string
	found bool
}

func (f fakeCollections) LookupCollection(ctx context.Context, ownerID string, kind ResourceTypeKind, slugOrID string) (string, bool, error) {
	return f.id, f.found, nil
}

type fakeInstances struct {
	id    string
	found bool
}

func (f fakeInstances) LookupInstance(ctx context.Context, collectionID string, slugOrID string) (string, bool, error) {
	return f.id, f.found, nil
}

func TestResolveFullPath(t *testing.T) {
	raw := RawPath{ResourceType: Calendar, OwnerSlug: "alice", CollectionSlug: "work", ResourceSlug: "meeting.ics"}
	loc, err := Resolve(context.Background(), raw,
		fakePrincipals{id: "p1", found: true},
		fakeCollections{id: "c1", found: true},
		fakeInstances{id: "r1", found: true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	pid, _ := loc.PrincipalID()
	cid, _ := loc.CollectionID()
	rid, _ := loc.ResourceID()
	if pid != "p1" || cid != "c1" || rid != "r1" {
		t.Fatalf("loc = %+v", loc)
	}
	if loc.ResourceType() != Calendar {
		t.Fatalf("resource type = %v", loc.ResourceType())
	}
}

func TestResolvePrincipalNotFound(t *testing.T) {
	raw := RawPath{ResourceType: Calendar, OwnerSlug: "ghost"}
	_, err := Resolve(context.Background(), raw,
		fakePrincipals{found: false}, fakeCollections{}, fakeInstances{})
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestResolveCollectionNotFound(t *testing.T) {
	raw := RawPath{ResourceType: Calendar, OwnerSlug: "alice", CollectionSlug: "ghost-cal"}
	_, err := Resolve(context.Background(), raw,
		fakePrincipals{id: "p1", found: true}, fakeCollections{found: false}, fakeInstances{})
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestResolveHomeOnly(t *testing.T) {
	raw := RawPath{ResourceType: Addressbook, OwnerSlug: "alice"}
	loc, err := Resolve(context.Background(), raw,
		fakePrincipals{id: "p1", found: true}, fakeCollections{}, fakeInstances{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := loc.CollectionID(); ok {
		t.Fatalf("expected no collection segment for home-only path")
	}
}
