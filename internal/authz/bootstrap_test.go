package authz

import (
	"context"
	"testing"
)

func TestDefaultPolicyGrantsOwnerOnOwnHome(t *testing.T) {
	policy := DefaultPolicy("/dav", []PrincipalRef{
		{ID: "alice-id", Slug: "alice"},
		{ID: "bob-id", Slug: "bob"},
	})
	authorizer := NewAuthorizer(policy, nil)

	cases := []struct {
		subject Subject
		href    string
		action  Action
		allowed bool
	}{
		{PrincipalSubject("alice-id"), "/dav/cal/alice", Admin, true},
		{PrincipalSubject("alice-id"), "/dav/cal/alice/work", Edit, true},
		{PrincipalSubject("alice-id"), "/dav/cal/alice/work/event-1.ics", Delete, true},
		{PrincipalSubject("alice-id"), "/dav/card/alice/contacts", Edit, true},
		{PrincipalSubject("alice-id"), "/dav/cal/bob/work", Read, false},
		{PrincipalSubject("bob-id"), "/dav/cal/alice/work", Read, false},
	}
	for _, c := range cases {
		d, err := authorizer.Authorize(context.Background(), c.subject, c.href, c.action)
		if err != nil {
			t.Fatalf("authorize(%v, %s, %v): %v", c.subject, c.href, c.action, err)
		}
		if d.Allowed != c.allowed {
			t.Fatalf("authorize(%v, %s, %v) = %v, want %v", c.subject, c.href, c.action, d.Allowed, c.allowed)
		}
	}
}

func TestDefaultPolicyBasePathTrailingSlash(t *testing.T) {
	policy := DefaultPolicy("/dav/", []PrincipalRef{{ID: "alice-id", Slug: "alice"}})
	authorizer := NewAuthorizer(policy, nil)
	d, err := authorizer.Authorize(context.Background(), PrincipalSubject("alice-id"), "/dav/cal/alice/work", Edit)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow regardless of trailing slash in basePath")
	}
}

func TestDefaultPolicyEmptyBasePathDefaults(t *testing.T) {
	policy := DefaultPolicy("", []PrincipalRef{{ID: "alice-id", Slug: "alice"}})
	found := false
	for _, g := range policy.Grants {
		if g.PathGlob == "/dav/cal/alice" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a grant rooted at /dav/cal/alice, got %v", policy.Grants)
	}
}
