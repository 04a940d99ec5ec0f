package authz

import (
	"context"
	"testing"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
)

func TestActionForMethod(t *testing.T) {
	cases := map[string]Action{
		"GET": Read, "PROPFIND": Read, "REPORT": Read,
		"PUT": Edit, "MKCALENDAR": Edit,
		"DELETE": Delete,
		"ACL":    ShareEdit,
	}
	for method, want := range cases {
		got, ok := ActionForMethod(method)
		if !ok || got != want {
			t.Fatalf("%s: action = %v, ok = %v, want %v", method, got, ok, want)
		}
	}
	if _, ok := ActionForMethod("OPTIONS"); ok {
		t.Fatalf("OPTIONS should have no Action (always allowed)")
	}
}

func TestAuthorizeOwnerGrant(t *testing.T) {
	policy := Policy{Grants: []Grant{
		{Subject: PrincipalSubject("alice"), PathGlob: "/api/dav/cal/alice/*", Role: RoleOwner},
	}}
	authz := NewAuthorizer(policy, nil)
	d, err := authz.Authorize(context.Background(), PrincipalSubject("alice"), "/api/dav/cal/alice/work", Edit)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow")
	}
}

func TestAuthorizeDeniedProducesNeedPrivileges(t *testing.T) {
	policy := Policy{Grants: []Grant{
		{Subject: PrincipalSubject("alice"), PathGlob: "/api/dav/cal/alice/*", Role: RoleReader},
	}}
	authz := NewAuthorizer(policy, nil)
	d, err := authz.Authorize(context.Background(), PrincipalSubject("alice"), "/api/dav/cal/alice/work", Edit)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Allowed {
		t.Fatalf("reader role should not permit Edit")
	}
	e, ok := apperr.As(d.Denied)
	if !ok || e.Kind != apperr.Authz {
		t.Fatalf("denied error should be apperr.Authz, got %v", d.Denied)
	}
	if e.DAVBody == nil {
		t.Fatalf("denied decision should carry a need-privileges body")
	}
}

func TestAuthorizeNoMatchingGrantDenies(t *testing.T) {
	authz := NewAuthorizer(Policy{}, nil)
	d, err := authz.Authorize(context.Background(), PrincipalSubject("bob"), "/api/dav/cal/alice/work", Read)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected deny with no matching grant")
	}
}

func TestPrivilegesForReader(t *testing.T) {
	policy := Policy{Grants: []Grant{
		{Subject: PrincipalSubject("alice"), PathGlob: "/api/dav/cal/alice/*", Role: RoleReader},
	}}
	authz := NewAuthorizer(policy, nil)
	privs, err := authz.PrivilegesFor(context.Background(), PrincipalSubject("alice"), "/api/dav/cal/alice/work")
	if err != nil {
		t.Fatalf("privileges: %v", err)
	}
	want := []string{"read", "read-free-busy"}
	if len(privs) != len(want) {
		t.Fatalf("privs = %v, want %v", privs, want)
	}
	for i := range want {
		if privs[i] != want[i] {
			t.Fatalf("privs = %v, want %v", privs, want)
		}
	}
}

func TestRolePrivileges(t *testing.T) {
	got := RoleOwner.Privileges()
	want := []string{"all", "read", "read-acl", "read-free-busy", "unbind", "write-acl", "write-content"}
	if len(got) != len(want) {
		t.Fatalf("owner privileges = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("owner privileges = %v, want %v", got, want)
		}
	}
	readerGot := RoleReader.Privileges()
	readerWant := []string{"read", "read-free-busy"}
	if len(readerGot) != len(readerWant) || readerGot[0] != readerWant[0] || readerGot[1] != readerWant[1] {
		t.Fatalf("reader privileges = %v, want %v", readerGot, readerWant)
	}
}

func TestGrantsMatching(t *testing.T) {
	policy := Policy{Grants: []Grant{
		{Subject: PrincipalSubject("alice"), PathGlob: "/api/dav/cal/alice/*", Role: RoleOwner},
		{Subject: Public, PathGlob: "/api/dav/cal/alice/public", Role: RoleReader},
		{Subject: PrincipalSubject("bob"), PathGlob: "/api/dav/cal/bob/*", Role: RoleOwner},
	}}
	authz := NewAuthorizer(policy, nil)

	matches := authz.GrantsMatching("/api/dav/cal/alice/work")
	if len(matches) != 1 || matches[0].Subject != PrincipalSubject("alice") {
		t.Fatalf("GrantsMatching = %v, want one alice grant", matches)
	}

	none := authz.GrantsMatching("/api/dav/cal/carol/work")
	if len(none) != 0 {
		t.Fatalf("GrantsMatching = %v, want none", none)
	}
}

type fakeExpander struct {
	extra []Subject
}

func (f fakeExpander) ExpandedSubjects(ctx context.Context, subject Subject) ([]Subject, error) {
	return append([]Subject{subject}, f.extra...), nil
}

func TestGroupExpansionAppliesGroupGrants(t *testing.T) {
	groupSubject := PrincipalSubject("team-eng")
	policy := Policy{Grants: []Grant{
		{Subject: groupSubject, PathGlob: "/api/dav/cal/shared/*", Role: RoleEditorBasic},
	}}
	authz := NewAuthorizer(policy, fakeExpander{extra: []Subject{groupSubject}})
	d, err := authz.Authorize(context.Background(), PrincipalSubject("carol"), "/api/dav/cal/shared/roadmap", Edit)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow via group membership expansion")
	}
}
