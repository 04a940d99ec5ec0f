package authz

import "strings"

// PrincipalRef is the (id, slug) pair DefaultPolicy needs per principal. It
// exists so this package never has to import store/model just to read two
// string fields off a row.
type PrincipalRef struct {
	ID   string
	Slug string
}

// DefaultPolicy builds the startup grant snapshot §4.10 calls for:
// every principal is an owner of their own calendar and addressbook home
// tree (the home itself, its collections, and those collections' resources
// — three glob depths, since Grant.PathGlob's single-segment "*" doesn't
// cross a "/"). It is deliberately the only rule this server ships with;
// anything beyond self-ownership (sharing a calendar with another
// principal or group, a read-only public link) is an additional Grant a
// deployment appends to the returned Policy before handing it to
// NewAuthorizer — §4.10 names path-glob grants as the mechanism
// but leaves any such grant's data source unspecified, so there is no
// sharing-administration API in this pass (see DESIGN.md's C8 note on the
// ACL method: the same "no live policy mutation" boundary applies here).
func DefaultPolicy(basePath string, principals []PrincipalRef) Policy {
	base := strings.TrimSuffix(basePath, "/")
	if base == "" {
		base = "/dav"
	}
	var grants []Grant
	for _, p := range principals {
		subject := PrincipalSubject(p.ID)
		for _, tree := range []string{"cal", "card"} {
			home := base + "/" + tree + "/" + p.Slug
			grants = append(grants,
				Grant{Subject: subject, PathGlob: home, Role: RoleOwner},
				Grant{Subject: subject, PathGlob: home + "/*", Role: RoleOwner},
				Grant{Subject: subject, PathGlob: home + "/*/*", Role: RoleOwner},
			)
		}
	}
	return Policy{Grants: grants}
}
