// Package authz implements C10: deciding whether a subject may perform an
// action on a resource, and answering the current-user-privilege-set
// question the PROPFIND handler needs: a role/grant policy engine built
// around path-glob grants and a closed Action enum, rather than a single
// per-calendar ACL row shape, so one mechanism covers the cal and card
// trees and arbitrarily nested collections alike.
package authz

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/davxml"
)

// Action is one of the seven operations §4.10 names.
type Action string

const (
	Read         Action = "read"
	ReadFreebusy Action = "read_freebusy"
	Edit         Action = "edit"
	Delete       Action = "delete"
	ShareRead    Action = "share_read"
	ShareEdit    Action = "share_edit"
	Admin        Action = "admin"
)

// privilegeName maps an Action to the WebDAV privilege name a denial's
// need-privileges body must cite, per §4.10.
var privilegeName = map[Action]string{
	Read:         "read",
	ReadFreebusy: "read-free-busy",
	Edit:         "write-content",
	Delete:       "unbind",
	ShareRead:    "read-acl",
	ShareEdit:    "write-acl",
	Admin:        "all",
}

// ActionForMethod maps an HTTP method to the Action it requires. OPTIONS is
// always allowed and has no Action; ok is false for it and any method this
// server does not route.
func ActionForMethod(method string) (action Action, ok bool) {
	switch method {
	case "GET", "HEAD", "PROPFIND", "REPORT":
		return Read, true
	case "PUT", "PROPPATCH", "MKCOL", "MKCALENDAR", "COPY", "MOVE":
		return Edit, true
	case "DELETE":
		return Delete, true
	case "ACL":
		return ShareEdit, true
	default:
		return "", false
	}
}

// SubjectKind distinguishes an authenticated principal from the anonymous
// public pseudo-subject.
type SubjectKind int

const (
	SubjectPrincipal SubjectKind = iota
	SubjectPublic
)

// Subject is the authenticated identity an Action is evaluated for.
type Subject struct {
	Kind        SubjectKind
	PrincipalID string
}

// Public is the anonymous subject every unauthenticated request maps to.
var Public = Subject{Kind: SubjectPublic}

// PrincipalSubject wraps a principal ID as a Subject.
func PrincipalSubject(id string) Subject {
	return Subject{Kind: SubjectPrincipal, PrincipalID: id}
}

// GroupExpander computes a principal's group membership closure, used to
// expand a single authenticated Subject into every Subject whose grants
// should also apply.
type GroupExpander interface {
	ExpandedSubjects(ctx context.Context, subject Subject) ([]Subject, error)
}

// Role is a named permission set, per §4.10.
type Role string

const (
	RoleReader      Role = "reader"
	RoleEditorBasic Role = "editor-basic"
	RoleEditor      Role = "editor"
	RoleOwner       Role = "owner"
)

var rolePermissions = map[Role]map[Action]bool{
	RoleReader: {
		Read: true, ReadFreebusy: true,
	},
	RoleEditorBasic: {
		Read: true, ReadFreebusy: true, Edit: true,
	},
	RoleEditor: {
		Read: true, ReadFreebusy: true, Edit: true, Delete: true,
	},
	RoleOwner: {
		Read: true, ReadFreebusy: true, Edit: true, Delete: true,
		ShareRead: true, ShareEdit: true, Admin: true,
	},
}

func (r Role) permits(a Action) bool {
	return rolePermissions[r][a]
}

// Privileges lists the WebDAV privilege names this role grants, sorted for
// deterministic DAV:acl output.
func (r Role) Privileges() []string {
	out := make([]string, 0, len(privilegeName))
	for action, name := range privilegeName {
		if r.permits(action) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Grant is one (subject, path-glob, role) policy triple. PathGlob is
// matched against the resource href with filepath.Match semantics (this system's design
// does not mandate a specific glob dialect; filepath.Match's single-segment
// "*" plus "?"/"[...]" classes is the idiomatic standard-library choice
// with no ecosystem glob library anywhere in the retrieved corpus).
type Grant struct {
	Subject  Subject
	PathGlob string
	Role     Role
}

// Policy is the full grant set loaded at startup. An Authorizer keeps the
// Policy it was built with for its whole lifetime: no method replaces it,
// so a changed grant set takes effect only through a new Authorizer.
type Policy struct {
	Grants []Grant
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	// Denied, when Allowed is false, is the apperr.Authz ready to return to
	// the caller, pre-populated with a need-privileges body.
	Denied *apperr.Error
}

// Authorizer evaluates (subjects × resource × action) → Decision, and
// answers privileges_for for current-user-privilege-set.
type Authorizer struct {
	policy Policy
	expand GroupExpander
}

// NewAuthorizer constructs an Authorizer over a fixed policy snapshot.
func NewAuthorizer(policy Policy, expand GroupExpander) *Authorizer {
	return &Authorizer{policy: policy, expand: expand}
}

// Authorize decides whether subject may perform action on the resource
// identified by href. On denial, Decision.Denied is a ready-to-return
// apperr.Error carrying a <DAV:need-privileges> body naming href and the
// action's mapped privilege, per §4.10.
func (a *Authorizer) Authorize(ctx context.Context, subject Subject, href string, action Action) (Decision, error) {
	subjects, err := a.expandedSubjects(ctx, subject)
	if err != nil {
		return Decision{}, apperr.Wrap(apperr.Database, err, "expand subject groups").Retry()
	}
	if a.permits(subjects, href, action) {
		return Decision{Allowed: true}, nil
	}
	priv := privilegeName[action]
	body := davxml.NeedPrivileges(href, davxml.QName{Space: davxml.NSDAV, Local: priv})
	denied := apperr.New(apperr.Authz, "subject lacks privilege %q on %s", priv, href).WithBody(body)
	return Decision{Allowed: false, Denied: denied}, nil
}

func (a *Authorizer) permits(subjects []Subject, href string, action Action) bool {
	for _, g := range a.policy.Grants {
		if !subjectMatches(subjects, g.Subject) {
			continue
		}
		matched, err := filepath.Match(g.PathGlob, href)
		if err != nil || !matched {
			continue
		}
		if g.Role.permits(action) {
			return true
		}
	}
	return false
}

func subjectMatches(subjects []Subject, grantSubject Subject) bool {
	for _, s := range subjects {
		if s == grantSubject {
			return true
		}
	}
	return false
}

func (a *Authorizer) expandedSubjects(ctx context.Context, subject Subject) ([]Subject, error) {
	if a.expand == nil {
		return []Subject{subject, Public}, nil
	}
	expanded, err := a.expand.ExpandedSubjects(ctx, subject)
	if err != nil {
		return nil, err
	}
	return append(expanded, Public), nil
}

// PrivilegesFor answers the current-user-privilege-set DAV property: every
// WebDAV privilege name subject holds on href, deduplicated and sorted for
// deterministic PROPFIND output.
func (a *Authorizer) PrivilegesFor(ctx context.Context, subject Subject, href string) ([]string, error) {
	subjects, err := a.expandedSubjects(ctx, subject)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "expand subject groups").Retry()
	}
	held := map[string]bool{}
	for action := range privilegeName {
		if a.permits(subjects, href, action) {
			held[privilegeName[action]] = true
		}
	}
	out := make([]string, 0, len(held))
	for name := range held {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// GrantsMatching returns every policy grant whose PathGlob matches href, for
// surfacing as DAV:acl aces. Grants are a startup-loaded snapshot (see
// Policy's doc comment); this is a read path only, there is no mutation
// counterpart the ACL method can invoke.
func (a *Authorizer) GrantsMatching(href string) []Grant {
	var out []Grant
	for _, g := range a.policy.Grants {
		if matched, err := filepath.Match(g.PathGlob, href); err == nil && matched {
			out = append(out, g)
		}
	}
	return out
}
