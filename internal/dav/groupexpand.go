package dav

import (
	"context"

	"github.com/sonroyaalmerol/shuriken-dav/internal/authz"
)

// groupExpander implements authz.GroupExpander over storage.Store's
// membership table, expanding a principal into its full transitive group
// closure. §3's Group/Membership invariant ("transitively
// expanding a principal never yields itself unless reflexive; loops are
// broken by visited-set") is enforced by the visited map below.
type groupExpander struct {
	h *Handlers
}

func (g groupExpander) ExpandedSubjects(ctx context.Context, subject authz.Subject) ([]authz.Subject, error) {
	if subject.Kind != authz.SubjectPrincipal {
		return []authz.Subject{subject}, nil
	}
	visited := map[string]bool{subject.PrincipalID: true}
	out := []authz.Subject{subject}
	queue := []string{subject.PrincipalID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		groups, err := g.h.store.ListMemberGroups(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, grp := range groups {
			if visited[grp.ID] {
				continue
			}
			visited[grp.ID] = true
			out = append(out, authz.PrincipalSubject(grp.ID))
			queue = append(queue, grp.ID)
		}
	}
	return out, nil
}
