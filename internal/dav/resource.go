package dav

import (
	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/ical"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/vcard"
	"github.com/sonroyaalmerol/shuriken-dav/internal/storage"
	"github.com/sonroyaalmerol/shuriken-dav/internal/store/mapper"
)

const (
	contentTypeICal  = "text/calendar; charset=utf-8"
	contentTypeVCard = "text/vcard; charset=utf-8"
)

// serializeTree reconstructs the canonical bytes for tree, dispatching on
// the resource tree kind the path named.
func serializeTree(kind path.ResourceTypeKind, tree storage.EntityTree) ([]byte, string, error) {
	if kind == path.Addressbook {
		vc := mapper.VCardFromTree(mapper.VCardTree{
			Entity:     tree.Entity,
			Components: tree.Components,
			Properties: tree.Properties,
			Parameters: tree.Parameters,
		})
		if vc == nil {
			return nil, "", apperr.New(apperr.Invariant, "vcard tree has no rows")
		}
		return vcard.Serialize(vc), contentTypeVCard, nil
	}
	root := mapper.ICalFromTree(mapper.ICalTree{
		Entity:     tree.Entity,
		Components: tree.Components,
		Properties: tree.Properties,
		Parameters: tree.Parameters,
	})
	if root == nil {
		return nil, "", apperr.New(apperr.Invariant, "ical tree has no rows")
	}
	return ical.Serialize(root), contentTypeICal, nil
}

// preorderComponents lists c and its descendants in the same pre-order
// traversal internal/store/mapper.flattenComponent uses to assign rows, so
// callers can zip it against a resulting storage.EntityTree's Components
// slice to recover which model.Component backs which parsed node.
func preorderComponents(c *ical.Component) []*ical.Component {
	var out []*ical.Component
	var visit func(*ical.Component)
	visit = func(n *ical.Component) {
		out = append(out, n)
		for _, ch := range n.Children {
			visit(ch)
		}
	}
	visit(c)
	return out
}
