package mapper

import (
	"github.com/google/uuid"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/vcard"
	"github.com/sonroyaalmerol/shuriken-dav/internal/store/model"
)

// VCardTree is the flattened row set C5 computes from one parsed VCard. A
// vCard has no sub-components, so every property attaches to a single
// synthetic "VCARD" component row — the same Component/Property/Parameter
// tables iCalendar uses, one level shallower.
type VCardTree struct {
	Entity     model.Entity
	Components []model.Component
	Properties []model.Property
	Parameters []model.Parameter
}

// VCardToTree implements vcard_to_db: flattens a parsed VCard into canonical
// rows.
func VCardToTree(card *vcard.VCard) VCardTree {
	tree := VCardTree{Entity: model.Entity{ID: uuid.NewString(), Type: model.EntityVCard}}
	if uid := vcard.UID(card); uid != "" {
		tree.Entity.LogicalUID = &uid
	}
	compID := uuid.NewString()
	tree.Components = append(tree.Components, model.Component{
		ID:       compID,
		EntityID: tree.Entity.ID,
		ParentID: nil,
		Ordinal:  0,
		Name:     "VCARD",
	})
	for i, p := range card.Properties {
		v := p.Value
		row := model.Property{
			ID:          uuid.NewString(),
			ComponentID: compID,
			Ordinal:     i,
			Name:        p.Name,
			Group:       p.Group,
			ValueKind:   model.ValueText,
			TextValue:   &v,
		}
		tree.Properties = append(tree.Properties, row)
		for j, param := range p.Parameters {
			tree.Parameters = append(tree.Parameters, model.Parameter{
				ID:         uuid.NewString(),
				PropertyID: row.ID,
				Ordinal:    j,
				Name:       param.Name,
				Values:     append([]string(nil), param.Values...),
			})
		}
	}
	return tree
}

// VCardFromTree implements vcard_from_db: reconstructs a VCard from
// canonical rows such that vcard.Serialize(VCardFromTree(tree)) reproduces
// the exact bytes that were parsed to build tree.
func VCardFromTree(tree VCardTree) *vcard.VCard {
	paramsByProperty := map[string][]model.Parameter{}
	for _, pm := range tree.Parameters {
		paramsByProperty[pm.PropertyID] = append(paramsByProperty[pm.PropertyID], pm)
	}
	card := &vcard.VCard{}
	props := append([]model.Property(nil), tree.Properties...)
	for i := range props {
		row := props[i]
		var value string
		if row.TextValue != nil {
			value = *row.TextValue
		}
		p := &vcard.Property{Name: row.Name, Group: row.Group, Value: value}
		for _, pm := range paramsByProperty[row.ID] {
			p.Parameters = append(p.Parameters, &vcard.Parameter{Name: pm.Name, Values: pm.Values})
		}
		card.Properties = append(card.Properties, p)
	}
	return card
}
