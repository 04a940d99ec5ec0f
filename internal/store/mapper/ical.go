// Package mapper implements C5: translating parsed iCalendar/vCard trees
// into the canonical Entity/Component/Property/Parameter rows
// internal/storage persists, and reconstructing a tree from those rows that
// serializes back to the exact bytes that produced the stored ETag.
package mapper

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/ical"
	"github.com/sonroyaalmerol/shuriken-dav/internal/store/model"
)

// dateListRow is the JSON shape a multi-valued RDATE/EXDATE property is
// stored as, since model.Property has only one typed date column per row
// but RFC 5545 allows a comma-separated list on these two properties.
type dateListRow struct {
	DateTime bool     `json:"date_time"`
	Values   []string `json:"values"`
}

// ICalTree is the flattened row set C5 computes from one parsed VCALENDAR.
// IDs are assigned client-side (uuid v4) so parent/child foreign keys are
// already resolved before the rows reach internal/storage, which expects
// callers to supply ids rather than generate them via a DB sequence.
type ICalTree struct {
	Entity     model.Entity
	Components []model.Component
	Properties []model.Property
	Parameters []model.Parameter
}

// ICalToTree implements ical_to_db(ical): flattens a parsed VCALENDAR
// component tree into canonical rows.
func ICalToTree(root *ical.Component) ICalTree {
	tree := ICalTree{Entity: model.Entity{ID: uuid.NewString(), Type: model.EntityICal}}
	if uid := ical.LogicalUID(root); uid != "" {
		tree.Entity.LogicalUID = &uid
	}
	flattenComponent(&tree, root, nil)
	return tree
}

func flattenComponent(tree *ICalTree, c *ical.Component, parentID *string) string {
	compID := uuid.NewString()
	tree.Components = append(tree.Components, model.Component{
		ID:       compID,
		EntityID: tree.Entity.ID,
		ParentID: parentID,
		Ordinal:  len(tree.Components),
		Name:     c.Name(),
	})
	for i, p := range c.Properties {
		tree.Properties = append(tree.Properties, propertyToRow(tree.Entity.ID, compID, i, p))
		propID := tree.Properties[len(tree.Properties)-1].ID
		for j, param := range p.Parameters {
			tree.Parameters = append(tree.Parameters, model.Parameter{
				ID:         uuid.NewString(),
				PropertyID: propID,
				Ordinal:    j,
				Name:       param.Name,
				Values:     append([]string(nil), param.Values...),
			})
		}
	}
	for _, child := range c.Children {
		flattenComponent(tree, child, &compID)
	}
	return compID
}

func propertyToRow(entityID, compID string, ordinal int, p *ical.Property) model.Property {
	row := model.Property{
		ID:          uuid.NewString(),
		ComponentID: compID,
		Ordinal:     ordinal,
		Name:        p.Name,
		Group:       p.Group,
	}
	switch p.Value.Kind {
	case ical.ValueInt:
		row.ValueKind = model.ValueInt
		v := p.Value.Int
		row.IntValue = &v
	case ical.ValueBool:
		row.ValueKind = model.ValueBool
		v := p.Value.Bool
		row.BoolValue = &v
	case ical.ValueFloat:
		row.ValueKind = model.ValueFloat
		v := p.Value.Float
		row.FloatValue = &v
	case ical.ValueDate:
		if len(p.Value.DateList) > 1 {
			row.ValueKind = model.ValueJSON
			row.JSONValue = marshalDateList(p.Value.DateList, false)
		} else {
			row.ValueKind = model.ValueDate
			row.DateValue = dateTimeToColumn(p.Value.DateVal)
			utc := p.Value.DateVal.UTC
			row.DateIsUTC = &utc
		}
	case ical.ValueDateTime:
		if len(p.Value.DateList) > 1 {
			row.ValueKind = model.ValueJSON
			row.JSONValue = marshalDateList(p.Value.DateList, true)
		} else {
			row.ValueKind = model.ValueTimestampTZ
			row.DateValue = dateTimeToColumn(p.Value.DateVal)
			utc := p.Value.DateVal.UTC
			row.DateIsUTC = &utc
		}
	default:
		row.ValueKind = model.ValueText
		v := p.Value.Raw
		row.TextValue = &v
	}
	// ValueType (the explicit VALUE= tag) is recovered on read from the
	// VALUE parameter row itself, not duplicated here.
	return row
}

func dateTimeToColumn(dt ical.DateTime) *time.Time {
	t := time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Minute, dt.Second, 0, time.UTC)
	return &t
}

func marshalDateList(list []ical.DateTime, hasTime bool) []byte {
	row := dateListRow{DateTime: hasTime, Values: make([]string, len(list))}
	for i, dt := range list {
		row.Values[i] = dt.String()
	}
	b, err := json.Marshal(row)
	if err != nil {
		return []byte(`{"values":[]}`)
	}
	return b
}

// ICalFromTree implements ical_from_tree: reconstructs a Component tree from
// canonical rows such that Serialize(ICalFromTree(tree)) reproduces the
// exact bytes that were parsed to build tree.
func ICalFromTree(tree ICalTree) *ical.Component {
	byParent := map[string][]model.Component{}
	byID := map[string]*model.Component{}
	var root *model.Component
	for i := range tree.Components {
		c := &tree.Components[i]
		byID[c.ID] = c
		if c.ParentID == nil {
			root = c
		} else {
			byParent[*c.ParentID] = append(byParent[*c.ParentID], *c)
		}
	}
	propsByComponent := map[string][]model.Property{}
	for _, p := range tree.Properties {
		propsByComponent[p.ComponentID] = append(propsByComponent[p.ComponentID], p)
	}
	paramsByProperty := map[string][]model.Parameter{}
	for _, pm := range tree.Parameters {
		paramsByProperty[pm.PropertyID] = append(paramsByProperty[pm.PropertyID], pm)
	}
	if root == nil {
		return nil
	}
	return buildComponent(root, byParent, propsByComponent, paramsByProperty)
}

func buildComponent(row *model.Component, byParent map[string][]model.Component, propsByComponent map[string][]model.Property, paramsByProperty map[string][]model.Parameter) *ical.Component {
	c := componentFromRow(row)
	props := propsByComponent[row.ID]
	for i := range props {
		c.Properties = append(c.Properties, propertyFromRow(&props[i], paramsByProperty))
	}
	children := byParent[row.ID]
	for i := range children {
		c.Children = append(c.Children, buildComponent(&children[i], byParent, propsByComponent, paramsByProperty))
	}
	return c
}

func componentFromRow(row *model.Component) *ical.Component {
	if ical.IsUnknownComponentName(row.Name) {
		return ical.NewUnknownComponent(row.Name)
	}
	return ical.NewComponent(ical.ComponentKind(row.Name))
}

func propertyFromRow(row *model.Property, paramsByProperty map[string][]model.Parameter) *ical.Property {
	p := &ical.Property{Name: row.Name, Group: row.Group}
	paramRows := paramsByProperty[row.ID]
	for i := range paramRows {
		p.Parameters = append(p.Parameters, &ical.Parameter{Name: paramRows[i].Name, Values: paramRows[i].Values})
	}
	switch row.ValueKind {
	case model.ValueInt:
		var v int64
		if row.IntValue != nil {
			v = *row.IntValue
		}
		p.Value = ical.Value{Kind: ical.ValueInt, Int: v}
	case model.ValueBool:
		var v bool
		if row.BoolValue != nil {
			v = *row.BoolValue
		}
		p.Value = ical.Value{Kind: ical.ValueBool, Bool: v}
	case model.ValueFloat:
		var v float64
		if row.FloatValue != nil {
			v = *row.FloatValue
		}
		p.Value = ical.Value{Kind: ical.ValueFloat, Float: v}
	case model.ValueDate:
		dt := columnToDateTime(row, true)
		dt.TZID = p.Param("TZID")
		p.Value = ical.Value{Kind: ical.ValueDate, DateVal: dt}
	case model.ValueTimestampTZ:
		dt := columnToDateTime(row, false)
		dt.TZID = p.Param("TZID")
		p.Value = ical.Value{Kind: ical.ValueDateTime, DateVal: dt}
	case model.ValueJSON:
		p.Value = unmarshalDateList(row.JSONValue, p.Param("TZID"))
	default:
		var v string
		if row.TextValue != nil {
			v = *row.TextValue
		}
		p.Value = ical.Value{Kind: ical.ValueText, Raw: v, Text: v}
	}
	return p
}

func unmarshalDateList(raw []byte, tzid string) ical.Value {
	var row dateListRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return ical.Value{Kind: ical.ValueDate}
	}
	kind := ical.ValueDate
	if row.DateTime {
		kind = ical.ValueDateTime
	}
	list := make([]ical.DateTime, 0, len(row.Values))
	for _, s := range row.Values {
		dt, err := ical.ParseDateOrDateTime(s, tzid)
		if err != nil {
			continue
		}
		list = append(list, dt)
	}
	v := ical.Value{Kind: kind, DateList: list}
	if len(list) > 0 {
		v.DateVal = list[0]
	}
	return v
}

func columnToDateTime(row *model.Property, allDay bool) ical.DateTime {
	dt := ical.DateTime{AllDay: allDay, HasTime: !allDay}
	if row.DateValue != nil {
		t := *row.DateValue
		dt.Year, dt.Month, dt.Day = t.Year(), int(t.Month()), t.Day()
		dt.Hour, dt.Minute, dt.Second = t.Hour(), t.Minute(), t.Second()
	}
	if row.DateIsUTC != nil {
		dt.UTC = *row.DateIsUTC
	}
	return dt
}
