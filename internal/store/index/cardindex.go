package index

import (
	"encoding/json"
	"time"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/vcard"
	"github.com/sonroyaalmerol/shuriken-dav/internal/store/model"
)

// cardData mirrors the jsonb keys original_source's carddav_keys.rs
// defines: n_family, n_given, org, title, emails[], phones[].
type cardData struct {
	NFamily string   `json:"n_family,omitempty"`
	NGiven  string   `json:"n_given,omitempty"`
	Org     string   `json:"org,omitempty"`
	Title   string   `json:"title,omitempty"`
	Emails  []string `json:"emails,omitempty"`
	Phones  []string `json:"phones,omitempty"`
}

// BuildCardIndex implements §4.6's card_index rebuild: a single row
// per VCARD carrying UID, FN, and N/ORG/TITLE/EMAIL/TEL as jsonb.
func BuildCardIndex(entityID string, card *vcard.VCard, now time.Time) model.CardIndex {
	row := model.CardIndex{EntityID: entityID, UpdatedAt: now}
	if uid := vcard.UID(card); uid != "" {
		row.UID = &uid
	}
	if fn := card.Get("FN"); fn != nil {
		v := fn.Value
		row.FN = &v
	}
	data := cardData{}
	if n := card.Get("N"); n != nil {
		fields := vcard.StructuredFields(n.Value)
		if len(fields) > 0 && len(fields[0]) > 0 {
			data.NFamily = fields[0][0]
		}
		if len(fields) > 1 && len(fields[1]) > 0 {
			data.NGiven = fields[1][0]
		}
	}
	if org := card.Get("ORG"); org != nil {
		data.Org = org.Value
	}
	if title := card.Get("TITLE"); title != nil {
		data.Title = title.Value
	}
	for _, p := range card.All("EMAIL") {
		data.Emails = append(data.Emails, p.Value)
	}
	for _, p := range card.All("TEL") {
		data.Phones = append(data.Phones, p.Value)
	}
	b, err := json.Marshal(data)
	if err != nil {
		b = []byte("{}")
	}
	row.Data = b
	return row
}
