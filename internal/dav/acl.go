package dav

import (
	"encoding/xml"
	"net/http"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/davxml"
)

// aclBody is the RFC 3744 §8.1 ACL request body, parsed only far enough to
// tell an empty no-op submission (some clients re-PUT the ACL they just
// read via PROPFIND) from one that actually asks to change an ace.
type aclBody struct {
	XMLName xml.Name `xml:"acl"`
	Ace     []struct {
		Inner string `xml:",innerxml"`
	} `xml:"ace"`
}

// handleACL implements the ACL method (RFC 3744 §8.1). Grants are a
// policy snapshot loaded once at startup (authz.Policy) and reloaded only
// by restarting the process, per §4.10 — there is no live mutation
// path, so every ACL request that would actually change an ace is refused
// with 403 and a DAV:no-ace-conflict-style explanation. A body with no
// <ace> entries (an empty or read-back-the-current-ACL submission) is
// accepted as a no-op, matching clients that always round-trip the ACL
// property through a GET-modify-PUT cycle even when nothing changed.
func (h *Handlers) handleACL(w http.ResponseWriter, r *http.Request, loc *path.ResourceLocation) {
	if _, ok := loc.ResourceID(); !ok {
		if _, ok := loc.CollectionID(); !ok {
			h.writeError(w, apperr.NotFoundf("ACL target not found"))
			return
		}
	}
	body, err := readBody(r, 1<<16)
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.Database, err, "read acl body").Retry())
		return
	}
	var parsed aclBody
	if len(body) > 0 {
		if xml.Unmarshal(body, &parsed) != nil {
			h.writeError(w, apperr.New(apperr.Parse, "invalid acl body").WithStatus(http.StatusBadRequest))
			return
		}
	}
	if len(parsed.Ace) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}
	h.writeError(w, apperr.New(apperr.Authz, "access control policy is fixed at startup and cannot be changed over ACL").
		WithStatus(http.StatusForbidden).
		WithBody(davxml.NewErrorBody(davxml.PropEmpty(davxml.QName{Space: davxml.NSDAV, Local: "no-ace-conflict"}))))
}
