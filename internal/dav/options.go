package dav

import (
	"net/http"
	"strings"

	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
)

// handleOptions answers OPTIONS (RFC 4918 §9.1, RFC 3744 §2): capability
// discovery is always public and never depends on the path resolving
// (§4.4's "OPTIONS → always allowed" — no Action is even mapped for
// it). DAV always lists the server's full compliance-class set; Allow is
// narrowed to the resource class (collection vs. item) when loc resolved,
// and left as the full method superset when it didn't (an as-yet-unbound
// PUT/MKCOL target, or a path outside any known principal).
func (h *Handlers) handleOptions(w http.ResponseWriter, loc *path.ResourceLocation) {
	w.Header().Set("DAV", "1, 3, access-control, "+h.GetCapabilities())

	allow := []string{"OPTIONS", "GET", "HEAD", "PUT", "DELETE", "COPY", "MOVE", "PROPFIND", "PROPPATCH", "MKCOL", "MKCALENDAR", "REPORT", "ACL"}
	if loc != nil {
		if _, isResource := loc.ResourceID(); isResource {
			allow = []string{"OPTIONS", "GET", "HEAD", "PUT", "DELETE", "COPY", "MOVE", "PROPFIND", "PROPPATCH", "REPORT", "ACL"}
		} else {
			allow = []string{"OPTIONS", "PROPFIND", "PROPPATCH", "MKCOL", "MKCALENDAR", "REPORT", "ACL", "DELETE"}
		}
	}
	w.Header().Set("Allow", strings.Join(allow, ", "))
	w.WriteHeader(http.StatusOK)
}
