package dav

import (
	"context"
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
	"github.com/sonroyaalmerol/shuriken-dav/internal/authz"
	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/davxml"
	"github.com/sonroyaalmerol/shuriken-dav/internal/store/model"
	"github.com/sonroyaalmerol/shuriken-dav/internal/syncengine"
)

// propResolver answers one named property for one target href, returning
// the rendered value and whether the property applies at all (false yields
// a 404 propstat entry per §4.8).
type propResolver func() (davxml.RawXMLValue, bool)

type propfindTarget struct {
	href     string
	resolver map[davxml.QName]propResolver
}

// handlePropfind implements §4.8 PROPFIND: Depth 0/1/infinity target
// resolution, then per-target property resolution into a 207 multistatus.
func (h *Handlers) handlePropfind(w http.ResponseWriter, r *http.Request, raw path.RawPath, loc *path.ResourceLocation, subject authz.Subject) {
	ctx := r.Context()
	depth := parseDepth(r)
	body, err := readBody(r, 1<<16)
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.Database, err, "read propfind body").Retry())
		return
	}
	pf, perr := davxml.ParsePropFind(body)
	if perr != nil {
		h.writeError(w, apperr.Wrap(apperr.Parse, perr, "invalid propfind body").WithStatus(400))
		return
	}

	_, isResource := loc.ResourceID()
	if depth == "infinity" && isResource {
		h.writeError(w, apperr.New(apperr.Validation, "PROPFIND Depth: infinity refused on a non-collection resource").
			WithStatus(http.StatusForbidden).
			WithBody(davxml.NewErrorBody(davxml.PropEmpty(davxml.QName{Space: davxml.NSDAV, Local: "propfind-finite-depth"}))))
		return
	}

	href := hrefFor(h.cfg.HTTP.BasePath, raw, loc)
	targets, terr := h.propfindTargets(ctx, raw, loc, href, depth, subject)
	if terr != nil {
		h.writeError(w, terr)
		return
	}

	var names []davxml.QName
	if pf.Kind == davxml.PropFindProp {
		names = pf.Props
	}

	ms := &davxml.MultiStatus{}
	for _, t := range targets {
		resp := davxml.NewResponse(t.href)
		addRequestedProps(resp, t.resolver, pf.Kind, names)
		ms.Responses = append(ms.Responses, *resp)
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_ = davxml.ServeMultiStatus(w, ms)
}

// addRequestedProps fills resp's propstat groups from resolver according to
// kind: propname lists names only, allprop resolves everything the target
// offers, and prop resolves exactly the requested names (404 for anything
// the resolver doesn't recognize or that doesn't apply to this target).
// REPORT handlers reuse this against an explicit (possibly empty) name list
// by passing davxml.PropFindProp.
func addRequestedProps(resp *davxml.Response, resolver map[davxml.QName]propResolver, kind davxml.PropFindKind, names []davxml.QName) {
	switch kind {
	case davxml.PropFindPropName:
		for name := range resolver {
			resp.AddProp(http.StatusOK, davxml.PropEmpty(name))
		}
	case davxml.PropFindAllProp:
		for _, resolve := range resolver {
			if val, ok := resolve(); ok {
				resp.AddProp(http.StatusOK, val)
			}
		}
	default:
		for _, name := range names {
			resolve, known := resolver[name]
			if !known {
				resp.AddProp(http.StatusNotFound, davxml.PropEmpty(name))
				continue
			}
			val, ok := resolve()
			if !ok {
				resp.AddProp(http.StatusNotFound, davxml.PropEmpty(name))
				continue
			}
			resp.AddProp(http.StatusOK, val)
		}
	}
}

// propfindTargets builds the resolver set for every href Depth selects:
// just loc itself at Depth 0, plus its immediate children at Depth 1 (a
// collection's instances, or a principal home's collections).
func (h *Handlers) propfindTargets(ctx context.Context, raw path.RawPath, loc *path.ResourceLocation, href, depth string, subject authz.Subject) ([]propfindTarget, error) {
	if resourceID, ok := loc.ResourceID(); ok {
		inst, found, err := h.store.GetInstanceByID(ctx, resourceID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "load instance").Retry()
		}
		if !found {
			return nil, apperr.NotFoundf("instance not found")
		}
		return []propfindTarget{{href: href, resolver: h.instanceProps(ctx, href, loc.ResourceType(), *inst, subject)}}, nil
	}

	if collectionID, ok := loc.CollectionID(); ok {
		col, found, err := h.store.GetCollectionByID(ctx, collectionID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "load collection").Retry()
		}
		if !found {
			return nil, apperr.NotFoundf("collection not found")
		}
		targets := []propfindTarget{{href: href, resolver: h.collectionProps(ctx, href, *col, subject)}}
		if depth != "0" {
			insts, err := h.store.ListInstances(ctx, collectionID)
			if err != nil {
				return nil, apperr.Wrap(apperr.Database, err, "list instances").Retry()
			}
			for _, inst := range insts {
				childHref := strings.TrimSuffix(href, "/") + "/" + inst.Slug
				targets = append(targets, propfindTarget{href: childHref, resolver: h.instanceProps(ctx, childHref, loc.ResourceType(), inst, subject)})
			}
		}
		return targets, nil
	}

	principalID, _ := loc.PrincipalID()
	targets := []propfindTarget{{href: href, resolver: h.principalHomeProps(ctx, href, raw.ResourceType, subject)}}
	if depth != "0" {
		cols, err := h.store.ListCollectionsByOwner(ctx, principalID, collectionType(raw.ResourceType))
		if err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "list collections").Retry()
		}
		for _, col := range cols {
			childHref := strings.TrimSuffix(href, "/") + "/" + col.Slug
			targets = append(targets, propfindTarget{href: childHref, resolver: h.collectionProps(ctx, childHref, col, subject)})
		}
	}
	return targets, nil
}

func dn(space, local string) davxml.QName { return davxml.QName{Space: space, Local: local} }

// commonProps are shared by every resource kind PROPFIND can target.
func (h *Handlers) commonProps(ctx context.Context, href string, displayName string, isCollection bool, subject authz.Subject) map[davxml.QName]propResolver {
	return map[davxml.QName]propResolver{
		dn(davxml.NSDAV, "displayname"): func() (davxml.RawXMLValue, bool) {
			return davxml.PropText(dn(davxml.NSDAV, "displayname"), displayName), true
		},
		dn(davxml.NSDAV, "resourcetype"): func() (davxml.RawXMLValue, bool) {
			if !isCollection {
				return davxml.PropNested(dn(davxml.NSDAV, "resourcetype")), true
			}
			return davxml.PropNested(dn(davxml.NSDAV, "resourcetype"), davxml.PropEmpty(dn(davxml.NSDAV, "collection"))), true
		},
		dn(davxml.NSDAV, "current-user-principal"): func() (davxml.RawXMLValue, bool) {
			if subject.Kind != authz.SubjectPrincipal {
				return davxml.PropNested(dn(davxml.NSDAV, "current-user-principal"), davxml.PropEmpty(dn(davxml.NSDAV, "unauthenticated"))), true
			}
			return davxml.PropNested(dn(davxml.NSDAV, "current-user-principal"), davxml.PropText(dn(davxml.NSDAV, "href"), href)), true
		},
		dn(davxml.NSDAV, "current-user-privilege-set"): func() (davxml.RawXMLValue, bool) {
			privs, err := h.authorizer.PrivilegesFor(ctx, subject, href)
			if err != nil {
				return davxml.RawXMLValue{}, false
			}
			children := make([]davxml.RawXMLValue, len(privs))
			for i, p := range privs {
				children[i] = davxml.PropNested(dn(davxml.NSDAV, "privilege"), davxml.PropEmpty(dn(davxml.NSDAV, p)))
			}
			return davxml.PropNested(dn(davxml.NSDAV, "current-user-privilege-set"), children...), true
		},
		dn(davxml.NSDAV, "supported-privilege-set"): func() (davxml.RawXMLValue, bool) {
			return davxml.PropEmpty(dn(davxml.NSDAV, "supported-privilege-set")), true
		},
		dn(davxml.NSDAV, "owner"): func() (davxml.RawXMLValue, bool) {
			return davxml.PropNested(dn(davxml.NSDAV, "owner"), davxml.PropText(dn(davxml.NSDAV, "href"), href)), true
		},
		dn(davxml.NSDAV, "acl"): func() (davxml.RawXMLValue, bool) {
			return h.aclProp(href), true
		},
	}
}

// aclProp renders the policy grants matching href as a DAV:acl element, one
// <ace> per grant (RFC 3744 §5.5). It reflects the startup-loaded policy
// read-only; the ACL method itself refuses to mutate it.
func (h *Handlers) aclProp(href string) davxml.RawXMLValue {
	grants := h.authorizer.GrantsMatching(href)
	aces := make([]davxml.RawXMLValue, len(grants))
	for i, g := range grants {
		var principal davxml.RawXMLValue
		if g.Subject.Kind == authz.SubjectPublic {
			principal = davxml.PropNested(dn(davxml.NSDAV, "principal"), davxml.PropEmpty(dn(davxml.NSDAV, "all")))
		} else {
			principal = davxml.PropNested(dn(davxml.NSDAV, "principal"), davxml.PropText(dn(davxml.NSDAV, "href"), g.Subject.PrincipalID))
		}
		privs := g.Role.Privileges()
		privElems := make([]davxml.RawXMLValue, len(privs))
		for j, p := range privs {
			privElems[j] = davxml.PropNested(dn(davxml.NSDAV, "privilege"), davxml.PropEmpty(dn(davxml.NSDAV, p)))
		}
		grant := davxml.PropNested(dn(davxml.NSDAV, "grant"), privElems...)
		aces[i] = davxml.PropNested(dn(davxml.NSDAV, "ace"), principal, grant)
	}
	return davxml.PropNested(dn(davxml.NSDAV, "acl"), aces...)
}

func (h *Handlers) principalHomeProps(ctx context.Context, href string, kind path.ResourceTypeKind, subject authz.Subject) map[davxml.QName]propResolver {
	out := h.commonProps(ctx, href, "home", true, subject)
	homeLocal, ns := "calendar-home-set", davxml.NSCalDAV
	if kind == path.Addressbook {
		homeLocal, ns = "addressbook-home-set", davxml.NSCardDAV
	}
	out[dn(ns, homeLocal)] = func() (davxml.RawXMLValue, bool) {
		return davxml.PropNested(dn(ns, homeLocal), davxml.PropText(dn(davxml.NSDAV, "href"), href)), true
	}
	return out
}

func (h *Handlers) collectionProps(ctx context.Context, href string, col model.Collection, subject authz.Subject) map[davxml.QName]propResolver {
	out := h.commonProps(ctx, href, col.DisplayName, true, subject)
	token := syncengine.EncodeToken(col.SyncRevision)
	out[dn(davxml.NSDAV, "sync-token")] = func() (davxml.RawXMLValue, bool) {
		return davxml.PropText(dn(davxml.NSDAV, "sync-token"), token), true
	}
	out[dn(davxml.NSDAV, "supported-report-set")] = func() (davxml.RawXMLValue, bool) {
		names := []string{"sync-collection", "expand-property"}
		switch col.Type {
		case model.CollectionCalendar:
			names = append(names, "calendar-query", "calendar-multiget", "free-busy-query")
		case model.CollectionAddressbook:
			names = append(names, "addressbook-query", "addressbook-multiget")
		}
		children := make([]davxml.RawXMLValue, len(names))
		for i, n := range names {
			children[i] = davxml.PropNested(dn(davxml.NSDAV, "supported-report"), davxml.PropNested(dn(davxml.NSDAV, "report"), davxml.PropEmpty(dn(davxml.NSDAV, n))))
		}
		return davxml.PropNested(dn(davxml.NSDAV, "supported-report-set"), children...), true
	}
	switch col.Type {
	case model.CollectionCalendar:
		out[dn(davxml.NSCalDAV, "calendar-description")] = func() (davxml.RawXMLValue, bool) {
			return davxml.PropText(dn(davxml.NSCalDAV, "calendar-description"), col.Description), true
		}
		out[dn(davxml.NSCalDAV, "supported-calendar-component-set")] = func() (davxml.RawXMLValue, bool) {
			comps := []string{"VEVENT", "VTODO", "VJOURNAL"}
			children := make([]davxml.RawXMLValue, len(comps))
			for i, c := range comps {
				v := davxml.PropEmpty(dn(davxml.NSCalDAV, "comp"))
				v.Attrs = []xml.Attr{{Name: xml.Name{Local: "name"}, Value: c}}
				children[i] = v
			}
			return davxml.PropNested(dn(davxml.NSCalDAV, "supported-calendar-component-set"), children...), true
		}
		out[dn(davxml.NSCalDAV, "calendar-timezone")] = func() (davxml.RawXMLValue, bool) {
			if col.TimezoneTZID == "" {
				return davxml.RawXMLValue{}, false
			}
			return davxml.PropText(dn(davxml.NSCalDAV, "calendar-timezone"), col.TimezoneTZID), true
		}
	case model.CollectionAddressbook:
		out[dn(davxml.NSCardDAV, "addressbook-description")] = func() (davxml.RawXMLValue, bool) {
			return davxml.PropText(dn(davxml.NSCardDAV, "addressbook-description"), col.Description), true
		}
		out[dn(davxml.NSCardDAV, "max-resource-size")] = func() (davxml.RawXMLValue, bool) {
			return davxml.PropText(dn(davxml.NSCardDAV, "max-resource-size"), strconv.FormatInt(h.cfg.HTTP.MaxVCFBytes, 10)), true
		}
	}
	return out
}

func (h *Handlers) instanceProps(ctx context.Context, href string, kind path.ResourceTypeKind, inst model.Instance, subject authz.Subject) map[davxml.QName]propResolver {
	out := h.commonProps(ctx, href, inst.Slug, false, subject)
	out[dn(davxml.NSDAV, "getetag")] = func() (davxml.RawXMLValue, bool) {
		return davxml.PropText(dn(davxml.NSDAV, "getetag"), inst.ETag), true
	}
	out[dn(davxml.NSDAV, "getcontenttype")] = func() (davxml.RawXMLValue, bool) {
		return davxml.PropText(dn(davxml.NSDAV, "getcontenttype"), inst.ContentType), true
	}
	out[dn(davxml.NSDAV, "getlastmodified")] = func() (davxml.RawXMLValue, bool) {
		return davxml.PropText(dn(davxml.NSDAV, "getlastmodified"), inst.LastModified.UTC().Format(http.TimeFormat)), true
	}
	body := func() ([]byte, bool) {
		tree, err := h.store.GetEntityTree(ctx, inst.EntityID)
		if err != nil {
			return nil, false
		}
		b, _, serr := serializeTree(kind, *tree)
		if serr != nil {
			return nil, false
		}
		return b, true
	}
	out[dn(davxml.NSDAV, "getcontentlength")] = func() (davxml.RawXMLValue, bool) {
		b, ok := body()
		if !ok {
			return davxml.RawXMLValue{}, false
		}
		return davxml.PropText(dn(davxml.NSDAV, "getcontentlength"), strconv.Itoa(len(b))), true
	}
	dataLocal, ns := "calendar-data", davxml.NSCalDAV
	if kind == path.Addressbook {
		dataLocal, ns = "address-data", davxml.NSCardDAV
	}
	out[dn(ns, dataLocal)] = func() (davxml.RawXMLValue, bool) {
		b, ok := body()
		if !ok {
			return davxml.RawXMLValue{}, false
		}
		return davxml.PropText(dn(ns, dataLocal), string(b)), true
	}
	return out
}
