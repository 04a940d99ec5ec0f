// Package path implements C9: parsing the
// /api/dav/{cal|card}/{owner-slug}/{collection-slug}/{resource-slug} URL
// shape into a ResourceLocation, binding each segment to a database row so
// handlers in internal/dav receive an already-resolved principal,
// collection chain, and resource instead of repeating lookups themselves.
//
// Resolution is split in two: ParseRawPath is pure string splitting (no
// database access), and Resolve binds each raw segment through the
// PrincipalLookup/CollectionLookup/InstanceLookup interfaces C8's storage
// layer implements.
package path

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
)

// ResourceTypeKind distinguishes the two DAV trees this server mounts.
type ResourceTypeKind int

const (
	Calendar ResourceTypeKind = iota
	Addressbook
)

func (k ResourceTypeKind) String() string {
	if k == Addressbook {
		return "addressbook"
	}
	return "calendar"
}

// SegmentKind discriminates PathSegment's sum-type cases.
type SegmentKind int

const (
	SegResourceType SegmentKind = iota
	SegPrincipal
	SegCollection
	SegResource
)

// PathSegment is one resolved element of a ResourceLocation.
type PathSegment struct {
	Kind SegmentKind
	// ResourceType is valid when Kind == SegResourceType.
	ResourceType ResourceTypeKind
	// ID is the bound database UUID, valid for SegPrincipal, SegCollection,
	// SegResource.
	ID string
	// Slug is the raw path element this segment was bound from, kept for
	// error messages and href reconstruction.
	Slug string
}

// ResourceLocation is the fully bound result of resolving a request path.
type ResourceLocation struct {
	Segments []PathSegment
}

// ResourceType returns the resource type segment, which is always present.
func (l ResourceLocation) ResourceType() ResourceTypeKind {
	for _, s := range l.Segments {
		if s.Kind == SegResourceType {
			return s.ResourceType
		}
	}
	return Calendar
}

// PrincipalID returns the bound owner principal UUID, if resolved.
func (l ResourceLocation) PrincipalID() (string, bool) {
	return l.find(SegPrincipal)
}

// CollectionID returns the bound collection UUID, if the path named one.
func (l ResourceLocation) CollectionID() (string, bool) {
	return l.find(SegCollection)
}

// ResourceID returns the bound instance UUID, if the path named one.
func (l ResourceLocation) ResourceID() (string, bool) {
	return l.find(SegResource)
}

func (l ResourceLocation) find(kind SegmentKind) (string, bool) {
	for _, s := range l.Segments {
		if s.Kind == kind {
			return s.ID, true
		}
	}
	return "", false
}

// RawPath is the unresolved result of splitting a request path: slugs that
// may be either a human-assigned slug or the resource's raw UUID, not yet
// checked against the database.
type RawPath struct {
	ResourceType   ResourceTypeKind
	OwnerSlug      string
	CollectionSlug string
	ResourceSlug   string
}

// ParseRawPath splits urlPath (absolute path or full href, both accepted)
// against basePath into a RawPath. It never touches the database;
// InvalidPathFormat is the only error it can produce.
func ParseRawPath(urlPath, basePath string) (RawPath, error) {
	urlPath = stripScheme(urlPath)
	pp := strings.TrimPrefix(urlPath, basePath)
	pp = strings.TrimPrefix(pp, "/")
	parts := strings.Split(pp, "/")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) < 2 {
		return RawPath{}, apperr.New(apperr.Parse, "invalid path format: %q", urlPath)
	}
	var kind ResourceTypeKind
	switch parts[0] {
	case "cal":
		kind = Calendar
	case "card":
		kind = Addressbook
	default:
		return RawPath{}, apperr.New(apperr.Parse, "invalid path format: unknown resource tree %q", parts[0])
	}
	raw := RawPath{ResourceType: kind, OwnerSlug: parts[1]}
	if len(parts) >= 3 {
		raw.CollectionSlug = parts[2]
	}
	if len(parts) >= 4 {
		raw.ResourceSlug = parts[3]
	}
	if len(parts) > 4 {
		return RawPath{}, apperr.New(apperr.Parse, "invalid path format: too many segments in %q", urlPath)
	}
	return raw, nil
}

func stripScheme(urlPath string) string {
	if strings.HasPrefix(urlPath, "/") {
		return urlPath
	}
	if !strings.HasPrefix(urlPath, "http://") && !strings.HasPrefix(urlPath, "https://") {
		return urlPath
	}
	idx := strings.Index(urlPath, "://")
	if idx < 0 {
		return urlPath
	}
	rest := urlPath[idx+3:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		return rest[slash:]
	}
	return "/"
}

// IsUUID reports whether s parses as a UUID, the signal §4.9 uses
// to distinguish a raw-UUID path segment from a human-assigned slug.
// Storage-layer Lookup implementations use this to choose between a
// primary-key lookup and a slug-column lookup for the same segment.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// PrincipalLookup resolves an owner path segment (slug or UUID) to a
// principal's UUID.
type PrincipalLookup interface {
	LookupPrincipal(ctx context.Context, slugOrID string) (id string, found bool, err error)
}

// CollectionLookup resolves a collection path segment scoped to its owning
// principal and resource tree.
type CollectionLookup interface {
	LookupCollection(ctx context.Context, ownerID string, kind ResourceTypeKind, slugOrID string) (id string, found bool, err error)
}

// InstanceLookup resolves a resource path segment scoped to its owning
// collection.
type InstanceLookup interface {
	LookupInstance(ctx context.Context, collectionID string, slugOrID string) (id string, found bool, err error)
}

// Resolve binds a RawPath's slugs to database rows, returning a fully
// populated ResourceLocation. A path that names only an owner resolves to
// a principal home (collection/resource segments absent); one that names a
// collection but no resource resolves to a collection listing.
func Resolve(ctx context.Context, raw RawPath, principals PrincipalLookup, collections CollectionLookup, instances InstanceLookup) (*ResourceLocation, error) {
	loc := &ResourceLocation{Segments: []PathSegment{{Kind: SegResourceType, ResourceType: raw.ResourceType}}}

	ownerID, found, err := principals.LookupPrincipal(ctx, raw.OwnerSlug)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "resolve principal %q", raw.OwnerSlug).Retry()
	}
	if !found {
		return nil, apperr.New(apperr.NotFound, "principal not found: %q", raw.OwnerSlug)
	}
	loc.Segments = append(loc.Segments, PathSegment{Kind: SegPrincipal, ID: ownerID, Slug: raw.OwnerSlug})

	if raw.CollectionSlug == "" {
		return loc, nil
	}
	collectionID, found, err := collections.LookupCollection(ctx, ownerID, raw.ResourceType, raw.CollectionSlug)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "resolve collection %q", raw.CollectionSlug).Retry()
	}
	if !found {
		return nil, apperr.New(apperr.NotFound, "collection not found: owner=%s slug=%q", ownerID, raw.CollectionSlug)
	}
	loc.Segments = append(loc.Segments, PathSegment{Kind: SegCollection, ID: collectionID, Slug: raw.CollectionSlug})

	if raw.ResourceSlug == "" {
		return loc, nil
	}
	resourceID, found, err := instances.LookupInstance(ctx, collectionID, raw.ResourceSlug)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "resolve resource %q", raw.ResourceSlug).Retry()
	}
	if !found {
		return nil, apperr.New(apperr.NotFound, "instance not found: collection_id=%s slug=%q", collectionID, raw.ResourceSlug)
	}
	loc.Segments = append(loc.Segments, PathSegment{Kind: SegResource, ID: resourceID, Slug: raw.ResourceSlug})

	return loc, nil
}
