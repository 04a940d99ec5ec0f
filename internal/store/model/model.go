// Package model defines the canonical content tree (Entity/Component/
// Property/Parameter) and the multi-tenant rows (Principal/Group/
// Membership/Collection/Instance/Tombstone) that internal/storage persists.
// Types here are plain data structs, generalized from a CalDAV-only
// Calendar/Object/Contact shape to the lossless canonical tree §3 requires.
package model

import "time"

type PrincipalType string

const (
	PrincipalUser   PrincipalType = "user"
	PrincipalGroup  PrincipalType = "group"
	PrincipalPublic PrincipalType = "public"
)

// Principal is an identity subject: a user, a group, or the public pseudo-
// principal used for anonymous/public-share requests.
type Principal struct {
	ID          string
	Type        PrincipalType
	Slug        string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Membership records that MemberPrincipalID belongs to GroupPrincipalID.
// Expansion to the transitive closure happens in internal/authz, guarding
// against cycles with a visited set.
type Membership struct {
	ID               string
	GroupPrincipalID string
	MemberPrincipalID string
	CreatedAt        time.Time
}

type CollectionType string

const (
	CollectionPlain       CollectionType = "collection"
	CollectionCalendar    CollectionType = "calendar"
	CollectionAddressbook CollectionType = "addressbook"
)

// Collection is a calendar, addressbook, or plain WebDAV container owned by
// a principal. SyncRevision is the monotonic counter internal/storage bumps on
// every observable mutation.
type Collection struct {
	ID               string
	OwnerPrincipalID string
	Type             CollectionType
	Slug             string
	DisplayName      string
	Description      string
	TimezoneTZID     string
	SyncRevision     int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

type EntityType string

const (
	EntityICal  EntityType = "ical"
	EntityVCard EntityType = "vcard"
)

// Entity is the canonical content object: one VCALENDAR (with its VEVENTs)
// or one VCARD. A single entity may be instanced into multiple collections
// (logical sharing, §3 "Ownership").
type Entity struct {
	ID         string
	Type       EntityType
	LogicalUID *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// Instance is the per-collection identity of an entity: the thing a client
// actually addresses by href/slug and conditions requests against via ETag.
type Instance struct {
	ID           string
	CollectionID string
	EntityID     string
	ContentType  string
	ETag         string
	SyncRevision int64
	LastModified time.Time
	Slug         string
	ScheduleTag  *string
	DeletedAt    *time.Time
}

// ValueKind tags the typed column a Property's scalar value lives in.
type ValueKind string

const (
	ValueText        ValueKind = "text"
	ValueInt         ValueKind = "int"
	ValueFloat       ValueKind = "float"
	ValueBool        ValueKind = "bool"
	ValueDate        ValueKind = "date"
	ValueTimestampTZ ValueKind = "timestamptz"
	ValueBytes       ValueKind = "bytes"
	ValueJSON        ValueKind = "json"
)

// Component is a canonical tree node: a BEGIN/END block for iCalendar, or
// the synthetic root every vCard's properties attach to.
type Component struct {
	ID       string
	EntityID string
	ParentID *string
	Ordinal  int
	Name     string
}

// Property is a canonical tree leaf: one NAME[;PARAM...]:VALUE content line,
// its value decomposed into exactly one typed column.
type Property struct {
	ID          string
	ComponentID string
	Ordinal     int
	Name        string
	Group       string
	ValueKind   ValueKind
	TextValue   *string
	IntValue    *int64
	FloatValue  *float64
	BoolValue   *bool
	// DateValue carries the Year/Month/Day/Hour/Minute/Second tuple for
	// ValueDate/ValueTimestampTZ properties, stored with a time.UTC location
	// purely as a six-field container — for a floating or TZID-qualified
	// value this is NOT the real instant, only the literal wall-clock digits
	// the original content line carried. DateIsUTC records whether the
	// source value had the 'Z' UTC suffix (TZID-qualified or floating values
	// keep their zone information in the property's own TZID parameter row).
	DateValue  *time.Time
	DateIsUTC  *bool
	BytesValue []byte
	JSONValue  []byte
}

// Parameter is one NAME=VALUE(,VALUE)* modifier on a Property.
type Parameter struct {
	ID         string
	PropertyID string
	Ordinal    int
	Name       string
	Values     []string
}

// CalIndex is the denormalized per-component row C6 builds for
// calendar-query/free-busy filtering, keyed by (EntityID, ComponentID).
type CalIndex struct {
	EntityID        string
	ComponentID     string
	ComponentType   string
	UID             *string
	RecurrenceIDUTC *time.Time
	DTStartUTC      *time.Time
	DTEndUTC        *time.Time
	AllDay          *bool
	RRuleText       *string
	Metadata        []byte // jsonb: SUMMARY, LOCATION, DESCRIPTION, ORGANIZER, STATUS, TRANSP, SEQUENCE, attendees
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

// CardIndex is the denormalized per-entity row C6 builds for
// addressbook-query filtering.
type CardIndex struct {
	EntityID  string
	UID       *string
	FN        *string
	Data      []byte // jsonb: n_family, n_given, org, title, emails[], phones[]
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Tombstone is created on soft-delete so sync-collection can report deleted
// resources to clients whose known token predates the deletion.
type Tombstone struct {
	ID           string
	CollectionID string
	EntityID     *string
	SyncRevision int64
	DeletedAt    time.Time
	LastETag     string
	LogicalUID   *string
	Slugs        []string // slug variants the instance was ever addressed by
}

// TimezoneCacheEntry maps an IANA tzid to its VTIMEZONE text, used by
// internal/recur to resolve floating/local times to UTC deterministically.
type TimezoneCacheEntry struct {
	TZID          string
	VTimezoneText string
}
