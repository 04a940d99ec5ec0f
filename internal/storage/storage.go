// Package storage defines the persistence boundary: a single Store
// interface, implemented once over PostgreSQL (internal/storage/postgres)
// and once over SQLite (internal/storage/sqlite), both driving the same
// embedded golang-migrate migrations in internal/storage/migrations.
//
// The interface stays flat — one method pair per concern, no
// repository-per-resource split — but operates over the canonical model
// types (internal/store/model) instead of protocol-shaped structs, so one
// write path serves both calendars and addressbooks instead of duplicating
// CRUD per resource kind.
package storage

import (
	"context"
	"time"

	"github.com/sonroyaalmerol/shuriken-dav/internal/store/model"
)

// EntityTree is the fully decomposed form of one Entity persisted across
// dav_entity/dav_component/dav_property/dav_parameter, as produced by
// internal/store/mapper. IDs on every nested row are already assigned by
// the mapper (uuid.NewString()); Store.PutEntityTree writes them as given
// rather than generating its own.
type EntityTree struct {
	Entity     model.Entity
	Components []model.Component
	Properties []model.Property
	Parameters []model.Parameter
}

// PutInstanceRequest is the unit of work for a PUT: a new or replacement
// instance plus its backing entity tree, addressed by collection+slug.
type PutInstanceRequest struct {
	CollectionID string
	Slug         string
	ContentType  string
	ETag         string
	ScheduleTag  *string
	Tree         EntityTree
	// IfMatch/IfNoneMatch are pre-evaluated by internal/dav against the
	// instance GetInstanceBySlug returns before calling PutEntityTree;
	// Store does not re-derive precondition semantics, only persists.
}

// ChangeSet is one page of a sync-collection diff, source material for
// internal/syncengine.Diff.
type ChangeSet struct {
	Live       []model.Instance
	Tombstones []model.Tombstone
}

// Store is the full persistence surface the HTTP method engine (C8) and
// the authorization layer (C10) are built against. Both backends implement
// it identically; callers never branch on which one is active.
type Store interface {
	Close() error

	// Principals and groups.
	CreatePrincipal(ctx context.Context, p model.Principal) error
	GetPrincipalBySlug(ctx context.Context, slug string) (*model.Principal, bool, error)
	GetPrincipalByID(ctx context.Context, id string) (*model.Principal, bool, error)
	// ListPrincipals enumerates every non-deleted principal, used once at
	// startup to build the default owner-grants-all-on-own-home policy
	// (authz.Policy has no per-request lookup path back into storage).
	ListPrincipals(ctx context.Context) ([]model.Principal, error)
	ListGroupMembers(ctx context.Context, groupPrincipalID string) ([]model.Principal, error)
	ListMemberGroups(ctx context.Context, memberPrincipalID string) ([]model.Principal, error)
	AddMembership(ctx context.Context, m model.Membership) error

	// Collections.
	CreateCollection(ctx context.Context, c model.Collection) error
	GetCollection(ctx context.Context, ownerPrincipalID string, typ model.CollectionType, slug string) (*model.Collection, bool, error)
	GetCollectionByID(ctx context.Context, id string) (*model.Collection, bool, error)
	ListCollectionsByOwner(ctx context.Context, ownerPrincipalID string, typ model.CollectionType) ([]model.Collection, error)
	UpdateCollectionProps(ctx context.Context, id string, displayName, description *string) error
	DeleteCollection(ctx context.Context, id string) error

	// Instances and their entity trees.
	GetInstanceBySlug(ctx context.Context, collectionID, slug string) (*model.Instance, bool, error)
	GetInstanceByID(ctx context.Context, id string) (*model.Instance, bool, error)
	ListInstances(ctx context.Context, collectionID string) ([]model.Instance, error)
	GetEntityTree(ctx context.Context, entityID string) (*EntityTree, error)

	// PutEntityTree persists req transactionally: upserts the entity tree,
	// upserts the dav_instance row, bumps the owning collection's
	// sync_revision, and stamps the new revision onto the instance. If an
	// instance already occupies collectionID+slug it is replaced in place
	// (no tombstone — a live-to-live transition is not a deletion).
	PutEntityTree(ctx context.Context, req PutInstanceRequest) (*model.Instance, error)

	// DeleteInstance soft-deletes the instance at collectionID+slug,
	// writes a dav_tombstone row, and bumps the collection's
	// sync_revision.
	DeleteInstance(ctx context.Context, collectionID, slug string) error

	// CopyInstance implements the COPY method per the same-owner/
	// different-owner split recorded in DESIGN.md's Open Question
	// decisions: sameOwner true shares the Entity row under a new Instance;
	// false deep-clones the Entity subtree first.
	CopyInstance(ctx context.Context, srcInstanceID, destCollectionID, destSlug string, sameOwner bool) (*model.Instance, error)

	// MoveInstance soft-deletes the source instance (writing a tombstone
	// there) and inserts a new instance row, with a new ID and the same
	// entity, at destCollectionID/destSlug, bumping sync_revision on both
	// collections; it returns the new row.
	MoveInstance(ctx context.Context, srcInstanceID, destCollectionID, destSlug string) (*model.Instance, error)

	// Sync-collection support.
	ListLiveSince(ctx context.Context, collectionID string, sinceRevision int64) ([]model.Instance, error)
	ListTombstonesSince(ctx context.Context, collectionID string, sinceRevision int64) ([]model.Tombstone, error)
	OldestSurvivingTombstoneRevision(ctx context.Context, collectionID string) (*int64, error)
	PurgeTombstonesOlderThan(ctx context.Context, collectionID string, cutoff time.Time) (int, error)

	// Calendar and addressbook query indexes (C6).
	UpsertCalIndex(ctx context.Context, rows []model.CalIndex) error
	QueryCalIndexByWindow(ctx context.Context, collectionID string, componentType string, start, end *time.Time) ([]model.CalIndex, error)
	UpsertCardIndex(ctx context.Context, row model.CardIndex) error
	QueryCardIndex(ctx context.Context, collectionID string) ([]model.CardIndex, error)

	// Timezone cache (C7).
	GetTimezone(ctx context.Context, tzid string) (string, bool, error)
	PutTimezone(ctx context.Context, entry model.TimezoneCacheEntry) error
}
