// Package syncengine implements C11: the opaque sync-token wire format, the
// tombstone retention policy (§9 Open Question (a): default never
// purge), and the sync-collection diff — which live instances and which
// tombstones a client holding token R must be shown. The monotonic
// sync_revision counter itself is bumped transactionally by
// internal/storage (§5's per-write-method "(4) bump sync_revision"
// step); this package only interprets revisions once read.
//
// The token keeps a prefix-plus-integer shape (parse out the trailing
// revision number, ignore the rest) but uses the URL-like
// "http://example/sync/<revision>" spelling §4.11 specifies.
package syncengine

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
)

// tokenPrefix is the fixed lead-in for every sync token this server issues.
const tokenPrefix = "http://example/sync/"

// EncodeToken renders a sync_revision as the opaque wire token this system's design
// §4.11 specifies.
func EncodeToken(revision int64) string {
	return tokenPrefix + strconv.FormatInt(revision, 10)
}

// ParseToken recovers the revision from a token produced by EncodeToken. An
// empty token is valid and denotes revision 0 (the initial sync, an
// uninitialized client with no prior token) — RFC 6578 REPORT requests
// with no <sync-token> element mean "send everything."
func ParseToken(tok string) (int64, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, nil
	}
	if !strings.HasPrefix(tok, tokenPrefix) {
		return 0, apperr.New(apperr.Validation, "invalid sync-token format: %q", tok)
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(tok, tokenPrefix), 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.Validation, "invalid sync-token format: %q", tok)
	}
	if n < 0 {
		return 0, apperr.New(apperr.Validation, "invalid sync-token format: %q", tok)
	}
	return n, nil
}

// ChangeKind discriminates a live resource from a deleted one in a
// sync-collection response.
type ChangeKind int

const (
	Live ChangeKind = iota
	Deleted
)

// Change is one <response> element a sync-collection REPORT emits.
type Change struct {
	Kind         ChangeKind
	Href         string
	ETag         string // empty for Deleted
	SyncRevision int64
}

// LiveInstance is the subset of a store.Instance the diff needs.
type LiveInstance struct {
	Href         string
	ETag         string
	SyncRevision int64
}

// TombstoneRecord is the subset of model.Tombstone the diff needs.
type TombstoneRecord struct {
	Href         string
	SyncRevision int64
}

// Diff assembles the full ordered Change list for a sync-collection
// response at token R, given every live instance and tombstone in the
// collection with sync_revision > R (the storage layer's query already
// applies that filter; Diff only merges and orders the two sets). Per
// §8's sync invariant, the result contains precisely those two
// sets and nothing else.
func Diff(liveSinceR []LiveInstance, tombstonesSinceR []TombstoneRecord) []Change {
	changes := make([]Change, 0, len(liveSinceR)+len(tombstonesSinceR))
	for _, li := range liveSinceR {
		changes = append(changes, Change{Kind: Live, Href: li.Href, ETag: li.ETag, SyncRevision: li.SyncRevision})
	}
	for _, ts := range tombstonesSinceR {
		changes = append(changes, Change{Kind: Deleted, Href: ts.Href, SyncRevision: ts.SyncRevision})
	}
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].SyncRevision != changes[j].SyncRevision {
			return changes[i].SyncRevision < changes[j].SyncRevision
		}
		return changes[i].Href < changes[j].Href
	})
	return changes
}

// RetentionPolicy governs tombstone compaction, §9 Open Question
// (a). MaxAge nil means never purge, the specified default.
type RetentionPolicy struct {
	MaxAge *time.Duration
}

// Eligible reports whether a tombstone deleted at deletedAt is old enough
// to purge under the policy, evaluated against now.
func (p RetentionPolicy) Eligible(now, deletedAt time.Time) bool {
	if p.MaxAge == nil {
		return false
	}
	return now.Sub(deletedAt) >= *p.MaxAge
}

// TokenValid reports whether a client's requested revision is still
// answerable: false once it predates the oldest surviving tombstone,
// forcing the client to fall back to a full resync (§4.11).
// oldestSurviving is nil when the collection has no tombstones.
func TokenValid(requested int64, oldestSurviving *int64) bool {
	if oldestSurviving == nil {
		return true
	}
	return requested >= *oldestSurviving
}
