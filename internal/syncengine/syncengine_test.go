package syncengine

import (
	"testing"
	"time"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
)

func TestEncodeParseTokenRoundTrip(t *testing.T) {
	tok := EncodeToken(42)
	if tok != "http://example/sync/42" {
		t.Fatalf("token = %q", tok)
	}
	rev, err := ParseToken(tok)
	if err != nil || rev != 42 {
		t.Fatalf("rev = %d, err = %v", rev, err)
	}
}

func TestParseTokenEmptyIsZero(t *testing.T) {
	rev, err := ParseToken("")
	if err != nil || rev != 0 {
		t.Fatalf("rev = %d, err = %v", rev, err)
	}
}

func TestParseTokenInvalidFormat(t *testing.T) {
	for _, bad := range []string{"seq:42", "http://example/sync/", "http://example/sync/-1", "garbage"} {
		_, err := ParseToken(bad)
		if err == nil {
			t.Fatalf("expected error for %q", bad)
		}
		if e, ok := apperr.As(err); !ok || e.Kind != apperr.Validation {
			t.Fatalf("expected Validation kind for %q, got %v", bad, err)
		}
	}
}

func TestDiffOrdersByRevisionThenHref(t *testing.T) {
	live := []LiveInstance{
		{Href: "/a.ics", ETag: `"e1"`, SyncRevision: 3},
		{Href: "/b.ics", ETag: `"e2"`, SyncRevision: 1},
	}
	tomb := []TombstoneRecord{
		{Href: "/c.ics", SyncRevision: 2},
	}
	changes := Diff(live, tomb)
	if len(changes) != 3 {
		t.Fatalf("len = %d", len(changes))
	}
	if changes[0].SyncRevision != 1 || changes[1].SyncRevision != 2 || changes[2].SyncRevision != 3 {
		t.Fatalf("not ordered by revision: %+v", changes)
	}
	if changes[1].Kind != Deleted || changes[1].Href != "/c.ics" {
		t.Fatalf("tombstone not surfaced correctly: %+v", changes[1])
	}
}

func TestRetentionPolicyNeverPurgeByDefault(t *testing.T) {
	p := RetentionPolicy{}
	if p.Eligible(time.Now(), time.Now().Add(-10000*time.Hour)) {
		t.Fatalf("nil MaxAge should never be eligible for purge")
	}
}

func TestRetentionPolicyEligibleAfterMaxAge(t *testing.T) {
	maxAge := 24 * time.Hour
	p := RetentionPolicy{MaxAge: &maxAge}
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	if !p.Eligible(now, now.Add(-48*time.Hour)) {
		t.Fatalf("should be eligible past max age")
	}
	if p.Eligible(now, now.Add(-1*time.Hour)) {
		t.Fatalf("should not be eligible within max age")
	}
}

func TestTokenValidAgainstOldestSurvivingTombstone(t *testing.T) {
	if !TokenValid(5, nil) {
		t.Fatalf("nil oldestSurviving should always validate")
	}
	oldest := int64(10)
	if TokenValid(5, &oldest) {
		t.Fatalf("token older than oldest surviving tombstone should be invalid")
	}
	if !TokenValid(15, &oldest) {
		t.Fatalf("token newer than oldest surviving tombstone should be valid")
	}
}
