package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/davxml"
)

func TestHTTPStatusDefaults(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Parse, http.StatusBadRequest},
		{Validation, http.StatusConflict},
		{Precondition, http.StatusPreconditionFailed},
		{Authz, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{Invariant, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := New(tc.kind, "boom")
		if got := err.HTTPStatus(); got != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestDatabaseRetryable(t *testing.T) {
	err := New(Database, "connection reset")
	if err.HTTPStatus() != http.StatusInternalServerError {
		t.Fatalf("non-retryable database error should be 500, got %d", err.HTTPStatus())
	}
	err.Retry()
	if err.HTTPStatus() != http.StatusServiceUnavailable {
		t.Fatalf("retryable database error should be 503, got %d", err.HTTPStatus())
	}
}

func TestWithStatusOverride(t *testing.T) {
	err := New(Validation, "forbidden by policy").WithStatus(http.StatusForbidden)
	if err.HTTPStatus() != http.StatusForbidden {
		t.Fatalf("status override ignored, got %d", err.HTTPStatus())
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Database, cause, "write failed")
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is should find wrapped cause")
	}
}

func TestAsAndKindOf(t *testing.T) {
	err := New(NotFound, "no such collection")
	if KindOf(err) != NotFound {
		t.Fatalf("KindOf = %s, want not_found", KindOf(err))
	}
	if KindOf(errors.New("untyped")) != Invariant {
		t.Fatalf("untyped error should classify as Invariant")
	}
	if _, ok := As(err); !ok {
		t.Fatalf("As should recognize *Error")
	}
}

func TestWithBodyCarriesDAVXML(t *testing.T) {
	body := davxml.NeedPrivileges("/api/dav/cal/alice/work/", davxml.QName{Space: davxml.NSDAV, Local: "write-content"})
	err := New(Authz, "missing write-content").WithBody(body)
	if err.DAVBody == nil {
		t.Fatalf("DAVBody not attached")
	}
}
