package storage

import (
	"reflect"
	"testing"
)

func TestJoinSplitParamValuesRoundTrip(t *testing.T) {
	values := []string{"WORK", "VOICE", "CELL"}
	encoded := JoinParamValues(values)
	decoded := SplitParamValues(encoded)
	if !reflect.DeepEqual(values, decoded) {
		t.Fatalf("round trip mismatch: %v vs %v", values, decoded)
	}
}

func TestSplitParamValuesEmpty(t *testing.T) {
	if got := SplitParamValues(""); got != nil {
		t.Fatalf("expected nil for empty encoding, got %v", got)
	}
}

func TestJoinSplitSlugsRoundTrip(t *testing.T) {
	slugs := []string{"event-1.ics", "event-1-old.ics"}
	encoded := JoinSlugs(slugs)
	decoded := SplitSlugs(encoded)
	if !reflect.DeepEqual(slugs, decoded) {
		t.Fatalf("round trip mismatch: %v vs %v", slugs, decoded)
	}
}
