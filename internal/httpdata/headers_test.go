package httpdata

import "testing"

func TestLookups(t *testing.T) {
	h := Headers{
		{Key: "Content-Type", Value: "text/html"},
		{Key: "X-Debug", Value: "1"},
	}

	if !h.ContainsKey("Content-Type") {
		t.Error("exact key should be found")
	}
	if h.ContainsKey("content-type") {
		t.Error("exact lookup must be case sensitive")
	}
	if v, ok := h.GetCI("content-TYPE"); !ok || v != "text/html" {
		t.Errorf("GetCI = %q, %v", v, ok)
	}
	if _, ok := h.Get("missing"); ok {
		t.Error("missing key reported present")
	}
}

func TestSetKeepsDuplicatesAndOrder(t *testing.T) {
	var h Headers
	h.Set("Cookie", "a=1")
	h.Set("Cookie", "b=2")

	if len(h) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(h))
	}
	if v, _ := h.Get("Cookie"); v != "a=1" {
		t.Errorf("Get should return the first value, got %q", v)
	}
}

func TestSortedDoesNotMutate(t *testing.T) {
	h := Headers{{Key: "b", Value: "2"}, {Key: "a", Value: "1"}}
	s := h.Sorted()

	if s[0].Key != "a" || s[1].Key != "b" {
		t.Errorf("unexpected sorted order: %v", s)
	}
	if h[0].Key != "b" {
		t.Error("Sorted mutated the receiver")
	}
}

func TestCloneIndependence(t *testing.T) {
	h := Headers{{Key: "a", Value: "1"}}
	c := h.Clone()
	c[0].Value = "changed"
	if h[0].Value != "1" {
		t.Error("Clone shares backing array with receiver")
	}
}
