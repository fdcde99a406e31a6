// Package httpdata holds the ordered header container and the default
// header material shared by the request model and the config layer.
package httpdata

import (
	"sort"
	"strings"

	"github.com/corpix/uarand"
)

// Header is a single key/value pair. Order and original capitalization are
// preserved; lookups that need case folding say so explicitly.
type Header struct {
	Key   string
	Value string
}

// Headers is an ordered list of header pairs. A list (not a map) because
// header discovery cares about ordering and about keeping the exact
// capitalization a finding was probed with.
type Headers []Header

// ContainsKey reports whether a header with exactly this name exists.
func (h Headers) ContainsKey(key string) bool {
	for _, p := range h {
		if p.Key == key {
			return true
		}
	}
	return false
}

// Get returns the first value for an exact-case key.
func (h Headers) Get(key string) (string, bool) {
	for _, p := range h {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// GetCI returns the first value for a case-insensitive key.
func (h Headers) GetCI(key string) (string, bool) {
	for _, p := range h {
		if strings.EqualFold(p.Key, key) {
			return p.Value, true
		}
	}
	return "", false
}

// ContainsKeyCI reports whether a header with this name exists, ignoring
// case.
func (h Headers) ContainsKeyCI(key string) bool {
	_, ok := h.GetCI(key)
	return ok
}

// Set appends a pair. Duplicate keys are allowed, as on the wire.
func (h *Headers) Set(key, value string) {
	*h = append(*h, Header{Key: key, Value: value})
}

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

// Sorted returns a copy ordered by key then value. Used when headers are
// rendered into diffable text, so ordering noise never counts as a delta.
func (h Headers) Sorted() Headers {
	out := h.Clone()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// DefaultUserAgent picks a realistic browser User-Agent.
func DefaultUserAgent() string {
	return uarand.GetRandom()
}

// Cachebusters are the headers injected when the user did not supply them
// and cachebusting is enabled. The {{random}} token is re-rolled per send,
// defeating response caches that key on header values.
func Cachebusters() Headers {
	return Headers{
		{Key: "Accept", Value: "*/*, text/{{random}}"},
		{Key: "Accept-Language", Value: "en-US, {{random}};q=0.9, *;q=0.5"},
		{Key: "Accept-Charset", Value: "utf-8, iso-8859-1;q=0.5, {{random}};q=0.2, *;q=0.1"},
	}
}
