// Package runner drives discovery for one (URL, method) pair: stability
// learning, chunk-size calibration, differential probing, post-processing,
// verification and replay.
package runner

import (
	"encoding/json"
	"strings"

	"github.com/fatih/color"

	"github.com/srtdog64/paramforge/internal/config"
	"github.com/srtdog64/paramforge/internal/probe"
	"github.com/srtdog64/paramforge/internal/randutil"
)

// ReasonKind says which behavioral delta exposed a parameter.
type ReasonKind int

const (
	// ReasonCode: the status code changed.
	ReasonCode ReasonKind = iota
	// ReasonText: the body changed in a region not in the noise baseline.
	ReasonText
	// ReasonReflected: the parameter's value reflection count deviated.
	ReasonReflected
	// ReasonNotReflected: a parameter that suppressed the reflections of
	// everything else in its chunk.
	ReasonNotReflected
)

func (k ReasonKind) String() string {
	switch k {
	case ReasonText:
		return "Text"
	case ReasonReflected:
		return "Reflected"
	case ReasonNotReflected:
		return "NotReflected"
	default:
		return "Code"
	}
}

// MarshalJSON renders the kind by name in report output.
func (k ReasonKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// FoundParameter is one confirmed discovery.
type FoundParameter struct {
	Name string `json:"name"`

	// Value is set only for fixed-value findings (admin=true); empty means
	// any random value triggers the delta.
	Value string `json:"value,omitempty"`

	// Diffs is the |-joined hunk signature that exposed the parameter.
	Diffs string `json:"diffs"`

	Status int `json:"status"`
	Size   int `json:"size"`

	ReasonKind ReasonKind `json:"reason_kind"`
}

// NewFoundParameter builds a finding, splitting fixed-value records
// ("name%=%value" probe entries or plain "name=value") into name and
// pinned value.
func NewFoundParameter(name string, diffs []string, status, size int, kind ReasonKind) FoundParameter {
	value := ""
	if n, v, found := strings.Cut(name, "%=%"); found {
		name, value = n, v
	} else if n, v, found := strings.Cut(name, "="); found {
		name, value = n, v
	}
	return FoundParameter{
		Name:       name,
		Value:      value,
		Diffs:      strings.Join(diffs, "|"),
		Status:     status,
		Size:       size,
		ReasonKind: kind,
	}
}

// Get returns the (key, value) pair to send for this finding, generating
// a random value when none is pinned.
func (f FoundParameter) Get() (string, string) {
	if f.Value != "" {
		return f.Name, f.Value
	}
	return f.Name, randutil.Line(config.ValueLength)
}

// Colored renders the finding for terminal output, tinted by reason.
func (f FoundParameter) Colored() string {
	var name string
	switch f.ReasonKind {
	case ReasonCode:
		name = color.YellowString(f.Name)
	case ReasonText:
		name = color.HiYellowString(f.Name)
	case ReasonReflected:
		name = color.HiBlueString(f.Name)
	default:
		name = color.HiCyanString(f.Name)
	}

	if f.Value != "" {
		return name + "=" + f.Value
	}
	return name
}

// Params is the working set of findings with its dedup pipeline.
type Params []FoundParameter

// ContainsName reports an exact-name match.
func (p Params) ContainsName(name string) bool {
	for _, el := range p {
		if el.Name == name {
			return true
		}
	}
	return false
}

// ContainsNameCI reports a case-insensitive name match.
func (p Params) ContainsNameCI(name string) bool {
	for _, el := range p {
		if strings.EqualFold(el.Name, name) {
			return true
		}
	}
	return false
}

// containsPlainTwin reports whether a plain (no pinned value) finding with
// the same name, reason and status exists.
func (p Params) containsPlainTwin(el FoundParameter) bool {
	for _, x := range p {
		if x.Value == "" && x.Name == el.Name && x.ReasonKind == el.ReasonKind && x.Status == el.Status {
			return true
		}
	}
	return false
}

// Process deduplicates findings:
//  1. a fixed-value record loses to a plain record of the same name,
//     reason and status;
//  2. when a lowercase twin exists, only the lowercase entry survives;
//  3. header discovery canonicalizes names to leading uppercase;
//  4. one entry per case-insensitive name.
//
// Process is idempotent: applying it twice equals applying it once.
func (p Params) Process(place probe.InjectionPlace) Params {
	out := make(Params, 0, len(p))
	for _, el := range p {
		if el.Value != "" && p.containsPlainTwin(el) {
			continue
		}
		out = append(out, el)
	}

	filtered := make(Params, 0, len(out))
	for _, el := range out {
		lower := strings.ToLower(el.Name)
		if el.Name == lower || !out.ContainsName(lower) {
			filtered = append(filtered, el)
		}
	}

	if place == probe.PlaceHeaders {
		for i := range filtered {
			filtered[i].Name = capitalizeFirst(filtered[i].Name)
		}
	}

	final := make(Params, 0, len(filtered))
	for _, el := range filtered {
		if !final.ContainsNameCI(el.Name) {
			final = append(final, el)
		}
	}
	return final
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
