package probe

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/srtdog64/paramforge/internal/diff"
	"github.com/srtdog64/paramforge/internal/httpdata"
)

// Origin holds the bits of the originating request that response analysis
// and output need. Responses deliberately do not back-reference the full
// Request.
type Origin struct {
	ID     string
	Host   string
	Method string

	PreparedParameters []Param

	// NonRandomNames are fixed-value parameter names; their values reflect
	// unpredictably and are excluded from reflection counting.
	NonRandomNames map[string]struct{}

	// AdditionalParameter is the cachebuster name baked into the probe.
	AdditionalParameter string

	// AmountOfReflections is the learned baseline reflection count.
	AmountOfReflections int
}

// Response is one normalized probe result.
type Response struct {
	Time time.Duration

	// Code is 0 only for the synthesized empty response.
	Code int

	Headers httpdata.Headers

	// Text is headers plus beautified body, the diffing form.
	Text string

	// ReflectedParameters maps parameter name to its reflection delta when
	// that delta deviates from the learned baseline.
	ReflectedParameters map[string]int

	HTTPVersion string

	Origin Origin

	lowerText string
}

// Count reports how many times s occurs in the lowercased response text.
func (r *Response) Count(s string) int {
	if r.lowerText == "" && r.Text != "" {
		r.lowerText = strings.ToLower(r.Text)
	}
	return strings.Count(r.lowerText, s)
}

// Compare diffs this response against the initial one. It returns whether
// the status differs and the hunks not already present in oldDiffs.
// Repeated hunks within one comparison get a " (n)" suffix so multiplicity
// survives into the baseline.
func (r *Response) Compare(initial *Response, oldDiffs []string) (bool, []string) {
	isCodeDiff := initial.Code != r.Code

	var diffs []string
	for _, d := range diff.Lines(r.Print(), initial.Print()) {
		switch {
		case !containsString(diffs, d) && !containsString(oldDiffs, d):
			diffs = append(diffs, d)
		case !containsString(oldDiffs, d):
			c := 1
			for containsString(diffs, fmt.Sprintf("%s (%d)", d, c)) {
				c++
			}
			diffs = append(diffs, fmt.Sprintf("%s (%d)", d, c))
		}
	}

	sort.Strings(diffs)
	return isCodeDiff, diffs
}

var (
	reJSONBrackets       = regexp.MustCompile(`(\{"|"\}|\[["0-9]|["0-9]\])`)
	reJSONCommaAfterNum  = regexp.MustCompile(`("[\w.-]*"):(\d+),`)
	reJSONCommaAfterBool = regexp.MustCompile(`("[\w.-]*"):((?:false|null|true)),`)
)

// beautifyBody inserts newlines to raise line granularity before diffing:
// JSON gets split on structural boundaries, everything else after tags.
func (r *Response) beautifyBody() {
	ct, _ := r.Headers.GetCI("content-type")
	isJSON := strings.Contains(ct, "json") ||
		(strings.HasPrefix(r.Text, "{") && strings.HasSuffix(r.Text, "}"))

	if isJSON {
		body := strings.ReplaceAll(r.Text, `\"`, "'")
		body = strings.ReplaceAll(body, `",`, "\",\n")
		body = reJSONBrackets.ReplaceAllString(body, "$1\n")
		body = reJSONCommaAfterNum.ReplaceAllString(body, "$1:$2,\n")
		body = reJSONCommaAfterBool.ReplaceAllString(body, "$1:$2,\n")
		r.Text = body
	} else {
		r.Text = strings.ReplaceAll(r.Text, ">", ">\n")
	}
}

// addHeaders prepends the sorted header list to the text so header-only
// changes register as hunks too.
func (r *Response) addHeaders() {
	var b strings.Builder
	for _, h := range r.Headers.Sorted() {
		fmt.Fprintf(&b, "%s: %s\n", h.Key, h.Value)
	}
	b.WriteString("\n")
	b.WriteString(r.Text)
	r.Text = b.String()
}

// FillReflectedParameters records every probe parameter whose reflection
// delta against the initial response deviates from the learned baseline.
func (r *Response) FillReflectedParameters(initial *Response) {
	for _, p := range r.Origin.PreparedParameters {
		if _, fixed := r.Origin.NonRandomNames[p.Key]; fixed {
			continue
		}

		delta := r.Count(p.Value) - initial.Count(p.Value)
		if delta != r.Origin.AmountOfReflections {
			r.ReflectedParameters[p.Key] = delta
		}
	}
}

// ProceedReflectedParameters inspects the anomalous reflections of one
// chunk. It returns the isolated parameter (if any) and whether the chunk
// must be re-split and retried for the remaining parameters.
func (r *Response) ProceedReflectedParameters() (string, bool) {
	switch len(r.ReflectedParameters) {
	case 0:
		return "", false
	case 1:
		for k := range r.ReflectedParameters {
			return k, false
		}
	}

	// one real parameter plus the cachebuster: the real one perturbed the
	// cachebuster's count, so it is the finding
	if len(r.Origin.PreparedParameters) == 2 && len(r.ReflectedParameters) == 2 {
		for k := range r.ReflectedParameters {
			if k != r.Origin.AdditionalParameter {
				return k, false
			}
		}
	}

	// group parameters by their reflection count; a single outlier within
	// exactly two groups is the finding, but the rest still need a recheck
	byCount := make(map[int][]string)
	for k, v := range r.ReflectedParameters {
		byCount[v] = append(byCount[v], k)
	}

	if len(byCount) == 2 {
		for _, names := range byCount {
			if len(names) == 1 {
				return names[0], true
			}
		}
	}

	// reflections were not stable; re-split
	return "", true
}

// Print renders status line plus normalized text, the form the differ
// consumes.
func (r *Response) Print() string {
	version := r.HTTPVersion
	if version == "" {
		version = "HTTP/x"
	}
	return fmt.Sprintf("%s %d \n%s", version, r.Code, r.Text)
}

// StatusColored renders the status code colorized by class.
func (r *Response) StatusColored() string {
	s := fmt.Sprintf("%d", r.Code)
	switch {
	case r.Code >= 200 && r.Code <= 299:
		return color.HiGreenString(s)
	case r.Code >= 300 && r.Code <= 399:
		return color.HiBlueString(s)
	case r.Code >= 400 && r.Code <= 499:
		return color.HiYellowString(s)
	case r.Code >= 500 && r.Code <= 599:
		return color.HiRedString(s)
	default:
		return color.MagentaString(s)
	}
}

func containsString(list []string, s string) bool {
	for _, el := range list {
		if el == s {
			return true
		}
	}
	return false
}
