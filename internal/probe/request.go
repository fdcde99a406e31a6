package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/srtdog64/paramforge/internal/config"
	"github.com/srtdog64/paramforge/internal/httpdata"
	"github.com/srtdog64/paramforge/internal/randutil"
)

// fixedValueMarker splits a wordlist entry into (name, pinned value).
// Entries without it get a fresh random value per send.
const fixedValueMarker = "%=%"

// Request is one probe in the making. It is prepared exactly once
// (placeholders expanded, chunk serialized into its injection place) and
// consumed by one send.
type Request struct {
	defaults *RequestDefaults

	// Parameters is the raw chunk: names, or name%=%value entries.
	Parameters []string

	// PreparedParameters is the chunk after presets, fixed values and
	// random values are applied.
	PreparedParameters []Param

	// NonRandomParameters are the fixed-value entries; reflection counting
	// skips them since their values reflect unpredictably.
	NonRandomParameters []Param

	Headers httpdata.Headers
	Body    string
	Path    string

	prepared bool

	// additionalParam is the cachebuster name actually baked in at
	// Prepare time; a retried send must not invent a fresh one.
	additionalParam string
}

// New creates a probe for a parameter chunk.
func New(d *RequestDefaults, parameters []string) *Request {
	return &Request{
		defaults:           d,
		Parameters:         parameters,
		PreparedParameters: append([]Param(nil), d.Parameters...),
		Path:               d.Path,
		Body:               d.Body,
	}
}

// NewRandom creates a probe carrying n parameters with random names, used
// for learning and noise confirmation.
func NewRandom(d *RequestDefaults, n int) *Request {
	parameters := make([]string, n)
	for i := range parameters {
		parameters[i] = randutil.Line(config.ValueLength)
	}
	return New(d, parameters)
}

// Prepare expands placeholders and serializes the chunk into the wire
// request. additionalParam is the per-send cachebuster parameter; pass ""
// to omit it. Preparing twice is a no-op.
func (r *Request) Prepare(additionalParam string) {
	if r.prepared {
		return
	}
	r.prepared = true
	r.additionalParam = additionalParam

	for _, p := range r.Parameters {
		if name, value, found := strings.Cut(p, fixedValueMarker); found {
			r.NonRandomParameters = append(r.NonRandomParameters, Param{Key: name, Value: value})
		}
	}
	r.PreparedParameters = append(r.PreparedParameters, r.NonRandomParameters...)

	raw := r.Parameters
	if additionalParam != "" {
		raw = append(append([]string(nil), raw...), additionalParam)
	}
	for _, p := range raw {
		if p == "" || strings.Contains(p, fixedValueMarker) {
			continue
		}
		r.PreparedParameters = append(r.PreparedParameters, Param{
			Key:   p,
			Value: randutil.Line(config.ValueLength),
		})
	}

	if r.defaults.InjectionPlace != PlaceHeaderValue {
		for _, h := range r.defaults.CustomHeaders {
			r.Headers.Set(h.Key, replaceRandom(h.Value))
		}
	}
	r.Path = replaceRandom(r.Path)
	r.Body = replaceRandom(r.Body)

	switch r.defaults.InjectionPlace {
	case PlacePath:
		r.Path = strings.Replace(r.Path, "%s", r.MakeQuery(), 1)
	case PlaceBody:
		r.Body = strings.Replace(r.Body, "%s", r.MakeQuery(), 1)

		if !r.defaults.CustomHeaders.ContainsKey("Content-Type") {
			if r.defaults.IsJSON {
				r.Headers.Set("Content-Type", "application/json")
			} else {
				r.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
			}
		}
	case PlaceHeaderValue:
		query := r.MakeQuery()
		for _, h := range r.defaults.CustomHeaders {
			r.Headers.Set(h.Key, strings.Replace(replaceRandom(h.Value), "%s", query, 1))
		}
	case PlaceHeaders:
		for _, p := range r.Parameters {
			r.Headers.Set(p, randutil.Line(config.ValueLength))
		}
	}
}

func replaceRandom(s string) string {
	for strings.Contains(s, "{{random}}") {
		s = strings.Replace(s, "{{random}}", randutil.Line(config.ValueLength), 1)
	}
	return s
}

// MakeQuery serializes the prepared parameters through the template and
// joiner, percent-encoding the result when --encode is on.
func (r *Request) MakeQuery() string {
	parts := make([]string, len(r.PreparedParameters))
	for i, p := range r.PreparedParameters {
		parts[i] = strings.ReplaceAll(
			strings.ReplaceAll(r.defaults.Template, "{k}", p.Key),
			"{v}", p.Value,
		)
	}
	query := strings.Join(parts, r.defaults.Joiner)

	if r.defaults.Encode {
		return encodeQuery(query)
	}
	return query
}

// encodeQuery percent-encodes the characters that break query parsing
// when sent raw: space " < > ` & # ; / = %.
func encodeQuery(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case ' ', '"', '<', '>', '`', '&', '#', ';', '/', '=', '%':
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// URL renders the full request URL with the (possibly injected) path.
func (r *Request) URL() string {
	return fmt.Sprintf("%s://%s:%d%s", r.defaults.Scheme, r.defaults.Host, r.defaults.Port, r.Path)
}

// Send sends the probe through the target's shared client.
func (r *Request) Send(ctx context.Context) (*Response, error) {
	return r.SendBy(ctx, r.defaults.Client)
}

// SendBy sends the probe through an explicit client (the replay path).
// A failed send is retried once after a fixed pause; the second failure
// is returned to the caller, which decides whether to degrade it into an
// empty response.
func (r *Request) SendBy(ctx context.Context, client *http.Client) (*Response, error) {
	resp, err := r.execute(ctx, client)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	r.defaults.Stats.RecordRetry()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(config.SendRetryDelay):
	}

	resp, err = r.execute(ctx, client)
	if err != nil {
		r.defaults.Stats.RecordFailure()
		return nil, err
	}
	return resp, nil
}

func (r *Request) execute(ctx context.Context, client *http.Client) (*Response, error) {
	additional := randutil.Line(7)
	r.Prepare(additional)

	if err := r.defaults.wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.defaults.Method, r.URL(), body)
	if err != nil {
		return nil, err
	}
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, "Host") {
			req.Host = h.Value
			continue
		}
		req.Header.Add(h.Key, h.Value)
	}

	r.defaults.Stats.RecordRequest()

	start := time.Now()
	httpResp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Time:                time.Since(start),
		Code:                httpResp.StatusCode,
		Headers:             headersFromHTTP(httpResp.Header),
		Text:                string(data),
		HTTPVersion:         httpResp.Proto,
		ReflectedParameters: make(map[string]int),
		Origin:              r.origin(),
	}
	resp.beautifyBody()
	resp.addHeaders()
	return resp, nil
}

// EmptyResponse synthesizes the response used when both send attempts
// failed: status 0 and no body, distinguishable from anything a live
// server returns.
func (r *Request) EmptyResponse() *Response {
	r.Prepare("")
	return &Response{
		Code:                0,
		ReflectedParameters: make(map[string]int),
		Origin:              r.origin(),
	}
}

func (r *Request) origin() Origin {
	nonRandom := make(map[string]struct{}, len(r.NonRandomParameters))
	for _, p := range r.NonRandomParameters {
		nonRandom[p.Key] = struct{}{}
	}
	return Origin{
		ID:                  uuid.NewString(),
		Host:                r.defaults.Host,
		Method:              r.defaults.Method,
		PreparedParameters:  append([]Param(nil), r.PreparedParameters...),
		NonRandomNames:      nonRandom,
		AdditionalParameter: r.additionalParam,
		AmountOfReflections: r.defaults.AmountOfReflections,
	}
}

// headersFromHTTP flattens a stdlib header map into the ordered container,
// sorted by name so map iteration order never shows up in diffs.
func headersFromHTTP(h http.Header) httpdata.Headers {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out httpdata.Headers
	for _, k := range keys {
		for _, v := range h[k] {
			out.Set(k, v)
		}
	}
	return out
}

// Print renders the request as text for --test and the "request" output
// format.
func (r *Request) Print() string {
	r.Prepare(randutil.Line(config.ValueLength))

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/x\nHost: %s\n", r.defaults.Method, r.Path, r.defaults.Host)
	for _, h := range r.Headers.Sorted() {
		fmt.Fprintf(&b, "%s: %s\n", h.Key, h.Value)
	}
	fmt.Fprintf(&b, "\n%s", r.Body)
	return b.String()
}
