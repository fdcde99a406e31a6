package probe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srtdog64/paramforge/internal/httpdata"
)

func TestBeautifyHTML(t *testing.T) {
	r := &Response{Text: "<html><body><p>hi</p></body></html>"}
	r.beautifyBody()

	assert.True(t, strings.Contains(r.Text, ">\n"))
	assert.Greater(t, strings.Count(r.Text, "\n"), 5)
}

func TestBeautifyJSONByContentType(t *testing.T) {
	r := &Response{
		Headers: httpdata.Headers{{Key: "Content-Type", Value: "application/json; charset=utf-8"}},
		Text:    `{"a":"x","b":1,"c":true,"d":{"e":"y"}}`,
	}
	r.beautifyBody()

	assert.Contains(t, r.Text, "{\"\n")
	assert.Contains(t, r.Text, "\"b\":1,\n")
	assert.Contains(t, r.Text, "\"c\":true,\n")
}

func TestBeautifyJSONByShape(t *testing.T) {
	r := &Response{Text: `{"key":"value","other":"thing"}`}
	r.beautifyBody()
	assert.Contains(t, r.Text, "\",\n")
}

func TestAddHeadersSortsAndPrepends(t *testing.T) {
	r := &Response{
		Headers: httpdata.Headers{
			{Key: "Server", Value: "nginx"},
			{Key: "Content-Type", Value: "text/html"},
		},
		Text: "body",
	}
	r.addHeaders()

	assert.True(t, strings.HasPrefix(r.Text, "Content-Type: text/html\nServer: nginx\n\n"))
	assert.True(t, strings.HasSuffix(r.Text, "body"))
}

func TestCount(t *testing.T) {
	r := &Response{Text: "abc ABC abc"}
	assert.Equal(t, 3, r.Count("abc"))
	assert.Equal(t, 0, r.Count("missing"))
}

func TestCompareEqualResponses(t *testing.T) {
	a := &Response{Code: 200, Text: "line1\nline2"}
	b := &Response{Code: 200, Text: "line1\nline2"}

	codeDiff, diffs := a.Compare(b, nil)
	assert.False(t, codeDiff)
	assert.Empty(t, diffs)
}

func TestCompareCodeDiff(t *testing.T) {
	a := &Response{Code: 500, Text: "same"}
	b := &Response{Code: 200, Text: "same"}

	codeDiff, diffs := a.Compare(b, nil)
	assert.True(t, codeDiff)
	assert.NotEmpty(t, diffs, "status line differs, so a hunk is expected")
}

func TestCompareSkipsKnownDiffs(t *testing.T) {
	a := &Response{Code: 200, Text: "one\nCHANGED\nthree"}
	b := &Response{Code: 200, Text: "one\ntwo\nthree"}

	_, diffs := a.Compare(b, nil)
	require.NotEmpty(t, diffs)

	_, again := a.Compare(b, diffs)
	assert.Empty(t, again, "hunks already in the baseline must not resurface")
}

func TestFillReflectedParameters(t *testing.T) {
	initial := &Response{Code: 200, Text: "welcome"}
	r := &Response{
		Code:                200,
		Text:                "welcome zzvalue",
		ReflectedParameters: map[string]int{},
		Origin: Origin{
			PreparedParameters: []Param{
				{Key: "debug", Value: "zzvalue"},
				{Key: "quiet", Value: "qqvalue"},
			},
			NonRandomNames:      map[string]struct{}{},
			AmountOfReflections: 0,
		},
	}

	r.FillReflectedParameters(initial)

	assert.Equal(t, map[string]int{"debug": 1}, r.ReflectedParameters)
}

func TestFillReflectedSkipsFixedValues(t *testing.T) {
	initial := &Response{Code: 200, Text: ""}
	r := &Response{
		Code:                200,
		Text:                "true true true",
		ReflectedParameters: map[string]int{},
		Origin: Origin{
			PreparedParameters: []Param{{Key: "admin", Value: "true"}},
			NonRandomNames:     map[string]struct{}{"admin": {}},
		},
	}

	r.FillReflectedParameters(initial)
	assert.Empty(t, r.ReflectedParameters)
}

func TestProceedReflectedSingle(t *testing.T) {
	r := &Response{ReflectedParameters: map[string]int{"debug": 1}}
	name, repeat := r.ProceedReflectedParameters()
	assert.Equal(t, "debug", name)
	assert.False(t, repeat)
}

func TestProceedReflectedNone(t *testing.T) {
	r := &Response{ReflectedParameters: map[string]int{}}
	name, repeat := r.ProceedReflectedParameters()
	assert.Empty(t, name)
	assert.False(t, repeat)
}

func TestProceedReflectedCachebusterPair(t *testing.T) {
	r := &Response{
		ReflectedParameters: map[string]int{"real": 1, "zzcache": 1},
		Origin: Origin{
			PreparedParameters:  []Param{{Key: "real"}, {Key: "zzcache"}},
			AdditionalParameter: "zzcache",
		},
	}
	name, repeat := r.ProceedReflectedParameters()
	assert.Equal(t, "real", name)
	assert.False(t, repeat)
}

func TestProceedReflectedSingletonGroup(t *testing.T) {
	r := &Response{
		ReflectedParameters: map[string]int{"a": 1, "b": 1, "odd": 3},
		Origin: Origin{
			PreparedParameters: []Param{{Key: "a"}, {Key: "b"}, {Key: "odd"}, {Key: "more"}},
		},
	}
	name, repeat := r.ProceedReflectedParameters()
	assert.Equal(t, "odd", name)
	assert.True(t, repeat, "remaining parameters still need a recheck")
}

func TestProceedReflectedAmbiguous(t *testing.T) {
	r := &Response{
		ReflectedParameters: map[string]int{"a": 1, "b": 2, "c": 3},
		Origin: Origin{
			PreparedParameters: []Param{{Key: "a"}, {Key: "b"}, {Key: "c"}, {Key: "d"}},
		},
	}
	name, repeat := r.ProceedReflectedParameters()
	assert.Empty(t, name)
	assert.True(t, repeat)
}

func TestPossibleParameters(t *testing.T) {
	r := &Response{Text: `
		<input name="username">
		<input name='csrf_token'>
		<script>
			var sessionId = 1;
			let trackingMode = "on";
			const apiKey = "secret";
			window.config = {debugFlag: true, retryCount: 3};
		</script>
	`}

	params := r.PossibleParameters()

	assert.Contains(t, params, "username")
	assert.Contains(t, params, "csrf_token")
	assert.Contains(t, params, "sessionId")
	assert.Contains(t, params, "trackingMode")
	assert.Contains(t, params, "apiKey")
	assert.Contains(t, params, "debugFlag")
	assert.Contains(t, params, "retryCount")

	for i := 1; i < len(params); i++ {
		assert.True(t, params[i-1] < params[i], "params must be sorted unique")
	}
}

func TestPrintIncludesVersionAndCode(t *testing.T) {
	r := &Response{Code: 404, HTTPVersion: "HTTP/1.1", Text: "gone"}
	assert.Equal(t, "HTTP/1.1 404 \ngone", r.Print())

	empty := &Response{}
	assert.True(t, strings.HasPrefix(empty.Print(), "HTTP/x 0 "))
}
