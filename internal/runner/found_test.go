package runner

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srtdog64/paramforge/internal/probe"
)

func TestNewFoundParameterSplitsFixedValues(t *testing.T) {
	f := NewFoundParameter("admin%=%true", []string{"200 -> 500"}, 500, 10, ReasonCode)
	assert.Equal(t, "admin", f.Name)
	assert.Equal(t, "true", f.Value)
	assert.Equal(t, "200 -> 500", f.Diffs)

	plain := NewFoundParameter("debug", []string{"a", "b"}, 200, 10, ReasonText)
	assert.Equal(t, "debug", plain.Name)
	assert.Empty(t, plain.Value)
	assert.Equal(t, "a|b", plain.Diffs)

	eq := NewFoundParameter("admin=true", nil, 500, 10, ReasonCode)
	assert.Equal(t, "admin", eq.Name)
	assert.Equal(t, "true", eq.Value)
}

func TestGetGeneratesRandomValueWhenUnpinned(t *testing.T) {
	f := FoundParameter{Name: "debug"}
	k, v := f.Get()
	assert.Equal(t, "debug", k)
	assert.Len(t, v, 5)

	pinned := FoundParameter{Name: "admin", Value: "true"}
	k, v = pinned.Get()
	assert.Equal(t, "admin", k)
	assert.Equal(t, "true", v)
}

func TestProcessDropsFixedValueTwin(t *testing.T) {
	params := Params{
		{Name: "admin", Status: 500, ReasonKind: ReasonCode},
		{Name: "admin", Value: "true", Status: 500, ReasonKind: ReasonCode},
	}

	out := params.Process(probe.PlacePath)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Value)
}

func TestProcessKeepsFixedValueWithoutTwin(t *testing.T) {
	params := Params{
		{Name: "admin", Value: "true", Status: 500, ReasonKind: ReasonCode},
	}

	out := params.Process(probe.PlacePath)
	require.Len(t, out, 1)
	assert.Equal(t, "true", out[0].Value)
}

func TestProcessPrefersLowercase(t *testing.T) {
	params := Params{
		{Name: "HOST", Status: 200, ReasonKind: ReasonText},
		{Name: "Host", Status: 200, ReasonKind: ReasonText},
		{Name: "host", Status: 200, ReasonKind: ReasonText},
	}

	out := params.Process(probe.PlacePath)
	require.Len(t, out, 1)
	assert.Equal(t, "host", out[0].Name)
}

func TestProcessCaseInsensitiveDedupWithoutLowercase(t *testing.T) {
	params := Params{
		{Name: "Token", Status: 200, ReasonKind: ReasonText},
		{Name: "TOKEN", Status: 200, ReasonKind: ReasonText},
	}

	out := params.Process(probe.PlacePath)
	assert.Len(t, out, 1)
}

func TestProcessCapitalizesHeaderNames(t *testing.T) {
	params := Params{
		{Name: "x-debug", Status: 200, ReasonKind: ReasonText},
	}

	out := params.Process(probe.PlaceHeaders)
	require.Len(t, out, 1)
	assert.Equal(t, "X-debug", out[0].Name)
}

func TestProcessIsIdempotent(t *testing.T) {
	params := Params{
		{Name: "admin", Status: 500, ReasonKind: ReasonCode},
		{Name: "admin", Value: "true", Status: 500, ReasonKind: ReasonCode},
		{Name: "Debug", Status: 200, ReasonKind: ReasonText},
		{Name: "debug", Status: 200, ReasonKind: ReasonText},
		{Name: "x-trace", Status: 200, ReasonKind: ReasonReflected},
	}

	once := params.Process(probe.PlacePath)
	twice := once.Process(probe.PlacePath)
	assert.Equal(t, once, twice)

	headerOnce := params.Process(probe.PlaceHeaders)
	headerTwice := headerOnce.Process(probe.PlaceHeaders)
	assert.Equal(t, headerOnce, headerTwice)
}

func TestReasonKindJSON(t *testing.T) {
	data, err := json.Marshal(FoundParameter{Name: "a", ReasonKind: ReasonReflected})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reason_kind":"Reflected"`)
	assert.NotContains(t, string(data), `"value"`)
}

func TestContainsName(t *testing.T) {
	p := Params{{Name: "debug"}}
	assert.True(t, p.ContainsName("debug"))
	assert.False(t, p.ContainsName("Debug"))
	assert.True(t, p.ContainsNameCI("DEBUG"))
}
