package scheduler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srtdog64/paramforge/internal/config"
	"github.com/srtdog64/paramforge/internal/probe"
	"github.com/srtdog64/paramforge/internal/stats"
)

func testLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.LearnRequestsCount = 2
	cfg.Max = 10
	cfg.DisableCustomParameters = true
	return cfg
}

func TestRunCollectsOutputs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("admin") {
			w.WriteHeader(http.StatusInternalServerError)
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.URLs = []string{server.URL + "/"}

	s := New(cfg, testLog(), stats.NewCollector())
	outputs := s.Run(context.Background(), []string{"id", "admin"})

	require.Len(t, outputs, 1)
	require.Len(t, outputs[0].FoundParams, 1)
	assert.Equal(t, "admin", outputs[0].FoundParams[0].Name)
	assert.Equal(t, "GET", outputs[0].Method)
}

func TestFailuresIsolatePerTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.URLs = []string{"ftp://unsupported.invalid/", server.URL + "/"}
	cfg.Workers = 2

	s := New(cfg, testLog(), stats.NewCollector())
	outputs := s.Run(context.Background(), []string{"id"})

	require.Len(t, outputs, 1, "the broken target must not take the healthy one down")
}

func TestOneWorkerPerHostSerializes(t *testing.T) {
	var active, peak atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := active.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		defer active.Add(-1)
		time.Sleep(2 * time.Millisecond)
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.URLs = []string{server.URL + "/a", server.URL + "/b"}
	cfg.Workers = 2
	cfg.OneWorkerPerHost = true

	s := New(cfg, testLog(), stats.NewCollector())
	s.Run(context.Background(), []string{"id"})

	assert.LessOrEqual(t, peak.Load(), int64(1),
		"tasks sharing a host must not overlap")
}

func TestMethodsMultiplyTasks(t *testing.T) {
	var gets, posts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		} else {
			gets.Add(1)
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.URLs = []string{server.URL + "/"}
	cfg.Methods = []string{"GET", "POST"}
	cfg.Workers = 2

	s := New(cfg, testLog(), stats.NewCollector())
	outputs := s.Run(context.Background(), []string{"id"})

	assert.Len(t, outputs, 2)
	assert.Positive(t, gets.Load())
	assert.Positive(t, posts.Load())
}

func TestDefaultsFromConfigPlaces(t *testing.T) {
	cfg := config.Default()

	d, err := DefaultsFromConfig(cfg, "GET", "https://example.com/", nil)
	require.NoError(t, err)
	assert.Equal(t, probe.PlacePath, d.InjectionPlace)

	d, err = DefaultsFromConfig(cfg, "POST", "https://example.com/", nil)
	require.NoError(t, err)
	assert.Equal(t, probe.PlaceBody, d.InjectionPlace)

	cfg.Invert = true
	d, err = DefaultsFromConfig(cfg, "GET", "https://example.com/", nil)
	require.NoError(t, err)
	assert.Equal(t, probe.PlaceBody, d.InjectionPlace)
	cfg.Invert = false

	cfg.HeadersDiscovery = true
	d, err = DefaultsFromConfig(cfg, "GET", "https://example.com/", nil)
	require.NoError(t, err)
	assert.Equal(t, probe.PlaceHeaders, d.InjectionPlace)

	cfg.CustomHeaders.Set("Cookie", "track=%s")
	d, err = DefaultsFromConfig(cfg, "GET", "https://example.com/", nil)
	require.NoError(t, err)
	assert.Equal(t, probe.PlaceHeaderValue, d.InjectionPlace)
}
