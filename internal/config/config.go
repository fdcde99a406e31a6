package config

import (
	"time"

	"github.com/srtdog64/paramforge/internal/httpdata"
)

// Config carries everything a run needs. It is constructed once by the
// flag layer and shared read-only by every runner afterwards.
type Config struct {
	// Targets
	URLs    []string
	Methods []string

	// Wordlist file; empty means parameters are read from stdin.
	Wordlist string

	// User-supplied plus default headers. Values may contain {{random}}
	// and, in header-value discovery mode, the %s injection marker.
	CustomHeaders httpdata.Headers

	// Body skeleton; may contain %s and {{random}}.
	Body string

	// "json", "urlencoded" or empty for auto-detection.
	DataType string

	// ProbablyJSON is set when a request file carried a JSON Content-Type:
	// the body is treated as JSON only if the injection point actually is
	// the body, so JSON templates never leak into query probes.
	ProbablyJSON bool

	Template string
	Joiner   string
	Encode   bool

	// Custom-parameter sweep material: key -> remaining values to try.
	CustomParameters        map[string]Values
	DisableCustomParameters bool

	Proxy       string
	ReplayProxy string
	ReplayOnce  bool

	OutputFile    string
	Append        bool
	OutputFormat  string
	SaveResponses string

	Delay   time.Duration
	Timeout time.Duration

	Concurrency int
	Workers     int

	LearnRequestsCount int
	RecursionDepth     int

	// Max is the user override for parameters-per-request; 0 = calibrate.
	Max int

	Verify        bool
	ReflectedOnly bool
	Strict        bool
	Force         bool

	FollowRedirects  bool
	Invert           bool
	HeadersDiscovery bool
	OneWorkerPerHost bool

	DisableCachebuster bool
	DisableColors      bool

	// HTTPVersion pins the protocol: "1.1", "2" or empty for negotiation.
	HTTPVersion string

	// Test prints the prepared request/response per target and exits.
	Test bool

	// Verbose: 0 critical output only, 1 progress and findings.
	Verbose int
}

// Values is a mutable stack of candidate values for one custom parameter.
type Values []string

// Pop removes and returns the last value.
func (v *Values) Pop() (string, bool) {
	if len(*v) == 0 {
		return "", false
	}
	last := (*v)[len(*v)-1]
	*v = (*v)[:len(*v)-1]
	return last, true
}

// Default returns a Config with every tunable at its documented default.
func Default() *Config {
	return &Config{
		Methods:            []string{"GET"},
		OutputFormat:       "standart",
		Delay:              0,
		Timeout:            DefaultTimeout,
		Concurrency:        1,
		Workers:            1,
		LearnRequestsCount: DefaultLearnRequests,
		CustomParameters:   DefaultCustomParameters(),
		Verbose:            1,
	}
}

// DefaultCustomParameters builds the built-in key/value sweep table.
func DefaultCustomParameters() map[string]Values {
	out := make(map[string]Values, len(DefaultCustomKeys))
	for _, k := range DefaultCustomKeys {
		values := make(Values, len(DefaultCustomValues))
		copy(values, DefaultCustomValues)
		out[k] = values
	}
	return out
}

// CustomParametersFrom builds the sweep table from explicit key and value
// lists (the --custom-parameters / --custom-values overrides).
func CustomParametersFrom(keys, values []string) map[string]Values {
	out := make(map[string]Values, len(keys))
	for _, k := range keys {
		vs := make(Values, len(values))
		copy(vs, values)
		out[k] = vs
	}
	return out
}
