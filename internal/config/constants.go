package config

import "time"

// Timing defaults.
const (
	DefaultTimeout = 15 * time.Second

	// LearnRequestDelay spaces the stability-learning probes; keeping a
	// small fixed gap makes flap detection less racy.
	LearnRequestDelay = 150 * time.Millisecond

	// SendRetryDelay is the pause before the single send-level retry.
	SendRetryDelay = 10 * time.Second
)

// Probing defaults.
const (
	DefaultLearnRequests = 9

	// ValueLength is the length of generated random parameter values.
	ValueLength = 5

	// MaxPageSize: larger bodies are almost always binary downloads;
	// refusing them avoids pathological diffing (override with --force).
	MaxPageSize = 25 * 1024 * 1024

	// MaxCodeFlips: seeing the same non-baseline status more than this
	// many times within one run means the whole page flipped (ban, WAF),
	// not that a parameter hit.
	MaxCodeFlips = 50

	// Parameters-per-request defaults by injection place.
	DefaultBodyMax    = 512
	DefaultQueryMax   = 128
	DefaultHeadersMax = 64

	// MaxGuessFloor: query calibration that halves below this gives up.
	MaxGuessFloor = 4
)

// DefaultCustomKeys are the parameter names swept with non-random values.
var DefaultCustomKeys = []string{
	"admin", "bot", "captcha", "debug", "disable", "encryption",
	"env", "show", "sso", "test", "waf",
}

// DefaultCustomValues are the values tried for each custom key.
var DefaultCustomValues = []string{
	"1", "0", "false", "off", "null", "true", "yes", "no",
}
