// Package errors defines the error taxonomy of a probing run: fatal
// per-target conditions that abort one URL's task, and transport error
// classification. The send retry does not consult Classify: every failed
// send is retried once unless its context is done.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Fatal per-URL conditions. Each aborts the current (URL, method) task
// while leaving other tasks running.
var (
	// ErrNotStableCode is returned when the status code flips during the
	// learning phase.
	ErrNotStableCode = errors.New("the page is not stable (code)")

	// ErrBecameUnstable is returned when a non-baseline status code kept
	// repeating during probing and a fresh random-only request confirmed
	// the flip (likely a ban or a server-side state change).
	ErrBecameUnstable = errors.New("the page became unstable (code)")

	// ErrPageTooLarge guards against diffing binary blobs.
	ErrPageTooLarge = errors.New("the page's size > 25MB; use --force to disable this check")

	// ErrMaxFloor is returned when query-size calibration halves below the
	// minimum useful chunk size.
	ErrMaxFloor = errors.New("unable to guess the max amount of parameters per request; try -m")

	// ErrReflectionsUnstable is returned in --reflected-only mode when the
	// learning phase finds reflections flapping.
	ErrReflectionsUnstable = errors.New("reflections are not stable")
)

// Type is the category of a transport-level error.
type Type int

const (
	TypeUnknown Type = iota
	TypeNetwork
	TypeTimeout
	TypeTLS
	TypeCanceled
)

func (t Type) String() string {
	switch t {
	case TypeNetwork:
		return "network"
	case TypeTimeout:
		return "timeout"
	case TypeTLS:
		return "tls"
	case TypeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify buckets a transport error.
func Classify(err error) Type {
	if err == nil {
		return TypeUnknown
	}

	errStr := err.Error()

	if strings.Contains(errStr, "context canceled") {
		return TypeCanceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TypeTimeout
	}
	if strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "i/o timeout") {
		return TypeTimeout
	}

	if strings.Contains(errStr, "tls:") ||
		strings.Contains(errStr, "x509:") ||
		strings.Contains(errStr, "handshake") {
		return TypeTLS
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return TypeNetwork
	}
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no route to host") ||
		strings.Contains(errStr, "lookup") {
		return TypeNetwork
	}

	return TypeUnknown
}

// IsFatal reports whether err is one of the per-URL fatal conditions (and
// therefore must not be downgraded to an empty response by the prober).
func IsFatal(err error) bool {
	return errors.Is(err, ErrNotStableCode) ||
		errors.Is(err, ErrBecameUnstable) ||
		errors.Is(err, ErrPageTooLarge) ||
		errors.Is(err, ErrMaxFloor) ||
		errors.Is(err, ErrReflectionsUnstable)
}

// WithURL annotates a fatal error with the target it belongs to.
func WithURL(url string, err error) error {
	return fmt.Errorf("%s: %w", url, err)
}
