package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/srtdog64/paramforge/internal/httpdata"
	"github.com/srtdog64/paramforge/internal/stats"
)

// RequestDefaults is the per-(URL, method) request recipe. It is built
// once per target, mutated only while learning (AmountOfReflections and,
// during recursion, Parameters) and cloned into every probe after that.
type RequestDefaults struct {
	Method string
	Scheme string
	Host   string
	Port   int

	// Path may contain the %s injection marker and {{random}} tokens.
	Path string

	CustomHeaders httpdata.Headers

	// Delay between requests; enforced through the limiter.
	Delay time.Duration

	Client *http.Client

	// Template serializes one pair, e.g. "{k}={v}"; Joiner glues pairs.
	Template string
	Joiner   string

	Encode bool
	IsJSON bool

	// Body skeleton; may contain %s and {{random}}.
	Body string

	// Parameters are sent with every probe (user presets plus, during
	// recursion, previously found parameters).
	Parameters []Param

	InjectionPlace InjectionPlace

	// AmountOfReflections is how many times a long random value showed up
	// in the clean baseline; every reflection comparison zeroes on it.
	AmountOfReflections int

	// DisableCustomParameters suppresses the fixed-value sweep (forced on
	// while recursing).
	DisableCustomParameters bool

	Stats *stats.Collector

	limiter *rate.Limiter
}

// NewRequestDefaults parses the target URL and derives the serialization
// format and injection markers. dataType may be DataUnknown, in which case
// the format is guessed from the body and injection place.
func NewRequestDefaults(
	method, rawURL string,
	customHeaders httpdata.Headers,
	delay time.Duration,
	client *http.Client,
	template, joiner string,
	encode bool,
	dataType DataType,
	place InjectionPlace,
	body string,
) (*RequestDefaults, error) {
	guessedTemplate, guessedJoiner, isJSON, dataType := guessDataFormat(body, place, dataType)
	if template == "" {
		template = guessedTemplate
	}
	if joiner == "" {
		joiner = guessedJoiner
	}

	// a literal %s in the path is an invalid percent escape to url.Parse;
	// shield it through parsing and restore it afterwards
	const markerToken = "zz-injection-marker-zz"
	u, err := url.Parse(strings.ReplaceAll(rawURL, "%s", markerToken))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing url %q", rawURL)
	}
	if u.Host == "" {
		return nil, errors.Errorf("url %q has no host", rawURL)
	}

	port := u.Port()
	portNum := 0
	if port == "" {
		switch u.Scheme {
		case "http":
			portNum = 80
		case "https":
			portNum = 443
		default:
			return nil, errors.Errorf("unsupported scheme %q", u.Scheme)
		}
	} else {
		portNum, err = strconv.Atoi(port)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing port %q", port)
		}
	}

	path := strings.ReplaceAll(u.RequestURI(), markerToken, "%s")
	if dataType != DataUnknown {
		path, body = fixPathAndBody(path, body, joiner, place, dataType)
	}

	d := &RequestDefaults{
		Method:         method,
		Scheme:         u.Scheme,
		Host:           u.Hostname(),
		Port:           portNum,
		Path:           path,
		CustomHeaders:  customHeaders.Clone(),
		Delay:          delay,
		Client:         client,
		Template:       template,
		Joiner:         joiner,
		Encode:         encode,
		IsJSON:         isJSON,
		Body:           body,
		InjectionPlace: place,
	}
	if delay > 0 {
		d.limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return d, nil
}

// guessDataFormat returns template, joiner, is-JSON and the effective data
// type for the injection place.
func guessDataFormat(body string, place InjectionPlace, dataType DataType) (string, string, bool, DataType) {
	if dataType != DataUnknown {
		switch dataType {
		case DataJSON:
			// {v} is unquoted: not every JSON value takes quotes
			return `"{k}": {v}`, ", ", true, DataJSON
		default:
			return "{k}={v}", "&", false, DataURLEncoded
		}
	}

	switch place {
	case PlaceBody:
		if strings.HasPrefix(body, "{") {
			return `"{k}": {v}`, ", ", true, DataJSON
		}
		return "{k}={v}", "&", false, DataURLEncoded
	case PlaceHeaderValue:
		return "{k}={v}", ";", false, DataUnknown
	case PlaceHeaders:
		return "", "", false, DataUnknown
	default:
		return "{k}={v}", "&", false, DataURLEncoded
	}
}

// fixPathAndBody plants the %s injection marker where the user left none.
func fixPathAndBody(path, body, joiner string, place InjectionPlace, dataType DataType) (string, string) {
	switch place {
	case PlaceBody:
		switch {
		case strings.Contains(body, "%s"):
			return path, body
		case body == "":
			if dataType == DataJSON {
				return path, "{%s}"
			}
			return path, "%s"
		default:
			if dataType == DataJSON {
				// open the object back up and append the chunk
				return path, strings.TrimSuffix(body, "}") + ", %s}"
			}
			return path, body + joiner + "%s"
		}
	case PlacePath:
		switch {
		case strings.Contains(path, "%s"):
			return path, body
		case strings.Contains(path, "?"):
			return path + joiner + "%s", body
		case joiner == "&":
			return path + "?%s", body
		default:
			// non-standard joiner, splice right onto the path
			return path + "%s", body
		}
	default:
		return path, body
	}
}

// URL reassembles the full target URL including the port.
func (d *RequestDefaults) URL() string {
	return fmt.Sprintf("%s://%s:%d%s", d.Scheme, d.Host, d.Port, d.Path)
}

// URLWithoutDefaultPort renders the URL the way a person would type it.
func (d *RequestDefaults) URLWithoutDefaultPort() string {
	if (d.Scheme == "http" && d.Port == 80) || (d.Scheme == "https" && d.Port == 443) {
		return fmt.Sprintf("%s://%s%s", d.Scheme, d.Host, d.Path)
	}
	return d.URL()
}

// Clone copies the defaults deeply enough that learning-phase mutations on
// the copy never leak back.
func (d *RequestDefaults) Clone() *RequestDefaults {
	out := *d
	out.CustomHeaders = d.CustomHeaders.Clone()
	out.Parameters = append([]Param(nil), d.Parameters...)
	return &out
}

// wait enforces the configured inter-request delay.
func (d *RequestDefaults) wait(ctx context.Context) error {
	if d.limiter == nil {
		return nil
	}
	return d.limiter.Wait(ctx)
}
