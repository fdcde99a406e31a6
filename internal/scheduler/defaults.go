package scheduler

import (
	"net/http"
	"strings"

	"github.com/srtdog64/paramforge/internal/config"
	"github.com/srtdog64/paramforge/internal/probe"
)

// DefaultsFromConfig builds the request recipe for one (method, URL) pair,
// deciding the injection place from the discovery mode and method.
func DefaultsFromConfig(cfg *config.Config, method, rawURL string, client *http.Client) (*probe.RequestDefaults, error) {
	place := injectionPlace(cfg, method)

	dataType := probe.DataUnknown
	switch cfg.DataType {
	case "json":
		dataType = probe.DataJSON
	case "urlencoded":
		dataType = probe.DataURLEncoded
	}

	// a JSON Content-Type from a request file only proves the body is
	// JSON; applying it anywhere else would leak JSON templates into
	// query or cookie probes
	if dataType == probe.DataUnknown && cfg.ProbablyJSON && place == probe.PlaceBody {
		dataType = probe.DataJSON
	}

	return probe.NewRequestDefaults(
		method,
		rawURL,
		cfg.CustomHeaders,
		cfg.Delay,
		client,
		cfg.Template,
		cfg.Joiner,
		cfg.Encode,
		dataType,
		place,
		cfg.Body,
	)
}

// injectionPlace resolves where parameters go: header modes win, then the
// body for body-carrying methods (flipped by --invert), else the query.
func injectionPlace(cfg *config.Config, method string) probe.InjectionPlace {
	if cfg.HeadersDiscovery {
		for _, h := range cfg.CustomHeaders {
			if strings.Contains(h.Value, "%s") {
				return probe.PlaceHeaderValue
			}
		}
		return probe.PlaceHeaders
	}

	bodyMethod := method == "POST" || method == "PUT"
	if bodyMethod != cfg.Invert {
		return probe.PlaceBody
	}
	return probe.PlacePath
}
