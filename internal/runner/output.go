package runner

import (
	"encoding/json"
	"strings"

	"github.com/fatih/color"

	"github.com/srtdog64/paramforge/internal/config"
	"github.com/srtdog64/paramforge/internal/probe"
)

// RunnerOutput is one target's report.
type RunnerOutput struct {
	Method string `json:"method"`

	// URL without the injection marker.
	URL string `json:"url"`

	// Status and Size describe the initial (baseline) response.
	Status int `json:"status"`
	Size   int `json:"size"`

	FoundParams Params `json:"found_params"`

	InjectionPlace probe.InjectionPlace `json:"injection_place"`

	// query and request back the "url" and "request" output formats.
	query   string
	request string
}

// NewRunnerOutput captures the report data for one finished runner.
func NewRunnerOutput(defaults *probe.RequestDefaults, initial *probe.Response, found Params) *RunnerOutput {
	url := defaults.URLWithoutDefaultPort()
	if defaults.InjectionPlace == probe.PlacePath {
		url = strings.ReplaceAll(strings.ReplaceAll(url, "?%s", ""), "&%s", "")
	}

	return &RunnerOutput{
		Method:         defaults.Method,
		URL:            url,
		Status:         initial.Code,
		Size:           len(initial.Text),
		FoundParams:    found,
		InjectionPlace: defaults.InjectionPlace,
	}
}

// PrepareFormats fills the query/request renderings when the configured
// output format needs them.
func (o *RunnerOutput) PrepareFormats(cfg *config.Config, defaults *probe.RequestDefaults) {
	if cfg.OutputFormat != "url" && cfg.OutputFormat != "request" {
		return
	}

	entries := make([]string, 0, len(o.FoundParams))
	for _, p := range o.FoundParams {
		if p.Value == "" {
			entries = append(entries, p.Name)
		} else {
			entries = append(entries, p.Name+"%=%"+p.Value)
		}
	}

	req := probe.New(defaults, entries)
	req.Prepare("")

	if cfg.OutputFormat == "url" {
		o.query = req.MakeQuery()
	} else {
		o.request = req.Print()
	}
}

// Parse renders the output in the configured format (json is handled at
// the list level).
func (o *RunnerOutput) Parse(cfg *config.Config) string {
	switch cfg.OutputFormat {
	case "url":
		line := o.URL
		if len(o.FoundParams) != 0 && o.InjectionPlace == probe.PlacePath {
			if strings.Contains(line, "?") {
				line += "&%s"
			} else {
				line += "?%s"
			}
		}
		return strings.ReplaceAll(line, "%s", o.query) + "\n"

	case "request":
		return o.request + "\n"

	default:
		rendered := make([]string, len(o.FoundParams))
		for i, p := range o.FoundParams {
			rendered[i] = p.Colored()
		}
		return color.BlueString(o.Method) + " " + o.URL + " % " + strings.Join(rendered, ", ") + "\n"
	}
}

// ParseOutputs renders all reports: one JSON array for the json format,
// concatenated per-target lines otherwise.
func ParseOutputs(outputs []*RunnerOutput, cfg *config.Config) string {
	if cfg.OutputFormat == "json" {
		data, err := json.Marshal(outputs)
		if err != nil {
			return ""
		}
		return string(data) + "\n"
	}

	var b strings.Builder
	for _, o := range outputs {
		b.WriteString(o.Parse(cfg))
	}
	return b.String()
}
