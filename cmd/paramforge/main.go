// Command paramforge discovers hidden HTTP request parameters by probing
// targets with chunked wordlists and watching for behavioral deltas.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/srtdog64/paramforge/internal/config"
	"github.com/srtdog64/paramforge/internal/httpdata"
	"github.com/srtdog64/paramforge/internal/runner"
	"github.com/srtdog64/paramforge/internal/scheduler"
	"github.com/srtdog64/paramforge/internal/stats"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	cfg, err := parseFlags()
	if err != nil {
		log.Errorf("invalid configuration: %v", err)
		os.Exit(1)
	}

	setupOutput(cfg, log)

	if err := run(cfg, log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// multiFlag collects repeatable string flags.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, " ") }

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func parseFlags() (*config.Config, error) {
	cfg := config.Default()

	var urls, methods, headers, customKeys, customValues multiFlag
	flag.Var(&urls, "u", "Target URL; repeatable. May carry a custom injection point with %s")
	flag.Var(&methods, "X", "HTTP method; repeatable (default GET)")
	flag.Var(&headers, "H", "Custom header as 'key: value'; repeatable")
	flag.Var(&customKeys, "custom-parameters", "Keys for the non-random value sweep (default admin bot captcha debug ...)")
	flag.Var(&customValues, "custom-values", "Values for the non-random sweep (default 1 0 false off null true yes no)")

	requestFile := flag.String("r", "", "File with a raw http request")
	proto := flag.String("proto", "https", "Protocol to use with a request file")
	splitBy := flag.String("split-by", "", "Split the request file into lines by this sequence instead of newlines")

	flag.StringVar(&cfg.Wordlist, "w", "", "Wordlist file with parameters (empty = read stdin)")
	flag.StringVar(&cfg.Body, "b", "", "Request body. Available variables: {{random}}; injection point: %s")
	flag.StringVar(&cfg.DataType, "t", "", "Data type: json or urlencoded (auto-detected from the body by default)")
	flag.StringVar(&cfg.Template, "P", "", "Parameter template, e.g. 'user[{k}]={v}'")
	flag.StringVar(&cfg.Joiner, "j", "", "How to join templates, e.g. '&'")
	flag.StringVar(&cfg.Proxy, "x", "", "Proxy URL")
	flag.StringVar(&cfg.ReplayProxy, "replay-proxy", "", "Resend requests with found parameters through this proxy")
	flag.BoolVar(&cfg.ReplayOnce, "replay-once", false, "Replay all found parameters within one request")
	flag.StringVar(&cfg.OutputFile, "o", "", "Output file")
	flag.StringVar(&cfg.OutputFormat, "O", "standart", "Output format: standart, json, url, request")
	flag.BoolVar(&cfg.Append, "append", false, "Append to the output file instead of overwriting it")
	flag.StringVar(&cfg.SaveResponses, "save-responses", "", "Directory for saving request/response pairs of found parameters")
	flag.StringVar(&cfg.HTTPVersion, "http", "", "Force HTTP version: 1.1 or 2")

	delay := flag.Int("d", 0, "Delay between requests in milliseconds")
	timeout := flag.Int("timeout", 15, "HTTP request timeout in seconds")
	flag.IntVar(&cfg.Concurrency, "c", 1, "Concurrent requests per target")
	flag.IntVar(&cfg.Workers, "W", 1, "Concurrent target checks")
	flag.IntVar(&cfg.Max, "m", 0, "Maximum number of parameters per request (default: calibrated)")
	flag.IntVar(&cfg.LearnRequestsCount, "learn-requests", config.DefaultLearnRequests, "Number of learning requests")
	flag.IntVar(&cfg.RecursionDepth, "recursion-depth", 0, "Re-check the wordlist with found parameters as presets up to this depth")
	flag.IntVar(&cfg.Verbose, "v", 1, "Verbose level 0/1")

	flag.BoolVar(&cfg.Verify, "verify", false, "Verify found parameters one more time")
	flag.BoolVar(&cfg.ReflectedOnly, "reflected-only", false, "Search only for reflected parameters")
	flag.BoolVar(&cfg.Strict, "strict", false, "Only report parameters that changed different parts of the page")
	flag.BoolVar(&cfg.Force, "force", false, "Ignore the 'page is too huge' error")
	flag.BoolVar(&cfg.Encode, "encode", false, "Encode the query before sending, i.e. & -> %26, = -> %3D")
	flag.BoolVar(&cfg.FollowRedirects, "L", false, "Follow redirections")
	flag.BoolVar(&cfg.HeadersDiscovery, "headers", false, "Switch to header discovery mode")
	flag.BoolVar(&cfg.Invert, "invert", false, "Flip the default body/query injection choice for the method")
	flag.BoolVar(&cfg.OneWorkerPerHost, "one-worker-per-host", false, "Serialize targets that share a host")
	flag.BoolVar(&cfg.DisableCustomParameters, "disable-custom-parameters", false, "Skip the admin=true style sweep")
	flag.BoolVar(&cfg.DisableCachebuster, "disable-cachebuster", false, "Do not add cachebusting headers")
	flag.BoolVar(&cfg.DisableColors, "disable-colors", false, "Disable colored output")
	flag.BoolVar(&cfg.Test, "test", false, "Print the request and response and exit")

	flag.Parse()

	cfg.Delay = time.Duration(*delay) * time.Millisecond
	cfg.Timeout = time.Duration(*timeout) * time.Second

	if len(methods) != 0 {
		cfg.Methods = methods
	}

	for _, h := range headers {
		key, value, found := strings.Cut(h, ":")
		if !found {
			return nil, errors.Errorf("unable to parse header %q", h)
		}
		cfg.CustomHeaders.Set(key, strings.TrimSpace(value))
	}

	if *requestFile != "" {
		if len(urls) != 0 {
			return nil, errors.New("-u and -r are mutually exclusive")
		}
		raw, err := os.ReadFile(*requestFile)
		if err != nil {
			return nil, errors.Wrap(err, "reading request file")
		}

		scheme := strings.TrimSuffix(*proto, "://")
		port := 443
		if scheme == "http" {
			port = 80
		}

		req, err := config.ParseRequestFile(string(raw), scheme, port, *splitBy)
		if err != nil {
			return nil, err
		}

		cfg.URLs = []string{req.URL}
		cfg.Methods = []string{req.Method}
		cfg.CustomHeaders = append(req.Headers, cfg.CustomHeaders...)
		cfg.Body = req.Body
		if req.DataType == "json" {
			cfg.ProbablyJSON = true
		} else if cfg.DataType == "" {
			cfg.DataType = req.DataType
		}
	} else {
		cfg.URLs = urls
	}

	if len(customKeys) != 0 || len(customValues) != 0 {
		keys := []string(customKeys)
		if len(keys) == 0 {
			keys = config.DefaultCustomKeys
		}
		values := []string(customValues)
		if len(values) == 0 {
			values = config.DefaultCustomValues
		}
		cfg.CustomParameters = config.CustomParametersFrom(keys, values)
	}

	if !cfg.CustomHeaders.ContainsKeyCI("User-Agent") {
		cfg.CustomHeaders.Set("User-Agent", httpdata.DefaultUserAgent())
	}
	if !cfg.DisableCachebuster {
		for _, h := range httpdata.Cachebusters() {
			if !cfg.CustomHeaders.ContainsKeyCI(h.Key) {
				cfg.CustomHeaders.Set(h.Key, h.Value)
			}
		}
	}

	return cfg, validate(cfg)
}

func validate(cfg *config.Config) error {
	if len(cfg.URLs) == 0 {
		return errors.New("a target was not provided")
	}
	switch cfg.DataType {
	case "", "json", "urlencoded":
	default:
		return errors.Errorf("incorrect data type %q (want json or urlencoded)", cfg.DataType)
	}
	switch cfg.OutputFormat {
	case "standart", "json", "url", "request":
	default:
		return errors.Errorf("incorrect output format %q", cfg.OutputFormat)
	}
	switch cfg.HTTPVersion {
	case "", "1.1", "2":
	default:
		return errors.Errorf("unsupported http version %q", cfg.HTTPVersion)
	}
	if cfg.Concurrency < 1 || cfg.Workers < 1 {
		return errors.New("concurrency and workers must be positive")
	}
	if cfg.Verify && cfg.RecursionDepth > 0 {
		return errors.New("--verify conflicts with --recursion-depth")
	}
	return nil
}

func setupOutput(cfg *config.Config, log *logrus.Logger) {
	if cfg.DisableColors {
		color.NoColor = true
	}

	switch {
	case os.Getenv("PARAMFORGE_DEBUG") != "":
		log.SetLevel(logrus.DebugLevel)
	case cfg.Verbose > 0:
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetLevel(logrus.WarnLevel)
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	if cfg.SaveResponses != "" {
		if err := os.MkdirAll(cfg.SaveResponses, 0o755); err != nil {
			return errors.Wrap(err, "creating save-responses directory")
		}
	}

	params, err := readWordlist(cfg)
	if err != nil {
		return err
	}

	if cfg.Verbose > 0 && !cfg.Test {
		banner(cfg, log, len(params))
	}

	collector := stats.NewCollector()

	outputs := scheduler.New(cfg, log, collector).Run(context.Background(), params)

	rendered := runner.ParseOutputs(outputs, cfg)

	if cfg.OutputFile != "" {
		if err := writeOutputFile(cfg, rendered); err != nil {
			return err
		}
	}
	fmt.Print("\n" + rendered)

	snap := collector.Snapshot()
	log.Infof("requests: %d, retries: %d, failures: %d, findings: %d",
		snap.Requests, snap.Retries, snap.Failures, snap.Findings)

	return nil
}

func readWordlist(cfg *config.Config) ([]string, error) {
	var params []string

	if cfg.Wordlist != "" {
		file, err := os.Open(cfg.Wordlist)
		if err != nil {
			return nil, errors.Wrap(err, "opening wordlist")
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				params = append(params, line)
			}
		}
		return params, errors.Wrap(scanner.Err(), "reading wordlist")
	}

	// accept piped stdin only; an interactive terminal means no wordlist
	if info, err := os.Stdin.Stat(); err == nil && info.Mode()&os.ModeCharDevice == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				params = append(params, line)
			}
		}
		return params, errors.Wrap(scanner.Err(), "reading stdin")
	}

	return nil, nil
}

func banner(cfg *config.Config, log *logrus.Logger, wordlistLen int) {
	msg := fmt.Sprintf("urls: %d, methods: %s, wordlist len: %d",
		len(cfg.URLs), strings.Join(cfg.Methods, " "), wordlistLen)
	if cfg.Proxy != "" {
		msg += ", proxy: " + cfg.Proxy
	}
	if cfg.ReplayProxy != "" {
		msg += ", replay proxy: " + cfg.ReplayProxy
	}
	if cfg.RecursionDepth != 0 {
		msg += fmt.Sprintf(", recursion depth: %d", cfg.RecursionDepth)
	}
	log.Info(msg)
}

func writeOutputFile(cfg *config.Config, rendered string) error {
	flags := os.O_CREATE | os.O_WRONLY
	if cfg.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(cfg.OutputFile, flags, 0o644)
	if err != nil {
		return errors.Wrap(err, "opening output file")
	}
	defer file.Close()

	_, err = file.WriteString(rendered)
	return errors.Wrap(err, "writing output file")
}
