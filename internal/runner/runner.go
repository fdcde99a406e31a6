package runner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srtdog64/paramforge/internal/config"
	xerrors "github.com/srtdog64/paramforge/internal/errors"
	"github.com/srtdog64/paramforge/internal/probe"
	"github.com/srtdog64/paramforge/internal/randutil"
)

// Stable captures what the learning phase concluded about the target.
type Stable struct {
	// Body: unchanged random probes render the same page (modulo the
	// accumulated noise baseline).
	Body bool

	// Reflections: random values never show up in the page unexpectedly.
	Reflections bool
}

// Runner is the per-(URL, method) state machine.
type Runner struct {
	// ID distinguishes output between targets.
	ID int

	Config *config.Config

	// RequestDefaults is shared with the caller; the learning phase sets
	// its AmountOfReflections.
	RequestDefaults *probe.RequestDefaults

	// PossibleParams were scraped from the initial page.
	PossibleParams []string

	// Max is the calibrated parameters-per-request.
	Max int

	Stable Stable

	InitialResponse *probe.Response

	// Diffs is the noise baseline for this target.
	Diffs []string

	log *logrus.Entry

	// maxGuessed is true when Max came from adaptive query calibration
	// (as opposed to a user override or a per-place default).
	maxGuessed bool
}

// New makes the initial request and collects baseline facts: status code,
// reflections of a long random value, scrapeable parameter names.
func New(ctx context.Context, cfg *config.Config, defaults *probe.RequestDefaults, id int, log *logrus.Entry) (*Runner, error) {
	// a long random parameter raises accuracy when counting the default
	// amount of reflections
	temp := defaults.Clone()
	longRandom := probe.Param{Key: randutil.Line(10), Value: randutil.Line(10)}
	temp.Parameters = append(temp.Parameters, longRandom)

	initial, err := probe.New(temp, nil).Send(ctx)
	if err != nil {
		return nil, err
	}

	var possible []string
	if defaults.InjectionPlace != probe.PlaceHeaders {
		possible = initial.PossibleParameters()
	}

	defaults.AmountOfReflections = initial.Count(longRandom.Value)

	return &Runner{
		ID:              id,
		Config:          cfg,
		RequestDefaults: defaults,
		PossibleParams:  possible,
		InitialResponse: initial,
		log:             log,
	}, nil
}

// Run learns stability, probes the wordlist, sweeps custom parameters,
// post-processes and optionally verifies and replays.
func (r *Runner) Run(ctx context.Context, params []string) (*RunnerOutput, error) {
	r.logBanner()

	if err := r.stabilityCheck(ctx); err != nil {
		return nil, err
	}

	if r.Config.Max == 0 {
		r.log.Infof("amount of parameters per request - %d", r.Max)
	}

	// merge scraped names, preserving wordlist order and uniqueness
	params = mergeUnique(params, r.PossibleParams)

	var diffs []string
	var found Params
	if len(params) != 0 {
		var err error
		diffs, found, err = r.checkParameters(ctx, params)
		if err != nil {
			return nil, err
		}
	} else {
		r.log.Info("no parameters were provided")
	}

	if err := r.checkNonRandomParameters(ctx, &found); err != nil {
		return nil, err
	}

	found = found.Process(r.RequestDefaults.InjectionPlace)

	if r.Config.Verify {
		verified, err := r.verify(ctx, found, diffs)
		if err != nil {
			r.log.Warn("was unable to verify found parameters")
		} else {
			found = verified
		}
	}

	if r.Config.ReplayProxy != "" {
		if err := r.replay(ctx, found); err != nil {
			r.log.Warn("was unable to resend found parameters via the replay proxy")
		}
	}

	for range found {
		r.RequestDefaults.Stats.RecordFinding()
	}

	return NewRunnerOutput(r.RequestDefaults, r.InitialResponse, found), nil
}

// checkNonRandomParameters sweeps common parameters (admin, debug, ...)
// paired with common values (true, 1, ...) until every value stack runs
// dry. Keys already found are skipped.
func (r *Runner) checkNonRandomParameters(ctx context.Context, found *Params) error {
	if r.RequestDefaults.DisableCustomParameters || r.Config.DisableCustomParameters {
		return nil
	}

	// copy the value stacks; the config is shared between runners
	custom := make(map[string]config.Values, len(r.Config.CustomParameters))
	keys := make([]string, 0, len(r.Config.CustomParameters))
	for k, v := range r.Config.CustomParameters {
		custom[k] = append(config.Values(nil), v...)
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for {
		var batch []string
		for _, k := range keys {
			if found.ContainsName(k) {
				continue
			}
			values := custom[k]
			if value, ok := values.Pop(); ok {
				custom[k] = values
				batch = append(batch, fmt.Sprintf("%s%s%s", k, "%=%", value))
			}
		}

		if len(batch) == 0 {
			return nil
		}

		_, batchFound, err := r.checkParameters(ctx, batch)
		if err != nil {
			return err
		}
		*found = append(*found, batchFound...)
	}
}

// stabilityCheck calibrates the chunk size and learns the page's noise
// baseline.
func (r *Runner) stabilityCheck(ctx context.Context) error {
	switch {
	case r.Config.Max > 0:
		r.Max = r.Config.Max
	default:
		switch r.RequestDefaults.InjectionPlace {
		case probe.PlaceBody:
			r.Max = config.DefaultBodyMax
		case probe.PlaceHeaders, probe.PlaceHeaderValue:
			r.Max = config.DefaultHeadersMax
		default:
			max, err := r.guessMaxForQuery(ctx)
			if err != nil {
				return err
			}
			r.Max = max
			r.maxGuessed = true
		}
	}

	if err := r.learn(ctx); err != nil {
		return err
	}

	if r.Config.ReflectedOnly && !r.Stable.Reflections {
		return xerrors.ErrReflectionsUnstable
	}

	// the adaptive default survived at 128; maybe 192 or 256 work too
	if r.maxGuessed && r.Max == config.DefaultQueryMax {
		return r.tryToIncreaseMax(ctx)
	}

	return nil
}

// learn makes the learning probes, accumulates persistent diffs and
// settles the Stable verdict.
func (r *Runner) learn(ctx context.Context) error {
	stable := Stable{Body: true, Reflections: true}
	var diffs []string

	for i := 0; i < r.Config.LearnRequestsCount; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(config.LearnRequestDelay):
		}

		resp, err := probe.NewRandom(r.RequestDefaults, r.Max).Send(ctx)
		if err != nil {
			return err
		}

		if len(resp.Text) > config.MaxPageSize && !r.Config.Force {
			return xerrors.ErrPageTooLarge
		}

		resp.FillReflectedParameters(r.InitialResponse)
		if len(resp.ReflectedParameters) != 0 {
			stable.Reflections = false
		}

		isCodeDiff, newDiffs := resp.Compare(r.InitialResponse, diffs)
		if isCodeDiff {
			return xerrors.ErrNotStableCode
		}

		diffs = append(diffs, newDiffs...)
	}

	// one more probe: anything still new means the body flaps
	resp, err := probe.NewRandom(r.RequestDefaults, r.Max).Send(ctx)
	if err != nil {
		return err
	}
	if _, newDiffs := resp.Compare(r.InitialResponse, diffs); len(newDiffs) != 0 {
		r.log.Info("the page is not stable (body)")
		stable.Body = false
	}

	r.Diffs, r.Stable = diffs, stable
	return nil
}

// tryToIncreaseMax checks whether one and a half or double the default
// chunk size still renders a stable page, and keeps the biggest that does.
func (r *Runner) tryToIncreaseMax(ctx context.Context) error {
	delta := r.Max / 2

	resp, err := probe.NewRandom(r.RequestDefaults, r.Max+delta).Send(ctx)
	if err != nil {
		return err
	}
	isCodeDiff, newDiffs := resp.Compare(r.InitialResponse, r.Diffs)
	bodySame := len(newDiffs) == 0

	if isCodeDiff || (r.Stable.Body && !bodySame) {
		return nil
	}

	resp, err = probe.NewRandom(r.RequestDefaults, r.Max+delta*2).Send(ctx)
	if err != nil {
		return err
	}
	isCodeDiff, newDiffs = resp.Compare(r.InitialResponse, r.Diffs)
	bodySame = len(newDiffs) == 0

	if !isCodeDiff && (!r.Stable.Body || bodySame) {
		r.Max += delta * 2
	} else {
		r.Max += delta
	}
	return nil
}

// guessMaxForQuery finds how many parameters fit a query before the
// server chokes: start at the default and halve until the status matches
// the baseline.
func (r *Runner) guessMaxForQuery(ctx context.Context) (int, error) {
	max := config.DefaultQueryMax

	send := func(n int) *probe.Response {
		req := probe.NewRandom(r.RequestDefaults, n)
		resp, err := req.Send(ctx)
		if err != nil {
			// some servers cut the connection when the URL is too long;
			// treat that as status 0
			return req.EmptyResponse()
		}
		return resp
	}

	resp := send(max)
	for resp.Code != r.InitialResponse.Code {
		check, err := probe.NewRandom(r.RequestDefaults, 0).Send(ctx)
		if err != nil {
			return 0, err
		}
		if check.Code != r.InitialResponse.Code {
			return 0, xerrors.ErrBecameUnstable
		}

		max /= 2
		if max < config.MaxGuessFloor {
			return 0, xerrors.ErrMaxFloor
		}

		resp = send(max)
	}

	return max, nil
}

func (r *Runner) logBanner() {
	r.log.WithFields(logrus.Fields{
		"status":      r.InitialResponse.Code,
		"size":        len(r.InitialResponse.Text),
		"reflections": r.RequestDefaults.AmountOfReflections,
	}).Infof("%s %s", r.RequestDefaults.Method, r.RequestDefaults.URLWithoutDefaultPort())
}

// mergeUnique appends extras not already present, preserving order.
func mergeUnique(params, extras []string) []string {
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		seen[p] = struct{}{}
	}
	out := append([]string(nil), params...)
	for _, e := range extras {
		if _, ok := seen[e]; !ok {
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}
