package runner

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/srtdog64/paramforge/internal/config"
	xerrors "github.com/srtdog64/paramforge/internal/errors"
	"github.com/srtdog64/paramforge/internal/probe"
)

// proberState is the state shared by all concurrent chunk probes of one
// wordlist pass. The lock is never held across network I/O: sections copy
// out what they need, release, and re-acquire to write back.
type proberState struct {
	mu sync.Mutex

	// diffs is the grow-only noise baseline.
	diffs []string

	// greenLines counts sightings of each non-baseline status code; a
	// code seen too often means the whole page flipped.
	greenLines map[string]int

	found Params
}

func (s *proberState) snapshotDiffs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.diffs...)
}

func (s *proberState) appendDiffs(diffs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diffs = append(s.diffs, diffs...)
}

// checkParameters probes the wordlist chunk by chunk, subdividing on
// anomalies, and returns the grown noise baseline plus the findings.
func (r *Runner) checkParameters(ctx context.Context, params []string) ([]string, Params, error) {
	max := r.Max
	if len(params) < max {
		max = len(params)
	}

	state := &proberState{
		diffs:      append([]string(nil), r.Diffs...),
		greenLines: make(map[string]int),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Config.Concurrency)

	for start := 0; start < len(params); start += max {
		end := start + max
		if end > len(params) {
			end = len(params)
		}
		chunk := params[start:end]

		g.Go(func() error {
			return r.checkParametersRecursion(gctx, state, chunk)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return state.diffs, state.found, nil
}

// repeat splits the chunk in half and probes both halves sequentially.
func (r *Runner) repeat(ctx context.Context, state *proberState, params []string) error {
	mid := len(params) / 2
	if err := r.checkParametersRecursion(ctx, state, params[:mid]); err != nil {
		return err
	}
	return r.checkParametersRecursion(ctx, state, params[mid:])
}

// checkParametersRecursion is the differential prober: send the chunk,
// look for reflection, status and body anomalies, and either record the
// isolated parameter or subdivide.
func (r *Runner) checkParametersRecursion(ctx context.Context, state *proberState, params []string) error {
	if len(params) == 0 {
		return nil
	}

	req := probe.New(r.RequestDefaults, params)
	resp, err := req.Send(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// distinguish a dead target from a chunk the server refuses: if a
		// random probe of the same size works, degrade this chunk's result
		// to an empty response so the code path below sees status 0
		if _, randomErr := probe.NewRandom(r.RequestDefaults, len(params)).Send(ctx); randomErr != nil {
			return nil
		}
		resp = req.EmptyResponse()
	}

	if r.Stable.Reflections {
		resp.FillReflectedParameters(r.InitialResponse)

		reflected, repeat := resp.ProceedReflectedParameters()
		if reflected != "" {
			kind := ReasonReflected
			// a single-parameter chunk that upset the cachebuster's count
			// is the suppressing kind
			if len(params) == 1 {
				kind = ReasonNotReflected
			}

			state.mu.Lock()
			fresh := !state.found.ContainsName(reflected)
			if fresh {
				state.found = append(state.found, NewFoundParameter(
					reflected, []string{"reflected"}, resp.Code, len(resp.Text), kind,
				))
			}
			state.mu.Unlock()

			if fresh {
				r.notify(kind, reflected, resp, "")
				if err := r.saveResponse(resp, reflected); err != nil {
					return err
				}
			}
		}

		if repeat {
			return r.repeat(ctx, state, params)
		}

		if r.Config.ReflectedOnly {
			return nil
		}
	}

	if resp.Code != r.InitialResponse.Code {
		return r.proceedCodeAnomaly(ctx, state, params, resp)
	}

	if r.Stable.Body {
		return r.proceedBodyAnomaly(ctx, state, params, resp)
	}

	return nil
}

// proceedCodeAnomaly handles a status-code delta: track repeated flips,
// record singletons, subdivide the rest.
func (r *Runner) proceedCodeAnomaly(ctx context.Context, state *proberState, params []string, resp *probe.Response) error {
	code := strconv.Itoa(resp.Code)

	state.mu.Lock()
	state.greenLines[code]++
	overflow := state.greenLines[code] > config.MaxCodeFlips
	state.mu.Unlock()

	if overflow {
		check, err := probe.NewRandom(r.RequestDefaults, len(params)).Send(ctx)
		if err != nil || check.Code != r.InitialResponse.Code {
			return xerrors.ErrBecameUnstable
		}
		state.mu.Lock()
		state.greenLines[code] = 0
		state.mu.Unlock()
	}

	if len(params) != 1 {
		return r.repeat(ctx, state, params)
	}

	diff := fmt.Sprintf("%d -> %d", r.InitialResponse.Code, resp.Code)

	state.mu.Lock()
	if !state.found.ContainsName(splitName(params[0])) {
		state.found = append(state.found, NewFoundParameter(
			params[0], []string{diff}, resp.Code, len(resp.Text), ReasonCode,
		))
	}
	state.mu.Unlock()

	r.notify(ReasonCode, params[0], resp, diff)
	return r.saveResponse(resp, splitName(params[0]))
}

// proceedBodyAnomaly handles body hunks not in the baseline: confirm they
// are not noise with a fresh random probe, then record or subdivide.
func (r *Runner) proceedBodyAnomaly(ctx context.Context, state *proberState, params []string, resp *probe.Response) error {
	_, newDiffs := resp.Compare(r.InitialResponse, state.snapshotDiffs())
	if len(newDiffs) == 0 {
		return nil
	}

	signature := strings.Join(newDiffs, "|")

	if r.Config.Strict {
		state.mu.Lock()
		claimed := containsSignature(state.found, signature)
		state.mu.Unlock()
		if claimed {
			return nil
		}
	}

	// the same-sized random probe tells noise from signal: whatever it
	// changes belongs in the baseline
	noise, err := probe.NewRandom(r.RequestDefaults, len(params)).Send(ctx)
	if err != nil {
		return nil
	}
	_, noiseDiffs := noise.Compare(r.InitialResponse, state.snapshotDiffs())
	state.appendDiffs(noiseDiffs)

	baseline := state.snapshotDiffs()
	for _, d := range newDiffs {
		if containsString(baseline, d) {
			continue
		}

		if len(params) != 1 {
			return r.repeat(ctx, state, params)
		}

		name := splitName(params[0])

		state.mu.Lock()
		if state.found.ContainsName(name) {
			state.mu.Unlock()
			return nil
		}
		// authoritative strict check, done under the same lock that
		// records the finding
		if r.Config.Strict && containsSignature(state.found, signature) {
			state.mu.Unlock()
			return nil
		}
		state.found = append(state.found, NewFoundParameter(
			params[0], newDiffs, resp.Code, len(resp.Text), ReasonText,
		))
		state.mu.Unlock()

		r.notify(ReasonText, params[0], resp, d)
		return r.saveResponse(resp, name)
	}

	return nil
}

func containsSignature(found Params, signature string) bool {
	for _, f := range found {
		if f.Diffs == signature {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, el := range list {
		if el == s {
			return true
		}
	}
	return false
}

// splitName strips a pinned value from a raw wordlist entry.
func splitName(raw string) string {
	if name, _, found := strings.Cut(raw, "%=%"); found {
		return name
	}
	name, _, _ := strings.Cut(raw, "=")
	return name
}

// notify reports a finding as it happens.
func (r *Runner) notify(kind ReasonKind, parameter string, resp *probe.Response, diff string) {
	name := splitName(parameter)
	switch kind {
	case ReasonCode:
		r.log.Infof("%s: code %d -> %s", name, r.InitialResponse.Code, resp.StatusColored())
	case ReasonText:
		r.log.Infof("%s: page %d -> %d (%s)", name, len(r.InitialResponse.Text), len(resp.Text), diff)
	case ReasonReflected:
		r.log.Infof("reflects: %s", name)
	case ReasonNotReflected:
		r.log.Infof("not reflected one: %s", name)
	}
}
