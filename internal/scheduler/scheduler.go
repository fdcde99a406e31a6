// Package scheduler fans discovery out across URL×method pairs with a
// bounded worker pool, optionally serializing tasks that share a host.
package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/srtdog64/paramforge/internal/config"
	"github.com/srtdog64/paramforge/internal/netutil"
	"github.com/srtdog64/paramforge/internal/probe"
	"github.com/srtdog64/paramforge/internal/runner"
	"github.com/srtdog64/paramforge/internal/stats"
)

// Scheduler owns the run: it builds per-target clients and runners and
// collects their reports. Failures isolate to their task.
type Scheduler struct {
	cfg   *config.Config
	log   *logrus.Logger
	stats *stats.Collector
}

// New creates a scheduler.
func New(cfg *config.Config, log *logrus.Logger, collector *stats.Collector) *Scheduler {
	return &Scheduler{cfg: cfg, log: log, stats: collector}
}

type task struct {
	url    string
	method string
	id     int
}

// Run executes every URL×method task and returns the successful reports.
func (s *Scheduler) Run(ctx context.Context, params []string) []*runner.RunnerOutput {
	var tasks []task
	id := 0
	for _, u := range s.cfg.URLs {
		for _, m := range s.cfg.Methods {
			tasks = append(tasks, task{url: u, method: m, id: id})
			id++
		}
	}

	var hostLocks map[string]*sync.Mutex
	if s.cfg.OneWorkerPerHost {
		hostLocks = make(map[string]*sync.Mutex)
		for _, t := range tasks {
			if h := hostOf(t.url); hostLocks[h] == nil {
				hostLocks[h] = &sync.Mutex{}
			}
		}
	}

	sem := semaphore.NewWeighted(int64(s.cfg.Workers))

	var mu sync.Mutex
	var outputs []*runner.RunnerOutput
	var wg sync.WaitGroup

	for _, t := range tasks {
		t := t

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			if hostLocks != nil {
				if lock := hostLocks[hostOf(t.url)]; lock != nil {
					lock.Lock()
					defer lock.Unlock()
				}
			}

			log := s.log.WithFields(logrus.Fields{
				"task":   uuid.NewString()[:8],
				"url":    t.url,
				"method": t.method,
			})

			// every task probes its own copy of the wordlist; recursion
			// shrinks it as parameters are found
			taskParams := append([]string(nil), params...)

			out, err := s.runTask(ctx, t, taskParams, log)
			if err != nil {
				log.Errorf("task failed: %v", err)
				return
			}
			if out == nil {
				return
			}

			mu.Lock()
			outputs = append(outputs, out)
			mu.Unlock()
		}()
	}

	wg.Wait()
	return outputs
}

// runTask probes one (URL, method) pair, running the recursion rounds
// when configured.
func (s *Scheduler) runTask(ctx context.Context, t task, params []string, log *logrus.Entry) (*runner.RunnerOutput, error) {
	client, err := netutil.NewClient(netutil.ClientOptions{
		Proxy:           s.cfg.Proxy,
		Timeout:         s.cfg.Timeout,
		FollowRedirects: s.cfg.FollowRedirects,
		HTTPVersion:     s.cfg.HTTPVersion,
	})
	if err != nil {
		return nil, err
	}

	defaults, err := DefaultsFromConfig(s.cfg, t.method, t.url, client)
	if err != nil {
		return nil, err
	}
	defaults.Stats = s.stats

	// warmup request: populates the cookie jar before anything is measured
	if _, err := probe.New(defaults, nil).Send(ctx); err != nil {
		return nil, err
	}

	if s.cfg.Test {
		resp, err := probe.New(defaults, nil).Send(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Printf("%s\n%s\n", probe.New(defaults, nil).Print(), resp.Print())
		return nil, nil
	}

	run, err := runner.New(ctx, s.cfg, defaults, t.id, log)
	if err != nil {
		return nil, err
	}
	report, err := run.Run(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(report.FoundParams) != 0 {
		for depth := 1; depth <= s.cfg.RecursionDepth; depth++ {
			params = removeFound(params, report.FoundParams)

			// the custom-parameter sweep misbehaves under recursion
			defaults.DisableCustomParameters = true

			// keep parameters that left the status alone or moved it to
			// 200 as always-sent presets
			for _, p := range report.FoundParams {
				if probeParamsContain(defaults.Parameters, p.Name) {
					continue
				}
				if p.ReasonKind == runner.ReasonCode && p.Status != 200 {
					continue
				}
				k, v := p.Get()
				defaults.Parameters = append(defaults.Parameters, probe.Param{Key: k, Value: v})
			}

			log.Infof("(%d) repeating with %s", depth, presetNames(defaults.Parameters))

			again, err := runner.New(ctx, s.cfg, defaults, t.id, log)
			if err != nil {
				return nil, err
			}
			next, err := again.Run(ctx, params)
			if err != nil {
				return nil, err
			}

			fresh := false
			for _, p := range next.FoundParams {
				if !report.FoundParams.ContainsName(p.Name) {
					fresh = true
					break
				}
			}
			if !fresh {
				break
			}

			report.FoundParams = append(report.FoundParams, next.FoundParams...)
		}

		// restore the user-supplied presets so output formats do not show
		// doubled parameters
		kept := defaults.Parameters[:0]
		for _, p := range defaults.Parameters {
			if !report.FoundParams.ContainsName(p.Key) {
				kept = append(kept, p)
			}
		}
		defaults.Parameters = kept
	}

	report.PrepareFormats(s.cfg, defaults)
	return report, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Hostname()
}

func removeFound(params []string, found runner.Params) []string {
	out := params[:0]
	for _, p := range params {
		if !found.ContainsName(p) {
			out = append(out, p)
		}
	}
	return out
}

func probeParamsContain(params []probe.Param, key string) bool {
	for _, p := range params {
		if p.Key == key {
			return true
		}
	}
	return false
}

func presetNames(params []probe.Param) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Key
	}
	return fmt.Sprintf("%v", names)
}
