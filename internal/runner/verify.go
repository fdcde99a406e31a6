package runner

import (
	"context"
	"fmt"

	"github.com/srtdog64/paramforge/internal/netutil"
	"github.com/srtdog64/paramforge/internal/probe"
)

// verify re-probes every finding one at a time and keeps only those that
// still show a delta against the baseline.
func (r *Runner) verify(ctx context.Context, found Params, diffs []string) (Params, error) {
	filtered := make(Params, 0, len(found))

	for _, param := range found {
		k, v := param.Get()
		resp, err := probe.New(r.RequestDefaults, []string{k + "%=%" + v}).Send(ctx)
		if err != nil {
			return nil, err
		}

		isCodeDiff, newDiffs := resp.Compare(r.InitialResponse, diffs)
		bodyChanged := len(newDiffs) != 0

		resp.FillReflectedParameters(r.InitialResponse)

		if isCodeDiff || len(resp.ReflectedParameters) != 0 || (r.Stable.Body && bodyChanged) {
			filtered = append(filtered, param)
		}
	}

	return filtered, nil
}

// replay resends the findings through the replay proxy: one cookie warmup,
// then either a single batched request or one request per finding.
func (r *Runner) replay(ctx context.Context, found Params) error {
	client, err := netutil.NewClient(netutil.ClientOptions{
		Proxy:           r.Config.ReplayProxy,
		Timeout:         r.Config.Timeout,
		FollowRedirects: r.Config.FollowRedirects,
		HTTPVersion:     r.Config.HTTPVersion,
	})
	if err != nil {
		return err
	}

	if _, err := probe.New(r.RequestDefaults, nil).SendBy(ctx, client); err != nil {
		return err
	}

	if r.Config.ReplayOnce {
		// duplicate keys would collide inside one request; keep the first
		// finding per key and say what was dropped
		seen := make(map[string]struct{}, len(found))
		var batch []string
		for _, param := range found {
			k, v := param.Get()
			if _, dup := seen[k]; dup {
				r.log.Warnf("replay-once: dropping duplicate key %q", k)
				continue
			}
			seen[k] = struct{}{}
			batch = append(batch, k+"%=%"+v)
		}

		_, err := probe.New(r.RequestDefaults, batch).SendBy(ctx, client)
		return err
	}

	for _, param := range found {
		k, v := param.Get()
		if _, err := probe.New(r.RequestDefaults, []string{fmt.Sprintf("%s%%=%%%s", k, v)}).SendBy(ctx, client); err != nil {
			return err
		}
	}

	return nil
}
