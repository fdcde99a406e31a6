// Package stats tracks request accounting for a run. Counters are shared
// by all probes of a target and read at reporting time.
package stats

import "sync/atomic"

// Collector accumulates counters across concurrent probes.
type Collector struct {
	requests atomic.Int64
	retries  atomic.Int64
	failures atomic.Int64
	findings atomic.Int64
}

// NewCollector returns a zeroed collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordRequest counts one HTTP send attempt.
func (c *Collector) RecordRequest() {
	if c == nil {
		return
	}
	c.requests.Add(1)
}

// RecordRetry counts one send-level retry.
func (c *Collector) RecordRetry() {
	if c == nil {
		return
	}
	c.retries.Add(1)
}

// RecordFailure counts a send that failed even after its retry.
func (c *Collector) RecordFailure() {
	if c == nil {
		return
	}
	c.failures.Add(1)
}

// RecordFinding counts one confirmed parameter.
func (c *Collector) RecordFinding() {
	if c == nil {
		return
	}
	c.findings.Add(1)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests int64
	Retries  int64
	Failures int64
	Findings int64
}

// Snapshot reads all counters. Individual loads are atomic; the set is
// only approximately consistent, which is fine for reporting.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		Requests: c.requests.Load(),
		Retries:  c.retries.Load(),
		Failures: c.failures.Load(),
		Findings: c.findings.Load(),
	}
}
