// Package correlate ties the independent webhook requests of one phone call
// to a single logical intake job.
//
// Voice-call webhooks arrive as separate HTTP requests (tool invocations
// during the call, then a final report after hangup) with no shared request
// context; this table is the only mechanism linking them. It favors
// availability over strict correctness: an event with no call id still gets
// a freshly minted job id and proceeds, producing a disconnected record
// rather than a failed request.
package correlate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jessewayne86/junk-dispatch/internal/domain"
)

// MetricsSink records correlation table metrics. All methods must be
// non-blocking and fire-and-forget.
type MetricsSink interface {
	CorrelationTableSize(size int)
	CorrelationEvictions(count int)
}

type entry struct {
	job       domain.JobID
	expiresAt time.Time
}

// Table maps call ids to job ids. Entries expire a fixed duration after the
// last write so the table stays bounded; correlations do not survive a
// process restart.
type Table struct {
	mu      sync.Mutex
	entries map[string]entry

	ttl     time.Duration
	clock   func() time.Time
	metrics MetricsSink // optional, nil = disabled
}

// DefaultTTL is how long a correlation outlives its last write. Calls are
// minutes long; a day is generous.
const DefaultTTL = 24 * time.Hour

// NewTable creates a Table with the given entry TTL. A non-positive ttl
// falls back to DefaultTTL.
func NewTable(ttl time.Duration) *Table {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Table{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   time.Now,
	}
}

// WithClock overrides the time source. For tests.
func (t *Table) WithClock(clock func() time.Time) *Table {
	t.clock = clock
	return t
}

// WithMetrics attaches a metrics sink to the table.
func (t *Table) WithMetrics(sink MetricsSink) *Table {
	t.metrics = sink
	return t
}

// ResolveOrCreate returns the job id stored for callID, minting and storing
// a new one when absent. An empty callID mints a job id without storing
// anything: the event is uncorrelatable but must still proceed.
func (t *Table) ResolveOrCreate(callID string) domain.JobID {
	if callID == "" {
		return domain.NewJobID()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	if e, ok := t.entries[callID]; ok && now.Before(e.expiresAt) {
		return e.job
	}

	job := domain.NewJobID()
	t.entries[callID] = entry{job: job, expiresAt: now.Add(t.ttl)}
	t.reportSize()
	return job
}

// Bind unconditionally overwrites the job id stored for callID. Used when an
// explicit job id arrives from upstream and must win over a locally minted
// one. No-op when callID is empty.
func (t *Table) Bind(callID string, jobID domain.JobID) {
	if callID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[callID] = entry{job: jobID, expiresAt: t.clock().Add(t.ttl)}
	t.reportSize()
}

// Lookup returns the job id stored for callID without mutating the table.
func (t *Table) Lookup(callID string) (domain.JobID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[callID]
	if !ok || !t.clock().Before(e.expiresAt) {
		return "", false
	}
	return e.job, true
}

// Len returns the number of entries, counting expired entries not yet swept.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Sweep removes expired entries and returns how many were evicted.
func (t *Table) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	evicted := 0
	for callID, e := range t.entries {
		if !now.Before(e.expiresAt) {
			delete(t.entries, callID)
			evicted++
		}
	}
	if evicted > 0 {
		if t.metrics != nil {
			t.metrics.CorrelationEvictions(evicted)
		}
		t.reportSize()
	}
	return evicted
}

// Run sweeps expired entries on the given interval until ctx is cancelled.
func (t *Table) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("correlate: janitor started (ttl=%s, interval=%s)", t.ttl, interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("correlate: janitor stopped")
			return
		case <-ticker.C:
			if n := t.Sweep(); n > 0 {
				log.Printf("correlate: evicted %d expired entries", n)
			}
		}
	}
}

// reportSize must be called with t.mu held.
func (t *Table) reportSize() {
	if t.metrics != nil {
		t.metrics.CorrelationTableSize(len(t.entries))
	}
}
