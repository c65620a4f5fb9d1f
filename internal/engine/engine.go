// Package engine implements the concurrent multi-resolver resolution core.
// It admits candidate names under a bounded-concurrency gate, races each one
// against its assigned resolvers, cancels losing sub-queries once a resolver
// answers positively, and aggregates every outcome into a final Report while
// streaming successes to an optional consumer.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/miekg/dns"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"

	"github.com/lc/stampede/internal/dnsquery"
	"github.com/lc/stampede/internal/log"
	"github.com/lc/stampede/internal/ratelimit"
)

var (
	// ErrNoResolvers is returned when the scanner is constructed with an empty resolver pool.
	ErrNoResolvers = fmt.Errorf("resolver pool is empty")
	// ErrNoCandidates is returned when the scanner is constructed with no candidate names.
	ErrNoCandidates = fmt.Errorf("candidate list is empty")
	// ErrBadConcurrency is returned when the concurrency ceiling is not positive.
	ErrBadConcurrency = fmt.Errorf("concurrency must be positive")
)

// Policy selects how resolvers are assigned to a candidate.
type Policy string

const (
	// PolicyRoundRobin assigns a single resolver per candidate, cycling
	// through the pool in input order.
	PolicyRoundRobin Policy = "roundrobin"
	// PolicyRaceAll races every resolver in the pool for each candidate.
	// One healthy resolver is enough for a name to resolve.
	PolicyRaceAll Policy = "race"
)

// ParsePolicy maps a policy name from config or flags to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyRoundRobin, PolicyRaceAll:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown policy %q", s)
	}
}

const _defaultTimeout = 2 * time.Second

// Options configures a Scanner. Resolvers and Candidates come validated from
// the loader; RecordType is a miekg/dns type value (TypeA when zero).
type Options struct {
	Resolvers   []string
	Candidates  []string
	Concurrency int
	Timeout     time.Duration
	RecordType  uint16
	Policy      Policy
	QPS         int // global queries-per-second cap; 0 means unlimited
}

// Report is the aggregate result of one scan. Resolved holds names in
// first-success arrival order, which is not the input order.
type Report struct {
	Resolved      []string `json:"resolved"`
	TotalScanned  int      `json:"total_scanned"`
	ResolversUsed int      `json:"resolvers_used"`
}

// Scanner drives one scan over a fixed candidate list. It is single-use:
// construct with New, optionally wire up Stream, then call Run once.
type Scanner struct {
	querier dnsquery.Querier
	opts    Options

	gate    *semaphore.Weighted
	limiter *ratelimit.Limiter
	stream  chan string

	scanned  atomic.Int64
	resolved atomic.Int64
}

// New validates opts and returns a Scanner ready to Run. An empty resolver
// pool, an empty candidate list, or a non-positive concurrency ceiling is a
// configuration error: the scanner refuses to start rather than degrade.
func New(q dnsquery.Querier, opts Options) (*Scanner, error) {
	if len(opts.Resolvers) == 0 {
		return nil, ErrNoResolvers
	}
	if len(opts.Candidates) == 0 {
		return nil, ErrNoCandidates
	}
	if opts.Concurrency <= 0 {
		return nil, ErrBadConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = _defaultTimeout
	}
	if opts.RecordType == 0 {
		opts.RecordType = dns.TypeA
	}
	if opts.Policy == "" {
		opts.Policy = PolicyRoundRobin
	}

	var limiter *ratelimit.Limiter
	if opts.QPS > 0 {
		var err error
		limiter, err = ratelimit.New(opts.QPS)
		if err != nil {
			return nil, err
		}
	}

	return &Scanner{
		querier: q,
		opts:    opts,
		gate:    semaphore.NewWeighted(int64(opts.Concurrency)),
		limiter: limiter,
		// Buffered to the candidate count so a slow or absent stream
		// consumer can never block outcome collection or leak permits.
		stream: make(chan string, len(opts.Candidates)),
	}, nil
}

// Stream returns the channel on which resolved names are delivered as they
// arrive. The channel is closed once the scan completes.
func (s *Scanner) Stream() <-chan string { return s.stream }

// Progress returns how many candidates have produced an outcome so far and
// how many of those resolved. Safe to call concurrently with Run.
func (s *Scanner) Progress() (scanned, resolved int64) {
	return s.scanned.Load(), s.resolved.Load()
}

// Run executes the scan and blocks until every admitted candidate has
// produced exactly one outcome. Individual query failures never abort the
// scan; the only error Run returns is ctx cancellation, and even then the
// partial Report reflects every candidate admitted before the cut-off.
func (s *Scanner) Run(ctx context.Context) (*Report, error) {
	outcomes := make(chan outcome, len(s.opts.Candidates))

	done := make(chan *Report, 1)
	go s.collect(outcomes, done)

	var (
		wg       sync.WaitGroup
		admitted int
	)

	for i, name := range s.opts.Candidates {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		if err := s.gate.Acquire(ctx, 1); err != nil {
			break
		}

		j := job{
			id:        uuid.NewString(),
			name:      name,
			resolvers: s.assign(i),
		}
		admitted++

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.gate.Release(1)
			// The outcome channel is buffered to the candidate count,
			// so this send releases the permit without waiting on the
			// collector or any downstream consumer.
			outcomes <- s.race(ctx, j)
		}()
	}

	wg.Wait()
	close(outcomes)

	rep := <-done
	if admitted < len(s.opts.Candidates) {
		log.Warnf("engine: scan cancelled after %d/%d candidates", admitted, len(s.opts.Candidates))
		return rep, ctx.Err()
	}
	return rep, nil
}

// assign selects the resolver subset for the i-th candidate.
func (s *Scanner) assign(i int) []string {
	if s.opts.Policy == PolicyRaceAll {
		return s.opts.Resolvers
	}
	return []string{s.opts.Resolvers[i%len(s.opts.Resolvers)]}
}

// job is one admitted candidate. The id only exists so a race can be traced
// through debug logs.
type job struct {
	id        string
	name      string
	resolvers []string
}

// outcome is the single result a job produces: resolved or not.
type outcome struct {
	name     string
	resolved bool
}

type subResult struct {
	resolver string
	positive bool
	err      error
}

// race resolves one candidate by querying every assigned resolver
// concurrently. The first positive answer wins and cancels the rest; if all
// sub-queries come back negative the candidate is unresolved. Resolver
// errors are collected and reported at debug level only.
func (s *Scanner) race(ctx context.Context, j job) outcome {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so no sub-query goroutine ever blocks sending its result,
	// even after the race has been decided and nobody is reading.
	results := make(chan subResult, len(j.resolvers))

	for _, addr := range j.resolvers {
		go func(addr string) {
			qctx, qcancel := context.WithTimeout(rctx, s.opts.Timeout)
			defer qcancel()

			positive, err := s.querier.Query(qctx, addr, j.name, s.opts.RecordType)
			select {
			case results <- subResult{resolver: addr, positive: positive, err: err}:
			case <-rctx.Done():
				// Race already decided; discard this result.
			}
		}(addr)
	}

	var errs error
	for range j.resolvers {
		select {
		case r := <-results:
			if r.positive {
				log.Debugf("engine: job %s: %s answered positively for %q", j.id, r.resolver, j.name)
				cancel()
				return outcome{name: j.name, resolved: true}
			}
			if r.err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", r.resolver, r.err))
			}
		case <-ctx.Done():
			return outcome{name: j.name, resolved: false}
		}
	}

	if errs != nil {
		log.Debugf("engine: job %s: %q unresolved: %v", j.id, j.name, errs)
	}
	return outcome{name: j.name, resolved: false}
}

// collect is the aggregator: it consumes outcomes in arrival order, forwards
// each success to the stream without delay, and finalizes the Report once
// the outcome channel is closed.
func (s *Scanner) collect(outcomes <-chan outcome, done chan<- *Report) {
	rep := &Report{
		Resolved:      []string{},
		ResolversUsed: len(s.opts.Resolvers),
	}

	for o := range outcomes {
		s.scanned.Inc()
		if !o.resolved {
			continue
		}
		s.resolved.Inc()
		rep.Resolved = append(rep.Resolved, o.name)
		s.stream <- o.name
	}

	rep.TotalScanned = int(s.scanned.Load())
	close(s.stream)
	done <- rep
}
