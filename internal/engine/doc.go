// Package engine implements stampede's concurrent multi-resolver resolution core.
//
// The engine takes a fixed pool of resolver endpoints and a fixed list of
// candidate names, resolves every candidate exactly once, and produces a
// Report of the names that answered positively. It is the only part of the
// repository with real concurrency coordination; loading inputs and
// formatting outputs live elsewhere.
//
// # Basic Usage
//
// Construct a Scanner, optionally consume its stream, and run it:
//
//	scanner, err := engine.New(dnsquery.New(2*time.Second), engine.Options{
//		Resolvers:   []string{"1.1.1.1:53", "8.8.8.8:53"},
//		Candidates:  names,
//		Concurrency: 100,
//		Policy:      engine.PolicyRaceAll,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	go func() {
//		for name := range scanner.Stream() {
//			fmt.Println(name) // resolved names, in arrival order
//		}
//	}()
//
//	report, err := scanner.Run(ctx)
//
// # Concurrency Model
//
// Three cooperating layers:
//
//   - The admission gate is a weighted semaphore sized to the concurrency
//     ceiling. A candidate is only admitted once a permit is free, and the
//     permit is released on every exit path once the candidate's outcome
//     has been produced.
//   - Each admitted candidate runs a race: one goroutine per assigned
//     resolver, each bounded by the per-query timeout. The first positive
//     answer wins and cancels its siblings via a shared context; a
//     cancelled sub-query discards its result instead of contending.
//   - A single collector goroutine consumes all outcomes from one buffered
//     channel, updates the counters, and forwards successes to the stream.
//     The channel is buffered to the candidate count so permit release
//     never waits on a slow consumer.
//
// # Failure Semantics
//
// Resolver failures are local: an erroring, timing-out or empty-answering
// resolver only loses its own race leg. A candidate whose every assigned
// resolver fails is Unresolved, which is an outcome, not an error. The only
// errors the engine ever surfaces are configuration errors at construction
// (empty pool, empty candidate list, non-positive ceiling) and context
// cancellation during Run.
//
// # Ordering
//
// Report.Resolved reflects first-success arrival order across all races,
// which is non-deterministic run to run. Tests that assert on exact order
// must control timing or use a single candidate.
package engine
