// Package discovery runs an exhaustive sweep of a prefix-only autocomplete
// service.
//
// # Architecture
//
// A sweep is assembled from four pieces:
//
//  1. Querier - fetches the raw response for one prefix (oracle.Client)
//  2. Normalizer - turns any supported response shape into a flat item list
//  3. Frontier - the queue of pending prefixes plus the Visited and
//     Discovered sets
//  4. Orchestrator - the worker pool tying the three together
//
// # Algorithm
//
// The frontier is seeded with one single-character prefix per alphabet
// symbol. Each worker repeatedly takes the next prefix, queries it,
// normalizes the response and ingests the items. Every new item that
// extends the prefix schedules the prefix one character longer, unless that
// prefix was already scheduled. The sweep ends when the queue is empty and
// no worker holds a prefix:
//
//	seed(alphabet)
//	while next(prefix):
//	    items = normalize(query(prefix))
//	    for each new item extending prefix:
//	        schedule(item[:len(prefix)+1])
//
// A prefix whose query exhausts its retries yields nothing and the sweep
// moves on. A response of no recognized shape is reported as a warning and
// treated as empty.
//
// # Cancellation
//
// Run checks its context before every request. Once cancelled, in-flight
// queries are abandoned, the items discovered so far are still written to
// the output file, and the result is marked cancelled.
//
// # Observability
//
// Progress, per-prefix outcomes and the final summary are emitted as
// events.Event values; the CLI routes them to the zap log sink and, when
// enabled, to the Prometheus sink.
package discovery
