// Package cache keeps one open repository per path for the whole process.
//
// # Overview
//
// Opening a repository reads its config, refs and pack indexes. Callers that
// query the same repository over and over, such as servers answering
// "when was this file last changed" requests, go through a Registry so that
// work happens once per path:
//
//	repo, err := cache.Default().GetOrOpen("/srv/repos/site")
//	if err != nil {
//	    return err
//	}
//	defer repo.Close()
//
// Each call returns a new handle on the shared repository. Closing it drops
// only the caller's hold; the registry keeps its own until Close.
//
// # Keys
//
// The path is used verbatim as the key. "/repo" and "/repo/" are different
// entries. Entries are never evicted.
//
// # Concurrency
//
// Concurrent GetOrOpen calls for the same path open the repository once; the
// other callers wait for that result. A failed open is not cached, so the
// next call tries again.
//
// # Metrics
//
// With WithMetrics the registry exports three counters:
//
//	simplegit_cache_hits_total
//	simplegit_cache_misses_total
//	simplegit_cache_open_errors_total
package cache
