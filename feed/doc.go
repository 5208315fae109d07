// Package feed collects records from an infinite-scroll news feed.
//
// A run is strictly sequential over one scraper.Session:
//
//	Load      navigate, wait until a record wrapper exists
//	Collect   scroll and re-query until enough wrappers are seen
//	Assemble  per wrapper: read fields, try to resolve the audio URL
//
// Field and audio failures are absorbed per record and default to "".
// Only page-level failures (PAGE_NOT_READY, NO_ITEMS_FOUND, timeouts,
// browser crashes) end a run, and the session is closed on every path.
package feed
