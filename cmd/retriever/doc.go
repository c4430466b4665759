// Command retriever runs one batch of the legal-content pipeline: it reads
// organic search results, keeps the relevant ones, retrieves their text
// through the fallback chain and writes the handoff files for the rewrite
// stage.
//
// Usage:
//
//	retriever -config config.yaml -candidates results.json
//	retriever -config config.yaml -next-query
//
// With -next-query the command prints the next search query in rotation,
// persists the advanced cursor and exits.
//
// The exit status is 0 when articles were handed off, 2 when the run
// completed without any article passing the quality gate (no handoff files
// are written and the previous latest_run.json is kept), and 1 on failure.
package main
