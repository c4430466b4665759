// Package retriever fetches article text for a URL through a fixed chain of
// fallback strategies: a direct fetch, alternate user agents, a public HTML
// cache mirror, and finally the closest web-archive snapshot.
//
// Every strategy shares one signature, (ctx, Target) -> (Article, bool), and
// the Sequencer walks them in order until one yields non-empty text. Expected
// failures (transport errors, timeouts, non-200 responses, unparseable or
// empty documents) are never returned as errors; exhaustion is reported as
// ok=false and the caller moves on to the next candidate.
package retriever
