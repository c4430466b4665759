// Package crawler holds the shared vocabulary of the legal content retriever:
// search candidates, extracted articles, retrieval methods, and the small
// interfaces (fetcher, extractor, stores, publisher, clock) the pipeline is
// assembled from.
package crawler
