// Package pubmed provides a client for the NCBI PubMed E-utilities API, used
// to sync literature records into the local article store.
//
// Searches are two-step: esearch.fcgi returns the PMIDs matching a query, and
// efetch.fcgi returns full article metadata for those PMIDs. The client rate
// limits requests (NCBI allows 3 req/sec without an API key, 10 with one) and
// retries on 429 and 5xx responses, honoring Retry-After.
//
// The E-utilities API documentation is available at:
// https://www.ncbi.nlm.nih.gov/books/NBK25499/
package pubmed
