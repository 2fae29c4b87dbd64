package domain

import "context"

// QuoteSource is the capability contract every upstream quote provider satisfies.
// The resolver depends only on this interface, never on concrete clients.
type QuoteSource interface {
	// Name returns the stable source name used for caching, rate limiting and tagging
	Name() string

	// Supports reports whether the source can price the identifier at all
	Supports(identifier string) bool

	// FetchQuote returns the latest quote or an error. A nil quote with a nil
	// error is a soft miss.
	FetchQuote(ctx context.Context, identifier string) (*Quote, error)

	// FetchBatch prices several identifiers in as few upstream calls as the
	// provider allows. Identifiers that could not be priced are absent.
	FetchBatch(ctx context.Context, identifiers []string) (map[string]*Quote, error)
}

// Searcher is implemented by sources that can look up instruments by free text.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// RequestCounter is implemented by sources whose fetches cost more than one
// upstream request. Requests returns how many requests fetching identifiers
// takes. Sources without it are charged one request per fetch.
type RequestCounter interface {
	Requests(identifiers []string) int
}
