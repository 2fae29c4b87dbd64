package domain

import "errors"

// Standard errors shared by sources, the resolver and the ledger.
// Clients wrap upstream failures with these so callers can use errors.Is.
var (
	ErrInvalidIdentifier     = errors.New("invalid identifier")
	ErrEmptyQuery            = errors.New("empty search query")
	ErrUnsupportedIdentifier = errors.New("identifier not supported by source")
	ErrNoPrice               = errors.New("no usable price in response")
	ErrRateLimited           = errors.New("source rate limit exhausted")
	ErrUpstream              = errors.New("upstream request failed")
	ErrInvalidTrade          = errors.New("invalid trade")
)
