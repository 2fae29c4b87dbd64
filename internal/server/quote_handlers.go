package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
)

// maxBatchIdentifiers caps the size of one batch request.
const maxBatchIdentifiers = 500

const noQuoteMessage = "no quote available"

// QuoteHandlers serves quote and search requests.
type QuoteHandlers struct {
	resolver QuoteResolver
	log      zerolog.Logger
}

// NewQuoteHandlers creates quote handlers.
func NewQuoteHandlers(resolver QuoteResolver, log zerolog.Logger) *QuoteHandlers {
	return &QuoteHandlers{
		resolver: resolver,
		log:      log.With().Str("handler", "quotes").Logger(),
	}
}

// BatchRequest is the body of POST /api/quotes/batch.
type BatchRequest struct {
	Identifiers []string          `json:"identifiers"`
	Preferred   map[string]string `json:"preferred,omitempty"`
}

// BatchResponse maps normalized identifiers to quotes. Missing lists the
// requested identifiers that could not be priced.
type BatchResponse struct {
	Quotes  map[string]*domain.Quote `json:"quotes"`
	Missing []string                 `json:"missing"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Query   string                `json:"query"`
	Results []domain.SearchResult `json:"results"`
}

// HandleQuote returns the best available quote for one identifier.
// GET /api/quotes/{identifier}
func (h *QuoteHandlers) HandleQuote(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	quote, err := h.resolver.ResolveQuote(r.Context(), identifier)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}
	if quote == nil {
		writeError(w, h.log, http.StatusNotFound, noQuoteMessage)
		return
	}

	writeJSON(w, h.log, http.StatusOK, quote)
}

// HandleBatch prices several identifiers at once.
// POST /api/quotes/batch
func (h *QuoteHandlers) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Identifiers) == 0 {
		writeError(w, h.log, http.StatusBadRequest, "identifiers must not be empty")
		return
	}
	if len(req.Identifiers) > maxBatchIdentifiers {
		writeError(w, h.log, http.StatusBadRequest, "too many identifiers")
		return
	}

	quotes, err := h.resolver.ResolveBatch(r.Context(), req.Identifiers, req.Preferred)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, BatchResponse{
		Quotes:  quotes,
		Missing: missingIdentifiers(req.Identifiers, quotes),
	})
}

// HandleSearch runs a free-text instrument search.
// GET /api/search?q=
func (h *QuoteHandlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	results, err := h.resolver.ResolveSearch(r.Context(), query)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}

	writeJSON(w, h.log, http.StatusOK, SearchResponse{Query: query, Results: results})
}

func (h *QuoteHandlers) writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentifier), errors.Is(err, domain.ErrEmptyQuery):
		writeError(w, h.log, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, h.log, http.StatusServiceUnavailable, "request cancelled, retry")
	default:
		h.log.Error().Err(err).Msg("Quote resolution failed")
		writeError(w, h.log, http.StatusInternalServerError, "internal server error")
	}
}

// missingIdentifiers returns the normalized, valid identifiers absent from quotes.
func missingIdentifiers(requested []string, quotes map[string]*domain.Quote) []string {
	missing := []string{}
	seen := make(map[string]bool, len(requested))
	for _, raw := range requested {
		id := domain.NormalizeIdentifier(raw)
		if seen[id] || domain.Classify(id) == domain.KindUnknown {
			continue
		}
		seen[id] = true
		if _, ok := quotes[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}
