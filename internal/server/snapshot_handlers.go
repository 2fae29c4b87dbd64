package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/utils"
)

// defaultHistoryWindow is used when a history request has no since parameter.
const defaultHistoryWindow = 30 * 24 * time.Hour

// SnapshotStore is the read side of the price snapshot repository.
type SnapshotStore interface {
	Latest(ctx context.Context, identifier string) (*domain.Quote, error)
	History(ctx context.Context, identifier string, since time.Time) ([]domain.Quote, error)
	Count(ctx context.Context) (int64, error)
}

// SnapshotHandlers serves the stored price history.
type SnapshotHandlers struct {
	store SnapshotStore
	now   func() time.Time
	log   zerolog.Logger
}

// NewSnapshotHandlers creates snapshot handlers.
func NewSnapshotHandlers(store SnapshotStore, log zerolog.Logger) *SnapshotHandlers {
	return &SnapshotHandlers{
		store: store,
		now:   time.Now,
		log:   log.With().Str("handler", "snapshots").Logger(),
	}
}

// HistoryResponse is the body of GET /api/snapshots/{identifier}/history.
type HistoryResponse struct {
	Identifier string         `json:"identifier"`
	Since      time.Time      `json:"since"`
	Snapshots  []domain.Quote `json:"snapshots"`
}

// HandleLatest returns the most recent stored snapshot.
// GET /api/snapshots/{identifier}
func (h *SnapshotHandlers) HandleLatest(w http.ResponseWriter, r *http.Request) {
	identifier, ok := h.identifier(w, r)
	if !ok {
		return
	}

	quote, err := h.store.Latest(r.Context(), identifier)
	if err != nil {
		h.log.Error().Err(err).Str("identifier", identifier).Msg("Failed to read latest snapshot")
		writeError(w, h.log, http.StatusInternalServerError, "failed to read snapshots")
		return
	}
	if quote == nil {
		writeError(w, h.log, http.StatusNotFound, "no snapshot stored")
		return
	}

	writeJSON(w, h.log, http.StatusOK, quote)
}

// HandleHistory returns stored snapshots, oldest first.
// GET /api/snapshots/{identifier}/history?since=2024-01-01
func (h *SnapshotHandlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	identifier, ok := h.identifier(w, r)
	if !ok {
		return
	}

	since, err := utils.ParseDateBound(r.URL.Query().Get("since"), false)
	if err != nil {
		writeError(w, h.log, http.StatusBadRequest, "invalid since: "+err.Error())
		return
	}
	if since.IsZero() {
		since = h.now().Add(-defaultHistoryWindow)
	}

	history, err := h.store.History(r.Context(), identifier, since)
	if err != nil {
		h.log.Error().Err(err).Str("identifier", identifier).Msg("Failed to read snapshot history")
		writeError(w, h.log, http.StatusInternalServerError, "failed to read snapshots")
		return
	}
	if history == nil {
		history = []domain.Quote{}
	}

	writeJSON(w, h.log, http.StatusOK, HistoryResponse{
		Identifier: identifier,
		Since:      since,
		Snapshots:  history,
	})
}

func (h *SnapshotHandlers) identifier(w http.ResponseWriter, r *http.Request) (string, bool) {
	identifier := domain.NormalizeIdentifier(chi.URLParam(r, "identifier"))
	if domain.Classify(identifier) == domain.KindUnknown {
		writeError(w, h.log, http.StatusBadRequest, domain.ErrInvalidIdentifier.Error())
		return "", false
	}
	return identifier, true
}
