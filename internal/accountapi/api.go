// Package accountapi exposes account ingestion, triage views and
// notification triggers over HTTP.
package accountapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/recoup/internal/account"
	"github.com/linnemanlabs/recoup/internal/dispatch"
)

// Accounts is the slice of account.Store the handlers need.
type Accounts interface {
	Insert(ctx context.Context, n account.NewAccount) (*account.Record, error)
	Get(ctx context.Context, id string) (*account.Record, error)
	List(ctx context.Context) ([]*account.Record, error)
	Reset(ctx context.Context) error
}

// Dispatcher initiates notifications.
type Dispatcher interface {
	TriggerOne(ctx context.Context, id string) (*dispatch.TriggerResult, error)
	TriggerAll(ctx context.Context) (*dispatch.BulkResult, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger     log.Logger
	accounts   Accounts
	dispatcher Dispatcher
}

// New creates a new API handler.
func New(logger log.Logger, accounts Accounts, dispatcher Dispatcher) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if accounts == nil {
		panic(xerrors.New("account store is required"))
	}
	if dispatcher == nil {
		panic(xerrors.New("dispatcher is required"))
	}
	return &API{
		logger:     logger,
		accounts:   accounts,
		dispatcher: dispatcher,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/accounts", a.handleListAccounts)
		r.Post("/accounts", a.handleCreateAccount)
		r.Post("/accounts/reset", a.handleReset)
		r.Get("/accounts/{id}", a.handleGetAccount)
		r.Post("/accounts/{id}/trigger", a.handleTriggerOne)
		r.Post("/trigger", a.handleTriggerAll)
		r.Get("/summary", a.handleSummary)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and hidden from the client.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, msg string, kv ...any) {
	switch {
	case errors.Is(err, account.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, account.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		a.logger.Error(r.Context(), err, msg, kv...)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
