package accountapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/recoup/internal/account"
)

// createRequest is the wire form of account.NewAccount. Amounts are cents and
// the due date is YYYY-MM-DD.
type createRequest struct {
	Name           string         `json:"name"`
	ContactAddress string         `json:"contact_address"`
	BalanceDue     *account.Cents `json:"balance_due"`
	DueDate        string         `json:"due_date"`
	PaymentScore   *int           `json:"payment_score"`
}

func (c *createRequest) toNewAccount() (account.NewAccount, error) {
	if c.BalanceDue == nil {
		return account.NewAccount{}, fmt.Errorf("%w: balance_due is required", account.ErrInvalidInput)
	}
	if c.PaymentScore == nil {
		return account.NewAccount{}, fmt.Errorf("%w: payment_score is required", account.ErrInvalidInput)
	}
	due, err := account.ParseDate(c.DueDate)
	if err != nil {
		return account.NewAccount{}, err
	}
	return account.NewAccount{
		Name:           c.Name,
		ContactAddress: c.ContactAddress,
		BalanceDue:     *c.BalanceDue,
		DueDate:        due,
		PaymentScore:   *c.PaymentScore,
	}, nil
}

func (a *API) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	band, err := account.ParseBand(r.URL.Query().Get("band"))
	if err != nil {
		a.writeError(w, r, err, "parse band")
		return
	}

	records, err := a.accounts.List(r.Context())
	if err != nil {
		a.writeError(w, r, err, "failed to list accounts")
		return
	}
	selected := account.SelectByBand(records, band)

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("recoup.band", string(band)),
		attribute.Int("recoup.accounts.count", len(selected)),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"band":     band,
		"accounts": selected,
	})
}

func (a *API) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	n, err := req.toNewAccount()
	if err != nil {
		a.writeError(w, r, err, "decode account")
		return
	}

	rec, err := a.accounts.Insert(r.Context(), n)
	if err != nil {
		a.writeError(w, r, err, "failed to insert account")
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("recoup.account.id", rec.ID),
		attribute.String("recoup.account.action", string(rec.RecommendedAction)),
	)
	a.logger.Info(r.Context(), "account ingested",
		"account_id", rec.ID,
		"score", rec.PaymentScore,
		"action", rec.RecommendedAction,
	)

	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("recoup.account.id", id))

	rec, err := a.accounts.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "failed to get account", "account_id", id)
		return
	}

	span.SetAttributes(attribute.String("recoup.account.status", string(rec.Status)))
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	records, err := a.accounts.List(r.Context())
	if err != nil {
		a.writeError(w, r, err, "failed to list accounts")
		return
	}
	writeJSON(w, http.StatusOK, account.Summarize(records))
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := a.accounts.Reset(r.Context()); err != nil {
		a.writeError(w, r, err, "failed to reset accounts")
		return
	}
	a.logger.Warn(r.Context(), "account store reset")
	w.WriteHeader(http.StatusNoContent)
}
