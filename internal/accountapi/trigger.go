package accountapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (a *API) handleTriggerOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("recoup.account.id", id))

	res, err := a.dispatcher.TriggerOne(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "failed to trigger account", "account_id", id)
		return
	}

	span.SetAttributes(attribute.Bool("recoup.trigger.skipped", res.Skipped))
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleTriggerAll(w http.ResponseWriter, r *http.Request) {
	res, err := a.dispatcher.TriggerAll(r.Context())
	if err != nil {
		a.writeError(w, r, err, "bulk trigger failed")
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.Int("recoup.trigger.triggered", len(res.Triggered)),
		attribute.Int("recoup.trigger.skipped", res.Skipped),
	)
	writeJSON(w, http.StatusOK, res)
}
