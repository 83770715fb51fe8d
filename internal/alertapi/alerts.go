package alertapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/fleetwatch/internal/alert"
)

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req alert.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "validation", "invalid JSON payload")
		return
	}

	res, err := a.alerts.Ingest(r.Context(), req)
	if err != nil {
		a.writeDomainError(w, r, err, "ingest alert")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("fleetwatch.alert.id", res.Alert.ID),
		attribute.Bool("fleetwatch.alert.duplicate", res.Duplicate),
	)

	// A collapsed duplicate is still a success for the caller, but it did
	// not create anything.
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	a.writeJSON(w, status, map[string]any{
		"alert":     res.Alert,
		"duplicate": res.Duplicate,
	})
}

func (a *API) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("fleetwatch.alert.id", id))

	al, err := a.alerts.Resolve(r.Context(), id)
	if err != nil {
		a.writeDomainError(w, r, err, "resolve alert")
		return
	}
	a.writeJSON(w, http.StatusOK, al)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("fleetwatch.alert.id", id))

	al, ok, err := a.alerts.Get(r.Context(), id)
	if err != nil {
		a.writeDomainError(w, r, err, "get alert")
		return
	}
	if !ok {
		a.writeError(w, http.StatusNotFound, "not_found", "alert not found")
		return
	}
	a.writeJSON(w, http.StatusOK, al)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	recs, err := a.alerts.History(r.Context(), id)
	if err != nil {
		a.writeDomainError(w, r, err, "alert history")
		return
	}
	if recs == nil {
		recs = []*alert.TransitionRecord{}
	}
	a.writeJSON(w, http.StatusOK, recs)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	var alerts []*alert.Alert
	switch state := r.URL.Query().Get("state"); state {
	case "", "active":
		alerts, err = a.dash.Active(r.Context(), limit, offset)
	case "closed":
		alerts, err = a.dash.Closed(r.Context(), limit, offset)
	default:
		a.writeError(w, http.StatusBadRequest, "validation", "state must be active or closed")
		return
	}
	if err != nil {
		a.writeDomainError(w, r, err, "list alerts")
		return
	}
	if alerts == nil {
		alerts = []*alert.Alert{}
	}
	a.writeJSON(w, http.StatusOK, alerts)
}

func (a *API) handleAutoClosed(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	alerts, err := a.dash.AutoClosed(r.Context(), r.URL.Query().Get("window"), limit, offset)
	if err != nil {
		a.writeDomainError(w, r, err, "list auto-closed alerts")
		return
	}
	if alerts == nil {
		alerts = []*alert.Alert{}
	}
	a.writeJSON(w, http.StatusOK, alerts)
}

func (a *API) handleWipe(w http.ResponseWriter, r *http.Request) {
	if err := a.alerts.DeleteAll(r.Context()); err != nil {
		a.writeDomainError(w, r, err, "wipe alerts")
		return
	}
	a.logger.Warn(r.Context(), "all alerts deleted via API")
	w.WriteHeader(http.StatusNoContent)
}
