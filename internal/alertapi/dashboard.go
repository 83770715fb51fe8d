package alertapi

import (
	"net/http"

	"github.com/linnemanlabs/fleetwatch/internal/alert"
	"github.com/linnemanlabs/fleetwatch/internal/dashboard"
)

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.dash.Stats(r.Context())
	if err != nil {
		a.writeDomainError(w, r, err, "dashboard stats")
		return
	}
	a.writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := a.leaderboard.Top(r.Context())
	if err != nil {
		a.writeDomainError(w, r, err, "leaderboard")
		return
	}
	if rows == nil {
		rows = []alert.DriverCount{}
	}
	a.writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleTrends(w http.ResponseWriter, r *http.Request) {
	rows, err := a.dash.Trends(r.Context(), r.URL.Query().Get("tz"))
	if err != nil {
		a.writeDomainError(w, r, err, "dashboard trends")
		return
	}
	if rows == nil {
		rows = []dashboard.TrendRow{}
	}
	a.writeJSON(w, http.StatusOK, rows)
}
