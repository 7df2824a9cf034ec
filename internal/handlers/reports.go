package handlers

import (
	"net/http"
	"strconv"
	"time"

	"ledgersync/internal/middleware"
	"ledgersync/internal/services"
)

const defaultHistoryLimit = 20

func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	accounts, err := h.accounts.ListByUser(r.Context(), userID, "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load accounts")
		return
	}
	now := time.Now()
	views := make([]map[string]any, 0, len(accounts))
	due := 0
	for _, account := range accounts {
		needsSync := services.NeedsSync(account.LastSync, account.SyncFrequencyHours, now)
		if needsSync {
			due++
		}
		view := accountView(account)
		view["needs_sync"] = needsSync
		views = append(views, view)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"accounts": views,
		"total":    len(accounts),
		"due":      due,
	})
}

func (h *Handler) SyncHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	accountID := r.URL.Query().Get("account_id")
	limit := parseLimit(r.URL.Query().Get("limit"))
	history, err := h.logs.History(r.Context(), userID, accountID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func (h *Handler) SyncErrors(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	errored, err := h.accounts.ListByUser(r.Context(), userID, "error")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load accounts")
		return
	}
	logs, err := h.logs.RecentErrors(r.Context(), userID, defaultHistoryLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load error logs")
		return
	}
	views := make([]map[string]any, 0, len(errored))
	for _, account := range errored {
		views = append(views, accountView(account))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"accounts":    views,
		"recent_logs": logs,
	})
}

func (h *Handler) SyncStatistics(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	stats, err := h.logs.Statistics(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load statistics")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total_runs":     stats.TotalRuns,
		"succeeded":      stats.Succeeded,
		"partial":        stats.Partial,
		"errored":        stats.Errored,
		"total_found":    stats.TotalFound,
		"total_imported": stats.TotalImported,
		"total_skipped":  stats.TotalSkipped,
		"total_failed":   stats.TotalFailed,
		"runs_last_day":  stats.RunsLastDay,
	})
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultHistoryLimit
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 || parsed > 100 {
		return defaultHistoryLimit
	}
	return parsed
}
