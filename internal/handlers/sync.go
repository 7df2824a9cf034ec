package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ledgersync/internal/middleware"
	"ledgersync/internal/services"
)

func (h *Handler) SyncAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		respondError(w, http.StatusBadRequest, "account id is required")
		return
	}
	summary, err := h.service.SyncAccount(r.Context(), userID, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		if errors.Is(err, services.ErrUnauthorizedAccount) {
			respondError(w, http.StatusForbidden, "account_access_denied")
			return
		}
		if errors.Is(err, services.ErrSyncInProgress) {
			respondError(w, http.StatusConflict, "sync_in_progress")
			return
		}
		respondError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load account")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account":      accountView(account),
		"sync_summary": summary,
		"status":       summary.Status,
	})
}

func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	result, err := h.service.SyncAll(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"accounts_synced": result.AccountsSynced,
		"totals": map[string]int{
			"imported": result.TotalImported,
			"skipped":  result.TotalSkipped,
			"failed":   result.TotalFailed,
		},
		"per_account": result.PerAccount,
	})
}
