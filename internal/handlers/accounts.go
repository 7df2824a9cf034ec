package handlers

import (
	"net/http"

	"ledgersync/internal/middleware"
	"ledgersync/internal/store"
)

// accountView shapes a linked account for API responses. Access tokens and
// raw adapter errors never leave the server.
func accountView(account store.LinkedAccount) map[string]any {
	view := map[string]any{
		"id":                   account.ID,
		"provider_id":          account.ProviderID,
		"kind":                 account.Kind,
		"display_name":         account.DisplayName,
		"account_mask":         account.AccountMask,
		"status":               account.Status,
		"sync_frequency_hours": account.SyncFrequencyHours,
	}
	if account.LastSync != nil {
		view["last_sync"] = account.LastSync
	}
	if account.LastError != nil {
		view["last_error"] = *account.LastError
	}
	return view
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	status := r.URL.Query().Get("status")
	switch status {
	case "", store.AccountStatusPending, store.AccountStatusActive, store.AccountStatusSyncing, store.AccountStatusError:
	default:
		respondError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	accounts, err := h.accounts.ListByUser(r.Context(), userID, status)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list accounts")
		return
	}
	views := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, accountView(account))
	}
	respondJSON(w, http.StatusOK, views)
}
