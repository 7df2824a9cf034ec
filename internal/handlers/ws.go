package handlers

import (
	"net/http"

	"ledgersync/internal/auth"
	"ledgersync/internal/websocket"
)

// WSSync upgrades to a websocket and streams SyncUpdate messages for the
// caller's accounts. Browsers cannot set headers on websocket requests, so
// the token travels as a query parameter.
func (h *Handler) WSSync(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
