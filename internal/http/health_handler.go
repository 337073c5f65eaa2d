package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "service": "storefront-go"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "storefront-go"})
}
