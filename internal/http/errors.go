package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/events"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidQuantity, apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindProductUnavailable, apperr.KindInvalidTransition:
		return http.StatusConflict
	case apperr.KindEmptyCart, apperr.KindCheckoutBlocked, apperr.KindUnavailableItems:
		return http.StatusUnprocessableEntity
	case apperr.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError maps err to a status code and a body the UI can act on.
// Infrastructure causes are logged, never returned.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	msg := apperr.ErrStoreUnavailable.Msg
	if kind == apperr.KindStoreUnavailable {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", events.CorrelationID(r.Context())),
			zap.Error(err),
		)
	} else {
		var e *apperr.Error
		if errors.As(err, &e) && e.Msg != "" {
			msg = e.Msg
		} else {
			msg = err.Error()
		}
	}
	writeProblem(w, r, statusFor(kind), string(kind), msg)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:         msg,
		Code:          code,
		CorrelationID: events.CorrelationID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.New(apperr.KindInvalidArgument, "invalid json: %v", err)
	}
	return nil
}
