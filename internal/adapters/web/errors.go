package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"pos-ledger/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var kindStatus = map[core.ErrorKind]int{
	core.KindInvalidState:       http.StatusConflict,
	core.KindNotActive:          http.StatusConflict,
	core.KindNotFound:           http.StatusNotFound,
	core.KindExpired:            http.StatusGone,
	core.KindInvalidAmount:      http.StatusUnprocessableEntity,
	core.KindInsufficientPoints: http.StatusUnprocessableEntity,
	core.KindOverRefund:         http.StatusUnprocessableEntity,
	core.KindEmptyCart:          http.StatusUnprocessableEntity,
	core.KindMissingReason:      http.StatusBadRequest,
}

// writeServiceError maps an engine error to its HTTP status. The kind becomes
// the response code; anything untyped is logged and reported as a 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var e *core.Error
	if errors.As(err, &e) {
		status, ok := kindStatus[e.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		writeError(w, r, err.Error(), string(e.Kind), status)
		return
	}
	h.log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestIDFromContext(r.Context())),
		zap.Error(err))
	writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
}
