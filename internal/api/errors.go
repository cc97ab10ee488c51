package api

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// writeJSON writes v as the response body with the given status. v is
// encoded before the header goes out; a value that cannot be encoded turns
// into a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var body bytes.Buffer
	if v != nil {
		if err := json.NewEncoder(&body).Encode(v); err != nil {
			status = http.StatusInternalServerError
			body.Reset()
			//nolint:errcheck // ErrorResponse always encodes
			json.NewEncoder(&body).Encode(ErrorResponse{
				Status:  status,
				Code:    ErrCodeInternal,
				Message: "failed to encode response",
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(body.Bytes())
}

// writeError writes an ErrorResponse tagged with the request's ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, _ := r.Context().Value(ctxKeyRequestID).(string)
	writeJSON(w, status, ErrorResponse{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: requestID,
	})
}

func writeNotFound(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, message)
}
