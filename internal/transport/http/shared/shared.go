// Package shared centralizes JSON encoding and domain error translation for
// HTTP handlers so every endpoint emits the same envelope.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "preclear/pkg/domain-errors"
)

// ErrorBody is the JSON envelope for every error response. Internal causes are
// never exposed; Message is safe for end users.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError translates a domain error into the JSON error envelope.
// Uncoded errors map to 500 with a generic message so internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := ErrorBody{Error: string(code), Field: dErrors.FieldOf(err)}
	if code == dErrors.CodeInternal {
		body.Message = "internal server error"
	} else {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.Message = de.Message
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// DecodeJSON decodes a request body into dst, rejecting unknown fields so
// client typos surface as 400s instead of silently dropped fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
