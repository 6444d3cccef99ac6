// Package httputil holds the JSON envelope shared by every handler.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "carbonregistry/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError translates a coded error into its HTTP status and envelope.
// Uncoded errors are reported as internal, and internal errors never expose
// their message.
func WriteError(w http.ResponseWriter, err error) {
	code, ok := dErrors.CodeOf(err)
	if !ok {
		code = dErrors.CodeInternal
	}
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.Description = dErrors.Message(err)
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}

// DecodeJSON reads a bounded JSON body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "request body too large")
		case errors.Is(err, io.EOF):
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "request body is required")
		default:
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
		}
	}
	return nil
}

// ReadRawJSON reads a bounded body that must be syntactically valid JSON.
func ReadRawJSON(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := DecodeJSON(w, r, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
