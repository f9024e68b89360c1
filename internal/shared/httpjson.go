package shared

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorBody is the structured body rendered for failed requests.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RespondJSON writes a JSON payload with the given status code.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// RespondError maps an error from the core taxonomy onto an HTTP status and
// a structured body. Authorization denials always carry the fixed message,
// regardless of which layer produced them.
func RespondError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	var resolutionErr *ResolutionError

	switch {
	case errors.Is(err, ErrUnauthenticated):
		RespondJSON(w, http.StatusUnauthorized, ErrorBody{Error: "Unauthorized", Message: "Authentication required."})
	case errors.Is(err, ErrForbidden):
		RespondJSON(w, http.StatusForbidden, ErrorBody{Error: "Forbidden", Message: PermissionDeniedMessage})
	case errors.Is(err, ErrNotFound):
		RespondJSON(w, http.StatusNotFound, ErrorBody{Error: "NotFound", Message: "The requested resource was not found."})
	case errors.Is(err, ErrStateConflict):
		RespondJSON(w, http.StatusConflict, ErrorBody{Error: "Conflict", Message: err.Error()})
	case errors.As(err, &validationErr):
		RespondJSON(w, http.StatusBadRequest, ErrorBody{Error: "ValidationError", Message: validationErr.Error()})
	case errors.As(err, &resolutionErr):
		RespondJSON(w, http.StatusInternalServerError, ErrorBody{Error: "InternalError", Message: "Something went wrong. Please try again later."})
	default:
		RespondJSON(w, http.StatusInternalServerError, ErrorBody{Error: "InternalError", Message: "Something went wrong. Please try again later."})
	}
}

// DecodeJSON parses a request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return NewValidationError("", "malformed JSON body")
	}
	return nil
}
