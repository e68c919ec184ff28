package httpapi

import (
	"encoding/json"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-inbox/core"
)

type errorBody struct {
	Detail   string       `json:"detail"`
	TextCode string       `json:"text_code,omitempty"`
	Errors   []fieldError `json:"errors,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func routeNotFound() *goerrors.Error {
	return goerrors.New("not found", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(core.InboxErrorNotFound)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	mapped := core.MapError(err)
	if mapped == nil {
		mapped = core.InternalError("")
	}
	status := mapped.Code
	if status == 0 {
		status = core.HTTPStatus(mapped.Category)
	}
	if status >= http.StatusInternalServerError {
		fields := map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"text_code":  mapped.TextCode,
			"error":      err.Error(),
		}
		for key, value := range mapped.Metadata {
			fields[key] = value
		}
		a.observer.Error(r.Context(), "request failed", fields)
	}

	body := errorBody{
		Detail:   core.PublicMessage(mapped),
		TextCode: mapped.TextCode,
	}
	for _, field := range mapped.AllValidationErrors() {
		body.Errors = append(body.Errors, fieldError{Field: field.Field, Message: field.Message})
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
