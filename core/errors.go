package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	InboxErrorUnauthorized     = "INBOX_UNAUTHORIZED"
	InboxErrorValidation       = "INBOX_VALIDATION_FAILED"
	InboxErrorBadInput         = "INBOX_BAD_INPUT"
	InboxErrorNotFound         = "INBOX_NOT_FOUND"
	InboxErrorPayloadTooLarge  = "INBOX_PAYLOAD_TOO_LARGE"
	InboxErrorStoreUnavailable = "INBOX_STORE_UNAVAILABLE"
	InboxErrorInternal         = "INBOX_INTERNAL_ERROR"
)

const (
	InvalidSignatureMessage = "invalid signature"
	internalErrorMessage    = "An unexpected error occurred"
)

// UnauthorizedError never says whether the signature was missing or wrong.
func UnauthorizedError() *goerrors.Error {
	return goerrors.New(InvalidSignatureMessage, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(InboxErrorUnauthorized)
}

func ValidationError(fields ...goerrors.FieldError) *goerrors.Error {
	return goerrors.NewValidation("payload validation failed", fields...).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(InboxErrorValidation).
		WithSeverity(goerrors.SeverityError)
}

func BadInputError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(InboxErrorBadInput)
}

func NotFoundError(messageID string) *goerrors.Error {
	return goerrors.Wrap(ErrMessageNotFound, goerrors.CategoryNotFound, "message not found").
		WithCode(http.StatusNotFound).
		WithTextCode(InboxErrorNotFound).
		WithMetadata(map[string]any{"message_id": messageID})
}

func PayloadTooLargeError(limit int64) *goerrors.Error {
	return goerrors.New("request body too large", goerrors.CategoryBadInput).
		WithCode(http.StatusRequestEntityTooLarge).
		WithTextCode(InboxErrorPayloadTooLarge).
		WithMetadata(map[string]any{"max_body_bytes": limit})
}

// StoreError wraps a storage failure. The cause stays on the envelope for
// logging; callers only ever see the generic message.
func StoreError(err error, operation string) *goerrors.Error {
	if err == nil {
		err = ErrStoreUnavailable
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, internalErrorMessage).
		WithCode(http.StatusInternalServerError).
		WithTextCode(InboxErrorStoreUnavailable).
		WithMetadata(map[string]any{"operation": operation})
}

func InternalError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(InboxErrorInternal)
}

// MapError converts any error into a go-errors envelope with a stable status
// code and text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrMessageNotFound):
		return NotFoundError("")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StoreError(err, "request")
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = internalErrorMessage
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryValidation:
		return InboxErrorValidation
	case goerrors.CategoryBadInput:
		return InboxErrorBadInput
	case goerrors.CategoryNotFound:
		return InboxErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return InboxErrorUnauthorized
	default:
		return InboxErrorInternal
	}
}

func HTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message safe to render to a caller.
func PublicMessage(err *goerrors.Error) string {
	if err == nil {
		return ""
	}
	if err.Category == goerrors.CategoryInternal || err.Code >= http.StatusInternalServerError {
		return internalErrorMessage
	}
	return err.Message
}
