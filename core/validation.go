package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	goerrors "github.com/goliatone/go-errors"
)

var msisdnPattern = regexp.MustCompile(`^\+[0-9]+$`)

// WebhookPayload is the decoded webhook body. Sender and recipient accept
// both the short (from, to) and long (from_msisdn, to_msisdn) keys; the
// short key wins when both are present.
type WebhookPayload struct {
	MessageID  string  `json:"message_id" validate:"required"`
	FromMSISDN string  `json:"from" validate:"required,msisdn"`
	ToMSISDN   string  `json:"to" validate:"required,msisdn"`
	TS         string  `json:"ts" validate:"required,utc_timestamp"`
	Text       *string `json:"text" validate:"omitempty,max=4096"`
}

type webhookPayloadWire struct {
	MessageID  string  `json:"message_id"`
	From       *string `json:"from"`
	FromMSISDN *string `json:"from_msisdn"`
	To         *string `json:"to"`
	ToMSISDN   *string `json:"to_msisdn"`
	TS         string  `json:"ts"`
	Text       *string `json:"text"`
}

func (p *WebhookPayload) UnmarshalJSON(data []byte) error {
	var wire webhookPayloadWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*p = WebhookPayload{
		MessageID:  wire.MessageID,
		FromMSISDN: firstPresent(wire.From, wire.FromMSISDN),
		ToMSISDN:   firstPresent(wire.To, wire.ToMSISDN),
		TS:         wire.TS,
		Text:       wire.Text,
	}
	return nil
}

func (p WebhookPayload) Candidate() (MessageCandidate, error) {
	ts, ok := CanonicalTimestamp(p.TS)
	if !ok {
		return MessageCandidate{}, ValidationError(goerrors.FieldError{
			Field:   "ts",
			Message: "must be an ISO-8601 UTC timestamp ending in Z",
		})
	}
	return MessageCandidate{
		MessageID:  p.MessageID,
		FromMSISDN: p.FromMSISDN,
		ToMSISDN:   p.ToMSISDN,
		TS:         ts,
		Text:       p.Text,
	}, nil
}

func firstPresent(values ...*string) string {
	for _, value := range values {
		if value != nil {
			return *value
		}
	}
	return ""
}

var (
	payloadValidatorOnce sync.Once
	payloadValidator     *validator.Validate
)

func payloadValidate() *validator.Validate {
	payloadValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
			return msisdnPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("utc_timestamp", func(fl validator.FieldLevel) bool {
			_, ok := CanonicalTimestamp(fl.Field().String())
			return ok
		})
		payloadValidator = v
	})
	return payloadValidator
}

// DecodeWebhookPayload parses and validates a raw webhook body into a message
// candidate. Every failure is a validation envelope carrying field detail.
func DecodeWebhookPayload(ctx context.Context, body []byte) (MessageCandidate, error) {
	var payload WebhookPayload
	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&payload); err != nil {
		return MessageCandidate{}, decodeError(err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return MessageCandidate{}, ValidationError(goerrors.FieldError{
			Field:   "body",
			Message: "must contain a single JSON object",
		})
	}
	if err := ValidatePayload(ctx, payload); err != nil {
		return MessageCandidate{}, err
	}
	return payload.Candidate()
}

func ValidatePayload(ctx context.Context, payload WebhookPayload) error {
	if ctx == nil {
		ctx = context.Background()
	}
	err := payloadValidate().StructCtx(ctx, payload)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return ValidationError(goerrors.FieldError{Field: "body", Message: err.Error()})
	}
	fields := make([]goerrors.FieldError, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		fields = append(fields, goerrors.FieldError{
			Field:   fieldErr.Field(),
			Message: fieldMessage(fieldErr),
		})
	}
	return ValidationError(fields...)
}

func fieldMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "field required"
	case "msisdn":
		return "must start with '+' followed by digits only"
	case "utc_timestamp":
		return "must be an ISO-8601 UTC timestamp ending in Z"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fieldErr.Param())
	default:
		return fmt.Sprintf("failed %s validation", fieldErr.Tag())
	}
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return ValidationError(goerrors.FieldError{
			Field:   field,
			Message: fmt.Sprintf("must be a %s", jsonKind(typeErr.Type)),
		})
	}
	return ValidationError(goerrors.FieldError{
		Field:   "body",
		Message: "malformed JSON object",
	})
}

func jsonKind(t reflect.Type) string {
	if t == nil {
		return "valid value"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Struct, reflect.Map:
		return "JSON object"
	default:
		return t.Kind().String()
	}
}
