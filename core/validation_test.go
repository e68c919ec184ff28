package core

import (
	"context"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T (%v)", err, err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	out := map[string]string{}
	for _, field := range rich.AllValidationErrors() {
		out[field.Field] = field.Message
	}
	return out
}

func TestDecodeWebhookPayload_AcceptsShortKeys(t *testing.T) {
	body := []byte(`{"message_id":"m1","from":"+919876543210","to":"+14155550100","ts":"2025-01-15T10:00:00Z","text":"Hello"}`)
	candidate, err := DecodeWebhookPayload(context.Background(), body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if candidate.MessageID != "m1" || candidate.FromMSISDN != "+919876543210" || candidate.ToMSISDN != "+14155550100" {
		t.Fatalf("unexpected candidate: %#v", candidate)
	}
	if candidate.Text == nil || *candidate.Text != "Hello" {
		t.Fatalf("expected text Hello")
	}
}

func TestDecodeWebhookPayload_AcceptsLongKeysAndNullText(t *testing.T) {
	body := []byte(`{"message_id":"m2","from_msisdn":"+1","to_msisdn":"+2","ts":"2025-01-15T10:00:00.000Z","text":null}`)
	candidate, err := DecodeWebhookPayload(context.Background(), body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if candidate.FromMSISDN != "+1" || candidate.ToMSISDN != "+2" {
		t.Fatalf("expected long keys to populate msisdn fields: %#v", candidate)
	}
	if candidate.Text != nil {
		t.Fatalf("expected nil text")
	}
	if candidate.TS != "2025-01-15T10:00:00.000000000Z" {
		t.Fatalf("expected canonical ts, got %q", candidate.TS)
	}
}

func TestDecodeWebhookPayload_FieldErrors(t *testing.T) {
	body := []byte(`{"message_id":"","from":"919876543210","to":"+1a","ts":"2025-01-15T10:00:00"}`)
	_, err := DecodeWebhookPayload(context.Background(), body)
	fields := validationFields(t, err)
	for _, name := range []string{"message_id", "from", "to", "ts"} {
		if _, ok := fields[name]; !ok {
			t.Fatalf("expected %s violation, got %#v", name, fields)
		}
	}
}

func TestDecodeWebhookPayload_TextLengthCountsCharacters(t *testing.T) {
	exact := strings.Repeat("é", MaxTextLength)
	body := []byte(`{"message_id":"m3","from":"+1","to":"+2","ts":"2025-01-15T10:00:00Z","text":"` + exact + `"}`)
	if _, err := DecodeWebhookPayload(context.Background(), body); err != nil {
		t.Fatalf("expected %d characters to be accepted: %v", MaxTextLength, err)
	}

	over := exact + "x"
	body = []byte(`{"message_id":"m3","from":"+1","to":"+2","ts":"2025-01-15T10:00:00Z","text":"` + over + `"}`)
	fields := validationFields(t, func() error {
		_, err := DecodeWebhookPayload(context.Background(), body)
		return err
	}())
	if _, ok := fields["text"]; !ok {
		t.Fatalf("expected text violation, got %#v", fields)
	}
}

func TestDecodeWebhookPayload_MalformedBodies(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"message_id":`,
		"array":         `[1,2]`,
		"trailing data": `{"message_id":"m1","from":"+1","to":"+2","ts":"2025-01-15T10:00:00Z"} {}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeWebhookPayload(context.Background(), []byte(body))
			fields := validationFields(t, err)
			if _, ok := fields["body"]; !ok {
				t.Fatalf("expected body violation, got %#v", fields)
			}
		})
	}
}

func TestDecodeWebhookPayload_WrongFieldType(t *testing.T) {
	_, err := DecodeWebhookPayload(context.Background(), []byte(`{"message_id":42,"from":"+1","to":"+2","ts":"2025-01-15T10:00:00Z"}`))
	fields := validationFields(t, err)
	if _, ok := fields["message_id"]; !ok {
		t.Fatalf("expected message_id type violation, got %#v", fields)
	}
}

func TestDecodeWebhookPayload_KeepsSubsecondPrecision(t *testing.T) {
	cases := map[string]string{
		"2025-01-10T10:00:00.5Z":   "2025-01-10T10:00:00.500000000Z",
		"2025-01-10T10:00:00.123Z": "2025-01-10T10:00:00.123000000Z",
		"2025-01-10T10:00Z":        "2025-01-10T10:00:00.000000000Z",
	}
	for in, want := range cases {
		body := []byte(`{"message_id":"m1","from":"+1","to":"+2","ts":"` + in + `"}`)
		candidate, err := DecodeWebhookPayload(context.Background(), body)
		if err != nil {
			t.Fatalf("%q: decode: %v", in, err)
		}
		if candidate.TS != want {
			t.Fatalf("%q: expected %q, got %q", in, want, candidate.TS)
		}
	}
}

func TestDecodeWebhookPayload_RejectsNonUTCTimestamp(t *testing.T) {
	for _, ts := range []string{"2025-01-15T10:00:00+00:00", "2025-01-15", "2025-01-15T25:00:00Z"} {
		_, err := DecodeWebhookPayload(context.Background(), []byte(`{"message_id":"m1","from":"+1","to":"+2","ts":"`+ts+`"}`))
		fields := validationFields(t, err)
		if _, ok := fields["ts"]; !ok {
			t.Fatalf("%q: expected ts violation, got %#v", ts, fields)
		}
	}
}

func TestDecodeWebhookPayload_BarePlusIsInvalid(t *testing.T) {
	_, err := DecodeWebhookPayload(context.Background(), []byte(`{"message_id":"m1","from":"+","to":"+2","ts":"2025-01-15T10:00:00Z"}`))
	fields := validationFields(t, err)
	if _, ok := fields["from"]; !ok {
		t.Fatalf("expected from violation, got %#v", fields)
	}
}
