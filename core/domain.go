package core

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrMessageNotFound  = errors.New("core: message not found")
	ErrStoreUnavailable = errors.New("core: message store unavailable")
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
	MinPageLimit     = 1

	TopSendersLimit = 10
	MaxTextLength   = 4096

	// TimestampLayout is the canonical stored form of a message ts. Fixed
	// width keeps lexicographic and chronological order identical.
	TimestampLayout = "2006-01-02T15:04:05.000000000Z"
	// CreatedAtLayout is the server-assigned insertion time layout.
	CreatedAtLayout = "2006-01-02T15:04:05.000000Z"
)

type Message struct {
	MessageID  string  `json:"message_id"`
	FromMSISDN string  `json:"from_msisdn"`
	ToMSISDN   string  `json:"to_msisdn"`
	TS         string  `json:"ts"`
	Text       *string `json:"text"`
	CreatedAt  string  `json:"created_at"`
}

// MessageCandidate is a validated webhook payload that has not been stored yet.
type MessageCandidate struct {
	MessageID  string
	FromMSISDN string
	ToMSISDN   string
	TS         string
	Text       *string
}

func (c MessageCandidate) Message(createdAt time.Time) Message {
	return Message{
		MessageID:  c.MessageID,
		FromMSISDN: c.FromMSISDN,
		ToMSISDN:   c.ToMSISDN,
		TS:         c.TS,
		Text:       c.Text,
		CreatedAt:  FormatCreatedAt(createdAt),
	}
}

type InsertOutcome string

const (
	InsertCreated   InsertOutcome = "created"
	InsertDuplicate InsertOutcome = "duplicate"
	InsertFailed    InsertOutcome = "failed"
)

func (o InsertOutcome) Stored() bool {
	return o == InsertCreated || o == InsertDuplicate
}

type MessageFilter struct {
	Limit    int
	Offset   int
	From     string
	Since    string
	Contains string
}

// Normalize clamps pagination into range and drops empty filters. Clamping
// never fails.
func (f MessageFilter) Normalize() MessageFilter {
	out := f
	switch {
	case out.Limit == 0:
		out.Limit = DefaultPageLimit
	case out.Limit < MinPageLimit:
		out.Limit = MinPageLimit
	case out.Limit > MaxPageLimit:
		out.Limit = MaxPageLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	out.From = strings.TrimSpace(out.From)
	out.Since = NormalizeSince(out.Since)
	return out
}

type MessagePage struct {
	Data   []Message `json:"data"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

type SenderCount struct {
	From  string `json:"from"`
	Count int    `json:"count"`
}

type Stats struct {
	TotalMessages     int           `json:"total_messages"`
	SendersCount      int           `json:"senders_count"`
	MessagesPerSender []SenderCount `json:"messages_per_sender"`
	FirstMessageTS    *string       `json:"first_message_ts"`
	LastMessageTS     *string       `json:"last_message_ts"`
}

type WebhookDelivery struct {
	Body      []byte
	Signature string
	RequestID string
}

type IngestResult struct {
	MessageID string
	Outcome   InsertOutcome
}

func (r IngestResult) Duplicate() bool {
	return r.Outcome == InsertDuplicate
}

type Readiness struct {
	SecretConfigured bool
	StoreReady       bool
}

func (r Readiness) Ready() bool {
	return r.SecretConfigured && r.StoreReady
}

func (r Readiness) Reason() string {
	switch {
	case !r.SecretConfigured:
		return "WEBHOOK_SECRET not configured"
	case !r.StoreReady:
		return "database not ready"
	default:
		return ""
	}
}

func FormatCreatedAt(t time.Time) string {
	return t.UTC().Format(CreatedAtLayout)
}

// timestampLayouts are the accepted ISO-8601 forms, all with a Z suffix.
// Seconds are optional and fractions may carry up to nine digits.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04Z",
}

// CanonicalTimestamp parses a Z-suffixed ISO-8601 instant and returns it in
// TimestampLayout, zero-padding any fractional second to nine digits.
func CanonicalTimestamp(value string) (string, bool) {
	parsed, ok := parseUTCTimestamp(value)
	if !ok {
		return "", false
	}
	return parsed.Format(TimestampLayout), true
}

func parseUTCTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if !strings.HasSuffix(value, "Z") {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// NormalizeSince brings a since bound into TimestampLayout when it parses as
// an instant, with or without a Z suffix. Anything else is compared verbatim.
func NormalizeSince(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if canonical, ok := CanonicalTimestamp(value); ok {
		return canonical
	}
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed.UTC().Format(TimestampLayout)
	}
	return value
}
