package query

import (
	"strings"

	"github.com/goliatone/go-inbox/core"
)

const (
	TypeListMessages   = "inbox.query.messages.list"
	TypeGetMessage     = "inbox.query.messages.get"
	TypeGetStats       = "inbox.query.stats.get"
	TypeCheckReadiness = "inbox.query.readiness.check"
)

// ListMessagesMessage never fails validation: out-of-range pagination is
// clamped by the filter.
type ListMessagesMessage struct {
	Filter core.MessageFilter
}

func (ListMessagesMessage) Type() string { return TypeListMessages }

func (m ListMessagesMessage) Validate() error {
	return nil
}

type GetMessageMessage struct {
	MessageID string
}

func (GetMessageMessage) Type() string { return TypeGetMessage }

func (m GetMessageMessage) Validate() error {
	if strings.TrimSpace(m.MessageID) == "" {
		return queryValidationError("message_id", "field required")
	}
	return nil
}

type GetStatsMessage struct{}

func (GetStatsMessage) Type() string { return TypeGetStats }

func (GetStatsMessage) Validate() error { return nil }

type CheckReadinessMessage struct{}

func (CheckReadinessMessage) Type() string { return TypeCheckReadiness }

func (CheckReadinessMessage) Validate() error { return nil }
