package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func messageHandlers() repository.ModelHandlers[*messageRecord] {
	return repository.ModelHandlers[*messageRecord]{
		NewRecord: func() *messageRecord {
			return &messageRecord{}
		},
		GetID: func(record *messageRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return messageUUID(record.MessageID)
		},
		SetID: func(record *messageRecord, id uuid.UUID) {
			// message_id is client supplied and immutable
			if record == nil || strings.TrimSpace(record.MessageID) != "" {
				return
			}
			record.MessageID = id.String()
		},
		GetIdentifier: func() string {
			return "message_id"
		},
		GetIdentifierValue: func(record *messageRecord) string {
			if record == nil {
				return ""
			}
			return record.MessageID
		},
	}
}

// messageUUID maps an opaque message id onto a stable UUID. Ids that already
// are UUIDs keep their value.
func messageUUID(value string) uuid.UUID {
	if value == "" {
		return uuid.Nil
	}
	if parsed, err := uuid.Parse(strings.TrimSpace(value)); err == nil {
		return parsed
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("go-inbox:message:"+value))
}
