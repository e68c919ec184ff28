package sqlstore

import "github.com/uptrace/bun"

const messagesTable = "messages"

type messageRecord struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	MessageID  string  `bun:"message_id,pk"`
	FromMSISDN string  `bun:"from_msisdn,notnull"`
	ToMSISDN   string  `bun:"to_msisdn,notnull"`
	TS         string  `bun:"ts,notnull"`
	Text       *string `bun:"text"`
	CreatedAt  string  `bun:"created_at,notnull"`
}

type senderCountRow struct {
	FromMSISDN   string `bun:"from_msisdn"`
	MessageCount int    `bun:"message_count"`
}
