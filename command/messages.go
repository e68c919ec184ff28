package command

import "github.com/goliatone/go-inbox/core"

const (
	TypeIngestMessage = "inbox.command.message.ingest"
)

// IngestMessage carries one raw webhook delivery. The body stays unparsed
// until the signature has been verified.
type IngestMessage struct {
	Delivery core.WebhookDelivery
}

func (IngestMessage) Type() string { return TypeIngestMessage }

func (m IngestMessage) Validate() error {
	if m.Delivery.Body == nil && m.Delivery.Signature == "" && m.Delivery.RequestID == "" {
		return commandInvalidInputError("command: webhook delivery is empty")
	}
	return nil
}
