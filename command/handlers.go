package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-inbox/core"
)

// IngestMessageCommand runs a delivery through the ingestor and publishes the
// IngestResult to any collector on the context.
type IngestMessageCommand struct {
	ingestor core.Ingestor
}

func NewIngestMessageCommand(ingestor core.Ingestor) *IngestMessageCommand {
	return &IngestMessageCommand{ingestor: ingestor}
}

func (c *IngestMessageCommand) Execute(ctx context.Context, msg IngestMessage) error {
	if c == nil || c.ingestor == nil {
		return commandDependencyError("command: ingestor is required")
	}
	out, err := c.ingestor.Ingest(ctx, msg.Delivery)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
