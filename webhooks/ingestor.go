package webhooks

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-inbox/core"
	glog "github.com/goliatone/go-logger/glog"
)

type Ingestor struct {
	verifier core.SignatureVerifier
	writer   core.MessageWriter
	observer core.Observer
}

type IngestorOption func(*ingestorOptions)

type ingestorOptions struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
}

func WithLogger(logger core.Logger) IngestorOption {
	return func(o *ingestorOptions) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) IngestorOption {
	return func(o *ingestorOptions) {
		o.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) IngestorOption {
	return func(o *ingestorOptions) {
		o.metrics = recorder
	}
}

func NewIngestor(verifier core.SignatureVerifier, writer core.MessageWriter, opts ...IngestorOption) *Ingestor {
	options := ingestorOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}
	_, logger := glog.Resolve("webhooks", options.loggerProvider, options.logger)
	return &Ingestor{
		verifier: verifier,
		writer:   writer,
		observer: core.NewObserver(logger, options.metrics),
	}
}

// Ingest runs a delivery through verification, validation and storage.
// The returned error is always a go-errors envelope.
func (i *Ingestor) Ingest(ctx context.Context, delivery core.WebhookDelivery) (core.IngestResult, error) {
	if i == nil || i.writer == nil {
		return core.IngestResult{}, core.InternalError("webhooks: message writer is required")
	}
	fields := map[string]any{}
	if delivery.RequestID != "" {
		fields["request_id"] = delivery.RequestID
	}

	if i.verifier == nil || !i.verifier.Verify(delivery.Body, delivery.Signature) {
		i.record(ctx, core.WebhookResultInvalidSignature)
		fields["result"] = core.WebhookResultInvalidSignature
		fields["signature_present"] = delivery.Signature != ""
		i.observer.Error(ctx, "webhook signature rejected", fields)
		return core.IngestResult{}, core.UnauthorizedError()
	}

	candidate, err := core.DecodeWebhookPayload(ctx, delivery.Body)
	if err != nil {
		i.record(ctx, core.WebhookResultValidationError)
		fields["result"] = core.WebhookResultValidationError
		fields["errors"] = validationSummary(err)
		i.observer.Warn(ctx, "webhook payload rejected", fields)
		return core.IngestResult{}, err
	}
	fields["message_id"] = candidate.MessageID

	outcome, err := i.writer.Insert(ctx, candidate)
	if err != nil || outcome == core.InsertFailed {
		if err == nil {
			err = core.ErrStoreUnavailable
		}
		i.record(ctx, core.WebhookResultError)
		fields["result"] = core.WebhookResultError
		fields["error"] = err.Error()
		i.observer.Error(ctx, "webhook insert failed", fields)
		return core.IngestResult{MessageID: candidate.MessageID, Outcome: core.InsertFailed}, storeError(err)
	}

	result := core.IngestResult{MessageID: candidate.MessageID, Outcome: outcome}
	label := core.WebhookResultCreated
	if result.Duplicate() {
		label = core.WebhookResultDuplicate
	}
	i.record(ctx, label)
	fields["result"] = label
	fields["dup"] = result.Duplicate()
	i.observer.Info(ctx, "webhook processed", fields)
	return result, nil
}

func (i *Ingestor) record(ctx context.Context, result string) {
	i.observer.Count(ctx, core.MetricWebhookRequests, map[string]string{"result": result})
}

func storeError(err error) error {
	var rich *goerrors.Error
	if errors.As(err, &rich) && rich.TextCode == core.InboxErrorStoreUnavailable {
		return rich
	}
	return core.StoreError(err, "insert")
}

func validationSummary(err error) map[string]string {
	out := map[string]string{}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		out["body"] = err.Error()
		return out
	}
	for _, field := range rich.AllValidationErrors() {
		out[field.Field] = field.Message
	}
	return out
}

var _ core.Ingestor = (*Ingestor)(nil)
