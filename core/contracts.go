package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type MessageWriter interface {
	Insert(ctx context.Context, candidate MessageCandidate) (InsertOutcome, error)
}

type MessageReader interface {
	Query(ctx context.Context, filter MessageFilter) (MessagePage, error)
	Get(ctx context.Context, messageID string) (Message, error)
}

type StatsReader interface {
	Aggregate(ctx context.Context) (Stats, error)
}

type ReadinessChecker interface {
	IsReady(ctx context.Context) bool
}

type MessageStore interface {
	MessageWriter
	MessageReader
	StatsReader
	ReadinessChecker
}

// SignatureVerifier authenticates a raw webhook body. Failure is a boolean
// outcome and never an error.
type SignatureVerifier interface {
	Verify(body []byte, signature string) bool
	Configured() bool
}

type Ingestor interface {
	Ingest(ctx context.Context, delivery WebhookDelivery) (IngestResult, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
