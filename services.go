// Package inbox ingests signed webhook messages and serves them back through
// paginated queries and aggregate stats.
package inbox

import (
	"context"

	"github.com/goliatone/go-inbox/core"
)

type Config = core.Config

type Message = core.Message
type MessageFilter = core.MessageFilter
type MessagePage = core.MessagePage
type Stats = core.Stats
type SenderCount = core.SenderCount
type Readiness = core.Readiness
type WebhookDelivery = core.WebhookDelivery
type IngestResult = core.IngestResult

type MessageStore = core.MessageStore
type SignatureVerifier = core.SignatureVerifier
type MetricsRecorder = core.MetricsRecorder

var (
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithErrorMapper     = core.WithErrorMapper
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// LoadConfig resolves defaults, environment and runtime overrides.
func LoadConfig(ctx context.Context, runtime Config, opts ...core.ConfigOption) (Config, error) {
	return core.LoadConfig(ctx, runtime, opts...)
}
