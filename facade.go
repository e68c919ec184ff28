package inbox

import (
	"fmt"

	inboxcommand "github.com/goliatone/go-inbox/command"
	"github.com/goliatone/go-inbox/core"
	inboxquery "github.com/goliatone/go-inbox/query"
	"github.com/goliatone/go-inbox/webhooks"
)

type Commands struct {
	Ingest *inboxcommand.IngestMessageCommand
}

type Queries struct {
	ListMessages   *inboxquery.ListMessagesQuery
	GetMessage     *inboxquery.GetMessageQuery
	GetStats       *inboxquery.GetStatsQuery
	CheckReadiness *inboxquery.CheckReadinessQuery
}

// Facade wires the webhook ingestor and the read side over one message store.
type Facade struct {
	store    core.MessageStore
	verifier core.SignatureVerifier
	ingestor core.Ingestor
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	verifier       core.SignatureVerifier
	ingestor       core.Ingestor
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
}

// WithVerifier replaces the HMAC verifier built from the webhook secret.
func WithVerifier(verifier core.SignatureVerifier) FacadeOption {
	return func(o *facadeOptions) {
		o.verifier = verifier
	}
}

func WithIngestor(ingestor core.Ingestor) FacadeOption {
	return func(o *facadeOptions) {
		o.ingestor = ingestor
	}
}

func WithLogger(logger core.Logger) FacadeOption {
	return func(o *facadeOptions) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) FacadeOption {
	return func(o *facadeOptions) {
		o.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) FacadeOption {
	return func(o *facadeOptions) {
		o.metrics = recorder
	}
}

func NewFacade(cfg Config, store core.MessageStore, opts ...FacadeOption) (*Facade, error) {
	if store == nil {
		return nil, fmt.Errorf("inbox: message store is required")
	}
	options := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	verifier := options.verifier
	if verifier == nil {
		verifier = webhooks.NewHMACVerifier(cfg.WebhookSecret)
	}
	ingestor := options.ingestor
	if ingestor == nil {
		ingestor = webhooks.NewIngestor(verifier, store,
			webhooks.WithLogger(options.logger),
			webhooks.WithLoggerProvider(options.loggerProvider),
			webhooks.WithMetricsRecorder(options.metrics),
		)
	}

	facade := &Facade{
		store:    store,
		verifier: verifier,
		ingestor: ingestor,
	}
	facade.commands = Commands{
		Ingest: inboxcommand.NewIngestMessageCommand(ingestor),
	}
	facade.queries = Queries{
		ListMessages:   inboxquery.NewListMessagesQuery(store),
		GetMessage:     inboxquery.NewGetMessageQuery(store),
		GetStats:       inboxquery.NewGetStatsQuery(store),
		CheckReadiness: inboxquery.NewCheckReadinessQuery(verifier, store),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Store() core.MessageStore {
	if f == nil {
		return nil
	}
	return f.store
}

func (f *Facade) Verifier() core.SignatureVerifier {
	if f == nil {
		return nil
	}
	return f.verifier
}
