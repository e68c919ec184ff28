// Package httpapi exposes the inbox over HTTP with a chi router.
package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	inbox "github.com/goliatone/go-inbox"
	"github.com/goliatone/go-inbox/adapters/gocommand"
	"github.com/goliatone/go-inbox/core"
	glog "github.com/goliatone/go-logger/glog"
)

// API serves the inbox routes. Handlers reach the facade's command and
// queries through the in-process dispatcher; Close releases the
// subscriptions New made.
type API struct {
	observer       core.Observer
	metricsHandler http.Handler
	maxBodyBytes   int64
	subscriptions  []commanddispatcher.Subscription
}

type Option func(*apiOptions)

type apiOptions struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	metricsHandler http.Handler
	maxBodyBytes   int64
	registry       *gocommand.RegistryAdapter
}

func WithLogger(logger core.Logger) Option {
	return func(o *apiOptions) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *apiOptions) {
		o.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(o *apiOptions) {
		o.metrics = recorder
	}
}

// WithMetricsHandler serves GET /metrics. Without it the route answers 404.
func WithMetricsHandler(handler http.Handler) Option {
	return func(o *apiOptions) {
		o.metricsHandler = handler
	}
}

// WithMaxBodyBytes caps the webhook body. Zero or less disables the cap.
func WithMaxBodyBytes(limit int64) Option {
	return func(o *apiOptions) {
		o.maxBodyBytes = limit
	}
}

// WithRegistry records the inbox handlers in registry. The caller initializes
// it once every handler is in.
func WithRegistry(registry *gocommand.RegistryAdapter) Option {
	return func(o *apiOptions) {
		o.registry = registry
	}
}

// New subscribes the facade's handlers on the dispatcher. Only one API may
// be open per process since each query route takes exactly one handler.
func New(facade *inbox.Facade, opts ...Option) (*API, error) {
	if facade == nil {
		return nil, fmt.Errorf("httpapi: facade is required")
	}
	options := apiOptions{maxBodyBytes: core.DefaultMaxBodyBytes}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}
	registry := options.registry
	if registry == nil {
		registry = gocommand.NewRegistryAdapter(nil)
	}
	commands, queries := facade.Commands(), facade.Queries()
	subscriptions, err := gocommand.RegisterInbox(registry, gocommand.InboxHandlers{
		Ingest:         commands.Ingest,
		ListMessages:   queries.ListMessages,
		GetMessage:     queries.GetMessage,
		GetStats:       queries.GetStats,
		CheckReadiness: queries.CheckReadiness,
	})
	if err != nil {
		return nil, fmt.Errorf("httpapi: register handlers: %w", err)
	}

	_, logger := glog.Resolve("httpapi", options.loggerProvider, options.logger)
	return &API{
		observer:       core.NewObserver(logger, options.metrics),
		metricsHandler: options.metricsHandler,
		maxBodyBytes:   options.maxBodyBytes,
		subscriptions:  subscriptions,
	}, nil
}

// Close unsubscribes the inbox handlers. It is safe to call more than once.
func (a *API) Close() {
	if a == nil {
		return
	}
	for _, sub := range a.subscriptions {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	a.subscriptions = nil
}

// Router builds the route table. Every request gets a request id, one
// metrics sample and one access log line; panics become 500s.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(a.observe)
	r.Use(middleware.Recoverer)

	r.Post("/webhook", a.handleWebhook)
	r.Get("/messages", a.handleListMessages)
	r.Get("/messages/{message_id}", a.handleGetMessage)
	r.Get("/stats", a.handleStats)
	r.Get("/health/live", a.handleLive)
	r.Get("/health/ready", a.handleReady)
	r.Get("/metrics", a.handleMetrics)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, r, routeNotFound())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{
			Detail:   "method not allowed",
			TextCode: core.InboxErrorBadInput,
		})
	})
	return r
}
