// Package gocommand puts the inbox command and queries on the go-command
// dispatcher and registry.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

// ValidateMessageContract checks that msg names its route with a non-blank
// Type(). Payload validation is left to the dispatcher.
func ValidateMessageContract(msg any) error {
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) register(handler any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(handler)
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

// handlerFailure keys the collector that holds a handler's own error.
type handlerFailure struct{}

// captureHandlerError records the error a handler returned before the runner
// and dispatcher wrap it.
func captureHandlerError(next func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		err := next(ctx)
		if err != nil {
			if sink := command.ResultFromContext[handlerFailure](ctx); sink != nil {
				sink.StoreError(err)
			}
		}
		return err
	}
}

// handlerRunnerOptions puts error capture first and keeps the runner from
// printing failures the caller already reports.
func handlerRunnerOptions(opts []runner.Option) []runner.Option {
	out := []runner.Option{
		runner.WithMiddleware(captureHandlerError),
		runner.WithErrorHandler(func(error) {}),
	}
	return append(out, opts...)
}

// Dispatch runs every command subscribed for T. A failing handler's error is
// returned as the handler produced it.
func Dispatch[T any](ctx context.Context, msg T) error {
	sink := command.NewResult[handlerFailure]()
	err := commanddispatcher.Dispatch(command.ContextWithResult(ctx, sink), msg)
	return unwrapHandlerError(sink, err)
}

// Query runs the single query subscribed for T.
func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	sink := command.NewResult[handlerFailure]()
	result, err := commanddispatcher.Query[T, R](command.ContextWithResult(ctx, sink), msg)
	return result, unwrapHandlerError(sink, err)
}

func unwrapHandlerError(sink *command.Result[handlerFailure], err error) error {
	if err == nil {
		return nil
	}
	if handlerErr := sink.Error(); handlerErr != nil {
		return handlerErr
	}
	return err
}

// RegisterAndSubscribe subscribes cmd on the dispatcher and records it in the
// registry. A registry failure drops the subscription again.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	var msg T
	if err := ValidateMessageContract(msg); err != nil {
		return nil, err
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, handlerRunnerOptions(runnerOpts)...)
	return keepOnSuccess(subscription, adapter.register(cmd))
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	var msg T
	if err := ValidateMessageContract(msg); err != nil {
		return nil, err
	}
	subscription := commanddispatcher.SubscribeQuery(qry, handlerRunnerOptions(runnerOpts)...)
	return keepOnSuccess(subscription, adapter.register(qry))
}

func keepOnSuccess(subscription commanddispatcher.Subscription, err error) (commanddispatcher.Subscription, error) {
	if err == nil {
		return subscription, nil
	}
	if subscription != nil {
		subscription.Unsubscribe()
	}
	return nil, err
}
