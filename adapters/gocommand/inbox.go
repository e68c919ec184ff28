package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	"github.com/goliatone/go-inbox/command"
	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/query"
)

// InboxHandlers is the set of handlers exposed on the in-process dispatcher.
type InboxHandlers struct {
	Ingest         *command.IngestMessageCommand
	ListMessages   *query.ListMessagesQuery
	GetMessage     *query.GetMessageQuery
	GetStats       *query.GetStatsQuery
	CheckReadiness *query.CheckReadinessQuery
}

// RegisterInbox subscribes every inbox handler and registers it with the
// adapter's registry. On failure, subscriptions made so far are released.
func RegisterInbox(
	adapter *RegistryAdapter,
	handlers InboxHandlers,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if handlers.Ingest == nil || handlers.ListMessages == nil || handlers.GetMessage == nil ||
		handlers.GetStats == nil || handlers.CheckReadiness == nil {
		return nil, fmt.Errorf("gocommand: inbox handlers are incomplete")
	}

	var subscriptions []commanddispatcher.Subscription
	release := func() {
		for _, sub := range subscriptions {
			if sub != nil {
				sub.Unsubscribe()
			}
		}
	}
	track := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			release()
			return err
		}
		subscriptions = append(subscriptions, sub)
		return nil
	}

	if err := track(RegisterAndSubscribe[command.IngestMessage](adapter, handlers.Ingest, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := track(RegisterAndSubscribeQuery[query.ListMessagesMessage, core.MessagePage](adapter, handlers.ListMessages, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := track(RegisterAndSubscribeQuery[query.GetMessageMessage, core.Message](adapter, handlers.GetMessage, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := track(RegisterAndSubscribeQuery[query.GetStatsMessage, core.Stats](adapter, handlers.GetStats, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := track(RegisterAndSubscribeQuery[query.CheckReadinessMessage, core.Readiness](adapter, handlers.CheckReadiness, runnerOpts...)); err != nil {
		return nil, err
	}
	return subscriptions, nil
}
