package query

import (
	"context"

	"github.com/goliatone/go-inbox/core"
)

type ListMessagesQuery struct {
	reader core.MessageReader
}

func NewListMessagesQuery(reader core.MessageReader) *ListMessagesQuery {
	return &ListMessagesQuery{reader: reader}
}

func (q *ListMessagesQuery) Query(ctx context.Context, msg ListMessagesMessage) (core.MessagePage, error) {
	if q == nil || q.reader == nil {
		return core.MessagePage{}, queryDependencyError("query: message reader is required")
	}
	page, err := q.reader.Query(ctx, msg.Filter)
	if err != nil {
		return core.MessagePage{}, storeFailure(err, "list_messages")
	}
	if page.Data == nil {
		page.Data = []core.Message{}
	}
	return page, nil
}

type GetMessageQuery struct {
	reader core.MessageReader
}

func NewGetMessageQuery(reader core.MessageReader) *GetMessageQuery {
	return &GetMessageQuery{reader: reader}
}

func (q *GetMessageQuery) Query(ctx context.Context, msg GetMessageMessage) (core.Message, error) {
	if q == nil || q.reader == nil {
		return core.Message{}, queryDependencyError("query: message reader is required")
	}
	message, err := q.reader.Get(ctx, msg.MessageID)
	if err != nil {
		return core.Message{}, storeFailure(err, "get_message")
	}
	return message, nil
}

type GetStatsQuery struct {
	reader core.StatsReader
}

func NewGetStatsQuery(reader core.StatsReader) *GetStatsQuery {
	return &GetStatsQuery{reader: reader}
}

func (q *GetStatsQuery) Query(ctx context.Context, _ GetStatsMessage) (core.Stats, error) {
	if q == nil || q.reader == nil {
		return core.Stats{}, queryDependencyError("query: stats reader is required")
	}
	stats, err := q.reader.Aggregate(ctx)
	if err != nil {
		return core.Stats{}, storeFailure(err, "get_stats")
	}
	if stats.MessagesPerSender == nil {
		stats.MessagesPerSender = []core.SenderCount{}
	}
	return stats, nil
}

// CheckReadinessQuery reports ready only when a webhook secret is configured
// and the store answers. It never returns an error for an unready service.
type CheckReadinessQuery struct {
	verifier core.SignatureVerifier
	checker  core.ReadinessChecker
}

func NewCheckReadinessQuery(verifier core.SignatureVerifier, checker core.ReadinessChecker) *CheckReadinessQuery {
	return &CheckReadinessQuery{verifier: verifier, checker: checker}
}

func (q *CheckReadinessQuery) Query(ctx context.Context, _ CheckReadinessMessage) (core.Readiness, error) {
	if q == nil {
		return core.Readiness{}, nil
	}
	readiness := core.Readiness{
		SecretConfigured: q.verifier != nil && q.verifier.Configured(),
	}
	if q.checker != nil {
		readiness.StoreReady = q.checker.IsReady(ctx)
	}
	return readiness, nil
}
