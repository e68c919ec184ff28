package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-inbox/core"
)

var (
	_ gocmd.Querier[ListMessagesMessage, core.MessagePage] = (*ListMessagesQuery)(nil)
	_ gocmd.Querier[GetMessageMessage, core.Message]       = (*GetMessageQuery)(nil)
	_ gocmd.Querier[GetStatsMessage, core.Stats]           = (*GetStatsQuery)(nil)
	_ gocmd.Querier[CheckReadinessMessage, core.Readiness] = (*CheckReadinessQuery)(nil)
)
