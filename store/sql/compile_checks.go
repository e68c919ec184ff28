package sqlstore

import "github.com/goliatone/go-inbox/core"

var (
	_ core.MessageStore = (*MessageStore)(nil)
	_ core.MessageStore = (*CachedStatsStore)(nil)
)
