package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-inbox/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const defaultReadyTimeout = 2 * time.Second

// MessageStore persists messages in a single table keyed by message_id.
// Uniqueness is enforced by the primary key alone; there is no pre-check and
// no application lock.
type MessageStore struct {
	db           *bun.DB
	repo         repository.Repository[*messageRecord]
	now          func() time.Time
	readyTimeout time.Duration
}

type MessageStoreOption func(*MessageStore)

func WithClock(now func() time.Time) MessageStoreOption {
	return func(s *MessageStore) {
		if now != nil {
			s.now = now
		}
	}
}

func WithReadyTimeout(timeout time.Duration) MessageStoreOption {
	return func(s *MessageStore) {
		if timeout > 0 {
			s.readyTimeout = timeout
		}
	}
}

func NewMessageStore(db *bun.DB, opts ...MessageStoreOption) (*MessageStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*messageRecord](db, messageHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid message repository wiring: %w", err)
		}
	}
	store := &MessageStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
		readyTimeout: defaultReadyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func NewMessageStoreFromPersistence(client any, opts ...MessageStoreOption) (*MessageStore, error) {
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewMessageStore(db, opts...)
}

func (s *MessageStore) Insert(ctx context.Context, candidate core.MessageCandidate) (core.InsertOutcome, error) {
	if s == nil || s.db == nil {
		return core.InsertFailed, fmt.Errorf("sqlstore: message store is not configured")
	}
	record := &messageRecord{
		MessageID:  candidate.MessageID,
		FromMSISDN: candidate.FromMSISDN,
		ToMSISDN:   candidate.ToMSISDN,
		TS:         candidate.TS,
		Text:       candidate.Text,
		CreatedAt:  core.FormatCreatedAt(s.now()),
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.InsertDuplicate, nil
		}
		return core.InsertFailed, fmt.Errorf("sqlstore: insert message %q: %w", candidate.MessageID, err)
	}
	return core.InsertCreated, nil
}

// Query returns one page plus the filter-matching total, both read inside a
// single transaction.
func (s *MessageStore) Query(ctx context.Context, filter core.MessageFilter) (core.MessagePage, error) {
	if s == nil || s.db == nil {
		return core.MessagePage{}, fmt.Errorf("sqlstore: message store is not configured")
	}
	filter = filter.Normalize()

	var (
		records []messageRecord
		total   int
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := tx.NewSelect().Model(&records)
		query = s.applyFilter(query, filter)
		count, err := query.
			OrderExpr("?TableAlias.ts ASC").
			OrderExpr("?TableAlias.message_id ASC").
			Limit(filter.Limit).
			Offset(filter.Offset).
			ScanAndCount(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		total = count
		return nil
	})
	if err != nil {
		return core.MessagePage{}, fmt.Errorf("sqlstore: query messages: %w", err)
	}

	page := core.MessagePage{
		Data:   make([]core.Message, 0, len(records)),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for _, record := range records {
		page.Data = append(page.Data, toMessage(record))
	}
	return page, nil
}

func (s *MessageStore) applyFilter(query *bun.SelectQuery, filter core.MessageFilter) *bun.SelectQuery {
	if filter.From != "" {
		query = query.Where("?TableAlias.from_msisdn = ?", filter.From)
	}
	if filter.Since != "" {
		query = query.Where("?TableAlias.ts >= ?", filter.Since)
	}
	if filter.Contains != "" {
		query = query.Where(s.containsExpr(), filter.Contains)
	}
	return query
}

// containsExpr is a case-sensitive substring test. NULL text yields NULL and
// never matches.
func (s *MessageStore) containsExpr() string {
	if s.db.Dialect().Name() == dialect.PG {
		return "strpos(?TableAlias.text, ?) > 0"
	}
	return "instr(?TableAlias.text, ?) > 0"
}

func (s *MessageStore) Get(ctx context.Context, messageID string) (core.Message, error) {
	if s == nil || s.repo == nil {
		return core.Message{}, fmt.Errorf("sqlstore: message store is not configured")
	}
	if strings.TrimSpace(messageID) == "" {
		return core.Message{}, core.NotFoundError(messageID)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("message_id", "=", messageID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Message{}, fmt.Errorf("sqlstore: get message %q: %w", messageID, err)
	}
	if len(records) == 0 || records[0] == nil {
		return core.Message{}, core.NotFoundError(messageID)
	}
	return toMessage(*records[0]), nil
}

func (s *MessageStore) Aggregate(ctx context.Context) (core.Stats, error) {
	if s == nil || s.db == nil {
		return core.Stats{}, fmt.Errorf("sqlstore: message store is not configured")
	}

	var (
		total   int
		senders int
		first   sql.NullString
		last    sql.NullString
		top     []senderCountRow
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().
			Model((*messageRecord)(nil)).
			ColumnExpr("COUNT(*) AS total_messages").
			ColumnExpr("COUNT(DISTINCT ?TableAlias.from_msisdn) AS senders_count").
			ColumnExpr("MIN(?TableAlias.ts) AS first_message_ts").
			ColumnExpr("MAX(?TableAlias.ts) AS last_message_ts").
			Scan(ctx, &total, &senders, &first, &last); err != nil {
			return err
		}
		return tx.NewSelect().
			Model((*messageRecord)(nil)).
			ColumnExpr("?TableAlias.from_msisdn AS from_msisdn").
			ColumnExpr("COUNT(*) AS message_count").
			GroupExpr("?TableAlias.from_msisdn").
			OrderExpr("message_count DESC").
			OrderExpr("?TableAlias.from_msisdn ASC").
			Limit(core.TopSendersLimit).
			Scan(ctx, &top)
	})
	if err != nil {
		return core.Stats{}, fmt.Errorf("sqlstore: aggregate messages: %w", err)
	}

	stats := core.Stats{
		TotalMessages:     total,
		SendersCount:      senders,
		MessagesPerSender: make([]core.SenderCount, 0, len(top)),
	}
	for _, row := range top {
		stats.MessagesPerSender = append(stats.MessagesPerSender, core.SenderCount{
			From:  row.FromMSISDN,
			Count: row.MessageCount,
		})
	}
	if first.Valid {
		value := first.String
		stats.FirstMessageTS = &value
	}
	if last.Valid {
		value := last.String
		stats.LastMessageTS = &value
	}
	return stats, nil
}

// IsReady reports whether storage answers a ping and the messages table
// exists. It never returns an error.
func (s *MessageStore) IsReady(ctx context.Context) bool {
	if s == nil || s.db == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.readyTimeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return false
	}
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	if s.db.Dialect().Name() == dialect.PG {
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
	}
	var count int
	if err := s.db.NewRaw(query, messagesTable).Scan(ctx, &count); err != nil {
		return false
	}
	return count > 0
}

func (s *MessageStore) DB() *bun.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func toMessage(record messageRecord) core.Message {
	return core.Message{
		MessageID:  record.MessageID,
		FromMSISDN: record.FromMSISDN,
		ToMSISDN:   record.ToMSISDN,
		TS:         record.TS,
		Text:       record.Text,
		CreatedAt:  record.CreatedAt,
	}
}
