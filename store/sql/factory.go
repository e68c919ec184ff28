package sqlstore

import (
	"fmt"
	"time"

	"github.com/goliatone/go-inbox/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the message store over a bun connection and,
// when a stats TTL is set, wraps it with the cached stats reader.
type RepositoryFactory struct {
	db *bun.DB

	statsTTL     time.Duration
	storeOptions []MessageStoreOption

	messageStore *MessageStore
	cachedStore  *CachedStatsStore
}

type FactoryOption func(*RepositoryFactory)

func WithStatsCacheTTL(ttl time.Duration) FactoryOption {
	return func(f *RepositoryFactory) {
		f.statsTTL = ttl
	}
}

func WithMessageStoreOptions(opts ...MessageStoreOption) FactoryOption {
	return func(f *RepositoryFactory) {
		f.storeOptions = append(f.storeOptions, opts...)
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.MessageStore, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.messageStore == nil {
		if err := f.initStores(); err != nil {
			return nil, err
		}
	}
	return f.Store(), nil
}

func (f *RepositoryFactory) initStores() error {
	store, err := NewMessageStore(f.db, f.storeOptions...)
	if err != nil {
		return err
	}
	f.messageStore = store
	if f.statsTTL <= 0 {
		return nil
	}
	config := repositorycache.DefaultConfig()
	config.TTL = f.statsTTL
	cacheService, err := repositorycache.NewCacheService(config)
	if err != nil {
		return fmt.Errorf("sqlstore: build stats cache: %w", err)
	}
	cached, err := NewCachedStatsStore(store, cacheService)
	if err != nil {
		return err
	}
	f.cachedStore = cached
	return nil
}

// Store returns the store the service should use: the cached wrapper when
// stats caching is enabled, the plain message store otherwise.
func (f *RepositoryFactory) Store() core.MessageStore {
	if f == nil {
		return nil
	}
	if f.cachedStore != nil {
		return f.cachedStore
	}
	if f.messageStore == nil {
		return nil
	}
	return f.messageStore
}

func (f *RepositoryFactory) MessageStore() *MessageStore {
	if f == nil {
		return nil
	}
	return f.messageStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
