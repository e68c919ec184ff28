package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type configBuilder struct {
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	errorMapper     ErrorMapper
}

type ConfigOption func(*configBuilder)

func WithConfigProvider(provider ConfigProvider) ConfigOption {
	return func(b *configBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) ConfigOption {
	return func(b *configBuilder) {
		b.optionsResolver = resolver
	}
}

func WithErrorMapper(mapper ErrorMapper) ConfigOption {
	return func(b *configBuilder) {
		b.errorMapper = mapper
	}
}

// LoadConfig resolves the effective configuration: defaults, then the
// provider's values (environment by default), then the runtime overrides.
func LoadConfig(ctx context.Context, runtime Config, options ...ConfigOption) (Config, error) {
	builder := configBuilder{
		configProvider:  NewCfgxConfigProvider(EnvConfigLoader{}),
		optionsResolver: GoOptionsResolver{},
		errorMapper:     MapError,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(ctx, defaults)
	if err != nil {
		return Config{}, mapBuildError(builder.errorMapper, err)
	}
	resolved, err := builder.optionsResolver.Resolve(defaults, loaded, runtime)
	if err != nil {
		return Config{}, mapBuildError(builder.errorMapper, err)
	}
	return resolved, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

// EnvConfigLoader reads configuration from process environment variables.
// Unset and empty variables are skipped so defaults apply.
type EnvConfigLoader struct {
	Lookup func(key string) (string, bool)
}

var envStringKeys = map[string]string{
	"SERVICE_NAME":   "service_name",
	"WEBHOOK_SECRET": "webhook_secret",
	"DATABASE_URL":   "database_url",
	"LOG_LEVEL":      "log_level",
	"HOST":           "host",
}

var envIntKeys = map[string]string{
	"PORT":                     "port",
	"MAX_BODY_BYTES":           "max_body_bytes",
	"STATS_CACHE_TTL_SECONDS":  "stats_cache_ttl_seconds",
	"SHUTDOWN_TIMEOUT_SECONDS": "shutdown_timeout_seconds",
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw := map[string]any{}
	for env, key := range envStringKeys {
		value, ok := lookup(env)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if key == "log_level" {
			value = strings.ToLower(strings.TrimSpace(value))
		}
		raw[key] = value
	}
	for env, key := range envIntKeys {
		value, ok := lookup(env)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("core: invalid %s value %q: %w", env, value, err)
		}
		if key == "max_body_bytes" {
			raw[key] = parsed
			continue
		}
		raw[key] = int(parsed)
	}
	return raw, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			layer[key] = value
		}
	}
	setInt := func(key string, value int64) {
		if includeZero || value != 0 {
			layer[key] = value
		}
	}

	setString("service_name", cfg.ServiceName)
	setString("webhook_secret", cfg.WebhookSecret)
	setString("database_url", cfg.DatabaseURL)
	setString("log_level", cfg.LogLevel)
	setString("host", cfg.Host)
	setInt("port", int64(cfg.Port))
	setInt("max_body_bytes", cfg.MaxBodyBytes)
	setInt("stats_cache_ttl_seconds", int64(cfg.StatsCacheTTLSeconds))
	setInt("shutdown_timeout_seconds", int64(cfg.ShutdownTimeoutSeconds))
	return layer
}
