package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/aretw0/tabula"
	"github.com/aretw0/tabula/internal/adapters/anthropic"
	"github.com/aretw0/tabula/internal/adapters/csv"
	"github.com/aretw0/tabula/internal/adapters/file"
	"github.com/aretw0/tabula/internal/config"
	"github.com/aretw0/tabula/pkg/adapters/memory"
	"github.com/aretw0/tabula/pkg/adapters/redis"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/persistence/middleware"
	"github.com/aretw0/tabula/pkg/ports"
	"github.com/aretw0/tabula/pkg/session"
)

// ErrNoAPIKey is returned when a command needs the Messages API but no key is set.
var ErrNoAPIKey = errors.New("no API key: set ANTHROPIC_API_KEY or anthropic.api_key")

// NewConsultant creates the Messages API decision-maker.
func NewConsultant(cfg config.AnthropicConfig, logger *slog.Logger) (ports.Consultant, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	client, err := anthropic.New(anthropic.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout(),
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.MaxDelayMs) * time.Millisecond,
	}, anthropic.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewLoader creates the CSV source loader.
func NewLoader(cfg config.SourceConfig) (*csv.Loader, error) {
	var opts []csv.Option
	if cfg.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(cfg.Delimiter)
		if size != len(cfg.Delimiter) {
			return nil, fmt.Errorf("source.delimiter must be a single character, got %q", cfg.Delimiter)
		}
		opts = append(opts, csv.WithDelimiter(r))
	}
	if cfg.MaxRows > 0 {
		opts = append(opts, csv.WithMaxRows(cfg.MaxRows))
	}
	return csv.New(opts...), nil
}

// NewEngine builds the engine from configuration.
func NewEngine(cfg *config.Config, consultant ports.Consultant, logger *slog.Logger, hooks ...domain.LifecycleHooks) (*tabula.Engine, error) {
	loader, err := NewLoader(cfg.Source)
	if err != nil {
		return nil, err
	}
	opts := []tabula.Option{
		tabula.WithConsultant(consultant),
		tabula.WithLoader(loader),
		tabula.WithLogger(logger),
		tabula.WithPreviewRows(cfg.Engine.PreviewRows),
		tabula.WithWorkspaceEcho(cfg.Engine.WorkspaceEcho),
	}
	if cfg.Engine.ChartWidth > 0 && cfg.Engine.ChartHeight > 0 {
		opts = append(opts, tabula.WithChartSize(cfg.Engine.ChartWidth, cfg.Engine.ChartHeight))
	}
	for _, h := range hooks {
		opts = append(opts, tabula.WithLifecycleHooks(h))
	}
	engine, err := tabula.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}

// NewSessions creates the session manager for the configured backend, encrypting at
// rest when a key is configured. The returned closer releases backend connections.
func NewSessions(cfg config.StoreConfig, logger *slog.Logger) (*session.Manager, io.Closer, error) {
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithLockTTL(time.Duration(cfg.LockTTLSec) * time.Second),
	}

	var (
		store  ports.SessionStore
		closer io.Closer = nopCloser{}
	)
	switch cfg.Backend {
	case "memory":
		store = memory.NewStore()
	case "file":
		store = file.New(cfg.Dir)
	case "redis":
		rs := redis.New(cfg.RedisAddr, "", 0, redis.WithPrefix(cfg.RedisPrefix), redis.WithTTL(cfg.TTL()))
		opts = append(opts, session.WithLocker(redis.NewLocker(rs.Client(), cfg.RedisPrefix+"lock:")))
		store, closer = rs, rs
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	if cfg.EncryptionKey != "" {
		mw, err := encryption(cfg)
		if err != nil {
			closer.Close()
			return nil, nil, err
		}
		store = middleware.Chain(store, mw)
	}
	return session.NewManager(store, opts...), closer, nil
}

func encryption(cfg config.StoreConfig) (middleware.Middleware, error) {
	active, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store.encryption_key is not base64: %w", err)
	}
	ec := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.FallbackKeys {
		key, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return nil, fmt.Errorf("store.fallback_keys[%d] is not base64: %w", i, err)
		}
		ec.FallbackKeys = append(ec.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(ec)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
