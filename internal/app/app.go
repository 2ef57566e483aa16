// Package app assembles the service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/PratikDhanave/empleaido-factory/internal/audiosource"
	"github.com/PratikDhanave/empleaido-factory/internal/audit"
	"github.com/PratikDhanave/empleaido-factory/internal/config"
	"github.com/PratikDhanave/empleaido-factory/internal/factory"
	"github.com/PratikDhanave/empleaido-factory/internal/httpserver"
	"github.com/PratikDhanave/empleaido-factory/internal/publish"
	"github.com/PratikDhanave/empleaido-factory/internal/ratelimit"
	"github.com/PratikDhanave/empleaido-factory/internal/session"
	"github.com/PratikDhanave/empleaido-factory/internal/store"
	"github.com/PratikDhanave/empleaido-factory/internal/transcribe"
)

const redisPingTimeout = 2 * time.Second

// App is the wired service. Close releases everything New opened.
type App struct {
	Router   *gin.Engine
	Records  *factory.Service
	Store    store.Store
	Sessions *session.Store
	Audit    *audit.Trail

	closers []func() error
}

// New opens storage, the audit trail and the rate limiter, then builds the router.
// Background workers stop when ctx is done.
func New(ctx context.Context, cfg config.Config, l *slog.Logger) (*App, error) {
	if l == nil {
		l = slog.Default()
	}
	a := &App{}

	svc, st, err := OpenRecords(ctx, cfg, l)
	if err != nil {
		return nil, err
	}
	a.Records, a.Store = svc, st
	a.closers = append(a.closers, st.Close)

	trail, err := audit.Open(ctx, cfg.AuditLogFile, audit.WithLogger(l))
	if err != nil {
		return nil, a.fail(err)
	}
	a.Audit = trail
	a.closers = append(a.closers, trail.Close)

	limiter, err := a.openLimiter(ctx, cfg, l)
	if err != nil {
		return nil, a.fail(err)
	}

	inbox, err := audiosource.NewInbox(cfg.WebhookAudioDir, cfg.WebhookAudioPatterns)
	if err != nil {
		return nil, a.fail(err)
	}

	a.Sessions = session.NewStore(cfg.SessionsFile, cfg.SessionTTL, session.WithLogger(l))

	tr := transcribe.NewCommandTranscriber(cfg.TranscribeCommand,
		transcribe.WithModel(cfg.TranscribeModel),
		transcribe.WithTimeout(cfg.TranscribeTimeout),
		transcribe.WithRate(cfg.TranscribeRPS, cfg.TranscribeBurst),
		transcribe.WithLogger(l),
	)

	fetcher := audiosource.NewFetcher(nil, cfg.WebhookFetchTimeout, cfg.MaxAudioBytes,
		audiosource.AllowPrivateNetworks(cfg.WebhookFetchAllowPrivate))

	a.Router, err = httpserver.NewRouter(cfg, httpserver.Deps{
		Records:     svc,
		Store:       st,
		Sessions:    a.Sessions,
		Audit:       trail,
		Limiter:     limiter,
		Transcriber: tr,
		Fetcher:     fetcher,
		Inbox:       inbox,
		Logger:      l,
	})
	if err != nil {
		return nil, a.fail(err)
	}
	return a, nil
}

// OpenRecords opens the configured store and the record service on top of it,
// without any of the HTTP stack. The caller closes the store.
func OpenRecords(ctx context.Context, cfg config.Config, l *slog.Logger) (*factory.Service, store.Store, error) {
	st, err := store.Open(ctx, store.Options{
		Backend:    cfg.StoreBackend,
		DataFile:   cfg.DataFile,
		SQLitePath: cfg.SQLitePath,
		DBURL:      cfg.DBURL,
		Logger:     l,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("app: open store: %w", err)
	}
	svc := factory.New(st, publish.New(cfg.SkillsDir), factory.WithLogger(l))
	return svc, st, nil
}

func (a *App) openLimiter(ctx context.Context, cfg config.Config, l *slog.Logger) (ratelimit.Limiter, error) {
	if cfg.RateLimitBackend != "redis" {
		return ratelimit.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, rdb.Close)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("app: redis ping %s: %w", cfg.RedisAddr, err)
	}
	l.Info("rate limiter using redis", "addr", cfg.RedisAddr)
	return ratelimit.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute), nil
}

func (a *App) fail(err error) error {
	if cerr := a.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

// Close releases resources in reverse opening order. It is safe to call twice.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
