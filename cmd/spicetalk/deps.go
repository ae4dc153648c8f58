package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"

	"github.com/Veraticus/the-spice-must-talk/internal/auth"
	"github.com/Veraticus/the-spice-must-talk/internal/certs"
	"github.com/Veraticus/the-spice-must-talk/internal/chat"
	"github.com/Veraticus/the-spice-must-talk/internal/config"
	"github.com/Veraticus/the-spice-must-talk/internal/fetch"
	"github.com/Veraticus/the-spice-must-talk/internal/intent"
	"github.com/Veraticus/the-spice-must-talk/internal/llm"
	"github.com/Veraticus/the-spice-must-talk/internal/pii"
	"github.com/Veraticus/the-spice-must-talk/internal/prompt"
	"github.com/Veraticus/the-spice-must-talk/internal/service"
	"github.com/Veraticus/the-spice-must-talk/internal/session"
	"github.com/Veraticus/the-spice-must-talk/internal/storage"
	"github.com/Veraticus/the-spice-must-talk/internal/transport"
)

var errMirrorDisabled = errors.New("history mirror is disabled (session.mirror is none)")

// redisClient closes the shared client when the injector shuts down.
type redisClient struct {
	*redis.Client
}

func (c redisClient) Shutdown() error {
	return c.Close()
}

// newInjector registers every service. Nothing is built until first invoked.
func newInjector(cfg *config.Config) *do.Injector {
	di := do.New()

	do.ProvideValue(di, cfg)
	do.ProvideValue(di, slog.Default())

	do.Provide(di, provideStorage)
	do.Provide(di, provideRedis)
	do.Provide(di, provideMirror)
	do.Provide(di, provideSessions)
	do.Provide(di, provideRegistry)
	do.Provide(di, provideController)
	do.Provide(di, provideAssembler)
	do.Provide(di, provideFetcher)
	do.Provide(di, provideVerifier)
	do.Provide(di, provideChat)
	do.Provide(di, provideServer)

	return di
}

func shutdown(di *do.Injector) {
	if err := di.Shutdown(); err != nil {
		slog.Warn("Failed to shut down cleanly", "error", err)
	}
}

func provideStorage(di *do.Injector) (*storage.SQLiteStorage, error) {
	cfg := do.MustInvoke[*config.Config](di)

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func provideRedis(di *do.Injector) (redisClient, error) {
	cfg := do.MustInvoke[*config.Config](di)
	client, err := session.NewRedisClient(cfg.Redis.URL)
	if err != nil {
		return redisClient{}, err
	}
	return redisClient{client}, nil
}

func provideMirror(di *do.Injector) (service.HistoryMirror, error) {
	cfg := do.MustInvoke[*config.Config](di)

	switch cfg.Session.Mirror {
	case config.MirrorSQLite:
		store, err := do.Invoke[*storage.SQLiteStorage](di)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.MirrorRedis:
		client, err := do.Invoke[redisClient](di)
		if err != nil {
			return nil, err
		}
		return session.NewRedisMirror(client.Client, cfg.Redis.TTL, cfg.Session.MaxTurns), nil
	default:
		return nil, errMirrorDisabled
	}
}

func provideSessions(di *do.Injector) (*session.Store, error) {
	cfg := do.MustInvoke[*config.Config](di)
	logger := do.MustInvoke[*slog.Logger](di)

	opts := []session.Option{
		session.WithMaxTurns(cfg.Session.MaxTurns),
		session.WithLogger(logger),
	}
	mirror, err := do.Invoke[service.HistoryMirror](di)
	switch {
	case err == nil:
		opts = append(opts, session.WithMirror(mirror, cfg.Session.MirrorBuffer))
	case errors.Is(err, errMirrorDisabled):
	default:
		return nil, err
	}
	return session.NewStore(opts...), nil
}

func provideRegistry(di *do.Injector) (*llm.Registry, error) {
	cfg := do.MustInvoke[*config.Config](di)
	logger := do.MustInvoke[*slog.Logger](di)

	reg, err := llm.NewRegistryFromConfig(cfg.LLM.Providers, logger)
	if err != nil {
		return nil, err
	}
	if len(reg.IDs()) == 0 {
		logger.Warn("No LLM provider has an API key; every answer will be a fallback message")
	}
	return reg, nil
}

func provideController(di *do.Injector) (*llm.Controller, error) {
	cfg := do.MustInvoke[*config.Config](di)
	reg := do.MustInvoke[*llm.Registry](di)
	return llm.NewController(reg, cfg.LLM.ControllerConfig(), do.MustInvoke[*slog.Logger](di)), nil
}

func provideAssembler(di *do.Injector) (*prompt.Assembler, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return prompt.NewAssembler(cfg.Prompt)
}

func provideFetcher(di *do.Injector) (*fetch.Fetcher, error) {
	store := do.MustInvoke[*storage.SQLiteStorage](di)
	return fetch.NewFetcher(store, fetch.WithLogger(do.MustInvoke[*slog.Logger](di))), nil
}

// provideVerifier returns nil when no secret is configured.
func provideVerifier(di *do.Injector) (*auth.Verifier, error) {
	cfg := do.MustInvoke[*config.Config](di)
	if cfg.Auth.JWTSecret == "" {
		return nil, nil
	}
	var opts []auth.Option
	if cfg.Auth.RequireKnownUser {
		opts = append(opts, auth.WithUserDirectory(do.MustInvoke[*storage.SQLiteStorage](di)))
	}
	return auth.NewVerifier(cfg.Auth.JWTSecret, opts...)
}

func provideChat(di *do.Injector) (*chat.Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return chat.NewService(chat.Deps{
		Sanitizer: pii.NewSanitizer(),
		Resolver:  intent.NewResolver(),
		Fetcher:   do.MustInvoke[*fetch.Fetcher](di),
		Prompts:   do.MustInvoke[*prompt.Assembler](di),
		Invoker:   do.MustInvoke[*llm.Controller](di),
		Sessions:  do.MustInvoke[*session.Store](di),
	},
		chat.WithGuestCacheTTL(cfg.Session.GuestCacheTTL),
		chat.WithLogger(do.MustInvoke[*slog.Logger](di)),
	)
}

func provideServer(di *do.Injector) (*transport.Server, error) {
	cfg := do.MustInvoke[*config.Config](di)

	var tokens transport.TokenResolver
	if v := do.MustInvoke[*auth.Verifier](di); v != nil {
		tokens = v
	}
	opts := []transport.Option{
		transport.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		transport.WithLogger(do.MustInvoke[*slog.Logger](di)),
	}
	if cfg.Server.TLS {
		tlsConfig, err := certs.NewLocalStore(cfg.Server.CertDir).TLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load local certificate: %w", err)
		}
		opts = append(opts, transport.WithTLS(tlsConfig))
	}
	return transport.NewServer(do.MustInvoke[*chat.Service](di), tokens, opts...), nil
}
