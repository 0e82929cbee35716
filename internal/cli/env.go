// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jeranaias/knowhub/internal/config"
	"github.com/jeranaias/knowhub/internal/conversation"
	"github.com/jeranaias/knowhub/internal/gateway"
	"github.com/jeranaias/knowhub/internal/registry"
	"github.com/jeranaias/knowhub/internal/session"
	"github.com/jeranaias/knowhub/internal/storage"
	"github.com/jeranaias/knowhub/internal/util"
)

// env is the dependency graph shared by the commands: one gateway client,
// one session store, one registry and one conversation engine.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error

	client   *gateway.Client
	store    *session.Store
	registry *registry.Registry
	engine   *conversation.Engine
}

// loadConfig loads the config file named by --config, or the default one,
// and applies --server on top.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &ConfigError{Path: opts.configPath, Err: err}
	}

	if opts.server != "" {
		cfg.Server.URL = opts.server
		if err := cfg.Validate(); err != nil {
			return nil, &UsageError{Err: fmt.Errorf("--server: %w", err)}
		}
	}
	return cfg, nil
}

// newEnv wires config, logger, gateway, credential slot, session store,
// registry and engine, then restores any persisted session.
func newEnv(opts *globalOptions) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logPath, err := cfg.LogPath()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	logger, closeLog, err := util.InitLogger(cfg.Log.Level, logPath)
	if err != nil {
		return nil, err
	}

	client := gateway.New(gateway.Options{
		BaseURL:   cfg.Server.URL,
		Timeout:   time.Duration(cfg.Server.TimeoutSecs) * time.Second,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
		UserAgent: "knowhub/" + opts.version,
		Logger:    logger,
	})

	var slot storage.Slot = storage.NewMemorySlot()
	if cfg.Session.Persist {
		path, err := cfg.CredentialPath()
		if err != nil {
			_ = closeLog()
			return nil, &ConfigError{Err: err}
		}
		slot = storage.NewFileSlot(path)
	}

	store := session.NewStore(client, slot, logger)
	client.SetCredentials(store)
	if _, _, err := store.Restore(); err != nil {
		logger.Warn("could not restore session", "error", err)
	}

	reg := registry.New(client, registry.Options{
		AllowedFormats: cfg.Documents.AllowedFormats,
		MaxUploadBytes: int64(cfg.Documents.MaxUploadMB) << 20,
		Logger:         logger,
	})

	return &env{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		client:   client,
		store:    store,
		registry: reg,
		engine:   conversation.NewEngine(client, logger),
	}, nil
}

func (e *env) pollInterval() time.Duration {
	if e.cfg.Documents.PollIntervalSecs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(e.cfg.Documents.PollIntervalSecs) * time.Second
}

func (e *env) close() {
	if e.closeLog != nil {
		_ = e.closeLog()
	}
}
