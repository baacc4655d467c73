package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	playground "github.com/invakid404/cel-playground"
	"github.com/invakid404/cel-playground/internal/catalog"
	"github.com/invakid404/cel-playground/internal/common"
	"github.com/invakid404/cel-playground/internal/config"
	"github.com/invakid404/cel-playground/internal/eval"
	"github.com/invakid404/cel-playground/internal/logging"
	"github.com/invakid404/cel-playground/internal/metrics"
	"github.com/invakid404/cel-playground/internal/modes"
	"github.com/invakid404/cel-playground/internal/prefs"
	"github.com/invakid404/cel-playground/internal/share"
	"github.com/invakid404/cel-playground/internal/wasmhost"
)

// app is the fully wired playground together with what it needs to shut down
type app struct {
	config     config.Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	playground *playground.Playground
	closers    []func(context.Context) error
}

func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("failed to release resource", zap.Error(err))
		}
	}
	a.logger.Sync()
}

// loadConfig reads the configuration named by the persistent flags
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

// newApp wires every component from the configuration
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{config: cfg, logger: logger, metrics: metrics.New()}

	registry := modes.Builtin()
	if cfg.Modes.File != "" {
		if registry, err = modes.LoadFile(cfg.Modes.File); err != nil {
			return nil, fmt.Errorf("failed to load modes: %w", err)
		}
	}

	examples := catalog.Embedded(registry, logger)
	if cfg.Catalog.Dir != "" {
		if examples, err = catalog.New(os.DirFS(cfg.Catalog.Dir), registry, cfg.Catalog.CacheSize, logger); err != nil {
			return nil, err
		}
	}

	engine, err := a.newEngine(ctx, cfg.Engine)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	store, err := a.newStore(ctx, cfg.Prefs)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.playground, err = playground.New(playground.Options{
		Registry: registry,
		Engine:   engine,
		Catalog:  examples,
		Prefs:    prefs.New(store, registry, registry.Default().ID, logger),
		Codec:    share.NewCodec(registry, share.WithMaxDecompressedSize(cfg.Share.MaxDecompressedBytes)),
		Metrics:  a.metrics,
		Logger:   logger,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) newEngine(ctx context.Context, cfg config.EngineConfig) (common.Engine, error) {
	switch cfg.Kind {
	case config.EngineWasm:
		host, err := wasmhost.Load(ctx, cfg.WasmPath, wasmhost.Config{
			MemoryPages: cfg.MemoryPages,
			Timeout:     cfg.Timeout,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, host.Close)
		a.logger.Info("using wasm engine", zap.String("path", cfg.WasmPath))
		return wasmhost.NewBreaker(host, wasmhost.DefaultBreakerConfig(), a.logger), nil
	default:
		opts := []eval.Option{
			eval.WithLogger(a.logger),
			eval.WithLibraries(cfg.Libraries...),
			eval.WithCostLimit(cfg.CostLimit),
		}
		if len(cfg.Options) > 0 {
			opts = append(opts, eval.WithEnvOptions(cfg.Options...))
		}
		return eval.NewBuiltin(opts...)
	}
}

func (a *app) newStore(ctx context.Context, cfg config.PrefsConfig) (prefs.Store, error) {
	if cfg.Backend != config.BackendRedis {
		return prefs.NewMemoryStore(), nil
	}
	store := prefs.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
		prefs.WithPrefix(cfg.Prefix),
		prefs.WithTTL(cfg.TTL),
	)
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })
	return store, nil
}
