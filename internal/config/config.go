// Package config loads the playground configuration: defaults, then an
// optional YAML file, then CELPLAY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/invakid404/cel-playground/internal/eval"
	"github.com/invakid404/cel-playground/internal/logging"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CELPLAY_"

// Engine kinds
const (
	EngineBuiltin = "builtin"
	EngineWasm    = "wasm"
)

// Preference backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the configuration of the playground
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Log     logging.Config `mapstructure:"log"`
	Share   ShareConfig    `mapstructure:"share"`
	Engine  EngineConfig   `mapstructure:"engine"`
	Prefs   PrefsConfig    `mapstructure:"prefs"`
	Catalog CatalogConfig  `mapstructure:"catalog"`
	Modes   ModesConfig    `mapstructure:"modes"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RateLimit is the sustained number of evaluations per second per server.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// ShareConfig configures share links
type ShareConfig struct {
	MaxDecompressedBytes int64  `mapstructure:"max_decompressed_bytes"`
	BaseURL              string `mapstructure:"base_url"`
}

// EngineConfig selects and configures the evaluation engine
type EngineConfig struct {
	Kind        string        `mapstructure:"kind"`
	WasmPath    string        `mapstructure:"wasm_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MemoryPages uint32        `mapstructure:"memory_pages"`
	CostLimit   uint64        `mapstructure:"cost_limit"`
	Libraries   []string      `mapstructure:"libraries"`
	// Options replace the default environment options when set.
	Options []eval.EnvOptionConfig `mapstructure:"options"`
}

// PrefsConfig selects the preference store
type PrefsConfig struct {
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// CatalogConfig configures the example catalog
type CatalogConfig struct {
	// Dir holds examples/<mode>.yaml files; empty uses the bundled examples.
	Dir       string `mapstructure:"dir"`
	CacheSize int    `mapstructure:"cache_size"`
}

// ModesConfig configures the mode registry
type ModesConfig struct {
	// File is a YAML mode registry; empty uses the bundled modes.
	File string `mapstructure:"file"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			RateLimit:    10,
			Burst:        20,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "json",
		},
		Share: ShareConfig{
			MaxDecompressedBytes: 1 << 20,
		},
		Engine: EngineConfig{
			Kind:        EngineBuiltin,
			Timeout:     5 * time.Second,
			MemoryPages: 256,
			Libraries:   []string{"bindings", "encoders", "lists", "math", "sets"},
		},
		Prefs: PrefsConfig{
			Backend:   BackendMemory,
			RedisAddr: "localhost:6379",
			Prefix:    "celplay:prefs:",
			TTL:       30 * 24 * time.Hour,
		},
		Catalog: CatalogConfig{
			CacheSize: 16,
		},
	}
}

// Load builds the configuration from the defaults, the YAML file at path when
// path is not empty, and the environment
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeYAML(data, &config); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&config, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// decodeYAML merges a YAML document over config. Keys missing from the
// document keep their current values.
func decodeYAML(data []byte, config *Config) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw == nil {
		return nil
	}
	// Lists replace the default instead of being merged into it
	if engine, ok := raw["engine"].(map[string]interface{}); ok {
		if _, ok := engine["libraries"]; ok {
			config.Engine.Libraries = nil
		}
		if _, ok := engine["options"]; ok {
			config.Engine.Options = nil
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           config,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides config with CELPLAY_<SECTION>_<KEY> variables
func applyEnv(config *Config, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if value, ok := lookup(EnvPrefix + key); ok && value != "" {
			*dst = value
		}
	}
	duration := func(key string, dst *time.Duration) {
		if value, ok := lookup(EnvPrefix + key); ok && value != "" {
			d, err := time.ParseDuration(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, bits int, set func(int64)) {
		if value, ok := lookup(EnvPrefix + key); ok && value != "" {
			n, err := strconv.ParseInt(value, 10, bits)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			set(n)
		}
	}

	str("SERVER_ADDR", &config.Server.Addr)
	duration("SERVER_READ_TIMEOUT", &config.Server.ReadTimeout)
	duration("SERVER_WRITE_TIMEOUT", &config.Server.WriteTimeout)
	if value, ok := lookup(EnvPrefix + "SERVER_RATE_LIMIT"); ok && value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSERVER_RATE_LIMIT: %w", EnvPrefix, err))
		} else {
			config.Server.RateLimit = f
		}
	}
	integer("SERVER_BURST", 0, func(n int64) { config.Server.Burst = int(n) })

	str("LOG_LEVEL", &config.Log.Level)
	str("LOG_FORMAT", &config.Log.Format)

	integer("SHARE_MAX_DECOMPRESSED_BYTES", 64, func(n int64) { config.Share.MaxDecompressedBytes = n })
	str("SHARE_BASE_URL", &config.Share.BaseURL)

	str("ENGINE_KIND", &config.Engine.Kind)
	str("ENGINE_WASM_PATH", &config.Engine.WasmPath)
	duration("ENGINE_TIMEOUT", &config.Engine.Timeout)
	integer("ENGINE_MEMORY_PAGES", 32, func(n int64) { config.Engine.MemoryPages = uint32(n) })
	integer("ENGINE_COST_LIMIT", 64, func(n int64) { config.Engine.CostLimit = uint64(n) })
	if value, ok := lookup(EnvPrefix + "ENGINE_LIBRARIES"); ok {
		config.Engine.Libraries = splitList(value)
	}
	if value, ok := lookup(EnvPrefix + "ENGINE_OPTIONS"); ok && value != "" {
		options, err := eval.ParseEnvOptions(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sENGINE_OPTIONS: %w", EnvPrefix, err))
		} else {
			config.Engine.Options = options
		}
	}

	str("PREFS_BACKEND", &config.Prefs.Backend)
	str("PREFS_REDIS_ADDR", &config.Prefs.RedisAddr)
	str("PREFS_REDIS_PASSWORD", &config.Prefs.RedisPassword)
	integer("PREFS_REDIS_DB", 0, func(n int64) { config.Prefs.RedisDB = int(n) })
	str("PREFS_PREFIX", &config.Prefs.Prefix)
	duration("PREFS_TTL", &config.Prefs.TTL)

	str("CATALOG_DIR", &config.Catalog.Dir)
	integer("CATALOG_CACHE_SIZE", 0, func(n int64) { config.Catalog.CacheSize = int(n) })

	str("MODES_FILE", &config.Modes.File)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// splitList parses a comma-separated list
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Validate checks the configuration for values no component can work with
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit is negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		errs = append(errs, errors.New("server.burst must be at least 1 when rate limiting"))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or console", c.Log.Format))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Engine.Kind {
	case EngineBuiltin:
	case EngineWasm:
		if c.Engine.WasmPath == "" {
			errs = append(errs, errors.New("engine.wasm_path is required for the wasm engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("engine.kind %q is not builtin or wasm", c.Engine.Kind))
	}
	if _, err := eval.Libraries(c.Engine.Libraries...); err != nil {
		errs = append(errs, fmt.Errorf("engine.libraries: %w", err))
	}
	if _, err := eval.EnvOptions(c.Engine.Options); err != nil {
		errs = append(errs, fmt.Errorf("engine.options: %w", err))
	}
	if c.Engine.Timeout <= 0 {
		errs = append(errs, errors.New("engine.timeout must be positive"))
	}
	switch c.Prefs.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Prefs.RedisAddr == "" {
			errs = append(errs, errors.New("prefs.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("prefs.backend %q is not memory or redis", c.Prefs.Backend))
	}
	if c.Prefs.TTL < 0 {
		errs = append(errs, errors.New("prefs.ttl is negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
