// Package config loads the daemon configuration: a yaml document plus a
// small set of environment overrides for the values that differ between
// deployments (listen address, backend credentials, broker URL).
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// ClassifierRule is one keyword rule of the deterministic classifier.
type ClassifierRule struct {
	Intent      string   `yaml:"intent"`
	Keywords    []string `yaml:"keywords"`
	ContextKeys []string `yaml:"context_keys"`
	Weight      float64  `yaml:"weight"`
}

// ClassifierConfig configures intent classification.
type ClassifierConfig struct {
	Threshold float64          `yaml:"threshold"`
	Rules     []ClassifierRule `yaml:"rules"`
}

// StoreConfig selects and configures the conversation store backend.
type StoreConfig struct {
	// Backend is one of memory, sqlite, redis.
	Backend       string `yaml:"backend"`
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// NotifyConfig configures the dispatch event sink. An empty AMQPURL keeps
// events on the log only.
type NotifyConfig struct {
	AMQPURL string `yaml:"amqp_url"`
	Queue   string `yaml:"queue"`
}

// DispatchConfig tunes the dispatcher.
type DispatchConfig struct {
	HistoryWindow int `yaml:"history_window"`
}

// Config is the daemon configuration document.
type Config struct {
	Server        ServerConfig     `yaml:"server"`
	Logging       LoggingConfig    `yaml:"logging"`
	RegistryFile  string           `yaml:"registry_file"`
	DirectoryFile string           `yaml:"directory_file"`
	// Watch enables hot reload of the registry and directory files.
	Watch      bool             `yaml:"watch"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Store      StoreConfig      `yaml:"store"`
	Notify     NotifyConfig     `yaml:"notify"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
}

// Default returns the baseline configuration: local listener, info logging,
// in-memory store, no broker.
func Default() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Store:   StoreConfig{Backend: "memory"},
		Notify:  NotifyConfig{Queue: "intentmesh.events"},
	}
}

// Load reads the yaml file at path, applies environment overrides and
// validates the result. An empty path loads defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv maps INTENTMESH_* variables onto the deployment-sensitive fields.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("INTENTMESH_ADDR", &cfg.Server.Addr)
	setString("INTENTMESH_LOG_LEVEL", &cfg.Logging.Level)
	setString("INTENTMESH_REGISTRY_FILE", &cfg.RegistryFile)
	setString("INTENTMESH_DIRECTORY_FILE", &cfg.DirectoryFile)
	setString("INTENTMESH_STORE_BACKEND", &cfg.Store.Backend)
	setString("INTENTMESH_SQLITE_PATH", &cfg.Store.SQLitePath)
	setString("INTENTMESH_REDIS_ADDR", &cfg.Store.RedisAddr)
	setString("INTENTMESH_REDIS_PASSWORD", &cfg.Store.RedisPassword)
	setString("INTENTMESH_AMQP_URL", &cfg.Notify.AMQPURL)

	if v := os.Getenv("INTENTMESH_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Store.RedisDB = db
		}
	}
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("config: sqlite backend requires sqlite_path")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("config: redis backend requires redis_addr")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}

	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Logging.Format)
	}
	return nil
}
