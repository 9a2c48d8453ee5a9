// Command intentmeshd runs the intent-routed agent orchestrator as an HTTP
// daemon. Configuration comes from a yaml file plus INTENTMESH_* environment
// overrides; a local .env file is honored for development.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/intentmesh/intentmesh"
	"github.com/intentmesh/intentmesh/classify"
	"github.com/intentmesh/intentmesh/config"
	"github.com/intentmesh/intentmesh/conversation"
	"github.com/intentmesh/intentmesh/core"
	"github.com/intentmesh/intentmesh/directory"
	"github.com/intentmesh/intentmesh/endpoint"
	endpointanthropic "github.com/intentmesh/intentmesh/endpoint/anthropic"
	endpointopenai "github.com/intentmesh/intentmesh/endpoint/openai"
	"github.com/intentmesh/intentmesh/logging"
	"github.com/intentmesh/intentmesh/notify"
	"github.com/intentmesh/intentmesh/registry"
	"github.com/intentmesh/intentmesh/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "intentmeshd",
		Short: "Intent-routed agent orchestrator",
		Long: `intentmeshd classifies inbound user messages, routes them to the agent
owning the intent and persists every exchange as an ordered conversation.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the yaml configuration file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// Development convenience; production deployments set real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		Format:    cfg.Logging.Format,
		Output:    os.Stdout,
		Component: "intentmeshd",
	})

	table, agents, err := loadRoutingState(cfg)
	if err != nil {
		return err
	}

	store, closeStore, err := buildStore(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, closeSink, err := buildSink(cfg.Notify, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	mesh := intentmesh.New(func(o *intentmesh.Options) {
		o.Table = table
		o.Agents = agents
		o.Classifier = buildClassifier(cfg.Classifier)
		o.Store = store
		o.Client = buildClient()
		if cfg.Classifier.Threshold > 0 {
			o.Threshold = cfg.Classifier.Threshold
		}
		if cfg.Dispatch.HistoryWindow > 0 {
			o.HistoryWindow = cfg.Dispatch.HistoryWindow
		}
		o.Sink = sink
		o.Logger = logger
	})

	if cfg.Watch {
		if err := startWatchers(ctx, cfg, mesh, logger); err != nil {
			return err
		}
	}

	handler := server.New(mesh, func(o *server.Options) {
		o.Logger = logger.WithComponent("server")
	})
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler.Router()}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadRoutingState(cfg config.Config) (*registry.Table, []core.AgentDescriptor, error) {
	var table *registry.Table
	if cfg.RegistryFile != "" {
		var err error
		table, err = registry.LoadFile(cfg.RegistryFile)
		if err != nil {
			return nil, nil, err
		}
	}

	var agents []core.AgentDescriptor
	if cfg.DirectoryFile != "" {
		snap, err := directory.LoadFile(cfg.DirectoryFile)
		if err != nil {
			return nil, nil, err
		}
		agents = snap.Descriptors()
	}
	return table, agents, nil
}

func buildClassifier(cfg config.ClassifierConfig) core.Classifier {
	rules := make([]classify.Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, classify.Rule{
			Intent:      r.Intent,
			Keywords:    r.Keywords,
			ContextKeys: r.ContextKeys,
			Weight:      r.Weight,
		})
	}
	return classify.NewKeyword(rules...)
}

func buildStore(cfg config.StoreConfig) (core.ConversationStore, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case "sqlite":
		store, err := conversation.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { store.Close() }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return conversation.NewRedisStore(client), func() { client.Close() }, nil
	default:
		return conversation.NewInMemoryStore(), noop, nil
	}
}

func buildSink(cfg config.NotifyConfig, logger *logging.MeshLogger) (notify.Sink, func(), error) {
	logSink := notify.NewLogSink(logger.WithComponent("notify"))
	if cfg.AMQPURL == "" {
		return logSink, func() {}, nil
	}

	amqpSink, err := notify.NewAMQPSink(cfg.AMQPURL, func(o *notify.AMQPOptions) {
		o.Queue = cfg.Queue
		o.Logger = logger.WithComponent("notify")
	})
	if err != nil {
		return nil, func() {}, err
	}
	return notify.MultiSink{logSink, amqpSink}, func() { amqpSink.Close() }, nil
}

// buildClient wires the HTTP protocol client as the default transport and
// registers in-process model providers selectable via descriptor metadata.
func buildClient() endpoint.Client {
	mux := endpoint.NewMux(endpoint.NewHTTPClient())
	if os.Getenv("OPENAI_API_KEY") != "" {
		mux.Register("openai", endpointopenai.New())
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		mux.Register("anthropic", endpointanthropic.New())
	}
	return mux
}

func startWatchers(ctx context.Context, cfg config.Config, mesh *intentmesh.Mesh, logger *logging.MeshLogger) error {
	if cfg.RegistryFile != "" {
		w, err := registry.NewWatcher(cfg.RegistryFile, mesh.Registry(), func(o *registry.WatcherOptions) {
			o.Logger = logger.WithComponent("registry")
		})
		if err != nil {
			return err
		}
		go func() { _ = w.Run(ctx) }()
	}
	if cfg.DirectoryFile != "" {
		w, err := directory.NewWatcher(cfg.DirectoryFile, mesh.Directory(), func(o *directory.WatcherOptions) {
			o.Logger = logger.WithComponent("directory")
		})
		if err != nil {
			return err
		}
		go func() { _ = w.Run(ctx) }()
	}
	return nil
}
