package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/propapanda/dinky"
	httpadapter "github.com/propapanda/dinky/internal/adapters/http"
	"github.com/propapanda/dinky/internal/logging"
	"github.com/propapanda/dinky/pkg/adapters/memory"
	redisadapter "github.com/propapanda/dinky/pkg/adapters/redis"
	"github.com/propapanda/dinky/pkg/ports"
	"github.com/propapanda/dinky/pkg/session"
)

// ServeConfig selects the listen address and the session store backend.
type ServeConfig struct {
	Addr  string `yaml:"addr"`
	Store string `yaml:"store"` // "memory" (default) or "redis"

	Redis struct {
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"redis"`
}

// DefaultServeConfig is the zero-configuration setup.
func DefaultServeConfig() ServeConfig {
	cfg := ServeConfig{Addr: ":8080", Store: "memory"}
	cfg.Redis.Addr = "localhost:6379"
	return cfg
}

// LoadServeConfig overlays a YAML config file onto the defaults.
func LoadServeConfig(path string) (ServeConfig, error) {
	cfg := DefaultServeConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot parse config: %w", err)
	}
	return cfg, nil
}

// Serve compiles the script at path and serves its session API until
// SIGINT/SIGTERM.
func Serve(path string, cfg ServeConfig) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read script: %w", err)
	}
	story, err := dinky.Compile(string(source))
	if err != nil {
		return err
	}

	logger := logging.New(slog.LevelInfo)

	var store ports.StateStore
	switch cfg.Store {
	case "", "memory":
		store = memory.NewStore()
	case "redis":
		rs := redisadapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redisadapter.WithTTL(time.Duration(cfg.Redis.TTLSeconds)*time.Second))
		defer rs.Close()
		store = rs
	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}

	manager := session.NewManager(store, session.WithLogger(logger))
	server := httpadapter.NewServer(story.Model(), manager, httpadapter.WithLogger(logger))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving story", "script", path, "addr", cfg.Addr, "store", cfg.Store)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-stop:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
