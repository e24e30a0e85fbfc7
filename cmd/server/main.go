package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/org/loginshield/internal/api"
	"github.com/org/loginshield/internal/audit"
	"github.com/org/loginshield/internal/detection"
	"github.com/org/loginshield/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type rateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Per      time.Duration `yaml:"per"`
}

type config struct {
	ListenAddr         string          `yaml:"listen_addr"`
	TLSCertFile        string          `yaml:"tls_cert"`
	TLSKeyFile         string          `yaml:"tls_key"`
	DBUrl              string          `yaml:"db_url"`
	MigrationsDir      string          `yaml:"migrations_dir"`
	LogLevel           string          `yaml:"log_level"`
	AuditLogPath       string          `yaml:"audit_log_path"`
	AuditQueueSize     int             `yaml:"audit_queue_size"`
	AuditMirrorTimeout time.Duration   `yaml:"audit_mirror_timeout"`
	SignaturesFile     string          `yaml:"signatures_file"`
	SessionSecret      string          `yaml:"session_secret"`
	AdminToken         string          `yaml:"admin_token"`
	BcryptCost         int             `yaml:"bcrypt_cost"`
	TrustProxyHeaders  bool            `yaml:"trust_proxy_headers"`
	SecureCookies      bool            `yaml:"secure_cookies"`
	GlobalLimit        rateLimitConfig `yaml:"global_limit"`
	LoginLimit         rateLimitConfig `yaml:"login_limit"`
	RegisterLimit      rateLimitConfig `yaml:"register_limit"`
}

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	cfgFile := "config.yaml"
	if v := os.Getenv("LOGINSHIELD_CONFIG"); v != "" {
		cfgFile = v
	}

	cfg := config{
		ListenAddr:    ":8080",
		MigrationsDir: "migrations",
		LogLevel:      "info",
		AuditLogPath:  "logs/audit.log",
	}

	if data, err := os.ReadFile(cfgFile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to parse config")
		}
	} else {
		log.Warn().Str("file", cfgFile).Msg("config file not found, using defaults")
	}

	// Env overrides
	if v := os.Getenv("LOGINSHIELD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBUrl = v
	}
	if v := os.Getenv("AUDIT_LOG_PATH"); v != "" {
		cfg.AuditLogPath = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.SessionSecret == "" {
		log.Fatal().Msg("session_secret must be configured (or SESSION_SECRET env var)")
	}

	ctx := context.Background()

	// Storage: Postgres when configured, otherwise an in-process store.
	var store storage.Backend
	if cfg.DBUrl != "" {
		pg, err := storage.NewPostgresBackend(ctx, cfg.DBUrl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		version, err := storage.RunMigrations(cfg.DBUrl, cfg.MigrationsDir)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Uint("version", version).Msg("migrations applied")
		store = pg
	} else {
		log.Warn().Msg("db_url not set, using in-memory storage: credentials and queryable audit events are lost on restart")
		store = storage.NewMemoryBackend()
	}
	defer store.Close()

	// Audit log file, written first and inline.
	fileSink, err := audit.OpenFileSink(cfg.AuditLogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.AuditLogPath).Msg("failed to open audit log")
	}
	defer fileSink.Close()
	log.Info().Str("path", fileSink.Path()).Msg("audit log opened")

	// Queryable mirror, written in the background so a slow database never
	// holds up a request.
	mirror := audit.NewAsyncSink(audit.NewStoreSink(store), audit.AsyncConfig{
		QueueSize:    cfg.AuditQueueSize,
		WriteTimeout: cfg.AuditMirrorTimeout,
	})
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mirror.Close(drainCtx); err != nil {
			log.Error().Err(err).Msg("audit mirror not fully drained")
		}
	}()

	sinks := audit.MultiSink{fileSink, mirror}

	auditor := audit.NewLogger(audit.Config{
		Sink:   sinks,
		Reader: store,
	})

	// Detection signatures
	var sigs []detection.Signature
	if cfg.SignaturesFile != "" {
		sigs, err = detection.LoadSignatures(cfg.SignaturesFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.SignaturesFile).Msg("failed to load signatures")
		}
		log.Info().Int("count", len(sigs)).Msg("tool signatures loaded")
	}

	// Create server
	srv, err := api.NewServer(store, auditor, detection.NewDetector(sigs), api.Config{
		ListenAddr:        cfg.ListenAddr,
		TLSCertFile:       cfg.TLSCertFile,
		TLSKeyFile:        cfg.TLSKeyFile,
		SessionSecret:     cfg.SessionSecret,
		AdminToken:        cfg.AdminToken,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		SecureCookies:     cfg.SecureCookies,
		BcryptCost:        cfg.BcryptCost,
		GlobalLimit:       api.RateLimit(cfg.GlobalLimit),
		LoginLimit:        api.RateLimit(cfg.LoginLimit),
		RegisterLimit:     api.RateLimit(cfg.RegisterLimit),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}
	if cfg.AdminToken == "" {
		log.Info().Msg("admin_token not set, /v1/sys/audit-log disabled")
	}

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("server started")
	<-quit

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
