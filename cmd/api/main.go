package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialout-picker/internal/audit"
	"dialout-picker/internal/auth"
	"dialout-picker/internal/catalog"
	"dialout-picker/internal/config"
	"dialout-picker/internal/dispatch"
	"dialout-picker/internal/httpapi"
	"dialout-picker/internal/session"
	"dialout-picker/internal/targets"
	"dialout-picker/internal/telephony"
	"dialout-picker/pkg/logger"
	"dialout-picker/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	provider, err := newProvider(cfg.Host)
	if err != nil {
		log.Error("dial-out provider init failed", "err", err)
		os.Exit(1)
	}

	checks := map[string]func(ctx context.Context) error{
		"provider": provider.HealthCheck,
	}

	auditRepo := audit.Repository(audit.NewMemoryRepo())
	if cfg.DB.Enabled() {
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		repo := audit.NewPostgresRepo(db)
		if err := repo.EnsureSchema(rootCtx); err != nil {
			log.Error("audit schema init failed", "err", err)
			os.Exit(1)
		}
		auditRepo = repo
		checks["postgres"] = func(ctx context.Context) error { return utils.HealthCheck(ctx, db, 2*time.Second) }
	}

	var lock session.BatchLock = session.NewMemoryLock()
	if cfg.Redis.Enabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()

		lock = session.NewRedisLock(rdb, cfg.Dial.Timeout+cfg.Dial.Gap+30*time.Second)
		checks["redis"] = func(ctx context.Context) error { return pingRedis(ctx, rdb) }
	}

	fallback := targets.DefaultFallback()
	if cfg.Targets.FallbackFile != "" {
		fallback, err = catalog.LoadFallbackFile(cfg.Targets.FallbackFile)
		if err != nil {
			log.Error("fallback targets load failed", "err", err, "path", cfg.Targets.FallbackFile)
			os.Exit(1)
		}
	}

	dispatcher := dispatch.NewDispatcher(provider)
	dispatcher.Timeout = cfg.Dial.Timeout
	dispatcher.Gap = cfg.Dial.Gap

	sessions := session.NewManager(session.Options{
		Conference: cfg.Host.ConferenceAlias,
		Source:     targetSource(cfg.Targets),
		Fallback:   fallback,
		Dispatcher: dispatcher,
		Lock:       lock,
		Audit:      audit.NewService(auditRepo, cfg.Host.ConferenceAlias),
		IdleTTL:    cfg.Session.IdleTTL,
		MaxPerUser: cfg.Session.MaxPerUser,
	})
	go sessions.Run(logger.With(rootCtx, log), 0)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	if err := r.SetTrustedProxies(cfg.App.TrustedProxies); err != nil {
		log.Error("trusted proxies invalid", "err", err)
		os.Exit(1)
	}

	h := httpapi.Handlers{
		Auth:       authManager,
		Sessions:   sessions,
		Conference: cfg.Host.ConferenceAlias,
		Checks:     checks,
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager), routeOptions{AllowTokenIssue: cfg.AllowsTokenIssue()})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No write timeout: dial batches stream outcomes for as long as they run.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening",
			"addr", srv.Addr,
			"env", cfg.App.Env,
			"provider", provider.Name(),
			"conference", cfg.Host.ConferenceAlias,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// newProvider selects the host client, or the dry-run provider when no host
// API is configured (never in production; config rejects that).
func newProvider(cfg config.HostConfig) (telephony.DialOutProvider, error) {
	if cfg.BaseURL == "" {
		return &telephony.DryRunProvider{}, nil
	}
	p, err := telephony.NewConferenceProvider(telephony.ConferenceConfig{
		BaseURL:        cfg.BaseURL,
		Alias:          cfg.ConferenceAlias,
		Token:          cfg.Token,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// targetSource picks the tabular resource; URL wins over file.
func targetSource(cfg config.TargetsConfig) catalog.Source {
	switch {
	case cfg.URL != "":
		return catalog.NewHTTPSource(cfg.URL, cfg.FetchTimeout)
	case cfg.File != "":
		return catalog.FileSource{Path: cfg.File}
	default:
		return nil
	}
}

func pingRedis(ctx context.Context, rdb *redis.Client) error {
	return rdb.Ping(ctx).Err()
}
