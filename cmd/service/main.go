package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/envgate/internal/cache"
	"github.com/dropDatabas3/envgate/internal/config"
	"github.com/dropDatabas3/envgate/internal/email"
	authctrl "github.com/dropDatabas3/envgate/internal/http/controllers/auth"
	envctrl "github.com/dropDatabas3/envgate/internal/http/controllers/environments"
	mw "github.com/dropDatabas3/envgate/internal/http/middlewares"
	"github.com/dropDatabas3/envgate/internal/http/router"
	authsvc "github.com/dropDatabas3/envgate/internal/http/services/auth"
	envsvc "github.com/dropDatabas3/envgate/internal/http/services/environments"
	"github.com/dropDatabas3/envgate/internal/keys"
	"github.com/dropDatabas3/envgate/internal/observability/logger"
	"github.com/dropDatabas3/envgate/internal/rate"
	"github.com/dropDatabas3/envgate/internal/security/password"
	"github.com/dropDatabas3/envgate/internal/session"
	"github.com/dropDatabas3/envgate/internal/store/pg"
	"github.com/dropDatabas3/envgate/internal/tokens"
	"github.com/dropDatabas3/envgate/internal/verify"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("ENVGATE_CONFIG"), "ruta del YAML de configuración")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logger todavía no inicializado: stderr directo.
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: os.Getenv("ENVGATE_LOG_LEVEL")})
	defer logger.Sync()
	log := logger.L()

	passwordParams := password.Params{
		Memory:      uint32(cfg.Auth.Password.MemoryKiB),
		Time:        uint32(cfg.Auth.Password.Time),
		Parallelism: uint8(cfg.Auth.Password.Parallelism),
		KeyLen:      32,
	}
	if err := passwordParams.Validate(); err != nil {
		log.Fatal("invalid password params", logger.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var connMaxLifetime time.Duration
	if cfg.Storage.Postgres.ConnMaxLifetime != "" {
		if d, perr := time.ParseDuration(cfg.Storage.Postgres.ConnMaxLifetime); perr == nil {
			connMaxLifetime = d
		}
	}
	store, err := pg.Connect(ctx, pg.Config{
		DSN:             cfg.Storage.DSN,
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
	})
	if err != nil {
		log.Fatal("postgres connect failed", logger.Err(err))
	}
	defer store.Close()

	cacheClient, err := cache.New(cache.Config{
		Kind:   cfg.Cache.Kind,
		Addr:   cfg.Cache.Redis.Addr,
		DB:     cfg.Cache.Redis.DB,
		Prefix: cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		log.Fatal("cache init failed", logger.Err(err))
	}
	defer cacheClient.Close()

	keySvc := &keys.Service{
		Envs:             store.Environments,
		EncryptionSecret: cfg.Secrets.Encryption,
		IndexSecret:      cfg.Secrets.KeyIndex,
		MaxRetries:       cfg.Auth.KeyGenMaxRetries,
	}
	tokenSvc := &tokens.Service{Repo: store.Tokens}
	sessionSvc := &session.Service{
		Users: store.Users,
		Envs:  store.Environments,
		Tokens: tokenSvc,
		Secrets: &keys.Resolver{
			EncryptionSecret: cfg.Secrets.Encryption,
			AppSecret:        cfg.Secrets.App,
		},
		Issuer: cfg.Auth.Issuer,
		Cache:  cacheClient,
	}

	var sender email.Sender = email.NopSender{}
	if cfg.SMTP.Host != "" {
		sender = email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
	}

	authServices := authsvc.New(authsvc.Deps{
		Users:    store.Users,
		Tokens:   tokenSvc,
		Sender:   sender,
		Password: passwordParams,
		TTLs: authsvc.TTLs{
			MagicLink:     cfg.Auth.MagicLinkTTL,
			Invite:        cfg.Auth.InviteTTL,
			ConfirmEmail:  cfg.Auth.ConfirmEmailTTL,
			ResetPassword: cfg.Auth.ResetPasswordTTL,
		},
		BaseURL: cfg.App.BaseURL,
	})

	poller := &verify.Poller{
		Domains:  store.Domains,
		Checker:  &verify.MXChecker{},
		Interval: cfg.Verify.Interval,
	}
	if err := poller.Start(ctx); err != nil {
		log.Warn("verification poller start failed", logger.Err(err))
	}

	environmentsSvc := &envsvc.Service{
		Envs:              store.Environments,
		Domains:           store.Domains,
		Keys:              keySvc,
		DefaultSessionTTL: 15 * time.Minute,
		Notify:            func() { poller.Notify(ctx) },
	}

	var limiter mw.RateLimiter
	if cfg.Rate.Enabled && cfg.Cache.Redis.Addr != "" {
		limiter = rate.NewRedisLimiter(
			rdb.NewClient(&rdb.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB}),
			"rl:", cfg.Rate.MaxRequests, cfg.RateWindow(),
		)
	}

	handler := router.New(router.Deps{
		Envs:         store.Environments,
		Sessions:     sessionSvc,
		IndexSecret:  cfg.Secrets.KeyIndex,
		Auth:         authctrl.NewController(authServices, sessionSvc),
		Environments: envctrl.NewController(environmentsSvc),
		RateLimiter:  limiter,
		Metrics:      promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("envgate listening", logger.Any("addr", cfg.Server.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server failed", logger.Err(err))
	}
}
