package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chefmate/auth-service/internal/config"
	"github.com/chefmate/auth-service/internal/domain"
	api "github.com/chefmate/auth-service/internal/http"
	"github.com/chefmate/auth-service/internal/log"
	"github.com/chefmate/auth-service/internal/metrics"
	"github.com/chefmate/auth-service/internal/oauth"
	"github.com/chefmate/auth-service/internal/queue"
	"github.com/chefmate/auth-service/internal/repo"
	"github.com/chefmate/auth-service/internal/security"
)

func main() {
	cfg := config.Load()

	if _, err := log.Init(os.Getenv("APP_ENV") == "prod"); err != nil {
		stdlog.Fatalf("logger init: %v", err)
	}
	metrics.MustRegister()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := repo.NewStore(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		stdlog.Fatalf("mongo connect: %v", err)
	}
	defer store.Close(context.Background())

	if err := store.EnsureUserIndexes(ctx); err != nil {
		stdlog.Fatalf("mongo indexes: %v", err)
	}

	rds := repo.NewRedis(cfg.RedisAddr)
	defer rds.Close()

	var pub queue.Publisher = queue.NewNoop()
	if cfg.RabbitURL != "" {
		if pub, err = queue.NewRabbit(cfg.RabbitURL, queue.Exchange); err != nil {
			stdlog.Fatalf("rabbit connect: %v", err)
		}
	}
	defer pub.Close()

	tokens := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTTLMin)*time.Minute)
	providers := map[string]*oauth.Client{
		domain.ProviderGoogle: oauth.NewGoogle(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURI),
		domain.ProviderKakao:  oauth.NewKakao(cfg.Kakao.ClientID, cfg.Kakao.RedirectURI),
	}

	h := api.NewHandler(store, tokens, providers, rds, cfg.RateLimitPerMin, pub, store)
	r := api.NewRouter(h)

	srvErr := make(chan error, 1)
	go func() { srvErr <- r.Run(":" + cfg.Port) }()

	stdlog.Printf("auth-service listening on :%s", cfg.Port)

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		stdlog.Printf("signal: %s, shutting down", s)
	case err := <-srvErr:
		stdlog.Printf("server error: %v", err)
	}
}
