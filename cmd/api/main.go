package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/api/handler"
	"github.com/atendezap/atendezap/internal/api/middleware"
	"github.com/atendezap/atendezap/internal/app"
	"github.com/atendezap/atendezap/internal/automation"
	"github.com/atendezap/atendezap/internal/config"
	"github.com/atendezap/atendezap/internal/conversation"
	"github.com/atendezap/atendezap/internal/evolution"
	"github.com/atendezap/atendezap/internal/identity"
	"github.com/atendezap/atendezap/internal/logger"
	"github.com/atendezap/atendezap/internal/pkg/cache"
	"github.com/atendezap/atendezap/internal/pkg/response"
	"github.com/atendezap/atendezap/internal/security"
	"github.com/atendezap/atendezap/internal/server"
	"github.com/atendezap/atendezap/internal/service/message"
	"github.com/atendezap/atendezap/internal/storage"
	"github.com/atendezap/atendezap/internal/supermemory"
	"github.com/atendezap/atendezap/internal/webhook"
)

func main() {
	cfg := config.Load()

	logr, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logr.Sync()

	response.SetProductionMode(cfg.App.Env == "production")

	logr.Info("iniciando aplicação",
		zap.String("env", cfg.App.Env),
		zap.String("log_level", cfg.Log.Level),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Storage.Driver),
	)

	repos, err := storage.NewRepositories(cfg, logr)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	evolutionClient := evolution.NewClient(
		cfg.Evolution.BaseURL,
		cfg.Evolution.APIKey,
		time.Duration(cfg.Evolution.TimeoutSeconds)*time.Second,
		logr,
	)
	if !evolutionClient.Configured() {
		logr.Warn("gateway não configurado: resolução de identidade via busca de contatos desativada")
	}

	contextCache := cache.New(1024, 10*time.Minute)
	memoryClient := supermemory.NewClient(cfg.Supermemory.BaseURL, cfg.Supermemory.APIKey, logr)
	if !memoryClient.Configured() {
		logr.Warn("armazenamento semântico não configurado: sincronização será pulada")
	}
	syncer := supermemory.NewSyncer(memoryClient, contextCache, logr)

	var trigger *automation.Trigger
	if cfg.Automation.URL != "" {
		trigger = automation.NewTrigger(cfg.Automation.URL, cfg.Automation.Workers, cfg.Automation.QueueSize, logr)
		trigger.Start(ctx)
		defer trigger.Stop()
		logr.Info("automação habilitada",
			zap.Int("workers", cfg.Automation.Workers),
			zap.Int("queue_size", cfg.Automation.QueueSize),
		)
	} else {
		logr.Info("automação desabilitada via configuração")
	}

	resolver := identity.NewResolver(evolutionClient, logr)
	reconciler := conversation.NewReconciler(repos.Conversation, repos.Message, logr)
	messageService := message.NewService(repos.Message, syncer, logr)
	dispatcher := webhook.NewDispatcher(repos.Instance, resolver, reconciler, messageService, trigger, logr)

	gate := security.NewGate(cfg.Webhook.Secret, repos.Instance, logr)
	if cfg.Webhook.Secret == "" {
		logr.Warn("WEBHOOK_SECRET ausente: assinaturas HMAC não serão verificadas")
	}

	router := server.NewRouter(server.Options{
		Env:            cfg.App.Env,
		HealthHandler:  handler.NewHealthHandler(),
		WebhookHandler: handler.NewWebhookHandler(gate, dispatcher, logr),
		RateLimit: middleware.RateLimitOption{
			Enabled:  cfg.RateLimit.Enabled,
			Requests: cfg.RateLimit.Requests,
			Window:   time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			Logger:   logr,
			Limiter:  repos.RateLimiter,
		},
	})

	application := app.New(cfg, logr, router)
	if err := application.Run(ctx); err != nil {
		logr.Fatal("servidor encerrou com erro", zap.Error(err))
	}

	if repos.RedisClient != nil {
		if err := repos.RedisClient.Close(); err != nil {
			logr.Warn("erro ao fechar conexão Redis", zap.Error(err))
		}
	}
}
