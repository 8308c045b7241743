package storage

import (
	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/config"
	"github.com/atendezap/atendezap/internal/pkg/ratelimiter"
	limiter_memory "github.com/atendezap/atendezap/internal/pkg/ratelimiter/memory"
	limiter_redis "github.com/atendezap/atendezap/internal/pkg/ratelimiter/redis"
	"github.com/atendezap/atendezap/internal/storage/memory"
	"github.com/atendezap/atendezap/internal/storage/postgres"
	storage_redis "github.com/atendezap/atendezap/internal/storage/redis"
	"github.com/atendezap/atendezap/internal/storage/sqlite"
)

type Repositories struct {
	Instance     InstanceRepository
	Conversation ConversationRepository
	Message      MessageRepository
	RedisClient  *storage_redis.Client // nil quando Redis está desabilitado
	RateLimiter  ratelimiter.Limiter
}

// NewRepositories monta o conjunto de repositórios conforme o driver
// configurado. O limiter acompanha o Redis: com Redis habilitado o limite é
// global entre réplicas; sem ele, cada réplica conta sozinha (advisory).
func NewRepositories(cfg config.Config, log *zap.Logger) (*Repositories, error) {
	log.Info("inicializando repositórios",
		zap.String("driver", cfg.Storage.Driver),
	)

	var (
		rateLimiter ratelimiter.Limiter
		storeRedis  *storage_redis.Client
		err         error
	)

	if cfg.Redis.Enabled {
		log.Info("inicializando Redis...")
		storeRedis, err = storage_redis.New(cfg.Redis, log)
		if err != nil {
			log.Error("erro ao conectar com Redis", zap.Error(err))
			return nil, err
		}
		rateLimiter = limiter_redis.NewLimiter(storeRedis.RDB())
		log.Info("Redis conectado, limiter distribuído configurado")
	} else {
		log.Info("usando limiter em memória (Redis desabilitado)")
		rateLimiter = limiter_memory.NewLimiterWithMaxKeys(cfg.RateLimit.MaxKeys)
	}

	switch cfg.Storage.Driver {
	case "sqlite", "":
		log.Debug("criando conexão com SQLite")
		db, err := sqlite.New(cfg.Storage.DataDir, log)
		if err != nil {
			log.Error("erro ao conectar com SQLite", zap.Error(err))
			return nil, err
		}

		log.Info("repositórios SQLite criados com sucesso", zap.String("data_dir", cfg.Storage.DataDir))
		return &Repositories{
			Instance:     sqlite.NewInstanceRepository(db),
			Conversation: sqlite.NewConversationRepository(db),
			Message:      sqlite.NewMessageRepository(db),
			RedisClient:  storeRedis,
			RateLimiter:  rateLimiter,
		}, nil

	case "postgres":
		log.Debug("criando conexão com PostgreSQL")
		db, err := postgres.New(cfg.DB, log)
		if err != nil {
			log.Error("erro ao conectar com PostgreSQL", zap.Error(err))
			return nil, err
		}

		log.Info("repositórios PostgreSQL criados com sucesso")
		return &Repositories{
			Instance:     postgres.NewInstanceRepository(db),
			Conversation: postgres.NewConversationRepository(db),
			Message:      postgres.NewMessageRepository(db),
			RedisClient:  storeRedis,
			RateLimiter:  rateLimiter,
		}, nil

	case "memory":
		// sem persistência; útil para desenvolvimento e demonstrações
		log.Warn("usando repositórios em memória: os dados não sobrevivem ao processo")
		store := memory.NewStore()
		return &Repositories{
			Instance:     store.Instances(),
			Conversation: store.Conversations(),
			Message:      store.Messages(),
			RedisClient:  storeRedis,
			RateLimiter:  rateLimiter,
		}, nil

	default:
		log.Error("driver de storage desconhecido",
			zap.String("driver", cfg.Storage.Driver),
		)
		return nil, &ErrUnknownDriver{Driver: cfg.Storage.Driver}
	}
}

type ErrUnknownDriver struct {
	Driver string
}

func (e *ErrUnknownDriver) Error() string {
	return "storage: driver desconhecido: " + e.Driver
}
