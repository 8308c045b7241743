package config

import (
	"fmt"
	"log"

	"github.com/caarlos0/env/v10"
)

const Version = "0.3.0"

type Config struct {
	App         AppConfig
	DB          DatabaseConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Log         LogConfig
	RateLimit   RateLimitConfig
	Webhook     WebhookConfig
	Evolution   EvolutionConfig
	Supermemory SupermemoryConfig
	Automation  AutomationConfig
}

type AppConfig struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Port    string `env:"PORT" envDefault:"8080"`
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
}

type StorageConfig struct {
	Driver  string `env:"DB_DRIVER" envDefault:"sqlite"`
	DataDir string `env:"DATA_DIR" envDefault:"/app/data"`
}

type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN retorna a string de conexão em formato aceito pelo pgxpool.
func (cfg DatabaseConfig) DSN() string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"debug"`
}

type RateLimitConfig struct {
	Enabled       bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Requests      int  `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	WindowSeconds int  `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	MaxKeys       int  `env:"RATE_LIMIT_MAX_KEYS" envDefault:"10000"`
}

// WebhookConfig cobre o endpoint de ingestão de eventos do gateway.
// Secret assina o corpo bruto via HMAC-SHA256 quando configurado.
type WebhookConfig struct {
	Secret string `env:"WEBHOOK_SECRET" envDefault:""`
}

// EvolutionConfig aponta para o gateway WhatsApp (Evolution API).
type EvolutionConfig struct {
	BaseURL        string `env:"EVOLUTION_API_URL" envDefault:""`
	APIKey         string `env:"EVOLUTION_API_KEY" envDefault:""`
	TimeoutSeconds int    `env:"EVOLUTION_TIMEOUT_SECONDS" envDefault:"10"`
}

// SupermemoryConfig configura o armazenamento semântico secundário (best-effort).
type SupermemoryConfig struct {
	BaseURL string `env:"SUPERMEMORY_API_URL" envDefault:"https://api.supermemory.ai"`
	APIKey  string `env:"SUPERMEMORY_API_KEY" envDefault:""`
}

type AutomationConfig struct {
	URL       string `env:"AI_AGENT_URL" envDefault:""`
	Workers   int    `env:"AI_AGENT_WORKERS" envDefault:"4"`
	QueueSize int    `env:"AI_AGENT_QUEUE_SIZE" envDefault:"256"`
}

// Load carrega as configurações da aplicação.
func Load() Config {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: não foi possível carregar variáveis: %v", err)
	}
	return cfg
}
