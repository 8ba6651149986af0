package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/contentforge/api/internal/retry"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	LLM       LLMConfig
	R2        R2Config
	Retry     RetryConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	JSONLogs bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Path string
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
	Disabled   bool
}

type RateLimitConfig struct {
	GeneratePerHour      int
	GenerateAsyncPerHour int
}

type LLMConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float64
	MaxTokens         int
	RequestsPerMinute int
	Timeout           time.Duration
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// Enabled reports whether archiving to R2 is configured.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != ""
}

type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
}

// Policy converts the retry section into a retry.Config.
func (c RetryConfig) Policy() retry.Config {
	return retry.Config{
		MaxAttempts:     c.MaxAttempts,
		InitialDelay:    c.InitialDelay,
		MaxDelay:        c.MaxDelay,
		ExponentialBase: c.ExponentialBase,
	}
}

type WorkerConfig struct {
	Concurrency int
	Queue       string
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("LLM_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.json_logs", "JSON_LOGS")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("database.path", "DATABASE_PATH")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("jwt.disabled", "JWT_DISABLED")
	_ = viper.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = viper.BindEnv("ratelimit.generate_async_per_hour", "RATELIMIT_GENERATE_ASYNC_PER_HOUR")
	_ = viper.BindEnv("llm.api_key", "LLM_API_KEY")
	_ = viper.BindEnv("llm.base_url", "LLM_BASE_URL")
	_ = viper.BindEnv("llm.model", "LLM_MODEL")
	_ = viper.BindEnv("llm.temperature", "LLM_TEMPERATURE")
	_ = viper.BindEnv("llm.max_tokens", "LLM_MAX_TOKENS")
	_ = viper.BindEnv("llm.requests_per_minute", "LLM_REQUESTS_PER_MINUTE")
	_ = viper.BindEnv("llm.timeout", "LLM_TIMEOUT")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("retry.max_attempts", "RETRY_MAX_ATTEMPTS")
	_ = viper.BindEnv("retry.initial_delay", "RETRY_INITIAL_DELAY")
	_ = viper.BindEnv("retry.max_delay", "RETRY_MAX_DELAY")
	_ = viper.BindEnv("retry.exponential_base", "RETRY_EXPONENTIAL_BASE")
	_ = viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = viper.BindEnv("worker.queue", "WORKER_QUEUE")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.json_logs", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("database.path", "contentforge.db")
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("jwt.disabled", false)
	viper.SetDefault("ratelimit.generate_per_hour", 10)
	viper.SetDefault("ratelimit.generate_async_per_hour", 30)

	// LLM defaults (OpenAI-compatible endpoint)
	viper.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("llm.model", "llama-3.3-70b-versatile")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.requests_per_minute", 30)
	viper.SetDefault("llm.timeout", 120*time.Second)

	// Step retry defaults match retry.LLMConfig
	viper.SetDefault("retry.max_attempts", retry.LLMConfig.MaxAttempts)
	viper.SetDefault("retry.initial_delay", retry.LLMConfig.InitialDelay)
	viper.SetDefault("retry.max_delay", retry.LLMConfig.MaxDelay)
	viper.SetDefault("retry.exponential_base", retry.LLMConfig.ExponentialBase)

	viper.SetDefault("worker.concurrency", 4)
	viper.SetDefault("worker.queue", "content")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
			JSONLogs: viper.GetBool("server.json_logs"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
			Disabled:   viper.GetBool("jwt.disabled"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour:      viper.GetInt("ratelimit.generate_per_hour"),
			GenerateAsyncPerHour: viper.GetInt("ratelimit.generate_async_per_hour"),
		},
		LLM: LLMConfig{
			APIKey:            viper.GetString("llm.api_key"),
			BaseURL:           viper.GetString("llm.base_url"),
			Model:             viper.GetString("llm.model"),
			Temperature:       viper.GetFloat64("llm.temperature"),
			MaxTokens:         viper.GetInt("llm.max_tokens"),
			RequestsPerMinute: viper.GetInt("llm.requests_per_minute"),
			Timeout:           viper.GetDuration("llm.timeout"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Retry: RetryConfig{
			MaxAttempts:     viper.GetInt("retry.max_attempts"),
			InitialDelay:    viper.GetDuration("retry.initial_delay"),
			MaxDelay:        viper.GetDuration("retry.max_delay"),
			ExponentialBase: viper.GetFloat64("retry.exponential_base"),
		},
		Worker: WorkerConfig{
			Concurrency: viper.GetInt("worker.concurrency"),
			Queue:       viper.GetString("worker.queue"),
		},
	}

	return cfg, nil
}
