package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/padel-live/timezone"
	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	StorageDriver string
	DatabaseURL   string
	// MemorySeedFile - JSON с турнирами, парами и кортами для STORAGE_DRIVER=memory.
	MemorySeedFile string
	JWTSecretKey   string
	ServerPort     int
	LogLevel       string

	SweepInterval    time.Duration
	CheckInTolerance time.Duration
	BackfillGuard    time.Duration
	DefaultTimezone  string
	PreassignAfter   time.Duration

	// Пустой RedisAddr отключает межинстансный релей событий.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	// Пустой RabbitMQURL отключает публикацию в RabbitMQ.
	RabbitMQURL      string
	RabbitMQExchange string

	CORSAllowedOrigins []string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	cfg := &Config{
		StorageDriver:    getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		MemorySeedFile:   os.Getenv("MEMORY_SEED_FILE"),
		JWTSecretKey:     os.Getenv("JWT_SECRET_KEY"),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DefaultTimezone:  getEnv("DEFAULT_TIMEZONE", "America/Santiago"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisChannel:     getEnv("REDIS_CHANNEL", "tournament-events"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "tournament.events"),
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case StorageDriverMemory:
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMemory, cfg.StorageDriver)
	}

	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{key: "SWEEP_INTERVAL", def: "60s", dst: &cfg.SweepInterval},
		{key: "CHECKIN_TOLERANCE", def: "15m", dst: &cfg.CheckInTolerance},
		{key: "BACKFILL_GUARD", def: "2h", dst: &cfg.BackfillGuard},
		{key: "PREASSIGN_AFTER", def: "40m", dst: &cfg.PreassignAfter},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s environment variable: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", d.key, v)
		}
		*d.dst = v
	}

	if _, err := timezone.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE environment variable: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, fmt.Errorf("invalid REDIS_DB environment variable: %q", os.Getenv("REDIS_DB"))
	}
	cfg.RedisDB = redisDB

	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
