package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/padel-live/broadcast"
	"github.com/Dosada05/padel-live/config"
	"github.com/Dosada05/padel-live/db"
	"github.com/Dosada05/padel-live/handlers"
	"github.com/Dosada05/padel-live/repositories"
	api "github.com/Dosada05/padel-live/routes"
	"github.com/Dosada05/padel-live/services"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageDriver),
		slog.Duration("sweep_interval", cfg.SweepInterval),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Инициализация WebSocket Hub
	wsHub := broadcast.NewHub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})
	logger.Info("WebSocket Hub started")

	// События уходят в локальный hub напрямую или через Redis, чтобы их получили клиенты всех инстансов
	publishers := broadcast.MultiPublisher{}
	if cfg.RedisAddr != "" {
		redisClient, err := broadcast.NewRedisClient(ctx, broadcast.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			return err
		}
		defer closeRedis(redisClient, logger)

		relay := broadcast.NewRedisRelay(redisClient, cfg.RedisChannel, wsHub)
		g.Go(func() error {
			return relay.Run(gctx)
		})
		redisPublisher := broadcast.NewRedisPublisher(redisClient, cfg.RedisChannel)
		g.Go(func() error {
			redisPublisher.Run(gctx)
			return nil
		})
		publishers = append(publishers, redisPublisher)
		logger.Info("Redis event relay enabled", slog.String("channel", cfg.RedisChannel))
	} else {
		publishers = append(publishers, wsHub)
	}

	if cfg.RabbitMQURL != "" {
		amqpPublisher := broadcast.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		g.Go(func() error {
			amqpPublisher.Run(gctx)
			return nil
		})
		publishers = append(publishers, amqpPublisher)
		logger.Info("RabbitMQ event publisher enabled", slog.String("exchange", cfg.RabbitMQExchange))
	}

	// Инициализация сервисов
	processor := services.NewTimeoutProcessor(store, publishers, services.ProcessorConfig{
		Interval:        cfg.SweepInterval,
		Tolerance:       cfg.CheckInTolerance,
		BackfillGuard:   cfg.BackfillGuard,
		DefaultTimezone: cfg.DefaultTimezone,
	}, logger.With(slog.String("component", "timeout_processor")), nil)
	courtService := services.NewCourtService(store, publishers, logger, cfg.PreassignAfter, nil)
	checkInService := services.NewCheckInService(store, publishers, logger, nil)
	scheduledMatchService := services.NewScheduledMatchService(store, publishers, logger, nil)
	matchService := services.NewMatchService(store, publishers, logger, nil)
	logger.Info("Services initialized")

	// Запуск планировщика таймаутов: первый проход сразу, затем по таймеру
	g.Go(func() error {
		return processor.Run(gctx)
	})

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		ScheduledMatch: handlers.NewScheduledMatchHandler(scheduledMatchService, checkInService, courtService),
		Court:          handlers.NewCourtHandler(courtService),
		Match:          handlers.NewMatchHandler(matchService),
		Admin:          handlers.NewAdminHandler(processor),
		WebSocket:      handlers.NewWebSocketHandler(wsHub, cfg.CORSAllowedOrigins),
	}, api.Options{
		JWTSecret:      cfg.JWTSecretKey,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Ожидание сигнала завершения или падения одной из горутин
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
		return nil
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.Store, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		store := repositories.NewMemoryStore()
		if cfg.MemorySeedFile != "" {
			seed, err := repositories.LoadMemorySeedFile(cfg.MemorySeedFile)
			if err != nil {
				return nil, nil, err
			}
			if err := seed.Apply(store); err != nil {
				return nil, nil, fmt.Errorf("apply memory seed: %w", err)
			}
		}
		logger.Warn("using in-memory store, data is lost on restart")
		return store, func() {}, nil
	}

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("database connection established")

	if err := db.EnsureSchema(ctx, dbConn); err != nil {
		closeDB(dbConn, logger)
		return nil, nil, err
	}

	return repositories.NewPostgresStore(dbConn), func() { closeDB(dbConn, logger) }, nil
}

func closeDB(dbConn *sql.DB, logger *slog.Logger) {
	if err := dbConn.Close(); err != nil {
		logger.Error("failed to close database connection", slog.Any("error", err))
	} else {
		logger.Info("database connection closed")
	}
}

func closeRedis(client *redis.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Error("failed to close redis client", slog.Any("error", err))
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
