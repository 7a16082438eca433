package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"

	"gitlab.com/gearbroker.net/internal/adapter/crypto"
	"gitlab.com/gearbroker.net/internal/adapter/logging"
	"gitlab.com/gearbroker.net/internal/adapter/memory"
	"gitlab.com/gearbroker.net/internal/adapter/postgres/jobrepository"
	"gitlab.com/gearbroker.net/internal/adapter/redis/workerport"
	"gitlab.com/gearbroker.net/internal/config"
	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/core/ports/secondary"
	"gitlab.com/gearbroker.net/internal/core/services/broker"
	"gitlab.com/gearbroker.net/internal/core/services/job"
	"gitlab.com/gearbroker.net/internal/core/services/worker"
	"gitlab.com/gearbroker.net/internal/events"
	logger2 "gitlab.com/gearbroker.net/internal/global/logger"
	"gitlab.com/gearbroker.net/internal/handlers"
	http2 "gitlab.com/gearbroker.net/internal/http"
	"gitlab.com/gearbroker.net/internal/schedulerengine"
	"gitlab.com/gearbroker.net/internal/tcp"
	"gitlab.com/gearbroker.net/internal/websocket"
)

func main() {
	env := flag.String("env", "", "load <env>.env before reading the configuration")
	host := flag.String("host", "", "broker listen host, overrides BROKER_HOST")
	port := flag.Int("port", 0, "broker listen port, overrides BROKER_PORT")
	mintToken := flag.String("mint-token", "", "print an admin API token for the given subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of a minted token, 0 for none")
	flag.Parse()

	if err := InitReader(*env); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sysCfg := config.NewSystemConfig()
	if *host != "" {
		sysCfg.BrokerConfig.Host = *host
	}
	if *port != 0 {
		sysCfg.BrokerConfig.Port = *port
	}

	if *mintToken != "" {
		token, err := crypto.NewJWTService(sysCfg.JwtConfig).GenerateTokenHMAC(context.Background(), *mintToken, *tokenTTL)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	logger := logger2.Init(logLevel(sysCfg))
	defer func() { _ = logger.Sync() }()

	if err := run(sysCfg, logger); err != nil {
		logger.Error("Broker exited with error", "error", err)
		os.Exit(1)
	}
}

func run(sysCfg *config.AppConfig, logger *logging.ZapLogger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger2.Info("Starting job broker", "address", sysCfg.BrokerConfig.Address())

	// snapshots are stale after three missed refreshes
	staleAfter := 3 * sysCfg.ScheduleSvcCfg.SnapshotInterval
	if staleAfter <= 0 {
		staleAfter = time.Minute
	}

	// SECONDARY PORTS
	workerRepo, closeRedis, err := setupWorkerRepository(ctx, sysCfg.RedisConfig, staleAfter, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	historyRepo, closeDB, err := setupHistoryRepository(ctx, sysCfg.PostgresConfig, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	// services
	bus := events.NewBus(sysCfg.BrokerConfig.EventBuffer, logger.With("component", "events"))
	brokerSvc := broker.NewBroker(logger.With("component", "broker"),
		broker.WithEventPublisher(bus),
		broker.WithRecentJobs(sysCfg.BrokerConfig.RecentJobs),
	)
	historySvc := job.NewJobHistoryService(historyRepo, logger)
	snapshotSvc := worker.NewWorkerSnapshotService(brokerSvc, workerRepo, staleAfter, logger)
	hub := websocket.NewHub(logger)

	bus.Subscribe(historySvc.Subscriber)
	bus.Subscribe(hub.Broadcast)
	go bus.Run(ctx)

	// servers
	tcpServer := tcp.NewTCPServer(brokerSvc, logger.With("component", "tcp"),
		tcp.WithAddress(sysCfg.BrokerConfig.Address()),
		tcp.WithMaxPacketSize(sysCfg.BrokerConfig.MaxPacketSize),
	)
	if err := tcpServer.Start(); err != nil {
		return err
	}

	var httpServer *http2.Server
	if sysCfg.HttpConfig.Port > 0 {
		serviceProvider := http2.NewServiceProvider(brokerSvc, snapshotSvc, historySvc, hub)
		httpServer = http2.NewServer(sysCfg.HttpConfig.Port, sysCfg.HttpConfig.ServiceName, *serviceProvider,
			handlers.NewMiddlewareProvider(tokenService(sysCfg.JwtConfig)), logger.With("component", "http"))
		if err := httpServer.Init(); err != nil {
			return err
		}
		if err := httpServer.Start(ctx); err != nil {
			return err
		}
	}

	schedulerSvc := schedulerengine.NewSchedulerEngine(sysCfg.ScheduleSvcCfg, snapshotSvc, historySvc, logger)
	if err := schedulerSvc.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down broker...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	var result error
	if err := schedulerSvc.Stop(); err != nil {
		result = multierror.Append(result, err)
	}
	if httpServer != nil {
		if err := httpServer.Stop(shutdownCtx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := tcpServer.Stop(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}

	logger.Info("successfully shutdown broker")
	return result
}

// tokenService is nil when no secret is configured, which leaves the API open
func tokenService(cfg *config.JwtConfig) primary.TokenService {
	if !cfg.Enabled() {
		return nil
	}
	return crypto.NewJWTService(cfg)
}

func logLevel(cfg *config.AppConfig) logging.Level {
	switch {
	case cfg.SilentMode:
		return logging.LevelSilent
	case cfg.DebugMode:
		return logging.LevelDebug
	default:
		return logging.LevelInfo
	}
}

// setupWorkerRepository uses Redis when configured, process memory otherwise
func setupWorkerRepository(ctx context.Context, cfg *config.RedisConfig, expiration time.Duration, logger *logging.ZapLogger) (secondary.WorkerRepository, func(), error) {
	if !cfg.Enabled() {
		return memory.NewWorkerRepository(), func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Url,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Url, err)
	}

	closeFn := func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close redis client", "error", err)
		}
	}
	return workerport.NewWorkerRepository(redisClient, expiration, logger), closeFn, nil
}

// setupHistoryRepository opens the configured job history store
func setupHistoryRepository(ctx context.Context, cfg *config.PostgresConfig, logger *logging.ZapLogger) (secondary.JobHistoryRepository, func(), error) {
	switch cfg.Driver {
	case config.HistoryDriverMemory:
		return memory.NewJobHistoryRepository(), func() {}, nil
	case config.HistoryDriverPostgres, config.HistoryDriverSqlite:
		repo, err := jobrepository.Open(ctx, cfg.Driver, cfg.Url, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := repo.Close(); err != nil {
				logger.Error("Failed to close database", "error", err)
			}
		}
		return repo, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown history driver %q", cfg.Driver)
	}
}

// InitReader loads <env>.env when an environment is named, and .env when present otherwise
func InitReader(environment string) error {
	if environment == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(environment + ".env"); err != nil {
		return fmt.Errorf("error loading %s.env file: %w", environment, err)
	}
	return nil
}
