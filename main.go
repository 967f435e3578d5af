package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/Ramsey-B/willow/config"
	"github.com/Ramsey-B/willow/internal/repositories/lineagesettings"
	"github.com/Ramsey-B/willow/pkg/container"
	"github.com/Ramsey-B/willow/pkg/database"
	"github.com/Ramsey-B/willow/pkg/events"
	"github.com/Ramsey-B/willow/pkg/graph"
	"github.com/Ramsey-B/willow/pkg/kafka"
	"github.com/Ramsey-B/willow/pkg/lineage"
	"github.com/Ramsey-B/willow/pkg/middleware"
	"github.com/Ramsey-B/willow/pkg/processor"
	"github.com/Ramsey-B/willow/pkg/redis"
	"github.com/Ramsey-B/willow/pkg/routes/health"
	lineageroutes "github.com/Ramsey-B/willow/pkg/routes/lineage"
	settingsroutes "github.com/Ramsey-B/willow/pkg/routes/lineagesettings"
	"github.com/Ramsey-B/willow/pkg/settings"
	"github.com/Ramsey-B/willow/pkg/startup"
	"github.com/Ramsey-B/willow/pkg/tracing"
	"github.com/Ramsey-B/willow/pkg/tracing/exporters"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Service stopped with error")
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger.With(zap.String("app", cfg.AppName)), nil), nil
}

func run(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	provider, err := exporters.NewTracerProvider(ctx, exporters.Config{
		ServiceName: cfg.AppName,
		Version:     cfg.Version,
		Endpoint:    cfg.OTLPEndpoint,
		Protocol:    cfg.OTLPProtocol,
		Insecure:    cfg.OTLPInsecure,
		Headers:     cfg.OTLPHeaders,
		SampleRatio: cfg.TraceSampleRatio,
	}, logger)
	if err != nil {
		return err
	}
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	var (
		graphClient *graph.Client
		db          *sqlx.DB
		redisClient *redis.Client
		producer    *kafka.Producer
		consumer    *kafka.Consumer
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(startup.FuncDependency{
		Name: "graph",
		StartFunc: func(ctx context.Context) error {
			client, err := graph.NewClient(graph.Config{
				Host:           cfg.GraphDBHost,
				Port:           cfg.GraphDBPort,
				Username:       cfg.GraphDBUser,
				Password:       cfg.GraphDBPassword,
				Database:       cfg.GraphDBName,
				MaxConnections: cfg.GraphDBMaxConnections,
			}, logger)
			if err != nil {
				return err
			}
			if err := client.VerifyConnectivity(ctx); err != nil {
				_ = client.Close(ctx)
				return err
			}
			client.EnsureIndexes(ctx)
			graphClient = client
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			return graphClient.Close(ctx)
		},
	})
	boot.AddDependency(startup.FuncDependency{
		Name: "postgres",
		StartFunc: func(ctx context.Context) error {
			conn, err := database.Open(ctx, database.Config{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				UserName:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			db = conn
			return nil
		},
		StopFunc: func(context.Context) error {
			return db.Close()
		},
	})
	boot.AddDependency(startup.FuncDependency{
		Name:     "migrations",
		Requires: []string{"postgres"},
		StartFunc: func(context.Context) error {
			return database.NewMigrationService(logger, database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
			}).Migrate(db, cfg.DatabaseName)
		},
	})
	if cfg.RedisEnabled {
		boot.AddDependency(startup.FuncDependency{
			Name: "redis",
			StartFunc: func(context.Context) error {
				client, err := redis.NewClient(redis.Config{
					Host:     cfg.RedisHost,
					Port:     cfg.RedisPort,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				}, logger)
				if err != nil {
					return err
				}
				redisClient = client
				return nil
			},
			StopFunc: func(context.Context) error {
				return redisClient.Close()
			},
		})
	}
	boot.AddDependency(startup.FuncDependency{
		Name: "kafka-producer",
		StartFunc: func(context.Context) error {
			producer = kafka.NewProducer(kafka.ProducerConfig{
				Brokers:      cfg.KafkaBrokers,
				Topic:        cfg.KafkaOutputTopic,
				BatchSize:    cfg.KafkaBatchSize,
				BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
				RequiredAcks: cfg.KafkaRequiredAcks,
				Compression:  cfg.KafkaCompression,
			}, logger)
			return nil
		},
		StopFunc: func(context.Context) error {
			return producer.Close()
		},
	})

	if err := boot.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		if err := boot.Stop(stopCtx); err != nil {
			logger.WithError(err).Error("Failed to stop dependencies")
		}
		if err := provider.Shutdown(stopCtx); err != nil {
			logger.WithError(err).Warn("Failed to flush traces")
		}
	}()

	// lineage core
	repo := graph.NewRepository(graphClient, logger)
	var (
		typeDefs  lineage.TypeDefSource = repo
		typeCache processor.TypeCache
		locker    lineageroutes.Locker
	)
	if redisClient != nil {
		cache := redis.NewTypeDefCache(redisClient, repo, cfg.TypeDefCacheTTL, logger)
		typeDefs, typeCache = cache, cache
		locker = redis.NewLocker(redisClient, cfg.RedisLockPrefix)
	}
	hierarchy := lineage.NewTypeHierarchy(typeDefs, logger)
	if err := hierarchy.Reload(ctx); err != nil {
		return err
	}
	go hierarchy.RefreshEvery(ctx, cfg.TypeDefCacheTTL)

	handler := lineage.NewHandler(repo, hierarchy, lineage.PropertyConverter{}, lineage.Config{
		MaxPageSize:            cfg.MaxPageSize,
		LineageClassifications: cfg.LineageClassifications,
	}, logger)
	emitter := events.NewEmitter(producer, logger)

	assets := lineage.NewAssetContextBuilder(handler, logger)
	processes := lineage.NewProcessContextBuilder(handler, assets, logger)
	glossary := lineage.NewGlossaryContextBuilder(handler, assets, emitter.ColumnContextSink(handler.Converter()), logger)
	classifications := lineage.NewClassificationContextBuilder(handler, logger)
	syncService := lineage.NewSyncService(handler, assets, processes, cfg.SyncConcurrency, logger)

	settingsRepo := lineagesettings.NewRepository(db, logger)
	callers := settings.NewResolver(settingsRepo, settings.Defaults{
		SupportedZones:         cfg.SupportedZones,
		LineageClassifications: cfg.LineageClassifications,
	}, logger)

	// notification consumer
	if cfg.KafkaConsumerEnabled {
		proc := processor.NewProcessor(processor.Dependencies{
			Mirror:          repo,
			Types:           hierarchy,
			TypeCache:       typeCache,
			Callers:         callers,
			Elements:        handler,
			Assets:          assets,
			Processes:       processes,
			Glossary:        glossary,
			Classifications: classifications,
			Emitter:         emitter,
		}, logger)
		consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaInputTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, proc.HandleMessage)
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := consumer.Stop(); err != nil {
				logger.WithError(err).Warn("Failed to stop consumer")
			}
		}()
	}

	// http
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker := health.NewChecker(cfg.Version, 2*time.Second)
	checker.AddCheck("graph", graphClient.VerifyConnectivity)
	checker.AddCheck("postgres", db.PingContext)
	if redisClient != nil {
		checker.AddOptionalCheck("redis", redisClient.Ping)
	}
	if consumer != nil {
		checker.AddCheck("kafka", func(context.Context) error {
			if !consumer.Health() {
				return errors.New("consumer is not running")
			}
			return nil
		})
	}
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// route dependencies; reads never publish the assigned element contexts
	di, err := container.New(cfg.AppName, logger)
	if err != nil {
		return err
	}
	if err := container.Instance(di, &lineageroutes.Services{
		Callers:         callers,
		Elements:        handler,
		Converter:       handler.Converter(),
		Assets:          assets,
		Processes:       processes,
		Glossary:        lineage.NewGlossaryContextBuilder(handler, assets, nil, logger),
		Classifications: classifications,
		Sync:            syncService,
		SyncPublisher:   emitter.SyncPublisher(handler.Converter()),
		Locker:          locker,
		SyncLockTTL:     cfg.SyncLockTTL,
	}); err != nil {
		return err
	}
	if err := container.Instance[lineagesettings.LineageSettingsRepository](di, settingsRepo); err != nil {
		return err
	}

	api := e.Group("/api/v1", middleware.Inject(di.GetContainerID()))
	lineageroutes.NewHandler(logger).Register(api.Group("/lineage"))
	settingsroutes.NewHandler(logger).Register(api.Group("/lineage-settings"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serverErr:
		return err
	}

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
