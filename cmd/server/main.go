// Command server runs the fundraising donor matching and segmentation API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/config"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/internal/handlers"
	donorrepo "github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/internal/repositories/donor"
	duplicaterepo "github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/internal/repositories/duplicatecandidate"
	importrepo "github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/internal/repositories/importjob"
	segmentrepo "github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/internal/repositories/segment"
	donorsvc "github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/internal/services/donor"
	duplicatesvc "github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/internal/services/duplicate"
	importersvc "github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/internal/services/importer"
	segmentsvc "github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/internal/services/segment"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/database"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/events"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/graph"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/health"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/kafka"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/matching"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/middleware"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/redis"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/segments"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/startup"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing/exporters"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server exited with error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg := &config.Config{}
	if err := ectoenv.BindEnv(cfg); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := initTracing(ctx, cfg)
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer shutdown(context.Background())
	}

	var (
		db          database.DB
		sqlxDB      *sqlx.DB
		redisClient *redis.Client
		graphClient *graph.Client
		producer    *kafka.Producer
	)

	boot := startup.New(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&dependency{
		name: "postgres",
		start: func(ctx context.Context) error {
			dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)
			conn, err := sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
			if err != nil {
				return err
			}
			conn.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
			conn.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
			conn.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
			sqlxDB = conn
			db = database.NewDatabaseInstance(conn, logger)
			return migrateDatabase(cfg, logger, conn)
		},
		stop: func(ctx context.Context) error {
			if sqlxDB != nil {
				return sqlxDB.Close()
			}
			return nil
		},
	})
	boot.AddDependency(&dependency{
		name: "redis",
		start: func(ctx context.Context) error {
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
		stop: func(ctx context.Context) error {
			if redisClient != nil {
				return redisClient.Close()
			}
			return nil
		},
	})
	boot.AddDependency(&dependency{
		name: "kafka",
		start: func(ctx context.Context) error {
			producer = kafka.NewProducer(kafka.ProducerConfig{
				Brokers:      cfg.KafkaBrokers,
				BatchSize:    cfg.KafkaBatchSize,
				BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
				RequiredAcks: cfg.KafkaRequiredAcks,
				Compression:  cfg.KafkaCompression,
			}, logger)
			return nil
		},
		stop: func(ctx context.Context) error {
			if producer != nil {
				return producer.Close()
			}
			return nil
		},
	})
	if cfg.GraphDBEnabled {
		boot.AddDependency(&dependency{
			name: "graph",
			start: func(ctx context.Context) error {
				client, err := graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
				}, logger)
				if err != nil {
					return err
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					return err
				}
				graphClient = client
				return nil
			},
			stop: func(ctx context.Context) error {
				if graphClient != nil {
					return graphClient.Close(ctx)
				}
				return nil
			},
		})
	}

	if err := boot.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := boot.Stop(stopCtx); err != nil {
			logger.WithError(err).Error("Failed to stop dependencies cleanly")
		}
	}()

	// Repositories
	donorRepo := donorrepo.NewRepository(db, logger)
	segmentRepo := segmentrepo.NewRepository(db, logger)
	duplicateRepo := duplicaterepo.NewRepository(db, logger)
	importRepo := importrepo.NewRepository(db, logger)

	// Shared infrastructure
	emitter := events.NewEmitter(producer, events.Topics{
		Donor:     cfg.KafkaDonorTopic,
		Segment:   cfg.KafkaSegmentTopic,
		Duplicate: cfg.KafkaDuplicateTopic,
		Import:    cfg.KafkaImportTopic,
	}, logger)
	countCache := redis.NewCountCache(redisClient, cfg.SegmentCountCacheTTL, logger)
	locker := redis.NewLocker(redisClient, "lock:")

	var graphDonors donorGraph = noopGraph{}
	if graphClient != nil {
		graphDonors = graph.NewDonorService(graphClient, logger)
	}

	engine := matching.NewEngine(map[string]float64{
		matching.StrategyExactEmail:       cfg.DedupeWeightExactEmail,
		matching.StrategyExactPhone:       cfg.DedupeWeightExactPhone,
		matching.StrategyNameAddress:      cfg.DedupeWeightNameAddress,
		matching.StrategyNamePhone:        cfg.DedupeWeightNamePhone,
		matching.StrategyFuzzyName:        cfg.DedupeWeightFuzzyName,
		matching.StrategyStudentName:      cfg.DedupeWeightStudentName,
		matching.StrategySchoolConnection: cfg.DedupeWeightSchoolConn,
	}, matching.Thresholds{
		High:   cfg.DedupeHighThreshold,
		Medium: cfg.DedupeMediumThreshold,
		Low:    cfg.DedupeLowThreshold,
	})

	// Services
	donorService := donorsvc.NewService(donorRepo, duplicateRepo, engine, emitter, graphDonors, countCache, donorsvc.Options{
		CandidateLimit:        cfg.DedupeCandidateLimit,
		MaxResults:            cfg.DedupeMaxResults,
		BlockOnHighConfidence: cfg.DedupeBlockOnHighConfidence,
	}, logger)
	segmentService := segmentsvc.NewService(segmentRepo, donorRepo, segments.NewEvaluator(), countCache, emitter, segmentsvc.Options{
		PreviewLimit: cfg.SegmentPreviewLimit,
	}, logger)
	duplicateService := duplicatesvc.NewService(duplicateRepo, graphDonors, emitter, logger)
	importService := importersvc.NewService(importRepo, donorService, locker, emitter, importersvc.Options{
		LockTTL:    cfg.ImportLockTTL,
		MaxRows:    cfg.ImportMaxRows,
		SkipBand:   cfg.ImportSkipBand,
		ErrorLimit: cfg.ImportErrorLimit,
	}, logger)

	// Donor events invalidate cached segment counts for the tenant.
	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaDonorTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, func(ctx context.Context, msg *kafka.IncomingMessage) error {
			tenantID := msg.Headers["tenant_id"]
			if tenantID == "" {
				return nil
			}
			countCache.InvalidateTenant(ctx, tenantID)
			return nil
		})
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("starting donor events consumer: %w", err)
		}
		defer consumer.Stop()
	}

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker := health.NewChecker(db, redisClient.Redis(), graphClient, os.Getenv("APP_VERSION"))
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if cfg.AuthEnabled {
		api.Use(middleware.Authentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID))
	}

	donorsGroup := api.Group("/donors")
	handlers.NewDonorHandler(donorService, logger).Register(donorsGroup)
	handlers.NewRelationshipHandler(graphDonors, logger).Register(donorsGroup)
	handlers.NewSegmentHandler(segmentService, logger).Register(api.Group("/segments"))
	handlers.NewDuplicateHandler(duplicateService, logger).Register(api.Group("/duplicates"))
	handlers.NewImportHandler(importService, cfg.ImportMaxFileMB, logger).Register(api.Group("/imports"))
	handlers.NewFieldHandler().Register(api.Group("/fields"))

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
		if err := e.Start(":" + strconv.Itoa(cfg.Port)); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	checker.SetReady(true)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

func initTracing(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: cfg.TracingOTLPInsecure,
	})
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))
	return provider.Shutdown, nil
}

func migrateDatabase(cfg *config.Config, logger ectologger.Logger, conn *sqlx.DB) error {
	driver, err := postgres.WithInstance(conn.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return migrations.Migrate(cfg.DatabaseName, driver)
}

// dependency adapts closures to the startup.Dependency interface
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string          { return d.name }
func (d *dependency) DependsOn() []string      { return d.dependsOn }
func (d *dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}
func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

// donorGraph is the graph surface the services share
type donorGraph interface {
	Upsert(ctx context.Context, donor *models.Donor) error
	Delete(ctx context.Context, tenantID, donorID string) error
	Relate(ctx context.Context, tenantID, fromID, toID, relType string) error
	Related(ctx context.Context, tenantID, donorID string) ([]graph.RelatedDonor, error)
	MergeInto(ctx context.Context, tenantID, duplicateID, survivorID string) error
}

// noopGraph stands in when the graph database is disabled
type noopGraph struct{}

func (noopGraph) Upsert(context.Context, *models.Donor) error            { return nil }
func (noopGraph) Delete(context.Context, string, string) error          { return nil }
func (noopGraph) Relate(context.Context, string, string, string, string) error { return nil }
func (noopGraph) MergeInto(context.Context, string, string, string) error      { return nil }
func (noopGraph) Related(context.Context, string, string) ([]graph.RelatedDonor, error) {
	return nil, nil
}
