package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cart-monitor-service/common/logger"
	"cart-monitor-service/common/middleware"
	"cart-monitor-service/config"
	"cart-monitor-service/controllers"
	"cart-monitor-service/database"
	"cart-monitor-service/decoder"
	"cart-monitor-service/metrics"
	awspkg "cart-monitor-service/pkg/aws"
	"cart-monitor-service/routes"
	"cart-monitor-service/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "cart-monitor-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("Config load failed", zap.Error(err))
	}

	// CloudWatch (non-fatal)
	var (
		sink       io.Writer
		awsMetrics *awspkg.MetricsClient
		cwErr      error
	)
	if cfg.CloudWatchEnabled {
		awsCfg, err := awspkg.LoadAWSConfig(context.Background(), cfg.AWSEndpoint)
		if err != nil {
			cwErr = err
		} else {
			awsMetrics = awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, true)
			cw, err := awspkg.NewCloudWatchLogsClient(context.Background(), awsCfg, cfg.CloudWatchLogGroup, serviceName)
			if err != nil {
				cwErr = err
			} else {
				sink = cw
			}
		}
	}

	log, err := logger.InitializeWithWriter(cfg.Environment, sink)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()
	if cwErr != nil {
		log.Warn("CloudWatch init failed (non-fatal)", zap.Error(cwErr))
	}

	// Cache
	redisClient, err := database.NewRedisClient(context.Background(), cfg.RedisURL, log)
	if err != nil {
		log.Fatal("Redis connection failed", zap.Error(err))
	}
	scanner := database.NewKeyspaceScanner(redisClient, cfg.ScanPattern, cfg.ScanPageSize, log)

	cartDecoder, err := decoder.New(cfg.PayloadFormat)
	if err != nil {
		log.Fatal("Cart decoder init failed", zap.Error(err))
	}

	// Catalog
	catalog := services.NewProductClient(cfg.CatalogURL, cfg.CatalogTimeout, cfg.CatalogRPS, cfg.CatalogBurst)
	enricher := services.NewProductEnricher(catalog, cfg.CatalogTimeout, cfg.EnrichConcurrency, log)

	// Bus, built on first publish
	bus := services.NewLazyBus(newBusFactory(cfg, log))
	publisher := services.NewEventPublisher(bus, cfg.BusDestination, cfg.PublishTimeout, log)

	// Metrics
	collector := metrics.NewCollector(cfg.MetricsNamespace, log)
	observers := []services.PassObserver{collector}
	if awsMetrics != nil {
		observers = append(observers, metrics.NewCloudWatchObserver(awsMetrics, serviceName, log))
	}

	monitor := services.NewMonitorService(cfg, services.MonitorDeps{
		Scanner:   scanner,
		Decoder:   cartDecoder,
		Enricher:  enricher,
		Publisher: publisher,
		Observers: observers,
	}, log)

	// Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Origins(),
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics(collector))

	routes.RegisterRoutes(r, controllers.NewMonitorController(monitor, log), collector.Handler(),
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })

	// Scheduler
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	defer schedulerCancel()
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		services.NewScheduler(monitor, cfg.MonitorInterval, log).Run(schedulerCtx)
	}()

	// HTTP server
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info("Cart monitor service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	schedulerCancel()
	<-schedulerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	if err := bus.Close(); err != nil {
		log.Error("Message bus close error", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		log.Error("Redis close error", zap.Error(err))
	}

	log.Info("Cart monitor service stopped gracefully")
}
