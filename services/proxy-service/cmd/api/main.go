package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/scp-mobile/platform/shared/pkg/kafka"
	"github.com/scp-mobile/platform/shared/pkg/logging"
	"github.com/scp-mobile/platform/shared/pkg/metrics"
	"github.com/scp-mobile/platform/shared/pkg/middleware"
	"github.com/scp-mobile/platform/shared/pkg/mongodb"
	"github.com/scp-mobile/platform/shared/pkg/tracing"

	"github.com/scp-mobile/platform/services/proxy-service/internal/api/handlers"
	"github.com/scp-mobile/platform/services/proxy-service/internal/application"
	"github.com/scp-mobile/platform/services/proxy-service/internal/domain"
	"github.com/scp-mobile/platform/services/proxy-service/internal/infrastructure/auth"
	mongoRepo "github.com/scp-mobile/platform/services/proxy-service/internal/infrastructure/mongodb"
	"github.com/scp-mobile/platform/services/proxy-service/internal/infrastructure/telemetry"
	"github.com/scp-mobile/platform/services/proxy-service/internal/infrastructure/vendor"
)

const (
	serviceName    = "proxy-service"
	serviceVersion = "1.4.0"
	appName        = "SCP Mobile"
)

type mongoClient interface {
	Database() *mongo.Database
	Close(context.Context) error
	HealthCheck(context.Context) error
}

type producer interface {
	kafka.EventPublisher
	Close() error
}

type server interface {
	ListenAndServe() error
	Shutdown(context.Context) error
}

type tracerProvider interface {
	Shutdown(context.Context) error
}

var (
	newMongoClient func(context.Context, *mongodb.Config) (mongoClient, error) = func(ctx context.Context, config *mongodb.Config) (mongoClient, error) {
		return mongodb.NewClient(ctx, config)
	}
	newAuditRepository func(*mongo.Database) domain.AuditRepository = func(db *mongo.Database) domain.AuditRepository {
		return mongoRepo.NewAuditRepository(db)
	}
	newKafkaProducer func(*kafka.Config) producer = func(config *kafka.Config) producer {
		return kafka.NewProducer(config)
	}
	newVendorClient func(*vendor.Config, *metrics.Metrics, *logging.Logger) domain.VendorAPI = func(config *vendor.Config, m *metrics.Metrics, logger *logging.Logger) domain.VendorAPI {
		return vendor.NewClient(config, m, logger)
	}
	newTokenIssuer func(*auth.Config) domain.TokenIssuer = func(config *auth.Config) domain.TokenIssuer {
		return auth.NewPasswordGrant(config)
	}
	newRouter func() *gin.Engine = func() *gin.Engine {
		return gin.New()
	}
	setupMiddleware   func(*gin.Engine, *middleware.Config) = middleware.Setup
	initializeTracing func(context.Context, *tracing.Config) (tracerProvider, error) = func(ctx context.Context, config *tracing.Config) (tracerProvider, error) {
		return tracing.Initialize(ctx, config)
	}
	newServer func(addr string, handler http.Handler) server = func(addr string, handler http.Handler) server {
		return &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		}
	}
)

func main() {
	_ = godotenv.Load()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	if err := run(context.Background(), quit); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, quit <-chan os.Signal) error {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logConfig.Version = serviceVersion
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting proxy-service API")

	config := loadConfig()
	if err := config.validate(); err != nil {
		logger.WithError(err).Error("Invalid configuration")
		return err
	}

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.ServiceVersion = serviceVersion
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "false") == "true"

	tp, err := initializeTracing(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint, "enabled", tracingConfig.Enabled)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))
	logger.Info("Metrics initialized")

	// Request audit goes to MongoDB when configured
	var (
		auditRepo domain.AuditRepository = application.NopAuditRepository{}
		ready                            = func() error { return nil }
	)
	if config.MongoDB != nil {
		client, err := newMongoClient(ctx, config.MongoDB)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to MongoDB")
			return err
		}
		defer client.Close(context.Background())
		auditRepo = newAuditRepository(client.Database())
		ready = func() error { return client.HealthCheck(ctx) }
		logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)
	}

	// Telemetry sinks
	app := telemetry.App{Name: appName, Version: serviceVersion}
	notifier := telemetry.MultiNotifier{}
	if config.TelemetryWebhookURL != "" {
		notifier = append(notifier, telemetry.NewWebhookNotifier(config.TelemetryWebhookURL, app, m, logger))
	}
	if config.Kafka != nil {
		kafkaProducer := newKafkaProducer(config.Kafka)
		defer kafkaProducer.Close()
		publisher := kafka.NewInstrumentedProducer(kafkaProducer, m, logger)
		notifier = append(notifier, telemetry.NewKafkaNotifier(publisher, app, m, logger))
		logger.Info("Kafka telemetry enabled", "brokers", config.Kafka.Brokers)
	}

	proxyService := application.NewProxyService(
		newVendorClient(config.Vendor, m, logger),
		newTokenIssuer(config.Auth),
		notifier,
		auditRepo,
		m,
		logger,
	)
	proxyHandler := handlers.NewProxyHandler(proxyService, logger)

	router := newRouter()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middlewareConfig.AllowedOrigins = config.AllowedOrigins
	setupMiddleware(router, middlewareConfig)

	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.TracingMiddleware(middleware.DefaultTracingConfig(serviceName)))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, ready))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	proxyHandler.RegisterRoutes(router.Group("/api"))

	srv := newServer(config.ServerAddr, router)

	go func() {
		logger.Info("Server started", "addr", config.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server error")
		}
	}()

	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
	return nil
}

// Config holds application configuration. Optional backends are nil when
// not configured.
type Config struct {
	ServerAddr          string
	AllowedOrigins      []string
	Vendor              *vendor.Config
	Auth                *auth.Config
	TelemetryWebhookURL string
	MongoDB             *mongodb.Config
	Kafka               *kafka.Config
}

func loadConfig() *Config {
	vendorConfig := vendor.DefaultConfig(getEnv("VENDOR_API_BASE_URL", ""))
	vendorConfig.LocationSuffix = getEnv("LOCATION_SUFFIX", vendorConfig.LocationSuffix)

	config := &Config{
		ServerAddr:     getEnv("SERVER_ADDR", ":8080"),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		Vendor:         vendorConfig,
		Auth: &auth.Config{
			TokenURL:       getEnv("AUTH_TOKEN_URL", ""),
			ClientID:       getEnv("AUTH_CLIENT_ID", "omnicomponent.1.0.0"),
			ClientSecret:   os.Getenv("AUTH_CLIENT_SECRET"),
			Password:       os.Getenv("AUTH_PASSWORD"),
			UsernamePrefix: getEnv("AUTH_USERNAME_PREFIX", "rndadmin@"),
		},
		TelemetryWebhookURL: getEnv("TELEMETRY_WEBHOOK_URL", ""),
	}

	if uri := getEnv("MONGODB_URI", ""); uri != "" {
		mongoConfig := mongodb.DefaultConfig()
		mongoConfig.URI = uri
		mongoConfig.Database = getEnv("MONGODB_DATABASE", "scp")
		config.MongoDB = mongoConfig
	}

	if brokers := splitList(getEnv("KAFKA_BROKERS", "")); len(brokers) > 0 {
		kafkaConfig := kafka.DefaultConfig()
		kafkaConfig.Brokers = brokers
		kafkaConfig.ClientID = serviceName
		config.Kafka = kafkaConfig
	}
	return config
}

func (c *Config) validate() error {
	var missing []string
	if c.Vendor.BaseURL == "" {
		missing = append(missing, "VENDOR_API_BASE_URL")
	}
	if c.Auth.TokenURL == "" {
		missing = append(missing, "AUTH_TOKEN_URL")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
