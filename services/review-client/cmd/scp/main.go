package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/scp-mobile/platform/shared/pkg/logging"

	"github.com/scp-mobile/platform/services/review-client/internal/application"
	"github.com/scp-mobile/platform/services/review-client/internal/infrastructure/ingest"
	"github.com/scp-mobile/platform/services/review-client/internal/infrastructure/proxyclient"
)

const (
	appName    = "scp"
	appVersion = "1.4.0"
)

// Config holds CLI configuration
type Config struct {
	ProxyURL       string
	Org            string
	Store          string
	SettleDelay    time.Duration
	MaxConcurrency int
	LogLevel       string
	Console        bool
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(loadConfig(), os.Stdin)
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() *Config {
	return &Config{
		ProxyURL:       getEnv("SCP_PROXY_URL", "http://localhost:8080"),
		Org:            getEnv("SCP_ORG", ""),
		Store:          getEnv("SCP_STORE", ""),
		SettleDelay:    getEnvDuration("SCP_SETTLE_DELAY", time.Second),
		MaxConcurrency: getEnvInt("SCP_MAX_CONCURRENCY", 5),
		LogLevel:       getEnv("LOG_LEVEL", "warn"),
	}
}

// app is what every command works with once the persistent flags are parsed
type app struct {
	config   *Config
	logger   *logging.Logger
	client   *proxyclient.Client
	engine   *application.Engine
	releases *application.ReleaseController
	uploader *application.Uploader
	in       io.Reader
	out      io.Writer

	assumeYes bool
}

func newRootCommand(config *Config, in io.Reader) *cobra.Command {
	a := &app{config: config, in: in}

	root := &cobra.Command{
		Use:          appName,
		Short:        "Review suggested orders and opportunity buys",
		Version:      appVersion,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.start(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.config.Console && a.client != nil {
				_, _ = a.client.RequestLog().WriteTo(cmd.ErrOrStderr())
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&config.ProxyURL, "proxy-url", config.ProxyURL, "backend proxy base URL (SCP_PROXY_URL)")
	flags.StringVar(&config.Org, "org", config.Org, "organization to log in as (SCP_ORG)")
	flags.StringVar(&config.Store, "store", config.Store, "store id (SCP_STORE)")
	flags.DurationVar(&config.SettleDelay, "settle-delay", config.SettleDelay, "wait before re-reading after writes (SCP_SETTLE_DELAY)")
	flags.IntVar(&config.MaxConcurrency, "max-concurrency", config.MaxConcurrency, "parallel line writes (SCP_MAX_CONCURRENCY)")
	flags.StringVar(&config.LogLevel, "log-level", config.LogLevel, "debug, info, warn or error")
	flags.BoolVar(&config.Console, "console", false, "print the proxy request/response log to stderr")

	root.AddCommand(
		newOrdersCommand(a),
		newReviewCommand(a),
		newUploadCommand(a),
		newCodesCommand(a),
	)
	return root
}

// start builds the client stack and logs in
func (a *app) start(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()

	logConfig := logging.DefaultConfig(appName)
	logConfig.Level = logging.LogLevel(strings.ToLower(a.config.LogLevel))
	logConfig.Version = appVersion
	logConfig.Output = cmd.ErrOrStderr()
	logConfig.Text = true
	a.logger = logging.New(logConfig)

	if a.config.Org == "" {
		return fmt.Errorf("--org is required")
	}

	a.client = proxyclient.New(&proxyclient.Config{BaseURL: a.config.ProxyURL}, a.logger)

	engineConfig := application.DefaultEngineConfig()
	engineConfig.SettleDelay = a.config.SettleDelay
	if a.config.MaxConcurrency > 0 {
		engineConfig.MaxConcurrency = a.config.MaxConcurrency
	}
	writers := application.NewWriterSet(a.client, a.client)
	a.engine = application.NewEngine(a.client, writers, engineConfig, a.logger, a.client)
	a.releases = application.NewReleaseController(a.engine, a.client, application.ConfirmFunc(a.confirmRelease), a.logger)
	a.uploader = application.NewUploader(a.client, ingest.NewParser(), a.client, a.logger)

	ctx := cmd.Context()
	a.client.Track(ctx, "app_opened", map[string]any{"app_version": appVersion})

	if _, err := a.client.Login(ctx, a.config.Org); err != nil {
		return err
	}
	return nil
}

// selectStore validates the store and scopes the session to it
func (a *app) selectStore(ctx context.Context) (string, error) {
	store := strings.TrimSpace(a.config.Store)
	if store == "" {
		return "", fmt.Errorf("--store is required")
	}

	ok, err := a.client.ValidateStore(ctx, store)
	if err != nil {
		return "", fmt.Errorf("store lookup failed: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("store %s not found", store)
	}

	if _, err := a.client.SelectStore(store); err != nil {
		return "", err
	}
	a.client.Track(ctx, "store_id_entered", map[string]any{"store_id": store})
	return store, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
