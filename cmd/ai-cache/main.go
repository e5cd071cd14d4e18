package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	aicache "github.com/always-cache/ai-cache"
	"github.com/always-cache/ai-cache/cache"
	"github.com/always-cache/ai-cache/classifier"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// CLI flags
	configFlag         string
	verbosityTraceFlag bool
	logFilenameFlag    string

	portFlag     int
	originFlag   string
	providerFlag string
	dbFlag       string
	backendFlag  string
	modelFlag    string
	coalesceFlag bool

	// this is set by goreleaser
	version string
)

var rootCmd = &cobra.Command{
	Use:   "ai-cache",
	Short: "Caching reverse proxy with classifier-chosen cache durations",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Proxy an origin and cache its responses",
	RunE:  serve,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	if version == "" {
		version = "DEV"
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	rootCmd.PersistentFlags().StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	serveCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&originFlag, "origin", "", "Origin URL to proxy to")
	serveCmd.Flags().StringVar(&providerFlag, "provider", cache.ProviderSQLite, "Cache provider (memory, sqlite, bolt, leveldb, valkey)")
	serveCmd.Flags().StringVar(&dbFlag, "db", "cache.db", "Cache database file or directory")
	serveCmd.Flags().StringVar(&backendFlag, "backend", classifier.BackendOpenAI, "Classifier backend (openai, workers-ai, gemini, static)")
	serveCmd.Flags().StringVar(&modelFlag, "model", "", "Classifier model")
	serveCmd.Flags().BoolVar(&coalesceFlag, "coalesce", false, "Collapse concurrent misses for the same path")

	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	// a missing .env file is fine
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()
}

// applyFlags overrides config values with flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = portFlag
	}
	if flags.Changed("origin") {
		cfg.Server.Origin = originFlag
	}
	if flags.Changed("provider") {
		cfg.Cache.Provider = providerFlag
	}
	if flags.Changed("db") {
		cfg.Cache.Path = dbFlag
	}
	if flags.Changed("backend") {
		cfg.Classifier.Backend = backendFlag
	}
	if flags.Changed("model") {
		cfg.Classifier.Model = modelFlag
	}
	if flags.Changed("coalesce") {
		cfg.Coalesce = coalesceFlag
	}
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configFlag)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := cache.Open(cfg.cacheOptions())
	if err != nil {
		return fmt.Errorf("open %s cache: %w", cfg.Cache.Provider, err)
	}

	completer, err := classifier.NewCompleter(ctx, cfg.backendConfig())
	if err != nil {
		provider.Close()
		return fmt.Errorf("create %s classifier: %w", cfg.Classifier.Backend, err)
	}

	acache := aicache.CreateCache(aicache.Config{
		Cache:      provider,
		OriginURL:  cfg.Server.Origin,
		Classifier: completer,
		Logger:     &log.Logger,
		Coalesce:   cfg.Coalesce,
	})
	defer acache.Close()

	go cache.Sweep(ctx, provider, cfg.sweepEvery, log.Logger)
	go acache.LogStats(ctx, cfg.statsEvery)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/*", acache.ServeHTTP)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("Proxying port %v to %s (cache: %s, classifier: %s)",
			cfg.Server.Port, cfg.Server.Origin, cfg.Cache.Provider, cfg.Classifier.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
