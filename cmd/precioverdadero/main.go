package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"precioverdadero/internal/assistant"
	"precioverdadero/internal/config"
	"precioverdadero/internal/constants"
	"precioverdadero/internal/database"
	"precioverdadero/internal/events"
	"precioverdadero/internal/logging"
	"precioverdadero/internal/models"
	"precioverdadero/internal/retry"
	"precioverdadero/internal/service"
	"precioverdadero/internal/stream"
	"precioverdadero/internal/tracing"
	"precioverdadero/pkg/twilio"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes personal data)")
	configPath = flag.String("config", "config.json", "Path to configuration file (JSON or YAML)")
	envFile    = flag.String("env-file", ".env", "Path to a .env file; missing files are ignored")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("Precio Verdadero %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

// loadConfig reads the config file when it exists and falls back to
// defaults plus environment otherwise.
func loadConfig(path string) (*models.Config, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			cfg, err := config.Default()
			return cfg, false, err
		}
		return nil, false, err
	}
	cfg, err := config.LoadConfig(path)
	return cfg, true, err
}

func run(ctx context.Context) error {
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", *envFile, err)
	}

	cfg, fromFile, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, logCloser := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Verbose: *verbose,
		JSON:    true,
	})
	defer logCloser.Close()

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting Precio Verdadero")
	if *verbose {
		logger.Info("Verbose logging enabled - personal data will be logged")
	}

	tracingManager := tracing.NewTracingManager(cfg.Tracing, Version, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize database with exponential backoff retry
	var db *database.Database
	backoffConfig := retry.FromConfig(cfg.Retry)
	backoffConfig.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	err = retry.NewBackoff(backoffConfig).Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(ctx, cfg.Database)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()
	logger.WithField(service.LogFieldDriver, db.Dialect()).Info("Database ready")

	if n, err := db.SeedKnowledge(ctx); err != nil {
		logger.WithError(err).Warn("Failed to seed knowledge base")
	} else if n > 0 {
		logger.WithField(service.LogFieldCount, n).Info("Seeded knowledge base")
	}

	hub := stream.NewHub(cfg.Server.AllowedOrigins, logger)
	publishers := events.Multi{hub}
	if cfg.AMQP.URL != "" {
		amqpPublisher, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Queue, logger)
		if err != nil {
			logger.WithError(err).Warn("Message broker unavailable, events go to the live stream only")
		} else {
			publishers = append(publishers, amqpPublisher)
			logger.WithField("queue", cfg.AMQP.Queue).Info("Publishing comment events to broker")
		}
	}
	defer publishers.Close()

	var llm assistant.LLM
	if cfg.Assistant.APIKey != "" {
		gemini, err := assistant.NewGeminiClient(ctx, cfg.Assistant.APIKey, cfg.Assistant.Model)
		if err != nil {
			logger.WithError(err).Warn("Failed to create Gemini client, assistant disabled")
		} else {
			llm = gemini
		}
	} else {
		logger.Warn("GEMINI_API_KEY not set, assistant disabled")
	}
	training := assistant.NewTrainingPrompt(cfg.Assistant.PromptFile, logger)
	if cfg.Assistant.PromptFile != "" {
		if _, err := training.Reload(); err != nil {
			logger.WithError(err).Warn("Training prompt not loaded")
		}
	}
	bot := assistant.New(llm, db, db, training, time.Duration(cfg.Assistant.TimeoutSec)*time.Second, logger)

	var sender twilio.Sender
	if cfg.Twilio.Configured() {
		sender = twilio.NewClient(twilio.Config{
			AccountSID:   cfg.Twilio.AccountSID,
			AuthToken:    cfg.Twilio.AuthToken,
			WhatsAppFrom: cfg.Twilio.WhatsAppFrom,
			BaseURL:      cfg.Twilio.APIBaseURL,
			Timeout:      time.Duration(cfg.Twilio.TimeoutSec) * time.Second,
		}, logger)
	} else {
		logger.Warn("Twilio not configured, support relay disabled")
	}

	loc := time.Local
	if cfg.Server.TimeZone != "" {
		if loc, err = time.LoadLocation(cfg.Server.TimeZone); err != nil {
			logger.WithError(err).Warnf("Unknown time zone %q, using local time", cfg.Server.TimeZone)
			loc = time.Local
		}
	}

	cfg.Server.Verbose = *verbose
	server := NewServer(cfg.Server, Dependencies{
		Comments:  service.NewCommentService(db, publishers, logger),
		Knowledge: service.NewKnowledgeService(db, logger),
		Assistant: bot,
		Support:   service.NewSupportService(sender, logger),
		Stream:    hub,
		DB:        db,
		Location:  loc,
	}, logger)

	sweeper := service.NewRetentionSweeper(db, cfg.RetentionDays,
		time.Duration(cfg.Server.CleanupIntervalHours)*time.Hour, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		if err := training.Watch(gctx); err != nil {
			logger.WithError(err).Warn("Training prompt watcher stopped")
		}
		return nil
	})
	if fromFile {
		watcher := config.NewConfigWatcher(*configPath, logger)
		watcher.OnConfigChange(func(c *models.Config) {
			logging.SetLevel(logger, c.LogLevel, *verbose)
		})
		g.Go(func() error {
			if err := watcher.Start(gctx); err != nil {
				logger.WithError(err).Warn("Configuration watcher stopped")
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
		defer cancel()
		hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server gracefully: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server shutdown completed")
	return nil
}
