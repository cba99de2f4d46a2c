package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"precioverdadero/internal/constants"
	"precioverdadero/internal/database"
	"precioverdadero/internal/migrations"
	"precioverdadero/internal/models"

	"github.com/sirupsen/logrus"
)

func main() {
	driver := flag.String("driver", migrations.DialectSQLite, "Database driver: sqlite3 or postgres")
	dbPath := flag.String("db", constants.DefaultDatabasePath, "Path to the sqlite database file")
	dbURL := flag.String("url", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	status := flag.Bool("status", false, "List applied and pending migrations without applying")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, models.DatabaseConfig{Driver: *driver, Path: *dbPath, URL: *dbURL}, *status, logger); err != nil {
		logger.Fatalf("Migration failed: %v", err)
	}
}

func run(ctx context.Context, cfg models.DatabaseConfig, statusOnly bool, logger *logrus.Logger) error {
	if cfg.Driver == migrations.DialectSQLite {
		if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", cfg.Path)
		}
	}

	db, dialect, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if statusOnly {
		all, err := migrations.Load(dialect)
		if err != nil {
			return err
		}
		applied, err := migrations.Applied(ctx, db)
		if err != nil {
			return err
		}
		for _, m := range all {
			state := "pending"
			if applied[m.Version] {
				state = "applied"
			}
			fmt.Printf("%03d  %-8s %s\n", m.Version, state, m.Name)
		}
		return nil
	}

	done, err := migrations.Apply(ctx, db, dialect)
	if err != nil {
		return err
	}
	if len(done) == 0 {
		logger.Info("Schema already up to date")
		return nil
	}
	sort.Ints(done)
	logger.WithFields(logrus.Fields{"dialect": dialect, "versions": done}).Info("Migrations applied")
	return nil
}
