package main

import (
	"context"
	"database/sql"
	"flag"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/lattice-graph/lattice/pkg/acl"
	"github.com/lattice-graph/lattice/pkg/config"
	"github.com/lattice-graph/lattice/pkg/group"
	"github.com/lattice-graph/lattice/pkg/migrate"
	"github.com/lattice-graph/lattice/pkg/resource"
)

// Applies all lattice schema migrations against the configured postgres
// database. Each subsystem tracks its own applied versions, so reruns are
// no-ops.
func main() {
	dbURL := flag.String("db", "", "Database connection string (overrides LATTICE_POSTGRES_URL)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall migration timeout")
	flag.Parse()

	logger := setupLogger(*logLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	connStr := cfg.Storage.PostgresURL
	if *dbURL != "" {
		connStr = *dbURL
	}
	if connStr == "" {
		logger.Fatal("No database configured: set LATTICE_POSTGRES_URL or pass -db")
	}

	db, err := connectDatabase(connStr, cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	subsystems := []struct {
		name       string
		migrations []migrate.Migration
	}{
		{"acl", acl.Migrations()},
		{"group", group.Migrations()},
		{"resource", resource.Migrations()},
	}

	for _, sub := range subsystems {
		logger.Infof("Applying %s migrations (%d total)", sub.name, len(sub.migrations))
		if err := migrate.Run(ctx, db, sub.name, sub.migrations); err != nil {
			logger.Fatalf("Failed to apply %s migrations: %v", sub.name, err)
		}
	}

	logger.Info("All migrations applied")
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func connectDatabase(connStr string, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Storage.PostgresMaxConns)
	db.SetMaxIdleConns(cfg.Storage.PostgresMinConns)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Storage.PostgresTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
