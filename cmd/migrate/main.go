package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/erp/allocation/internal/infrastructure/config"
	"github.com/erp/allocation/internal/infrastructure/logger"
	"github.com/erp/allocation/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	var (
		action      string
		path        string
		name        string
		description string
		steps       int
		version     int
		logLevel    string
	)

	flag.StringVar(&action, "action", "", "up | down | steps | version | force | list | create")
	flag.StringVar(&path, "path", "", "Read migrations from this directory instead of the embedded set (required for create)")
	flag.StringVar(&name, "name", "", "Migration name for create")
	flag.StringVar(&description, "desc", "", "Migration description for create")
	flag.IntVar(&steps, "n", 1, "Number of steps for steps (negative goes down)")
	flag.IntVar(&version, "version", -1, "Version for force")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	if action == "" {
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	// create and list do not touch the database
	switch action {
	case "create":
		if path == "" || name == "" {
			log.Fatal("create needs -path and -name")
		}
		mf, err := migration.CreateMigration(path, name, description)
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created successfully",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return

	case "list":
		var names []string
		if path == "" {
			names, err = migration.ListMigrations(migration.Embedded(), migration.EmbeddedDir)
		} else {
			names, err = migration.ListMigrations(os.DirFS(path), ".")
		}
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		log.Info("Available migrations", zap.Int("count", len(names)))
		for _, n := range names {
			fmt.Println("  -", n)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	var m *migration.Migrator
	if path == "" {
		m, err = migration.New(db, log)
	} else {
		m, err = migration.NewFromDir(db, path, log)
	}
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch action {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		err = m.Steps(steps)
	case "version":
		var (
			v     uint
			dirty bool
		)
		v, dirty, err = m.Version()
		if err == nil {
			log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		}
	case "force":
		if version < 0 {
			log.Fatal("force needs -version")
		}
		log.Warn("Forcing migration version", zap.Int("version", version))
		err = m.Force(version)
	default:
		log.Error("Unknown action", zap.String("action", action))
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal("Migration failed", zap.String("action", action), zap.Error(err))
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Allocation database migration tool

Usage:
  migrate -action <action> [flags]

Actions:
  up           Apply all pending migrations
  down         Roll back all migrations
  steps        Apply -n migrations (negative rolls back)
  version      Show the current migration version
  force        Set the version without running migrations (-version)
  list         List available migrations
  create       Write a new up/down pair into -path (-name, -desc)

Database settings come from config.toml or ALLOC_DATABASE_* variables.

Flags:`)
	flag.PrintDefaults()
}
