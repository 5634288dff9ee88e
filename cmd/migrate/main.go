package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/pflag"
	"museum.zuyanh.net/internal/jsonlog"
	"museum.zuyanh.net/internal/migration"
)

const usage = `Usage: migrate [flags] <command>

Commands:
  up            apply all pending migrations
  down          roll back all migrations
  steps <n>     apply n migrations (negative rolls back)
  version       print the current version
  force <v>     set the version without running migrations

Flags:
`

func main() {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("migrate", pflag.ExitOnError)
	path := fs.String("path", "migrations", "Path to the migrations directory")
	dsn := fs.String("db-dsn", os.Getenv("MUSEUM_DB_DSN"), "PostgreSQL DSN")
	logLevel := fs.String("log-level", "info", "Minimum log level")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	logger := jsonlog.New(jsonlog.Config{Level: *logLevel, Format: "console"})
	defer logger.Sync()

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	if err := run(*dsn, *path, args, logger); err != nil {
		logger.PrintFatal(err, map[string]string{"command": args[0]})
	}
}

func run(dsn, path string, args []string, logger *jsonlog.Logger) error {
	if dsn == "" {
		return errors.New("no database DSN: set --db-dsn or MUSEUM_DB_DSN")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := migration.New(db, absPath, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "steps", "force":
		if len(args) < 2 {
			return fmt.Errorf("%s needs a number", args[0])
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if args[0] == "steps" {
			return m.Steps(n)
		}
		return m.Force(n)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		logger.PrintInfo("migration version", map[string]string{
			"version": strconv.FormatUint(uint64(version), 10),
			"dirty":   strconv.FormatBool(dirty),
		})
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
