// Command migrate applies the embedded reminder schema.
//
//	migrate [up]            apply all pending migrations
//	migrate down [n]        roll back n migrations (default 1)
//	migrate force <version> mark a dirty database as clean at version
//	migrate version         print the current version
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/wolfman30/clinic-reminders/internal/config"
	appmigrations "github.com/wolfman30/clinic-reminders/migrations"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// migrator is the part of *migrate.Migrate the subcommands drive.
type migrator interface {
	Up() error
	Steps(n int) error
	Force(version int) error
	Version() (uint, bool, error)
}

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	m, closeFn, err := open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("migrate: open", "error", err)
		os.Exit(1)
	}
	err = run(m, os.Args[1:], os.Stdout)
	closeFn()
	if err != nil {
		logger.Error("migrate failed", "args", os.Args[1:], "error", err)
		os.Exit(1)
	}
}

func open(databaseURL string) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("postgres driver: %w", err)
	}
	src, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("embedded source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("new migrator: %w", err)
	}
	return m, func() { _, _ = m.Close() }, nil
}

func run(m migrator, args []string, out io.Writer) error {
	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}
	switch cmd {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("up: %w", err)
		}
		fmt.Fprintln(out, "schema up to date")
	case "down":
		n := 1
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil || v < 1 {
				return fmt.Errorf("down: step count must be a positive integer, got %q", args[1])
			}
			n = v
		}
		if err := m.Steps(-n); err != nil {
			return fmt.Errorf("down %d: %w", n, err)
		}
		fmt.Fprintf(out, "rolled back %d migration(s)\n", n)
	case "force":
		if len(args) < 2 {
			return errors.New("force: version argument required")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("force: invalid version %q", args[1])
		}
		if err := m.Force(v); err != nil {
			return fmt.Errorf("force %d: %w", v, err)
		}
		fmt.Fprintf(out, "forced version %d\n", v)
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Fprintln(out, "no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		fmt.Fprintf(out, "version %d dirty=%t\n", v, dirty)
	default:
		return fmt.Errorf("unknown command %q (want up, down, force or version)", cmd)
	}
	return nil
}
