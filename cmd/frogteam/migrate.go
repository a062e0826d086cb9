package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/frogteam/frogteam/internal/migration"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

// migrateFlags are shared by every migrate subcommand.
type migrateFlags struct {
	configPath *string
	dbType     *string
	dbURL      *string
}

func bindMigrateFlags(fs *flag.FlagSet) migrateFlags {
	return migrateFlags{
		configPath: fs.String("config", "", "Path to config file"),
		dbType:     fs.String("db-type", "", "Database type (postgres, mysql, sqlite)"),
		dbURL:      fs.String("db-url", "", "Database connection URL"),
	}
}

// open builds a migrator from --db-type/--db-url, or from the config file.
func (f migrateFlags) open() (*migration.SQLMigrator, error) {
	logger := zap.NewNop()
	if *f.dbType != "" && *f.dbURL != "" {
		dialect, err := migration.ParseDialect(*f.dbType)
		if err != nil {
			return nil, err
		}
		return migration.New(migration.Config{Dialect: dialect, URL: *f.dbURL}, logger)
	}

	cfg, err := loadConfig(*f.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger = initLogger(cfg.Log)
	if *f.dbType != "" {
		cfg.Database.Driver = *f.dbType
	}
	return migration.FromDatabaseConfig(cfg.Database, logger)
}

// runMigrate handles the migrate command and its subcommands
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	sub := args[0]
	if sub == "help" || sub == "-h" || sub == "--help" {
		printMigrateUsage()
		return
	}

	fs := flag.NewFlagSet("migrate "+sub, flag.ExitOnError)
	flags := bindMigrateFlags(fs)
	all := fs.Bool("all", false, "With down: rollback all migrations")
	positional, rest := splitNumeric(args[1:])
	_ = fs.Parse(rest)

	run, err := migrateAction(sub, *all, append(positional, fs.Args()...))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printMigrateUsage()
		os.Exit(1)
	}

	migrator, err := flags.open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	err = run(context.Background(), migration.NewCLI(migrator))
	_ = migrator.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", sub, err)
		os.Exit(1)
	}
}

// splitNumeric pulls numeric arguments out before flag parsing so that
// "steps -1" is not read as a flag.
func splitNumeric(args []string) (numeric, rest []string) {
	for _, a := range args {
		if _, err := strconv.Atoi(a); err == nil {
			numeric = append(numeric, a)
			continue
		}
		rest = append(rest, a)
	}
	return numeric, rest
}

// migrateAction resolves a subcommand and its positional arguments.
func migrateAction(sub string, all bool, args []string) (func(context.Context, *migration.CLI) error, error) {
	switch sub {
	case "up":
		return func(ctx context.Context, c *migration.CLI) error { return c.RunUp(ctx) }, nil
	case "down":
		if all {
			return func(ctx context.Context, c *migration.CLI) error { return c.RunDownAll(ctx) }, nil
		}
		return func(ctx context.Context, c *migration.CLI) error { return c.RunDown(ctx) }, nil
	case "reset":
		return func(ctx context.Context, c *migration.CLI) error { return c.RunDownAll(ctx) }, nil
	case "status":
		return func(ctx context.Context, c *migration.CLI) error { return c.RunStatus(ctx) }, nil
	case "version":
		return func(ctx context.Context, c *migration.CLI) error { return c.RunVersion(ctx) }, nil
	case "info":
		return func(ctx context.Context, c *migration.CLI) error { return c.RunInfo(ctx) }, nil
	case "steps":
		n, err := intArg(sub, args)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *migration.CLI) error { return c.RunSteps(ctx, n) }, nil
	case "goto":
		n, err := intArg(sub, args)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("goto: version must not be negative")
		}
		return func(ctx context.Context, c *migration.CLI) error { return c.RunGoto(ctx, uint(n)) }, nil
	case "force":
		n, err := intArg(sub, args)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, c *migration.CLI) error { return c.RunForce(ctx, n) }, nil
	default:
		return nil, fmt.Errorf("unknown migrate subcommand: %s", sub)
	}
}

func intArg(sub string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s: expected exactly one numeric argument", sub)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", sub, args[0])
	}
	return n, nil
}

// printMigrateUsage prints the usage information for migrate command
func printMigrateUsage() {
	fmt.Println(`History Database Migrations

Usage:
  frogteam migrate <subcommand> [options] [arg]

Subcommands:
  up          Apply all pending migrations
  down        Rollback the last migration (--all for every migration)
  reset       Rollback all migrations
  steps <n>   Apply (n>0) or rollback (n<0) n migrations
  goto <v>    Migrate to a specific version
  force <v>   Force set migration version (use with caution)
  version     Show current migration version
  status      Show every migration and whether it is applied
  info        Show a one-line summary

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  frogteam migrate up
  frogteam migrate status --config frogteam.yaml
  frogteam migrate steps -1
  frogteam migrate up --db-type sqlite --db-url "file:frogteam.db?mode=rwc"`)
}
