package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/frogteam/frogteam/config"
	_ "github.com/glebarez/go-sqlite"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// DefaultTable records applied versions.
const DefaultTable = "schema_migrations"

// Dialect is a supported SQL flavour.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect accepts the usual aliases for each dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database type: %q", s)
	}
}

// sqlDriver is the database/sql driver name used to open a dialect.
// SQLite goes through the pure-Go driver the history store already links.
func (d Dialect) sqlDriver() string {
	switch d {
	case DialectSQLite:
		return "sqlite"
	default:
		return string(d)
	}
}

func (d Dialect) dir() string { return path.Join("migrations", string(d)) }

// Version is one migration available in the embedded set.
type Version struct {
	Number  uint
	Name    string
	Applied bool
	Dirty   bool
}

// Info summarises the schema state.
type Info struct {
	Current uint
	Dirty   bool
	Total   int
	Applied int
	Pending int
}

// Config configures a migrator.
type Config struct {
	Dialect     Dialect
	URL         string
	Table       string
	LockTimeout time.Duration
}

// Migrator applies and inspects schema versions.
type Migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	DownAll(ctx context.Context) error
	Steps(ctx context.Context, n int) error
	Goto(ctx context.Context, version uint) error
	Force(ctx context.Context, version int) error
	Version(ctx context.Context) (uint, bool, error)
	Status(ctx context.Context) ([]Version, error)
	Info(ctx context.Context) (*Info, error)
	Close() error
}

// SQLMigrator runs the embedded migrations through golang-migrate.
type SQLMigrator struct {
	cfg    Config
	m      *migrate.Migrate
	logger *zap.Logger
}

// New opens the database and prepares the migration engine.
func New(cfg Config, logger *zap.Logger) (*SQLMigrator, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}
	if _, err := ParseDialect(string(cfg.Dialect)); err != nil {
		return nil, err
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open(cfg.Dialect.sqlDriver(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	driver, err := instanceDriver(cfg, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create database driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, cfg.Dialect.dir())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, string(cfg.Dialect), driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	m.LockTimeout = cfg.LockTimeout
	m.Log = migrateLogger{logger: logger}

	return &SQLMigrator{
		cfg:    cfg,
		m:      m,
		logger: logger.With(zap.String("component", "migrator"), zap.String("dialect", string(cfg.Dialect))),
	}, nil
}

// FromDatabaseConfig builds a migrator for the history database.
func FromDatabaseConfig(dbCfg config.DatabaseConfig, logger *zap.Logger) (*SQLMigrator, error) {
	dialect, err := ParseDialect(dbCfg.Driver)
	if err != nil {
		return nil, err
	}
	url := BuildURL(dialect, dbCfg.Host, dbCfg.Port, dbCfg.Name, dbCfg.User, dbCfg.Password, dbCfg.SSLMode)
	return New(Config{Dialect: dialect, URL: url}, logger)
}

func instanceDriver(cfg Config, db *sql.DB) (database.Driver, error) {
	switch cfg.Dialect {
	case DialectPostgres:
		return postgres.WithInstance(db, &postgres.Config{MigrationsTable: cfg.Table})
	case DialectMySQL:
		return mysql.WithInstance(db, &mysql.Config{MigrationsTable: cfg.Table})
	default:
		// sqlite3.WithInstance only speaks database/sql, any sqlite driver works.
		return sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: cfg.Table})
	}
}

func ignoreNoChange(op string, err error) error {
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return fmt.Errorf("migration %s: %w", op, err)
}

func (s *SQLMigrator) Up(ctx context.Context) error {
	s.logger.Info("applying pending migrations")
	return ignoreNoChange("up", s.m.Up())
}

// Down rolls back a single version.
func (s *SQLMigrator) Down(ctx context.Context) error {
	return ignoreNoChange("down", s.m.Steps(-1))
}

func (s *SQLMigrator) DownAll(ctx context.Context) error {
	s.logger.Warn("rolling back every migration")
	return ignoreNoChange("down all", s.m.Down())
}

// Steps applies n versions, or rolls back -n when n is negative.
func (s *SQLMigrator) Steps(ctx context.Context, n int) error {
	return ignoreNoChange("steps", s.m.Steps(n))
}

func (s *SQLMigrator) Goto(ctx context.Context, version uint) error {
	return ignoreNoChange("goto", s.m.Migrate(version))
}

// Force records version without running any SQL; used to clear a dirty state.
func (s *SQLMigrator) Force(ctx context.Context, version int) error {
	if err := s.m.Force(version); err != nil {
		return fmt.Errorf("migration force: %w", err)
	}
	return nil
}

// Version returns 0 when nothing has been applied yet.
func (s *SQLMigrator) Version(ctx context.Context) (uint, bool, error) {
	v, dirty, err := s.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read version: %w", err)
	}
	return v, dirty, nil
}

func (s *SQLMigrator) Status(ctx context.Context) ([]Version, error) {
	current, dirty, err := s.Version(ctx)
	if err != nil {
		return nil, err
	}
	versions, err := Available(s.cfg.Dialect)
	if err != nil {
		return nil, err
	}
	for i := range versions {
		versions[i].Applied = versions[i].Number <= current
		versions[i].Dirty = dirty && versions[i].Number == current
	}
	return versions, nil
}

func (s *SQLMigrator) Info(ctx context.Context) (*Info, error) {
	versions, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	current, dirty, err := s.Version(ctx)
	if err != nil {
		return nil, err
	}
	return summarize(versions, current, dirty), nil
}

// Close releases the source and the database handle.
func (s *SQLMigrator) Close() error {
	srcErr, dbErr := s.m.Close()
	return errors.Join(srcErr, dbErr)
}

func summarize(versions []Version, current uint, dirty bool) *Info {
	info := &Info{Current: current, Dirty: dirty, Total: len(versions)}
	for _, v := range versions {
		if v.Applied {
			info.Applied++
		}
	}
	info.Pending = info.Total - info.Applied
	return info
}

// Available lists the embedded migrations for dialect in version order.
func Available(dialect Dialect) ([]Version, error) {
	entries, err := fs.ReadDir(migrationsFS, dialect.dir())
	if err != nil {
		return nil, fmt.Errorf("read migrations for %s: %w", dialect, err)
	}
	seen := make(map[uint]bool)
	var out []Version
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		num, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(num, 10, 32)
		if err != nil || seen[uint(n)] {
			continue
		}
		seen[uint(n)] = true
		out = append(out, Version{Number: uint(n), Name: strings.TrimSuffix(rest, ".up.sql")})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// BuildURL assembles a connection URL. For sqlite, name is the file path.
func BuildURL(dialect Dialect, host string, port int, name, user, password, sslMode string) string {
	switch dialect {
	case DialectPostgres:
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", user, password, host, port, name, sslMode)
	case DialectMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true", user, password, host, port, name)
	case DialectSQLite:
		return fmt.Sprintf("file:%s?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", name)
	default:
		return ""
	}
}

// migrateLogger forwards golang-migrate's progress lines to zap.
type migrateLogger struct {
	logger *zap.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool { return l.logger.Core().Enabled(zap.DebugLevel) }
