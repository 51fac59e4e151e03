// Package migrator applies the embedded PostgreSQL migrations with golang-migrate.
//
// Every run holds the driver's session-level advisory lock and reads the
// current version after acquiring it, so concurrent runs serialize and the
// later one finds nothing left to do.
package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"github.com/inkpost/inkpost/migrations"
)

// MigrationsTable records the applied version and dirty flag.
const MigrationsTable = "schema_migrations"

// Status reports whether one migration has been applied.
type Status struct {
	Version string `json:"version"`
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
	// Dirty marks the migration that failed part way; fix the schema and force a version.
	Dirty bool `json:"dirty,omitempty"`
}

// step is one embedded migration with its numeric version.
type step struct {
	number uint
	mig    migrations.Migration
}

// Migrator runs migrations against one database.
type Migrator struct {
	mg    *migrate.Migrate
	steps []step
}

// Open connects to databaseURL with the lib/pq driver and loads the embedded migrations.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Migrator, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	m, err := New(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// New creates a Migrator over an existing connection. Close closes db.
func New(db *sql.DB, logger *slog.Logger) (*Migrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	set, err := migrations.Postgres()
	if err != nil {
		return nil, err
	}
	steps, err := numbered(set)
	if err != nil {
		return nil, err
	}

	fsys, err := migrations.PostgresFS()
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("load migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("init postgres driver: %w", err)
	}

	mg, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		src.Close()
		driver.Close()
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	mg.Log = &slogAdapter{logger: logger}

	return &Migrator{mg: mg, steps: steps}, nil
}

// Close releases the source and the database connection.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.mg.Close()
	return errors.Join(srcErr, dbErr)
}

// Up applies every pending migration in version order and returns the ones applied.
func (m *Migrator) Up(ctx context.Context) ([]migrations.Migration, error) {
	before, _, err := m.version()
	if err != nil {
		return nil, err
	}

	if err := m.run(ctx, m.mg.Up); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil, nil
		}
		after, _, _ := m.version()
		return appliedBetween(m.steps, before, after), migrationError(err)
	}

	after, _, err := m.version()
	if err != nil {
		return nil, err
	}
	return appliedBetween(m.steps, before, after), nil
}

// Down rolls back the last steps applied migrations, newest first.
// A non-positive steps rolls back everything.
func (m *Migrator) Down(ctx context.Context, steps int) ([]migrations.Migration, error) {
	before, _, err := m.version()
	if err != nil {
		return nil, err
	}

	fn := m.mg.Down
	if steps > 0 && steps < appliedCount(m.steps, before) {
		fn = func() error { return m.mg.Steps(-steps) }
	}

	if err := m.run(ctx, fn); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil, nil
		}
		after, _, _ := m.version()
		return rolledBackBetween(m.steps, after, before), migrationError(err)
	}

	after, _, err := m.version()
	if err != nil {
		return nil, err
	}
	return rolledBackBetween(m.steps, after, before), nil
}

// Force records version as applied and clears the dirty flag without running
// any SQL. A negative version marks the database as having no migrations.
func (m *Migrator) Force(version int) error {
	if err := m.mg.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Status lists every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current, dirty, err := m.version()
	if err != nil {
		return nil, err
	}
	return statusAt(m.steps, current, dirty), nil
}

// version returns the current version, 0 when nothing is applied.
func (m *Migrator) version() (uint, bool, error) {
	v, dirty, err := m.mg.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return v, dirty, nil
}

// run executes fn and asks golang-migrate to stop after the current
// migration once ctx is done.
func (m *Migrator) run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			select {
			case m.mg.GracefulStop <- true:
			default:
			}
		case <-done:
		}
	}()

	return fn()
}

func numbered(set []migrations.Migration) ([]step, error) {
	steps := make([]step, 0, len(set))
	for _, mig := range set {
		n, err := strconv.ParseUint(mig.Version, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s_%s: invalid version: %w", mig.Version, mig.Name, err)
		}
		steps = append(steps, step{number: uint(n), mig: mig})
	}
	return steps, nil
}

// appliedBetween returns migrations with before < version <= after, oldest first.
func appliedBetween(steps []step, before, after uint) []migrations.Migration {
	var out []migrations.Migration
	for _, s := range steps {
		if s.number > before && s.number <= after {
			out = append(out, s.mig)
		}
	}
	return out
}

// rolledBackBetween returns migrations with after < version <= before, newest first.
func rolledBackBetween(steps []step, after, before uint) []migrations.Migration {
	var out []migrations.Migration
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].number > after && steps[i].number <= before {
			out = append(out, steps[i].mig)
		}
	}
	return out
}

func appliedCount(steps []step, current uint) int {
	n := 0
	for _, s := range steps {
		if s.number <= current {
			n++
		}
	}
	return n
}

func statusAt(steps []step, current uint, dirty bool) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, s := range steps {
		statuses = append(statuses, Status{
			Version: s.mig.Version,
			Name:    s.mig.Name,
			Applied: s.number <= current && !(dirty && s.number == current),
			Dirty:   dirty && s.number == current,
		})
	}
	return statuses
}

// migrationError surfaces the SQLSTATE of a failed migration script.
func migrationError(err error) error {
	var dbErr database.Error
	if errors.As(err, &dbErr) {
		var pqErr *pq.Error
		if errors.As(dbErr.OrigErr, &pqErr) {
			return fmt.Errorf("migration failed (sqlstate %s): %w", pqErr.Code, err)
		}
	}
	var dirty migrate.ErrDirty
	if errors.As(err, &dirty) {
		return fmt.Errorf("database is dirty at version %d; fix the schema and run migrate force: %w", dirty.Version, err)
	}
	return fmt.Errorf("migration failed: %w", err)
}

// slogAdapter routes golang-migrate's progress lines to slog at debug level.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Printf(format string, v ...any) {
	a.logger.Debug(fmt.Sprintf(format, v...), slog.String("component", "migrate"))
}

func (a *slogAdapter) Verbose() bool {
	return a.logger.Enabled(context.Background(), slog.LevelDebug)
}
