package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"

	// Database drivers selectable through Open.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Supported driver names for Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Store holds the database handles and provides access to repositories.
type Store struct {
	db      *sql.DB
	x       *sqlx.DB
	drv     *entsql.Driver
	dialect string
}

// Open connects to the database identified by driver and dsn and runs
// auto-migration. SQLite connections get the recommended pragmas.
// MySQL DSNs need parseTime=true.
func Open(driver, dsn string) (*Store, error) {
	var dia string
	switch driver {
	case DriverSQLite, "":
		driver, dia = DriverSQLite, dialect.SQLite
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		dia = dialect.Postgres
	case DriverMySQL:
		dia = dialect.MySQL
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	drv := entsql.OpenDB(dia, db)
	if err := migrate(context.Background(), drv); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{
		db:      db,
		x:       sqlx.NewDb(db, driver),
		drv:     drv,
		dialect: dia,
	}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the ent dialect name of the connection.
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// ChildRepo returns a ChildRepo backed by this store.
func (s *Store) ChildRepo() ChildRepo {
	return &childRepo{s}
}

// SessionRepo returns a SessionRepo backed by this store.
func (s *Store) SessionRepo() SessionRepo {
	return &sessionRepo{s}
}

// QuestionRepo returns a QuestionRepo backed by this store.
func (s *Store) QuestionRepo() QuestionRepo {
	return &questionRepo{s}
}

// ProgressRepo returns a ProgressRepo backed by this store.
func (s *Store) ProgressRepo() ProgressRepo {
	return &progressRepo{s}
}

// LessonRepo returns a LessonRepo backed by this store.
func (s *Store) LessonRepo() LessonRepo {
	return &lessonRepo{s}
}

// NotificationRepo returns a NotificationRepo backed by this store.
func (s *Store) NotificationRepo() NotificationRepo {
	return &notificationRepo{s}
}

// LLMEventRepo returns an LLMEventRepo backed by this store.
func (s *Store) LLMEventRepo() LLMEventRepo {
	return &llmEventRepo{s}
}

// builder returns an ent SQL builder for the connection's dialect.
func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

// exec runs a built statement and returns the number of affected rows.
func (s *Store) exec(ctx context.Context, q entsql.Querier) (int64, error) {
	query, args := q.Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// selectRows scans all rows of a built query into dest, a pointer to a slice.
func (s *Store) selectRows(ctx context.Context, dest any, q entsql.Querier) error {
	query, args := q.Query()
	return s.x.SelectContext(ctx, dest, query, args...)
}

// getRow scans a single row into dest, mapping sql.ErrNoRows to ErrNotFound.
func (s *Store) getRow(ctx context.Context, dest any, q entsql.Querier) error {
	query, args := q.Query()
	err := s.x.GetContext(ctx, dest, query, args...)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

// sqlitePragmas are applied on every pooled connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
}

// sqliteDSN appends the pragmas to dsn as _pragma parameters so that each
// new connection in the pool is configured, not only the first one.
func sqliteDSN(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		name := p[:strings.IndexByte(p, '(')]
		if strings.Contains(dsn, "_pragma="+name) {
			continue
		}
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// DefaultDBPath resolves the database file path in priority order:
// 1. CHECKIN_DB environment variable
// 2. $XDG_DATA_HOME/checkin/checkin.db
// 3. ~/.local/share/checkin/checkin.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("CHECKIN_DB"); p != "" {
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "checkin", "checkin.db")
	return p, ensureDir(p)
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
