package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/itemsearch/internal/profile"
	"github.com/hrygo/itemsearch/store"
)

// ============================================================================
// SQLITE SUPPORT POLICY
// ============================================================================
// SQLite is supported for development and testing only.
//
// - Features are stored as little-endian float32 BLOBs.
// - Distance ranking is computed in the Go application layer (O(n) per search).
// - There is no pipeline function; recognition needs --recognizer-url.
// ============================================================================

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database specified by its database driver name and a
// driver-specific data source name, usually consisting of at least a
// database name and connection information.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Ensure a DSN is set before attempting to open the database.
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Connect to the database with some sane settings:
	// - Journal mode set to WAL: it's the recommended journal mode for most applications
	// as it prevents locking issues.
	// - busy_timeout so concurrent writers wait instead of failing immediately.
	//
	// Notes:
	// - When using the `modernc.org/sqlite` driver, each pragma must be prefixed with `_pragma=`.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	sqliteDB.SetMaxOpenConns(1)    // SQLite: single connection is optimal with WAL
	sqliteDB.SetMaxIdleConns(1)    // Keep the single connection ready
	sqliteDB.SetConnMaxLifetime(0) // No lifetime limit (local file, no network)
	sqliteDB.SetConnMaxIdleTime(0)

	driver := DB{db: sqliteDB, profile: profile}

	return &driver, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS item_table (
			image_name TEXT NOT NULL PRIMARY KEY,
			category TEXT NOT NULL,
			image_data_thumbnail BLOB NOT NULL,
			attributes TEXT,
			feature BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_item_table_category ON item_table (category)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate item_table")
		}
	}
	return nil
}

// RunPipeline is not available: SQLite hosts no recognition pipelines.
func (d *DB) RunPipeline(_ context.Context, pipeline string, _ []byte) (string, error) {
	return "", errors.Errorf("pipeline %s not available in SQLite (configure a recognizer url)", pipeline)
}
