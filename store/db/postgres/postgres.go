package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/itemsearch/internal/profile"
	"github.com/hrygo/itemsearch/store"
)

type DB struct {
	db        *sql.DB
	profile   *profile.Profile
	vectorOps string
}

// NewDB opens a PostgreSQL (or AnalyticDB for PostgreSQL) database and
// checks that it is reachable.
func NewDB(instanceProfile *profile.Profile) (store.Driver, error) {
	if instanceProfile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("postgres", instanceProfile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db")
	}

	// Pipeline runs hold a connection for their whole duration.
	db.SetMaxOpenConns(32)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	vectorOps := instanceProfile.VectorOps
	if vectorOps == "" {
		vectorOps = profile.VectorOpsArray
	}

	slog.Info("connected to postgres", "vector_ops", vectorOps)
	return &DB{db: db, profile: instanceProfile, vectorOps: vectorOps}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate creates item_table and its category index.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range d.schema() {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to execute migration %q", firstLine(stmt))
		}
	}
	return nil
}

func (d *DB) schema() []string {
	featureType := "REAL[]"
	stmts := []string{}
	if d.vectorOps == profile.VectorOpsPgvector {
		featureType = "vector"
		stmts = append(stmts, `CREATE EXTENSION IF NOT EXISTS vector`)
	}
	return append(stmts,
		`CREATE TABLE IF NOT EXISTS item_table (
			image_name TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			image_data_thumbnail BYTEA NOT NULL,
			attributes TEXT,
			feature `+featureType+` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_item_table_category ON item_table (category)`,
	)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func placeholders(n int) string {
	list := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		list = append(list, placeholder(i))
	}
	return strings.Join(list, ", ")
}
