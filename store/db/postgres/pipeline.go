package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// RunPipeline invokes a recognition pipeline deployed in the analytic
// extension and returns the JSON text of its first result row.
func (d *DB) RunPipeline(ctx context.Context, pipeline string, image []byte) (string, error) {
	var result sql.NullString
	err := d.db.QueryRowContext(ctx,
		`SELECT open_analytic.pipeline_run_dist_random(`+placeholders(2)+`)`,
		pipeline, image,
	).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Errorf("pipeline %s returned no rows", pipeline)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to run pipeline %s", pipeline)
	}
	if !result.Valid {
		return "", errors.Errorf("pipeline %s returned null", pipeline)
	}
	return result.String, nil
}
