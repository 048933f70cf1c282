package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/itemsearch/internal/profile"
	"github.com/hrygo/itemsearch/store"
)

// CreateItem inserts a catalog item with a single statement.
func (d *DB) CreateItem(ctx context.Context, create *store.CatalogItem) error {
	stmt := `
		INSERT INTO item_table (image_name, category, image_data_thumbnail, attributes, feature)
		VALUES (` + placeholders(5) + `)`

	if _, err := d.db.ExecContext(ctx, stmt,
		create.ImageName,
		create.Category,
		create.Thumbnail,
		create.Attributes,
		d.featureArg(create.Feature),
	); err != nil {
		return errors.Wrapf(err, "failed to insert item %s", create.ImageName)
	}
	return nil
}

// CountItems returns the row count of item_table.
func (d *DB) CountItems(ctx context.Context) (int64, error) {
	var count int64
	if err := d.db.QueryRowContext(ctx, `SELECT count(*) FROM item_table`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count items")
	}
	return count, nil
}

// SearchItems runs the category and keyword filtered, optionally distance
// ranked, catalog query.
func (d *DB) SearchItems(ctx context.Context, find *store.SearchItems) ([]*store.ItemWithDistance, error) {
	query, args := d.buildSearchQuery(find)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search items")
	}
	defer rows.Close()

	list := []*store.ItemWithDistance{}
	for rows.Next() {
		var item store.ItemWithDistance
		dest := []any{&item.ImageName, &item.Thumbnail}
		var dist sql.NullFloat64
		if find.HasVector() {
			dest = append(dest, &dist)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "failed to scan item")
		}
		if find.HasVector() {
			distance, err := rankedDistance(item.ImageName, dist)
			if err != nil {
				return nil, err
			}
			item.Distance = distance
		}
		list = append(list, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// rankedDistance rejects rows the distance function could not rank, e.g. a
// feature of a different dimension.
func rankedDistance(imageName string, dist sql.NullFloat64) (*float64, error) {
	if !dist.Valid {
		return nil, errors.Errorf("no distance for item %s", imageName)
	}
	return &dist.Float64, nil
}

func (d *DB) buildSearchQuery(find *store.SearchItems) (string, []any) {
	columns := []string{"image_name", "image_data_thumbnail"}
	where, args := []string{}, []any{}

	if find.HasVector() {
		args = append(args, d.featureArg(find.Vector))
		columns = append(columns, d.distanceExpr(placeholder(len(args)))+" AS dist")
	}

	where, args = append(where, "category = "+placeholder(len(args)+1)), append(args, find.Category)
	for _, keyword := range find.Keywords {
		where, args = append(where, "attributes LIKE "+placeholder(len(args)+1)), append(args, "%"+escapeLike(keyword)+"%")
	}

	query := `SELECT ` + strings.Join(columns, ", ") + `
		FROM item_table
		WHERE ` + strings.Join(where, " AND ")
	if find.HasVector() {
		query += `
		ORDER BY dist`
	}
	args = append(args, find.Limit)
	query += `
		LIMIT ` + placeholder(len(args))

	return query, args
}

// featureArg binds a feature vector for the configured column type.
func (d *DB) featureArg(feature []float32) any {
	if d.vectorOps == profile.VectorOpsPgvector {
		return pgvector.NewVector(feature)
	}
	return pq.Array(feature)
}

// distanceExpr is the store's distance between the bound vector and feature.
func (d *DB) distanceExpr(param string) string {
	if d.vectorOps == profile.VectorOpsPgvector {
		return "feature <-> " + param
	}
	return "public.l2_distance(" + param + "::real[], feature)"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes keyword match literally inside a LIKE pattern.
func escapeLike(keyword string) string {
	return likeEscaper.Replace(keyword)
}
