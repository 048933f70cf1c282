package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/itemsearch/store"
)

// float32ArrayToBLOB converts a []float32 to a little-endian BLOB.
func float32ArrayToBLOB(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf
}

// blobToFloat32Array is the inverse of float32ArrayToBLOB.
func blobToFloat32Array(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("invalid BLOB length: %d is not a multiple of 4", len(blob))
	}

	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return vec, nil
}

// l2Distance is the squared Euclidean distance, the same measure the
// l2_distance function of the analytic database returns.
func l2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return sum, nil
}

func (d *DB) CreateItem(ctx context.Context, create *store.CatalogItem) error {
	stmt := `INSERT INTO item_table (image_name, category, image_data_thumbnail, attributes, feature)
		VALUES (?, ?, ?, ?, ?)`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ImageName,
		create.Category,
		create.Thumbnail,
		create.Attributes,
		float32ArrayToBLOB(create.Feature),
	); err != nil {
		return errors.Wrapf(err, "failed to insert item %s", create.ImageName)
	}
	return nil
}

func (d *DB) CountItems(ctx context.Context) (int64, error) {
	var count int64
	if err := d.db.QueryRowContext(ctx, `SELECT count(*) FROM item_table`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count items")
	}
	return count, nil
}

// SearchItems filters in SQL and, for ranked searches, computes distances
// over every candidate in Go.
func (d *DB) SearchItems(ctx context.Context, find *store.SearchItems) ([]*store.ItemWithDistance, error) {
	// instr() is case-sensitive, unlike LIKE in SQLite.
	where, args := []string{"category = ?"}, []any{find.Category}
	for _, keyword := range find.Keywords {
		where, args = append(where, "instr(attributes, ?) > 0"), append(args, keyword)
	}

	if !find.HasVector() {
		query := `SELECT image_name, image_data_thumbnail FROM item_table
			WHERE ` + strings.Join(where, " AND ") + `
			LIMIT ?`
		return d.queryItems(ctx, query, append(args, find.Limit)...)
	}

	query := `SELECT image_name, image_data_thumbnail, feature FROM item_table
		WHERE ` + strings.Join(where, " AND ")
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search items")
	}
	defer rows.Close()

	list := []*store.ItemWithDistance{}
	for rows.Next() {
		var item store.ItemWithDistance
		var blob []byte
		if err := rows.Scan(&item.ImageName, &item.Thumbnail, &blob); err != nil {
			return nil, errors.Wrap(err, "failed to scan item")
		}
		feature, err := blobToFloat32Array(blob)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid feature for item %s", item.ImageName)
		}
		dist, err := l2Distance(find.Vector, feature)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to rank item %s", item.ImageName)
		}
		item.Distance = &dist
		list = append(list, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(list, func(i, j int) bool {
		return *list[i].Distance < *list[j].Distance
	})
	if len(list) > find.Limit {
		list = list[:find.Limit]
	}
	return list, nil
}

func (d *DB) queryItems(ctx context.Context, query string, args ...any) ([]*store.ItemWithDistance, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search items")
	}
	defer rows.Close()

	list := []*store.ItemWithDistance{}
	for rows.Next() {
		var item store.ItemWithDistance
		if err := rows.Scan(&item.ImageName, &item.Thumbnail); err != nil {
			return nil, errors.Wrap(err, "failed to scan item")
		}
		list = append(list, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
