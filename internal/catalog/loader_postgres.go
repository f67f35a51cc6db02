package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"urbacert/internal/geo"
)

// PostgresLoader reads layer features out of a PostGIS database. It runs once
// at startup; the resulting Catalog is immutable so request handling never
// touches the database for layer data.
type PostgresLoader struct {
	db *sql.DB
}

// NewPostgresLoader wraps an open database handle.
func NewPostgresLoader(db *sql.DB) *PostgresLoader {
	return &PostgresLoader{db: db}
}

// Load materializes every described layer plus the commune table into a
// Catalog. Attribute whitelists are reconciled against the live table schema
// the same way the source pipeline did: declared columns missing from the
// table are dropped, declared order is preserved.
func (l *PostgresLoader) Load(ctx context.Context, descs []LayerDescriptor, communes []CommuneRecord, cadastral string) (*Catalog, error) {
	layers := make([]Layer, 0, len(descs))
	for _, desc := range descs {
		layer, err := l.loadLayer(ctx, desc)
		if err != nil {
			return nil, fmt.Errorf("load layer %s: %w", desc.Qualified(), err)
		}
		layers = append(layers, layer)
	}
	return New(layers, communes, cadastral), nil
}

func (l *PostgresLoader) loadLayer(ctx context.Context, desc LayerDescriptor) (Layer, error) {
	existing, err := l.tableColumns(ctx, desc.Schema, desc.Name)
	if err != nil {
		return Layer{}, err
	}

	keep := intersectOrdered(desc.KeepAttrs, existing)
	coverage := intersectOrdered(desc.CoverageAttrs, existing)

	idExpr := "ROW_NUMBER() OVER()::text"
	if _, ok := existing["id"]; ok {
		idExpr = `t."id"::text`
	}

	cols := make([]string, 0, len(keep)+2)
	cols = append(cols, idExpr, fmt.Sprintf("ST_AsText(t.%s)", pq.QuoteIdentifier(desc.GeomColumn)))
	for _, c := range keep {
		cols = append(cols, fmt.Sprintf("t.%s::text", pq.QuoteIdentifier(c)))
	}

	query := fmt.Sprintf("SELECT %s FROM %s.%s t WHERE t.%s IS NOT NULL",
		strings.Join(cols, ", "),
		pq.QuoteIdentifier(desc.Schema), pq.QuoteIdentifier(desc.Name),
		pq.QuoteIdentifier(desc.GeomColumn),
	)

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return Layer{}, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	var features []Feature
	for rows.Next() {
		var id, wkt string
		values := make([]sql.NullString, len(keep))
		scan := make([]any, 0, len(keep)+2)
		scan = append(scan, &id, &wkt)
		for i := range values {
			scan = append(scan, &values[i])
		}
		if err := rows.Scan(scan...); err != nil {
			return Layer{}, fmt.Errorf("scan feature: %w", err)
		}

		geom, err := geo.FromWKT(wkt)
		if err != nil {
			return Layer{}, fmt.Errorf("feature %s: %w", id, err)
		}

		attrs := make([]Attr, 0, len(keep))
		for i, name := range keep {
			if values[i].Valid {
				attrs = append(attrs, Attr{Name: name, Value: values[i].String})
			}
		}
		features = append(features, Feature{ID: id, Geometry: geom, Attrs: attrs})
	}
	if err := rows.Err(); err != nil {
		return Layer{}, fmt.Errorf("iterate features: %w", err)
	}

	return Layer{
		Schema:         desc.Schema,
		Name:           desc.Name,
		GeomColumn:     desc.GeomColumn,
		KeepAttrs:      keep,
		CoverageAttrs:  coverage,
		EnclaveTrigger: desc.EnclaveTrigger,
		Features:       features,
	}, nil
}

// tableColumns returns the live column set of schema.table.
func (l *PostgresLoader) tableColumns(ctx context.Context, schema, table string) (map[string]struct{}, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

// intersectOrdered keeps the declared entries that exist in the table, in
// declared order.
func intersectOrdered(declared []string, existing map[string]struct{}) []string {
	var out []string
	for _, c := range declared {
		if _, ok := existing[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
