package relational

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"cortexdb/internal/domain"
)

// recordTableName returns the generated parent table name for a collection.
// database and collection are both already constrained to identifier-safe
// patterns by domain.ValidateDatabaseName / CollectionSchema.Validate, so
// direct interpolation into DDL is safe.
func recordTableName(database, collection string) string {
	return fmt.Sprintf("rec_%s_%s", database, collection)
}

// childTableName returns the generated child table name for an array field.
func childTableName(database, collection, field string) string {
	return fmt.Sprintf("rec_%s_%s_%s", database, collection, field)
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func pgColumnType(t domain.FieldType) string {
	switch t {
	case domain.FieldString, domain.FieldText, domain.FieldEnum, domain.FieldFile:
		return "TEXT"
	case domain.FieldInt:
		return "BIGINT"
	case domain.FieldFloat:
		return "DOUBLE PRECISION"
	case domain.FieldBoolean:
		return "BOOLEAN"
	case domain.FieldDate:
		return "DATE"
	case domain.FieldDateTime:
		return "TIMESTAMPTZ"
	case domain.FieldJSON:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func storesIn(locations []domain.StoreLocation, want domain.StoreLocation) bool {
	for _, l := range locations {
		if l == want {
			return true
		}
	}
	return false
}

// CreateCollectionTables generates the parent record table and one child
// table per array field for schema, each scoped to schema.Database and
// schema.Name so that identical collection names in different databases
// never collide.
func (s *Store) CreateCollectionTables(ctx context.Context, schema domain.CollectionSchema) error {
	parent := recordTableName(schema.Database, schema.Name)

	var cols []string
	cols = append(cols, "id UUID PRIMARY KEY", "created_at TIMESTAMPTZ NOT NULL DEFAULT now()", "updated_at TIMESTAMPTZ NOT NULL DEFAULT now()")
	for _, f := range schema.Fields {
		if f.Array != nil {
			continue
		}
		sf := f.Scalar
		if !storesIn(sf.StoreIn, domain.StorePostgres) {
			continue
		}
		col := fmt.Sprintf("%s %s", quoteIdent(sf.Name), pgColumnType(sf.Type))
		if sf.Required {
			col += " NOT NULL"
		}
		if sf.Unique {
			col += " UNIQUE"
		}
		cols = append(cols, col)
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(parent), strings.Join(cols, ", "))
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("relational: create record table %s: %w", parent, domain.NewSubSystemError("relational", "relational.create_collection", domain.ErrRelationalStore, err.Error()))
	}

	for _, f := range schema.Fields {
		if f.Array == nil {
			continue
		}
		af := f.Array
		if !storesIn(af.StoreIn, domain.StorePostgres) {
			continue
		}
		child := childTableName(schema.Database, schema.Name, af.Name)
		var childCols []string
		childCols = append(childCols, "id UUID PRIMARY KEY", fmt.Sprintf("parent_id UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE", quoteIdent(parent)), "position INT NOT NULL")
		for _, nested := range af.Schema {
			if nested.Array != nil {
				continue // nested arrays are not supported; flattened one level only
			}
			ns := nested.Scalar
			if !storesIn(ns.StoreIn, domain.StorePostgres) {
				continue
			}
			col := fmt.Sprintf("%s %s", quoteIdent(ns.Name), pgColumnType(ns.Type))
			if ns.Required {
				col += " NOT NULL"
			}
			childCols = append(childCols, col)
		}
		childDDL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(child), strings.Join(childCols, ", "))
		if _, err := s.pool.Exec(ctx, childDDL); err != nil {
			return fmt.Errorf("relational: create child table %s: %w", child, domain.NewSubSystemError("relational", "relational.create_collection", domain.ErrRelationalStore, err.Error()))
		}
	}
	return nil
}

// DropCollectionTables drops a collection's parent and child tables. Child
// tables are derived from schema.Fields so the caller must still hold the
// schema at delete time (the catalog use case reads it before dropping).
func (s *Store) DropCollectionTables(ctx context.Context, schema domain.CollectionSchema) error {
	for _, f := range schema.Fields {
		if f.Array == nil || !storesIn(f.Array.StoreIn, domain.StorePostgres) {
			continue
		}
		child := childTableName(schema.Database, schema.Name, f.Array.Name)
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(child))); err != nil {
			return fmt.Errorf("relational: drop child table %s: %w", child, err)
		}
	}
	parent := recordTableName(schema.Database, schema.Name)
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(parent))); err != nil {
		return fmt.Errorf("relational: drop record table %s: %w", parent, err)
	}
	return nil
}
