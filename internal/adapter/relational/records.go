package relational

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cortexdb/internal/domain"
)

// scalarPostgresFields returns the schema's top-level scalar fields that are
// written to Postgres, in declaration order.
func scalarPostgresFields(schema domain.CollectionSchema) []domain.ScalarField {
	var out []domain.ScalarField
	for _, f := range schema.Fields {
		if f.Scalar != nil && storesIn(f.Scalar.StoreIn, domain.StorePostgres) {
			out = append(out, *f.Scalar)
		}
	}
	return out
}

// arrayPostgresFields returns the schema's array fields written to Postgres.
func arrayPostgresFields(schema domain.CollectionSchema) []domain.ArrayField {
	var out []domain.ArrayField
	for _, f := range schema.Fields {
		if f.Array != nil && storesIn(f.Array.StoreIn, domain.StorePostgres) {
			out = append(out, *f.Array)
		}
	}
	return out
}

func nestedPostgresFields(af domain.ArrayField) []domain.ScalarField {
	var out []domain.ScalarField
	for _, nested := range af.Schema {
		if nested.Scalar != nil && storesIn(nested.Scalar.StoreIn, domain.StorePostgres) {
			out = append(out, *nested.Scalar)
		}
	}
	return out
}

func valueToParam(v domain.Value, ft domain.FieldType) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	switch ft {
	case domain.FieldString, domain.FieldText, domain.FieldEnum, domain.FieldFile:
		return v.Str, nil
	case domain.FieldInt:
		return v.Int, nil
	case domain.FieldFloat:
		return v.Float, nil
	case domain.FieldBoolean:
		return v.Bool, nil
	case domain.FieldDate:
		t, err := time.Parse("2006-01-02", v.Str)
		if err != nil {
			return nil, fmt.Errorf("relational: parse date %q: %w", v.Str, err)
		}
		return t, nil
	case domain.FieldDateTime:
		t, err := time.Parse(time.RFC3339, v.Str)
		if err != nil {
			return nil, fmt.Errorf("relational: parse datetime %q: %w", v.Str, err)
		}
		return t, nil
	case domain.FieldJSON:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("relational: marshal json field: %w", err)
		}
		return raw, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return raw, nil
	}
}

func paramToValue(raw any, ft domain.FieldType) (domain.Value, error) {
	if raw == nil {
		return domain.NullValue(), nil
	}
	switch ft {
	case domain.FieldString, domain.FieldText, domain.FieldEnum, domain.FieldFile:
		s, _ := raw.(string)
		return domain.StringValue(s), nil
	case domain.FieldInt:
		switch n := raw.(type) {
		case int64:
			return domain.IntValue(n), nil
		case int32:
			return domain.IntValue(int64(n)), nil
		default:
			return domain.NullValue(), fmt.Errorf("relational: unexpected int scan type %T", raw)
		}
	case domain.FieldFloat:
		f, _ := raw.(float64)
		return domain.FloatValue(f), nil
	case domain.FieldBoolean:
		b, _ := raw.(bool)
		return domain.BoolValue(b), nil
	case domain.FieldDate:
		t, ok := raw.(time.Time)
		if !ok {
			return domain.NullValue(), fmt.Errorf("relational: unexpected date scan type %T", raw)
		}
		return domain.StringValue(t.Format("2006-01-02")), nil
	case domain.FieldDateTime:
		t, ok := raw.(time.Time)
		if !ok {
			return domain.NullValue(), fmt.Errorf("relational: unexpected datetime scan type %T", raw)
		}
		return domain.StringValue(t.Format(time.RFC3339)), nil
	case domain.FieldJSON:
		b, ok := raw.([]byte)
		if !ok {
			return domain.NullValue(), fmt.Errorf("relational: unexpected json scan type %T", raw)
		}
		var v domain.Value
		if err := json.Unmarshal(b, &v); err != nil {
			return domain.NullValue(), fmt.Errorf("relational: unmarshal json field: %w", err)
		}
		return v, nil
	default:
		return domain.NullValue(), nil
	}
}

// InsertRecord writes a prepared record's relational row and array child
// rows inside a single transaction.
func (s *Store) InsertRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID, prepared domain.PreparedRecord, now time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("relational: begin insert record: %w", err)
	}
	defer tx.Rollback(ctx)

	parent := recordTableName(schema.Database, schema.Name)
	cols := []string{"id", "created_at", "updated_at"}
	placeholders := []string{"$1", "$2", "$2"}
	args := []any{id.String(), now}

	for _, sf := range scalarPostgresFields(schema) {
		param, err := valueToParam(prepared.RelationalRow[sf.Name], sf.Type)
		if err != nil {
			return fmt.Errorf("relational: field %q: %w", sf.Name, err)
		}
		args = append(args, param)
		cols = append(cols, quoteIdent(sf.Name))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(parent), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := tx.Exec(ctx, insertSQL, args...); err != nil {
		return fmt.Errorf("relational: insert record: %w", domain.NewSubSystemError("relational", "relational.insert_record", domain.ErrRelationalStore, err.Error()))
	}

	for _, af := range arrayPostgresFields(schema) {
		child := childTableName(schema.Database, schema.Name, af.Name)
		nested := nestedPostgresFields(af)
		for position, row := range prepared.ArrayRows[af.Name] {
			childCols := []string{"id", "parent_id", "position"}
			childArgs := []any{uuid.New().String(), id.String(), position}
			childPlaceholders := []string{"$1", "$2", "$3"}
			for _, ns := range nested {
				param, err := valueToParam(row[ns.Name], ns.Type)
				if err != nil {
					return fmt.Errorf("relational: array field %q.%q: %w", af.Name, ns.Name, err)
				}
				childArgs = append(childArgs, param)
				childCols = append(childCols, quoteIdent(ns.Name))
				childPlaceholders = append(childPlaceholders, fmt.Sprintf("$%d", len(childArgs)))
			}
			childSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(child), strings.Join(childCols, ", "), strings.Join(childPlaceholders, ", "))
			if _, err := tx.Exec(ctx, childSQL, childArgs...); err != nil {
				return fmt.Errorf("relational: insert array row %s: %w", child, domain.NewSubSystemError("relational", "relational.insert_record", domain.ErrRelationalStore, err.Error()))
			}
		}
	}

	return tx.Commit(ctx)
}

// GetRecord reads a record's relational row and every array child table,
// assembling them back into a domain.Record.
func (s *Store) GetRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID) (domain.Record, error) {
	parent := recordTableName(schema.Database, schema.Name)
	scalarFields := scalarPostgresFields(schema)

	cols := []string{"created_at", "updated_at"}
	for _, sf := range scalarFields {
		cols = append(cols, quoteIdent(sf.Name))
	}
	querySQL := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", strings.Join(cols, ", "), quoteIdent(parent))
	row := s.pool.QueryRow(ctx, querySQL, id.String())

	dest := make([]any, len(cols))
	var createdAt, updatedAt time.Time
	dest[0] = &createdAt
	dest[1] = &updatedAt
	raw := make([]any, len(scalarFields))
	for i := range raw {
		dest[i+2] = &raw[i]
	}
	if err := row.Scan(dest...); err != nil {
		return domain.Record{}, domain.NewSubSystemError("record", "relational.get_record", domain.ErrNotFound, id.String())
	}

	fields := make(map[string]domain.Value, len(scalarFields))
	for i, sf := range scalarFields {
		v, err := paramToValue(raw[i], sf.Type)
		if err != nil {
			return domain.Record{}, fmt.Errorf("relational: decode field %q: %w", sf.Name, err)
		}
		fields[sf.Name] = v
	}

	for _, af := range arrayPostgresFields(schema) {
		items, err := s.getArrayRows(ctx, schema, af, id)
		if err != nil {
			return domain.Record{}, err
		}
		fields[af.Name] = domain.ListValue(items)
	}

	return domain.Record{ID: id, Fields: fields, CreatedAt: createdAt, UpdatedAt: updatedAt}, nil
}

func (s *Store) getArrayRows(ctx context.Context, schema domain.CollectionSchema, af domain.ArrayField, parentID uuid.UUID) ([]domain.Value, error) {
	child := childTableName(schema.Database, schema.Name, af.Name)
	nested := nestedPostgresFields(af)
	cols := make([]string, len(nested))
	for i, ns := range nested {
		cols[i] = quoteIdent(ns.Name)
	}
	querySQL := fmt.Sprintf("SELECT %s FROM %s WHERE parent_id = $1 ORDER BY position", strings.Join(cols, ", "), quoteIdent(child))
	rows, err := s.pool.Query(ctx, querySQL, parentID.String())
	if err != nil {
		return nil, fmt.Errorf("relational: query array rows %s: %w", child, err)
	}
	defer rows.Close()

	var out []domain.Value
	for rows.Next() {
		raw := make([]any, len(nested))
		dest := make([]any, len(nested))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("relational: scan array row %s: %w", child, err)
		}
		item := make(map[string]domain.Value, len(nested))
		for i, ns := range nested {
			v, err := paramToValue(raw[i], ns.Type)
			if err != nil {
				return nil, fmt.Errorf("relational: decode array field %q.%q: %w", af.Name, ns.Name, err)
			}
			item[ns.Name] = v
		}
		out = append(out, domain.MapValue(item))
	}
	return out, rows.Err()
}

// UpdateRecord replaces a record's relational row and fully replaces every
// array child table's rows (delete-then-reinsert), inside one transaction.
func (s *Store) UpdateRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID, prepared domain.PreparedRecord, now time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("relational: begin update record: %w", err)
	}
	defer tx.Rollback(ctx)

	parent := recordTableName(schema.Database, schema.Name)
	setClauses := []string{"updated_at = $1"}
	args := []any{now}
	for _, sf := range scalarPostgresFields(schema) {
		param, err := valueToParam(prepared.RelationalRow[sf.Name], sf.Type)
		if err != nil {
			return fmt.Errorf("relational: field %q: %w", sf.Name, err)
		}
		args = append(args, param)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", quoteIdent(sf.Name), len(args)))
	}
	args = append(args, id.String())
	updateSQL := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", quoteIdent(parent), strings.Join(setClauses, ", "), len(args))
	tag, err := tx.Exec(ctx, updateSQL, args...)
	if err != nil {
		return fmt.Errorf("relational: update record: %w", domain.NewSubSystemError("relational", "relational.update_record", domain.ErrRelationalStore, err.Error()))
	}
	if tag.RowsAffected() == 0 {
		return domain.NewSubSystemError("record", "relational.update_record", domain.ErrNotFound, id.String())
	}

	for _, af := range arrayPostgresFields(schema) {
		child := childTableName(schema.Database, schema.Name, af.Name)
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE parent_id = $1", quoteIdent(child)), id.String()); err != nil {
			return fmt.Errorf("relational: clear array rows %s: %w", child, err)
		}
		nested := nestedPostgresFields(af)
		for position, arow := range prepared.ArrayRows[af.Name] {
			childCols := []string{"id", "parent_id", "position"}
			childArgs := []any{uuid.New().String(), id.String(), position}
			childPlaceholders := []string{"$1", "$2", "$3"}
			for _, ns := range nested {
				param, err := valueToParam(arow[ns.Name], ns.Type)
				if err != nil {
					return fmt.Errorf("relational: array field %q.%q: %w", af.Name, ns.Name, err)
				}
				childArgs = append(childArgs, param)
				childCols = append(childCols, quoteIdent(ns.Name))
				childPlaceholders = append(childPlaceholders, fmt.Sprintf("$%d", len(childArgs)))
			}
			childSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(child), strings.Join(childCols, ", "), strings.Join(childPlaceholders, ", "))
			if _, err := tx.Exec(ctx, childSQL, childArgs...); err != nil {
				return fmt.Errorf("relational: reinsert array row %s: %w", child, err)
			}
		}
	}

	return tx.Commit(ctx)
}

// DeleteRecord removes a record's relational row; ON DELETE CASCADE drops
// its array child rows.
func (s *Store) DeleteRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID) error {
	parent := recordTableName(schema.Database, schema.Name)
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", quoteIdent(parent)), id.String())
	if err != nil {
		return fmt.Errorf("relational: delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewSubSystemError("record", "relational.delete_record", domain.ErrNotFound, id.String())
	}
	return nil
}

var filterOpSQL = map[domain.FilterOp]string{
	domain.OpEq:  "=",
	domain.OpNe:  "<>",
	domain.OpGt:  ">",
	domain.OpGte: ">=",
	domain.OpLt:  "<",
	domain.OpLte: "<=",
}

// FilterRecords runs a filtered, paginated scan over a collection's parent
// table, returning each matching row as a domain.Record (array fields are
// populated per row, same as GetRecord).
func (s *Store) FilterRecords(ctx context.Context, schema domain.CollectionSchema, filters []domain.QueryFilter, limit, offset int) ([]domain.Record, error) {
	parent := recordTableName(schema.Database, schema.Name)
	scalarFields := scalarPostgresFields(schema)
	fieldTypes := make(map[string]domain.FieldType, len(scalarFields))
	for _, sf := range scalarFields {
		fieldTypes[sf.Name] = sf.Type
	}

	cols := []string{"id", "created_at", "updated_at"}
	for _, sf := range scalarFields {
		cols = append(cols, quoteIdent(sf.Name))
	}

	var where []string
	var args []any
	for _, f := range filters {
		ft, ok := fieldTypes[f.Field]
		if !ok {
			return nil, fmt.Errorf("relational: filter on unknown or non-postgres field %q", f.Field)
		}
		op, ok := filterOpSQL[f.Op]
		if !ok {
			return nil, fmt.Errorf("relational: unsupported filter operator %q", f.Op)
		}
		param, err := valueToParam(f.Value, ft)
		if err != nil {
			return nil, fmt.Errorf("relational: filter value for %q: %w", f.Field, err)
		}
		args = append(args, param)
		where = append(where, fmt.Sprintf("%s %s $%d", quoteIdent(f.Field), op, len(args)))
	}

	querySQL := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteIdent(parent))
	if len(where) > 0 {
		querySQL += " WHERE " + strings.Join(where, " AND ")
	}
	querySQL += " ORDER BY created_at"
	if limit > 0 {
		args = append(args, limit)
		querySQL += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		querySQL += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("relational: filter records: %w", domain.NewSubSystemError("relational", "relational.filter_records", domain.ErrRelationalStore, err.Error()))
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var idStr string
		var createdAt, updatedAt time.Time
		raw := make([]any, len(scalarFields))
		dest := make([]any, 0, len(scalarFields)+3)
		dest = append(dest, &idStr, &createdAt, &updatedAt)
		for i := range raw {
			dest = append(dest, &raw[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("relational: scan filtered record: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("relational: parse record id: %w", err)
		}
		fields := make(map[string]domain.Value, len(scalarFields))
		for i, sf := range scalarFields {
			v, err := paramToValue(raw[i], sf.Type)
			if err != nil {
				return nil, fmt.Errorf("relational: decode field %q: %w", sf.Name, err)
			}
			fields[sf.Name] = v
		}
		for _, af := range arrayPostgresFields(schema) {
			items, err := s.getArrayRows(ctx, schema, af, id)
			if err != nil {
				return nil, err
			}
			fields[af.Name] = domain.ListValue(items)
		}
		out = append(out, domain.Record{ID: id, Fields: fields, CreatedAt: createdAt, UpdatedAt: updatedAt})
	}
	return out, rows.Err()
}
