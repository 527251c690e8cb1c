package relational

import (
	"testing"

	"cortexdb/internal/domain"
)

func TestRecordTableName(t *testing.T) {
	if got := recordTableName("tenant_a", "articles"); got != "rec_tenant_a_articles" {
		t.Errorf("recordTableName = %q", got)
	}
}

func TestChildTableName(t *testing.T) {
	if got := childTableName("tenant_a", "articles", "authors"); got != "rec_tenant_a_articles_authors" {
		t.Errorf("childTableName = %q", got)
	}
}

func TestPgColumnType(t *testing.T) {
	cases := map[domain.FieldType]string{
		domain.FieldString:   "TEXT",
		domain.FieldText:     "TEXT",
		domain.FieldInt:      "BIGINT",
		domain.FieldFloat:    "DOUBLE PRECISION",
		domain.FieldBoolean:  "BOOLEAN",
		domain.FieldDate:     "DATE",
		domain.FieldDateTime: "TIMESTAMPTZ",
		domain.FieldEnum:     "TEXT",
		domain.FieldFile:     "TEXT",
		domain.FieldJSON:     "JSONB",
	}
	for ft, want := range cases {
		if got := pgColumnType(ft); got != want {
			t.Errorf("pgColumnType(%s) = %q, want %q", ft, got, want)
		}
	}
}

func TestStoresIn(t *testing.T) {
	locs := []domain.StoreLocation{domain.StorePostgres, domain.StoreQdrant}
	if !storesIn(locs, domain.StorePostgres) {
		t.Error("expected StorePostgres present")
	}
	if storesIn(locs, domain.StoreMinio) {
		t.Error("expected StoreMinio absent")
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent("title"); got != `"title"` {
		t.Errorf("quoteIdent = %q", got)
	}
}

func scalarSchema(fields ...domain.ScalarField) domain.CollectionSchema {
	var fs []domain.Field
	for _, f := range fields {
		sf := f
		fs = append(fs, domain.NewScalarField(sf))
	}
	return domain.CollectionSchema{Name: "articles", Database: "tenant_a", Fields: fs}
}

func TestScalarPostgresFieldsFiltersByStoreIn(t *testing.T) {
	schema := scalarSchema(
		domain.ScalarField{Name: "title", Type: domain.FieldString, StoreIn: []domain.StoreLocation{domain.StorePostgres}},
		domain.ScalarField{Name: "embedding", Type: domain.FieldText, StoreIn: []domain.StoreLocation{domain.StoreQdrant}},
	)
	got := scalarPostgresFields(schema)
	if len(got) != 1 || got[0].Name != "title" {
		t.Fatalf("scalarPostgresFields = %+v", got)
	}
}

func TestArrayPostgresFieldsFiltersByStoreIn(t *testing.T) {
	schema := domain.CollectionSchema{
		Name:     "articles",
		Database: "tenant_a",
		Fields: []domain.Field{
			domain.NewArrayField(domain.ArrayField{
				Name:    "authors",
				StoreIn: []domain.StoreLocation{domain.StorePostgres},
				Schema: []domain.Field{
					domain.NewScalarField(domain.ScalarField{Name: "name", Type: domain.FieldString, StoreIn: []domain.StoreLocation{domain.StorePostgres}}),
				},
			}),
			domain.NewArrayField(domain.ArrayField{
				Name:    "tags",
				StoreIn: []domain.StoreLocation{domain.StoreQdrantPayload},
				Schema: []domain.Field{
					domain.NewScalarField(domain.ScalarField{Name: "label", Type: domain.FieldString, StoreIn: []domain.StoreLocation{domain.StoreQdrantPayload}}),
				},
			}),
		},
	}
	got := arrayPostgresFields(schema)
	if len(got) != 1 || got[0].Name != "authors" {
		t.Fatalf("arrayPostgresFields = %+v", got)
	}
	nested := nestedPostgresFields(got[0])
	if len(nested) != 1 || nested[0].Name != "name" {
		t.Fatalf("nestedPostgresFields = %+v", nested)
	}
}

func TestValueToParamRoundTripsScalarTypes(t *testing.T) {
	cases := []struct {
		v  domain.Value
		ft domain.FieldType
	}{
		{domain.StringValue("hi"), domain.FieldString},
		{domain.IntValue(42), domain.FieldInt},
		{domain.FloatValue(3.5), domain.FieldFloat},
		{domain.BoolValue(true), domain.FieldBoolean},
	}
	for _, tc := range cases {
		param, err := valueToParam(tc.v, tc.ft)
		if err != nil {
			t.Fatalf("valueToParam(%v): %v", tc.ft, err)
		}
		back, err := paramToValue(param, tc.ft)
		if err != nil {
			t.Fatalf("paramToValue(%v): %v", tc.ft, err)
		}
		if back.Kind != tc.v.Kind || back.Str != tc.v.Str || back.Int != tc.v.Int || back.Float != tc.v.Float || back.Bool != tc.v.Bool {
			t.Errorf("round trip %v: got %+v, want %+v", tc.ft, back, tc.v)
		}
	}
}

func TestValueToParamNullPassesThrough(t *testing.T) {
	param, err := valueToParam(domain.NullValue(), domain.FieldString)
	if err != nil {
		t.Fatalf("valueToParam: %v", err)
	}
	if param != nil {
		t.Errorf("expected nil param for null value, got %v", param)
	}
	back, err := paramToValue(nil, domain.FieldString)
	if err != nil {
		t.Fatalf("paramToValue: %v", err)
	}
	if !back.IsNull() {
		t.Errorf("expected null value, got %+v", back)
	}
}

func TestValueToParamDateTimeFormats(t *testing.T) {
	param, err := valueToParam(domain.StringValue("2026-07-31T10:00:00Z"), domain.FieldDateTime)
	if err != nil {
		t.Fatalf("valueToParam: %v", err)
	}
	back, err := paramToValue(param, domain.FieldDateTime)
	if err != nil {
		t.Fatalf("paramToValue: %v", err)
	}
	if back.Str != "2026-07-31T10:00:00Z" {
		t.Errorf("datetime round trip = %q", back.Str)
	}
}

func TestValueToParamJSONField(t *testing.T) {
	v := domain.MapValue(map[string]domain.Value{"nested": domain.IntValue(1)})
	param, err := valueToParam(v, domain.FieldJSON)
	if err != nil {
		t.Fatalf("valueToParam: %v", err)
	}
	raw, ok := param.([]byte)
	if !ok || len(raw) == 0 {
		t.Fatalf("expected non-empty []byte json param, got %T", param)
	}
	back, err := paramToValue(raw, domain.FieldJSON)
	if err != nil {
		t.Fatalf("paramToValue: %v", err)
	}
	if back.Kind != domain.KindMap || back.Map["nested"].Int != 1 {
		t.Errorf("json round trip = %+v", back)
	}
}

func TestFilterOpSQLCoversAllOps(t *testing.T) {
	ops := []domain.FilterOp{domain.OpEq, domain.OpNe, domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte}
	for _, op := range ops {
		if _, ok := filterOpSQL[op]; !ok {
			t.Errorf("missing SQL translation for filter op %q", op)
		}
	}
}
