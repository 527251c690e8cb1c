package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"cortexdb/internal/domain"
)

type fakeCatalog struct {
	databases []domain.Database
	createErr error
	deleteErr error
}

func (f *fakeCatalog) CreateDatabase(ctx context.Context, name, description string) (domain.Database, error) {
	if f.createErr != nil {
		return domain.Database{}, f.createErr
	}
	db := domain.Database{ID: uuid.New(), Name: name, Description: description}
	f.databases = append(f.databases, db)
	return db, nil
}

func (f *fakeCatalog) ListDatabases(ctx context.Context) ([]domain.Database, error) {
	return f.databases, nil
}

func (f *fakeCatalog) DeleteDatabase(ctx context.Context, name string) error {
	return f.deleteErr
}

func (f *fakeCatalog) CreateCollection(ctx context.Context, schema domain.CollectionSchema) (domain.CollectionSchema, error) {
	return schema, nil
}

func (f *fakeCatalog) GetCollection(ctx context.Context, database, name string) (domain.CollectionSchema, error) {
	if name == "missing" {
		return domain.CollectionSchema{}, domain.NewSubSystemError("collection", "catalog.get", domain.ErrCollectionNotFound, name)
	}
	return domain.CollectionSchema{Database: database, Name: name}, nil
}

func (f *fakeCatalog) ListCollections(ctx context.Context, database string) ([]domain.CollectionSchema, error) {
	return nil, nil
}

func (f *fakeCatalog) DeleteCollection(ctx context.Context, database, name string) error { return nil }

func (f *fakeCatalog) CreateProvider(ctx context.Context, cfg domain.ProviderConfig) (domain.EmbeddingProviderView, error) {
	return cfg.View(), nil
}

func (f *fakeCatalog) ListProviders(ctx context.Context) ([]domain.EmbeddingProviderView, error) {
	return nil, nil
}

func (f *fakeCatalog) DeleteProvider(ctx context.Context, name string) error { return nil }

func (f *fakeCatalog) CreateAPIKey(ctx context.Context, key domain.APIKey) (domain.APIKey, string, error) {
	return key, "raw-key-value", nil
}

func (f *fakeCatalog) ListAPIKeys(ctx context.Context) ([]domain.APIKey, error) { return nil, nil }

func (f *fakeCatalog) RevokeAPIKey(ctx context.Context, id string) error { return nil }

type fakeIngest struct {
	createErr error
}

func (f *fakeIngest) CreateRecord(ctx context.Context, database, collection string, fields map[string]domain.Value) (domain.Record, error) {
	if f.createErr != nil {
		return domain.Record{}, f.createErr
	}
	return domain.Record{ID: uuid.New(), Fields: fields}, nil
}

func (f *fakeIngest) UpdateRecord(ctx context.Context, database, collection, id string, fields map[string]domain.Value) (domain.Record, error) {
	return domain.Record{Fields: fields}, nil
}

func (f *fakeIngest) DeleteRecord(ctx context.Context, database, collection, id string) error {
	return nil
}

func (f *fakeIngest) GetRecord(ctx context.Context, database, collection, id string) (domain.Record, error) {
	return domain.Record{Fields: map[string]domain.Value{"title": domain.StringValue("hello")}}, nil
}

type fakeSearch struct{}

func (f *fakeSearch) Search(ctx context.Context, database, collection, query string, filters []domain.QueryFilter, limit int) (domain.SearchResponse, error) {
	return domain.SearchResponse{Results: []domain.SearchResult{{Score: 0.9}}, Total: 1}, nil
}

func adminContext() context.Context {
	return domain.ContextWithAuth(context.Background(), domain.APIKeyAuth{Permissions: domain.Permissions{Admin: true}})
}

func TestCreateDatabaseHandler(t *testing.T) {
	deps := HandlerDeps{Catalog: &fakeCatalog{}}
	handler := createDatabaseHandler(deps)

	body := bytes.NewBufferString(`{"name":"tenant_a","description":"first tenant"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/databases", body)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var db domain.Database
	if err := json.NewDecoder(w.Body).Decode(&db); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if db.Name != "tenant_a" {
		t.Errorf("Name = %q", db.Name)
	}
}

func TestCreateDatabaseHandlerMalformedBody(t *testing.T) {
	deps := HandlerDeps{Catalog: &fakeCatalog{}}
	handler := createDatabaseHandler(deps)

	req := httptest.NewRequest(http.MethodPost, "/v1/databases", bytes.NewBufferString(`{not json`))
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateDatabaseHandlerDuplicateError(t *testing.T) {
	deps := HandlerDeps{Catalog: &fakeCatalog{createErr: domain.NewDomainError("catalog.create", domain.ErrDatabaseDuplicate, "tenant_a")}}
	handler := createDatabaseHandler(deps)

	req := httptest.NewRequest(http.MethodPost, "/v1/databases", bytes.NewBufferString(`{"name":"tenant_a"}`))
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestListDatabasesHandler(t *testing.T) {
	catalog := &fakeCatalog{databases: []domain.Database{{Name: "a"}, {Name: "b"}}}
	handler := listDatabasesHandler(HandlerDeps{Catalog: catalog})

	req := httptest.NewRequest(http.MethodGet, "/v1/databases", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	var dbs []domain.Database
	json.NewDecoder(w.Body).Decode(&dbs)
	if len(dbs) != 2 {
		t.Fatalf("len = %d, want 2", len(dbs))
	}
}

func TestGetCollectionHandlerNotFound(t *testing.T) {
	handler := getCollectionHandler(HandlerDeps{Catalog: &fakeCatalog{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/databases/tenant_a/collections/missing", nil)
	req.SetPathValue("database", "tenant_a")
	req.SetPathValue("collection", "missing")
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestCreateRecordHandlerRequiresAuth(t *testing.T) {
	handler := createRecordHandler(HandlerDeps{Ingest: &fakeIngest{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/databases/tenant_a/collections/docs/records", bytes.NewBufferString(`{}`))
	req.SetPathValue("database", "tenant_a")
	req.SetPathValue("collection", "docs")
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestCreateRecordHandlerSuccess(t *testing.T) {
	metrics := &Metrics{}
	handler := createRecordHandler(HandlerDeps{Ingest: &fakeIngest{}, Metrics: metrics})

	req := httptest.NewRequest(http.MethodPost, "/v1/databases/tenant_a/collections/docs/records",
		bytes.NewBufferString(`{"title":"hello"}`))
	req.SetPathValue("database", "tenant_a")
	req.SetPathValue("collection", "docs")
	req = req.WithContext(adminContext())
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if metrics.RecordsIngested.Load() != 1 {
		t.Errorf("RecordsIngested = %d, want 1", metrics.RecordsIngested.Load())
	}
}

func TestCreateRecordHandlerReadonlyRejected(t *testing.T) {
	handler := createRecordHandler(HandlerDeps{Ingest: &fakeIngest{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/databases/tenant_a/collections/docs/records", bytes.NewBufferString(`{}`))
	req.SetPathValue("database", "tenant_a")
	req.SetPathValue("collection", "docs")
	ctx := domain.ContextWithAuth(context.Background(), domain.APIKeyAuth{Permissions: domain.Permissions{Readonly: true}})
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestCreateRecordHandlerOutOfScopeDatabase(t *testing.T) {
	handler := createRecordHandler(HandlerDeps{Ingest: &fakeIngest{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/databases/tenant_b/collections/docs/records", bytes.NewBufferString(`{}`))
	req.SetPathValue("database", "tenant_b")
	req.SetPathValue("collection", "docs")
	ctx := domain.ContextWithAuth(context.Background(), domain.APIKeyAuth{Databases: []string{"tenant_a"}})
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestGetRecordHandlerSuccess(t *testing.T) {
	handler := getRecordHandler(HandlerDeps{Ingest: &fakeIngest{}})

	req := httptest.NewRequest(http.MethodGet, "/v1/databases/tenant_a/collections/docs/records/abc", nil)
	req.SetPathValue("database", "tenant_a")
	req.SetPathValue("collection", "docs")
	req.SetPathValue("id", "abc")
	req = req.WithContext(adminContext())
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var rec domain.Record
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Fields["title"].Str != "hello" {
		t.Errorf("title = %q", rec.Fields["title"].Str)
	}
}

func TestDeleteRecordHandlerSuccess(t *testing.T) {
	handler := deleteRecordHandler(HandlerDeps{Ingest: &fakeIngest{}})

	req := httptest.NewRequest(http.MethodDelete, "/v1/databases/tenant_a/collections/docs/records/abc", nil)
	req.SetPathValue("database", "tenant_a")
	req.SetPathValue("collection", "docs")
	req.SetPathValue("id", "abc")
	req = req.WithContext(adminContext())
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
}

func TestSearchHandlerSuccess(t *testing.T) {
	metrics := &Metrics{}
	handler := searchHandler(HandlerDeps{Search: &fakeSearch{}, Metrics: metrics})

	req := httptest.NewRequest(http.MethodPost, "/v1/databases/tenant_a/collections/docs/search",
		bytes.NewBufferString(`{"query":"hello","limit":5}`))
	req.SetPathValue("database", "tenant_a")
	req.SetPathValue("collection", "docs")
	req = req.WithContext(adminContext())
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp domain.SearchResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Results) != 1 {
		t.Fatalf("len = %d, want 1", len(resp.Results))
	}
	if metrics.SearchesTotal.Load() != 1 {
		t.Errorf("SearchesTotal = %d, want 1", metrics.SearchesTotal.Load())
	}
}

func TestSearchHandlerDefaultsLimit(t *testing.T) {
	handler := searchHandler(HandlerDeps{Search: &fakeSearch{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/databases/tenant_a/collections/docs/search",
		bytes.NewBufferString(`{"query":"hello"}`))
	req.SetPathValue("database", "tenant_a")
	req.SetPathValue("collection", "docs")
	req = req.WithContext(adminContext())
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestCreateAPIKeyHandlerReturnsRawKeyOnce(t *testing.T) {
	handler := createAPIKeyHandler(HandlerDeps{Catalog: &fakeCatalog{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/apikeys", bytes.NewBufferString(`{"Name":"ci-key","Type":"readonly"}`))
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var resp struct {
		domain.APIKey
		Key string `json:"key"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Key != "raw-key-value" {
		t.Errorf("Key = %q", resp.Key)
	}
}

func TestWriteErrorUnknownCodeDefaultsInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, errors.New("boom"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
