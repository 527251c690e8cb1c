package search

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"cortexdb/internal/domain"
)

type fakeRelational struct {
	schema   domain.CollectionSchema
	provider domain.ProviderConfig
	records  map[uuid.UUID]domain.Record
}

func (f *fakeRelational) GetCollectionSchema(ctx context.Context, database, collection string) (domain.CollectionSchema, error) {
	return f.schema, nil
}

func (f *fakeRelational) GetProvider(ctx context.Context, name string) (domain.ProviderConfig, error) {
	return f.provider, nil
}

func (f *fakeRelational) GetRecord(ctx context.Context, schema domain.CollectionSchema, id uuid.UUID) (domain.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return domain.Record{}, domain.NewDomainError("relational.get_record", domain.ErrNotFound, id.String())
	}
	return rec, nil
}

type fakeVector struct {
	hits []domain.SearchHit
}

func (f *fakeVector) Search(ctx context.Context, collection string, queryVector []float32, filters []domain.VectorFilter, limit int) ([]domain.SearchHit, error) {
	return f.hits, nil
}

type fakeObject struct {
	fail bool
}

func (f *fakeObject) PresignGet(ctx context.Context, bucket, objectName string, expires time.Duration) (string, error) {
	if f.fail {
		return "", domain.NewDomainError("object.presign", domain.ErrObjectStore, objectName)
	}
	return "https://signed/" + bucket + "/" + objectName, nil
}

type fakeProvider struct{}

func (fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1, 0}}, nil
}
func (fakeProvider) Dim(ctx context.Context) (int, error) { return 2, nil }
func (fakeProvider) Name() string                          { return "fake" }

type fakeEmbeddings struct{}

func (fakeEmbeddings) Get(cfg domain.ProviderConfig) (domain.EmbeddingProvider, error) {
	return fakeProvider{}, nil
}

func textSchema() domain.CollectionSchema {
	return domain.CollectionSchema{
		Name:     "articles",
		Database: "default",
		Fields: []domain.Field{
			domain.NewScalarField(domain.ScalarField{
				Name:     "title",
				Type:     domain.FieldString,
				StoreIn:  []domain.StoreLocation{domain.StorePostgres},
			}),
			domain.NewScalarField(domain.ScalarField{
				Name:      "body",
				Type:      domain.FieldText,
				Vectorize: true,
				StoreIn:   []domain.StoreLocation{domain.StorePostgres, domain.StoreQdrantPayload},
			}),
			domain.NewScalarField(domain.ScalarField{
				Name:    "attachment",
				Type:    domain.FieldFile,
				StoreIn: []domain.StoreLocation{domain.StorePostgres, domain.StoreMinio},
			}),
		},
		Config: domain.CollectionConfig{EmbeddingProviderID: "default-embed"},
	}
}

func newTestService(hits []domain.SearchHit, records map[uuid.UUID]domain.Record, presignFails bool) *Service {
	return &Service{
		Relational: &fakeRelational{schema: textSchema(), provider: domain.ProviderConfig{Name: "default-embed"}, records: records},
		Vector:     &fakeVector{hits: hits},
		Object:     &fakeObject{fail: presignFails},
		Embeddings: fakeEmbeddings{},
	}
}

func TestSearchAggregatesByRecordAndOrdersByMaxScore(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	hits := []domain.SearchHit{
		{Point: domain.VectorPoint{RecordID: id1, Field: "body", ChunkIndex: 0, ChunkText: "alpha"}, Score: 0.4},
		{Point: domain.VectorPoint{RecordID: id2, Field: "body", ChunkIndex: 0, ChunkText: "beta"}, Score: 0.9},
		{Point: domain.VectorPoint{RecordID: id1, Field: "body", ChunkIndex: 1, ChunkText: "gamma"}, Score: 0.95},
	}
	records := map[uuid.UUID]domain.Record{
		id1: {ID: id1, Fields: map[string]domain.Value{"title": domain.StringValue("one")}},
		id2: {ID: id2, Fields: map[string]domain.Value{"title": domain.StringValue("two")}},
	}
	svc := newTestService(hits, records, false)

	resp, err := svc.Search(context.Background(), "default", "articles", "query text", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Total)
	}
	if resp.Results[0].ID != id1 {
		t.Fatalf("expected id1 (max score 0.95) first, got %v", resp.Results[0].ID)
	}
	if len(resp.Results[0].Highlights) != 2 {
		t.Fatalf("expected 2 highlights for id1, got %d", len(resp.Results[0].Highlights))
	}
}

func TestSearchTruncatesToLimit(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	var hits []domain.SearchHit
	records := map[uuid.UUID]domain.Record{}
	for i, id := range ids {
		hits = append(hits, domain.SearchHit{Point: domain.VectorPoint{RecordID: id, Field: "body"}, Score: float32(i) + 1})
		records[id] = domain.Record{ID: id, Fields: map[string]domain.Value{"title": domain.StringValue("x")}}
	}
	svc := newTestService(hits, records, false)

	resp, err := svc.Search(context.Background(), "default", "articles", "q", nil, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
}

func TestSearchDropsRecordsMissingAfterVectorSearch(t *testing.T) {
	id := uuid.New()
	hits := []domain.SearchHit{{Point: domain.VectorPoint{RecordID: id, Field: "body"}, Score: 0.5}}
	svc := newTestService(hits, map[uuid.UUID]domain.Record{}, false)

	resp, err := svc.Search(context.Background(), "default", "articles", "q", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 0 {
		t.Fatalf("expected 0 results for a deleted record, got %d", resp.Total)
	}
}

func TestSearchAppliesOpNePostFilter(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	hits := []domain.SearchHit{
		{Point: domain.VectorPoint{RecordID: id1, Field: "body"}, Score: 0.9},
		{Point: domain.VectorPoint{RecordID: id2, Field: "body"}, Score: 0.8},
	}
	records := map[uuid.UUID]domain.Record{
		id1: {ID: id1, Fields: map[string]domain.Value{"title": domain.StringValue("exclude-me")}},
		id2: {ID: id2, Fields: map[string]domain.Value{"title": domain.StringValue("keep-me")}},
	}
	svc := newTestService(hits, records, false)

	resp, err := svc.Search(context.Background(), "default", "articles", "q", []domain.QueryFilter{
		{Field: "title", Op: domain.OpNe, Value: domain.StringValue("exclude-me")},
	}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 1 || resp.Results[0].ID != id2 {
		t.Fatalf("expected only id2 to survive the $ne post-filter, got %+v", resp.Results)
	}
}

func TestSearchPresignFailureYieldsEmptyURLNotError(t *testing.T) {
	id := uuid.New()
	hits := []domain.SearchHit{{Point: domain.VectorPoint{RecordID: id, Field: "body"}, Score: 0.5}}
	records := map[uuid.UUID]domain.Record{
		id: {ID: id, Fields: map[string]domain.Value{"attachment": domain.StringValue("articles/x/file.pdf")}},
	}
	svc := newTestService(hits, records, true)

	resp, err := svc.Search(context.Background(), "default", "articles", "q", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if url, ok := resp.Results[0].Files["attachment"]; !ok || url != "" {
		t.Fatalf("expected empty url on presign failure, got %q (present=%v)", url, ok)
	}
}

func TestSearchRejectsCollectionWithoutVectors(t *testing.T) {
	schema := domain.CollectionSchema{
		Name:     "plain",
		Database: "default",
		Fields: []domain.Field{
			domain.NewScalarField(domain.ScalarField{Name: "title", Type: domain.FieldString, StoreIn: []domain.StoreLocation{domain.StorePostgres}}),
		},
	}
	svc := &Service{
		Relational: &fakeRelational{schema: schema},
		Vector:     &fakeVector{},
		Object:     &fakeObject{},
		Embeddings: fakeEmbeddings{},
	}

	_, err := svc.Search(context.Background(), "default", "plain", "q", nil, 10)
	if err == nil {
		t.Fatalf("expected error for a collection with no vector collection")
	}
}
