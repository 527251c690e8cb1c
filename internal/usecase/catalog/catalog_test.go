package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"cortexdb/internal/domain"
)

type fakeRelational struct {
	databases   map[string]domain.Database
	collections map[string]domain.CollectionSchema // key: database + "/" + name
	providers   map[string]domain.ProviderConfig
}

func newFakeRelational() *fakeRelational {
	return &fakeRelational{
		databases:   map[string]domain.Database{},
		collections: map[string]domain.CollectionSchema{},
		providers:   map[string]domain.ProviderConfig{},
	}
}

func collKey(database, name string) string { return database + "/" + name }

func (f *fakeRelational) InsertDatabase(ctx context.Context, db domain.Database) error {
	f.databases[db.Name] = db
	return nil
}

func (f *fakeRelational) GetDatabase(ctx context.Context, name string) (domain.Database, error) {
	db, ok := f.databases[name]
	if !ok {
		return domain.Database{}, domain.NewDomainError("relational.get_database", domain.ErrNotFound, name)
	}
	return db, nil
}

func (f *fakeRelational) ListDatabases(ctx context.Context) ([]domain.Database, error) {
	var out []domain.Database
	for _, db := range f.databases {
		out = append(out, db)
	}
	return out, nil
}

func (f *fakeRelational) DeleteDatabase(ctx context.Context, name string) error {
	delete(f.databases, name)
	return nil
}

func (f *fakeRelational) InsertCollection(ctx context.Context, id uuid.UUID, schema domain.CollectionSchema, providerID *uuid.UUID, now time.Time) error {
	f.collections[collKey(schema.Database, schema.Name)] = schema
	return nil
}

func (f *fakeRelational) GetCollectionSchema(ctx context.Context, database, name string) (domain.CollectionSchema, error) {
	schema, ok := f.collections[collKey(database, name)]
	if !ok {
		return domain.CollectionSchema{}, domain.NewDomainError("relational.get_collection", domain.ErrNotFound, name)
	}
	return schema, nil
}

func (f *fakeRelational) ListCollectionSchemas(ctx context.Context, database string) ([]domain.CollectionSchema, error) {
	var out []domain.CollectionSchema
	for key, schema := range f.collections {
		if schema.Database == database {
			_ = key
			out = append(out, schema)
		}
	}
	return out, nil
}

func (f *fakeRelational) DeleteCollection(ctx context.Context, schema domain.CollectionSchema) error {
	delete(f.collections, collKey(schema.Database, schema.Name))
	return nil
}

func (f *fakeRelational) InsertProvider(ctx context.Context, p domain.ProviderConfig) error {
	f.providers[p.Name] = p
	return nil
}

func (f *fakeRelational) GetProvider(ctx context.Context, name string) (domain.ProviderConfig, error) {
	p, ok := f.providers[name]
	if !ok {
		return domain.ProviderConfig{}, domain.NewDomainError("relational.get_provider", domain.ErrNotFound, name)
	}
	return p, nil
}

func (f *fakeRelational) ListProviders(ctx context.Context) ([]domain.ProviderConfig, error) {
	var out []domain.ProviderConfig
	for _, p := range f.providers {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRelational) DeleteProvider(ctx context.Context, name string) error {
	delete(f.providers, name)
	return nil
}

func (f *fakeRelational) DeleteExpiredAPIKeys(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

type fakeVector struct {
	collections map[string]bool
	dropped     []string
}

func (f *fakeVector) EnsureCollection(ctx context.Context, schema domain.CollectionSchema, vectorSize int) error {
	if f.collections == nil {
		f.collections = map[string]bool{}
	}
	f.collections[schema.Database+"__"+schema.Name] = true
	return nil
}

func (f *fakeVector) DropCollection(ctx context.Context, name string) error {
	f.dropped = append(f.dropped, name)
	delete(f.collections, name)
	return nil
}

type fakeObject struct {
	buckets []string
}

func (f *fakeObject) EnsureBucket(ctx context.Context, bucket string) error {
	f.buckets = append(f.buckets, bucket)
	return nil
}

type fakeProvider struct{}

func (fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}
func (fakeProvider) Dim(ctx context.Context) (int, error) { return 4, nil }
func (fakeProvider) Name() string                         { return "fake" }

type fakeEmbeddings struct {
	forgotten []string
}

func (fakeEmbeddings) Get(cfg domain.ProviderConfig) (domain.EmbeddingProvider, error) {
	return fakeProvider{}, nil
}
func (fakeEmbeddings) Dim(ctx context.Context, cfg domain.ProviderConfig) (int, error) { return 4, nil }
func (f *fakeEmbeddings) Forget(name string)                                           { f.forgotten = append(f.forgotten, name) }

type fakeAuth struct {
	keys map[uuid.UUID]domain.APIKey
}

func (f *fakeAuth) CreateKey(ctx context.Context, name, description string, t domain.APIKeyType, databases []string, permissions *domain.Permissions, expiresAt *time.Time) (domain.APIKey, string, error) {
	perms := domain.PermissionsForType(t)
	if permissions != nil {
		perms = *permissions
	}
	key := domain.APIKey{ID: uuid.New(), Name: name, Description: description, Type: t, Permissions: perms, Databases: databases, ExpiresAt: expiresAt, Enabled: true, CreatedAt: time.Now()}
	if f.keys == nil {
		f.keys = map[uuid.UUID]domain.APIKey{}
	}
	f.keys[key.ID] = key
	return key, "plaintext-secret", nil
}

func (f *fakeAuth) ListKeys(ctx context.Context) ([]domain.APIKey, error) {
	var out []domain.APIKey
	for _, k := range f.keys {
		out = append(out, k)
	}
	return out, nil
}

func (f *fakeAuth) RevokeKey(ctx context.Context, id uuid.UUID) error {
	k, ok := f.keys[id]
	if !ok {
		return domain.NewDomainError("auth.revoke_key", domain.ErrNotFound, id.String())
	}
	k.Enabled = false
	f.keys[id] = k
	return nil
}

func newTestService() (*Service, *fakeRelational, *fakeVector, *fakeObject, *fakeEmbeddings) {
	rel := newFakeRelational()
	vec := &fakeVector{}
	obj := &fakeObject{}
	emb := &fakeEmbeddings{}
	return &Service{Relational: rel, Vector: vec, Object: obj, Embeddings: emb, Auth: &fakeAuth{}}, rel, vec, obj, emb
}

func textCollectionSchema(database string, vectorize bool) domain.CollectionSchema {
	body := domain.ScalarField{Name: "body", Type: domain.FieldText, StoreIn: []domain.StoreLocation{domain.StorePostgres}}
	if vectorize {
		body.Vectorize = true
		body.StoreIn = append(body.StoreIn, domain.StoreQdrantPayload)
	}
	return domain.CollectionSchema{
		Name:     "articles",
		Database: database,
		Fields: []domain.Field{
			domain.NewScalarField(domain.ScalarField{Name: "title", Type: domain.FieldString, StoreIn: []domain.StoreLocation{domain.StorePostgres}}),
			domain.NewScalarField(body),
		},
		Config: domain.CollectionConfig{EmbeddingProviderID: "default-embed"},
	}
}

func TestCreateDatabaseRejectsInvalidName(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	_, err := svc.CreateDatabase(context.Background(), "Not Valid!", "")
	if err == nil {
		t.Fatal("expected a validation error for an invalid database name")
	}
}

func TestCreateDatabaseThenListIncludesIt(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	if _, err := svc.CreateDatabase(context.Background(), "tenant_a", "first tenant"); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	dbs, err := svc.ListDatabases(context.Background())
	if err != nil {
		t.Fatalf("ListDatabases: %v", err)
	}
	if len(dbs) != 1 || dbs[0].Name != "tenant_a" {
		t.Fatalf("expected tenant_a in list, got %+v", dbs)
	}
}

func TestCreateCollectionWithoutVectorizeSkipsVectorAndBucket(t *testing.T) {
	svc, rel, vec, obj, _ := newTestService()
	schema := textCollectionSchema("tenant_a", false)
	if _, err := svc.CreateCollection(context.Background(), schema); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if _, ok := rel.collections[collKey("tenant_a", "articles")]; !ok {
		t.Fatal("expected collection to be persisted")
	}
	if len(vec.collections) != 0 {
		t.Fatalf("expected no vector collection created, got %+v", vec.collections)
	}
	if len(obj.buckets) != 0 {
		t.Fatalf("expected no bucket created, got %+v", obj.buckets)
	}
}

func TestCreateCollectionWithVectorizeRequiresKnownProvider(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	schema := textCollectionSchema("tenant_a", true)
	_, err := svc.CreateCollection(context.Background(), schema)
	if err == nil {
		t.Fatal("expected an error when the named embedding provider does not exist")
	}
}

func TestCreateCollectionWithVectorizeEnsuresCollection(t *testing.T) {
	svc, rel, vec, _, _ := newTestService()
	rel.providers["default-embed"] = domain.ProviderConfig{ID: uuid.New(), Name: "default-embed", Kind: domain.ProviderOpenAI}

	schema := textCollectionSchema("tenant_a", true)
	if _, err := svc.CreateCollection(context.Background(), schema); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if !vec.collections["tenant_a__articles"] {
		t.Fatalf("expected vector collection tenant_a__articles to be ensured, got %+v", vec.collections)
	}
}

func TestDeleteCollectionDropsVectorCollectionWhenVectorized(t *testing.T) {
	svc, rel, vec, _, _ := newTestService()
	rel.providers["default-embed"] = domain.ProviderConfig{ID: uuid.New(), Name: "default-embed", Kind: domain.ProviderOpenAI}
	schema := textCollectionSchema("tenant_a", true)
	if _, err := svc.CreateCollection(context.Background(), schema); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	if err := svc.DeleteCollection(context.Background(), "tenant_a", "articles"); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if _, ok := rel.collections[collKey("tenant_a", "articles")]; ok {
		t.Fatal("expected catalog row to be gone")
	}
	if len(vec.dropped) != 1 || vec.dropped[0] != "tenant_a__articles" {
		t.Fatalf("expected vector collection dropped, got %+v", vec.dropped)
	}
}

func TestDeleteDatabaseTearsDownEveryCollectionFirst(t *testing.T) {
	svc, rel, vec, _, _ := newTestService()
	rel.providers["default-embed"] = domain.ProviderConfig{ID: uuid.New(), Name: "default-embed", Kind: domain.ProviderOpenAI}
	if _, err := svc.CreateDatabase(context.Background(), "tenant_a", ""); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	schema := textCollectionSchema("tenant_a", true)
	if _, err := svc.CreateCollection(context.Background(), schema); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	if err := svc.DeleteDatabase(context.Background(), "tenant_a"); err != nil {
		t.Fatalf("DeleteDatabase: %v", err)
	}
	if _, ok := rel.databases["tenant_a"]; ok {
		t.Fatal("expected database row to be gone")
	}
	if _, ok := rel.collections[collKey("tenant_a", "articles")]; ok {
		t.Fatal("expected collection row to be gone via explicit teardown")
	}
	if len(vec.dropped) != 1 {
		t.Fatalf("expected the collection's vector collection to be torn down, got %+v", vec.dropped)
	}
}

func TestCreateProviderForgetsCachedClient(t *testing.T) {
	svc, rel, _, _, emb := newTestService()
	cfg := domain.ProviderConfig{Name: "openai-main", Kind: domain.ProviderOpenAI, EmbeddingModel: "text-embedding-3-small", APIKey: "secret"}
	view, err := svc.CreateProvider(context.Background(), cfg)
	if err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	if !view.HasAPIKey {
		t.Fatal("expected HasAPIKey true")
	}
	if _, ok := rel.providers["openai-main"]; !ok {
		t.Fatal("expected provider persisted")
	}
	if len(emb.forgotten) != 1 || emb.forgotten[0] != "openai-main" {
		t.Fatalf("expected cache eviction on create, got %+v", emb.forgotten)
	}
}

func TestDeleteProviderForgetsCachedClient(t *testing.T) {
	svc, rel, _, _, emb := newTestService()
	rel.providers["openai-main"] = domain.ProviderConfig{Name: "openai-main"}
	if err := svc.DeleteProvider(context.Background(), "openai-main"); err != nil {
		t.Fatalf("DeleteProvider: %v", err)
	}
	if _, ok := rel.providers["openai-main"]; ok {
		t.Fatal("expected provider removed")
	}
	if len(emb.forgotten) != 1 || emb.forgotten[0] != "openai-main" {
		t.Fatalf("expected cache eviction on delete, got %+v", emb.forgotten)
	}
}

func TestAPIKeyLifecycleDelegatesToAuthService(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	created, secret, err := svc.CreateAPIKey(context.Background(), domain.APIKey{Name: "ci", Type: domain.APIKeyTypeReadonly, Databases: []string{"tenant_a"}})
	if err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}
	if secret == "" {
		t.Fatal("expected a plaintext secret on creation")
	}
	keys, err := svc.ListAPIKeys(context.Background())
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if len(keys) != 1 || keys[0].ID != created.ID {
		t.Fatalf("expected created key in list, got %+v", keys)
	}
	if err := svc.RevokeAPIKey(context.Background(), created.ID.String()); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}
}

func TestRevokeAPIKeyRejectsMalformedID(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	if err := svc.RevokeAPIKey(context.Background(), "not-a-uuid"); err == nil {
		t.Fatal("expected a validation error for a malformed key id")
	}
}
