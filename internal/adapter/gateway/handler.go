package gateway

import (
	"context"
	"net/http"
	"time"

	"cortexdb/internal/domain"
)

// CatalogService is the control-plane surface: databases, collections,
// embedding providers, and API keys.
type CatalogService interface {
	CreateDatabase(ctx context.Context, name, description string) (domain.Database, error)
	ListDatabases(ctx context.Context) ([]domain.Database, error)
	DeleteDatabase(ctx context.Context, name string) error

	CreateCollection(ctx context.Context, schema domain.CollectionSchema) (domain.CollectionSchema, error)
	GetCollection(ctx context.Context, database, name string) (domain.CollectionSchema, error)
	ListCollections(ctx context.Context, database string) ([]domain.CollectionSchema, error)
	DeleteCollection(ctx context.Context, database, name string) error

	CreateProvider(ctx context.Context, cfg domain.ProviderConfig) (domain.EmbeddingProviderView, error)
	ListProviders(ctx context.Context) ([]domain.EmbeddingProviderView, error)
	DeleteProvider(ctx context.Context, name string) error

	CreateAPIKey(ctx context.Context, key domain.APIKey) (domain.APIKey, string, error)
	ListAPIKeys(ctx context.Context) ([]domain.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// IngestService creates, updates, and deletes records within a collection.
type IngestService interface {
	CreateRecord(ctx context.Context, database, collection string, fields map[string]domain.Value) (domain.Record, error)
	UpdateRecord(ctx context.Context, database, collection, id string, fields map[string]domain.Value) (domain.Record, error)
	DeleteRecord(ctx context.Context, database, collection, id string) error
	GetRecord(ctx context.Context, database, collection, id string) (domain.Record, error)
}

// SearchService runs hybrid (vector + filter) search over a collection.
type SearchService interface {
	Search(ctx context.Context, database, collection, query string, filters []domain.QueryFilter, limit int) (domain.SearchResponse, error)
}

// HandlerDeps holds the use-case dependencies needed by REST handlers.
type HandlerDeps struct {
	Catalog CatalogService
	Ingest  IngestService
	Search  SearchService
	Metrics *Metrics
	Auth    KeyVerifier
}

// RegisterCatalogRoutes wires database, collection, provider, and API key
// endpoints onto s. Every route requires a valid API key; routes that
// mutate catalog state additionally require the matching permission.
func RegisterCatalogRoutes(s *Server, deps HandlerDeps) {
	authed := RequireAPIKey(deps.Auth)

	s.RegisterRoute("POST /v1/databases", authed(requirePermission("manage_databases")(createDatabaseHandler(deps))).ServeHTTP)
	s.RegisterRoute("GET /v1/databases", authed(http.HandlerFunc(listDatabasesHandler(deps))).ServeHTTP)
	s.RegisterRoute("DELETE /v1/databases/{database}", authed(requirePermission("manage_databases")(deleteDatabaseHandler(deps))).ServeHTTP)

	s.RegisterRoute("POST /v1/databases/{database}/collections", authed(requirePermission("manage_collections")(createCollectionHandler(deps))).ServeHTTP)
	s.RegisterRoute("GET /v1/databases/{database}/collections", authed(http.HandlerFunc(listCollectionsHandler(deps))).ServeHTTP)
	s.RegisterRoute("GET /v1/databases/{database}/collections/{collection}", authed(http.HandlerFunc(getCollectionHandler(deps))).ServeHTTP)
	s.RegisterRoute("DELETE /v1/databases/{database}/collections/{collection}", authed(requirePermission("manage_collections")(deleteCollectionHandler(deps))).ServeHTTP)

	s.RegisterRoute("POST /v1/providers", authed(requirePermission("manage_providers")(createProviderHandler(deps))).ServeHTTP)
	s.RegisterRoute("GET /v1/providers", authed(http.HandlerFunc(listProvidersHandler(deps))).ServeHTTP)
	s.RegisterRoute("DELETE /v1/providers/{name}", authed(requirePermission("manage_providers")(deleteProviderHandler(deps))).ServeHTTP)

	s.RegisterRoute("POST /v1/apikeys", authed(requirePermission("manage_keys")(createAPIKeyHandler(deps))).ServeHTTP)
	s.RegisterRoute("GET /v1/apikeys", authed(requirePermission("manage_keys")(listAPIKeysHandler(deps))).ServeHTTP)
	s.RegisterRoute("DELETE /v1/apikeys/{id}", authed(requirePermission("manage_keys")(revokeAPIKeyHandler(deps))).ServeHTTP)
}

// RegisterRecordRoutes wires record and search endpoints onto s, each
// requiring a valid API key.
func RegisterRecordRoutes(s *Server, deps HandlerDeps) {
	authed := RequireAPIKey(deps.Auth)

	s.RegisterRoute("POST /v1/databases/{database}/collections/{collection}/records", authed(http.HandlerFunc(createRecordHandler(deps))).ServeHTTP)
	s.RegisterRoute("GET /v1/databases/{database}/collections/{collection}/records/{id}", authed(http.HandlerFunc(getRecordHandler(deps))).ServeHTTP)
	s.RegisterRoute("PUT /v1/databases/{database}/collections/{collection}/records/{id}", authed(http.HandlerFunc(updateRecordHandler(deps))).ServeHTTP)
	s.RegisterRoute("DELETE /v1/databases/{database}/collections/{collection}/records/{id}", authed(http.HandlerFunc(deleteRecordHandler(deps))).ServeHTTP)
	s.RegisterRoute("POST /v1/databases/{database}/collections/{collection}/search", authed(http.HandlerFunc(searchHandler(deps))).ServeHTTP)
}

// RegisterOpsRoutes wires status and metrics endpoints onto s. These are
// left unauthenticated: /metrics is meant for a Prometheus scraper and
// /v1/status for operators checking store connectivity, neither of which
// carries a CortexDB API key.
func RegisterOpsRoutes(s *Server, statusDeps StatusDeps, metrics *Metrics, startTime time.Time) {
	s.RegisterRoute("GET /v1/status", statusHandler(statusDeps, startTime))
	s.RegisterRoute("GET /metrics", metricsHandler(metrics, startTime))
}

// authorizeDatabase checks that the authenticated identity may act on database,
// returning false (and writing the error response) if not.
func authorizeDatabase(w http.ResponseWriter, r *http.Request, database string, write bool) bool {
	auth, ok := domain.AuthFromContext(r.Context())
	if !ok {
		writeError(w, domain.NewDomainError("gateway.auth", domain.ErrAPIKeyMissing, "no authenticated identity"))
		return false
	}
	if auth.Permissions.Admin {
		return true
	}
	if !auth.ScopedToDatabase(database) {
		writeError(w, domain.NewSubSystemError("database", "gateway.auth", domain.ErrDatabaseScope, database))
		return false
	}
	if write && auth.Permissions.Readonly {
		writeError(w, domain.NewDomainError("gateway.auth", domain.ErrReadonlyViolation, database))
		return false
	}
	return true
}

func createDatabaseHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := decodeValidated(r, databaseCreateSchema, &req); err != nil {
			writeError(w, err)
			return
		}
		db, err := deps.Catalog.CreateDatabase(r.Context(), req.Name, req.Description)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, db)
	}
}

func listDatabasesHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbs, err := deps.Catalog.ListDatabases(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dbs)
	}
}

func deleteDatabaseHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("database")
		if err := deps.Catalog.DeleteDatabase(r.Context(), name); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createCollectionHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		database := r.PathValue("database")
		var schema domain.CollectionSchema
		if err := decodeJSON(r, &schema); err != nil {
			writeError(w, err)
			return
		}
		schema.Database = database
		created, err := deps.Catalog.CreateCollection(r.Context(), schema)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func listCollectionsHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		database := r.PathValue("database")
		cols, err := deps.Catalog.ListCollections(r.Context(), database)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cols)
	}
}

func getCollectionHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		database := r.PathValue("database")
		collection := r.PathValue("collection")
		schema, err := deps.Catalog.GetCollection(r.Context(), database, collection)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, schema)
	}
}

func deleteCollectionHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		database := r.PathValue("database")
		collection := r.PathValue("collection")
		if err := deps.Catalog.DeleteCollection(r.Context(), database, collection); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createProviderHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg domain.ProviderConfig
		if err := decodeValidated(r, providerCreateSchema, &cfg); err != nil {
			writeError(w, err)
			return
		}
		view, err := deps.Catalog.CreateProvider(r.Context(), cfg)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func listProvidersHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := deps.Catalog.ListProviders(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func deleteProviderHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if err := deps.Catalog.DeleteProvider(r.Context(), name); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createAPIKeyHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var key domain.APIKey
		if err := decodeValidated(r, apiKeyCreateSchema, &key); err != nil {
			writeError(w, err)
			return
		}
		created, rawKey, err := deps.Catalog.CreateAPIKey(r.Context(), key)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, struct {
			domain.APIKey
			Key string `json:"key"`
		}{created, rawKey})
	}
}

func listAPIKeysHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := deps.Catalog.ListAPIKeys(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, keys)
	}
}

func revokeAPIKeyHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := deps.Catalog.RevokeAPIKey(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createRecordHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		database := r.PathValue("database")
		collection := r.PathValue("collection")
		if !authorizeDatabase(w, r, database, true) {
			return
		}
		var fields map[string]domain.Value
		if err := decodeJSON(r, &fields); err != nil {
			writeError(w, err)
			return
		}
		rec, err := deps.Ingest.CreateRecord(r.Context(), database, collection, fields)
		if err != nil {
			writeError(w, err)
			return
		}
		if deps.Metrics != nil {
			deps.Metrics.RecordsIngested.Add(1)
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func getRecordHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		database := r.PathValue("database")
		collection := r.PathValue("collection")
		id := r.PathValue("id")
		if !authorizeDatabase(w, r, database, false) {
			return
		}
		rec, err := deps.Ingest.GetRecord(r.Context(), database, collection, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func updateRecordHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		database := r.PathValue("database")
		collection := r.PathValue("collection")
		id := r.PathValue("id")
		if !authorizeDatabase(w, r, database, true) {
			return
		}
		var fields map[string]domain.Value
		if err := decodeJSON(r, &fields); err != nil {
			writeError(w, err)
			return
		}
		rec, err := deps.Ingest.UpdateRecord(r.Context(), database, collection, id, fields)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func deleteRecordHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		database := r.PathValue("database")
		collection := r.PathValue("collection")
		id := r.PathValue("id")
		if !authorizeDatabase(w, r, database, true) {
			return
		}
		if err := deps.Ingest.DeleteRecord(r.Context(), database, collection, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func searchHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		database := r.PathValue("database")
		collection := r.PathValue("collection")
		if !authorizeDatabase(w, r, database, false) {
			return
		}
		var req struct {
			Query   string               `json:"query"`
			Filters []domain.QueryFilter `json:"filters"`
			Limit   int                  `json:"limit"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.Limit <= 0 {
			req.Limit = 10
		}
		resp, err := deps.Search.Search(r.Context(), database, collection, req.Query, req.Filters, req.Limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if deps.Metrics != nil {
			deps.Metrics.SearchesTotal.Add(1)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
