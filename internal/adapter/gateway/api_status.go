package gateway

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker reports the reachability of a backing store.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// StatusResponse is the JSON body returned by GET /v1/status.
type StatusResponse struct {
	Version       string        `json:"version"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Stores        StoreStatus   `json:"stores"`
	Catalog       CatalogStatus `json:"catalog"`
}

// StoreStatus reports reachability of each backing store.
type StoreStatus struct {
	Postgres string `json:"postgres"`
	Qdrant   string `json:"qdrant"`
	MinIO    string `json:"minio"`
}

// CatalogStatus summarizes the control plane.
type CatalogStatus struct {
	Databases  int `json:"databases"`
	Providers  int `json:"providers"`
}

// CatalogCounter reports the current size of the control plane.
type CatalogCounter interface {
	DatabaseCount(ctx context.Context) (int, error)
	ProviderCount(ctx context.Context) (int, error)
}

// StatusDeps holds the dependencies needed by the status handler.
type StatusDeps struct {
	Postgres HealthChecker
	Qdrant   HealthChecker
	MinIO    HealthChecker
	Catalog  CatalogCounter
}

func checkStatus(name string, checker HealthChecker, ctx context.Context) string {
	if checker == nil {
		return "unconfigured"
	}
	if err := checker.Ping(ctx); err != nil {
		return "down"
	}
	return "up"
}

// statusHandler returns an HTTP handler for GET /v1/status.
func statusHandler(deps StatusDeps, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := StatusResponse{
			Version:       "v1",
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			Stores: StoreStatus{
				Postgres: checkStatus("postgres", deps.Postgres, ctx),
				Qdrant:   checkStatus("qdrant", deps.Qdrant, ctx),
				MinIO:    checkStatus("minio", deps.MinIO, ctx),
			},
		}

		if deps.Catalog != nil {
			if n, err := deps.Catalog.DatabaseCount(ctx); err == nil {
				resp.Catalog.Databases = n
			}
			if n, err := deps.Catalog.ProviderCount(ctx); err == nil {
				resp.Catalog.Providers = n
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
