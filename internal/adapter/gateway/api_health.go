package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// healthResponse is the JSON body for a single-store health endpoint.
type healthResponse struct {
	Status string `json:"status"`
}

// allHealthResponse is the JSON body for GET /health/all.
type allHealthResponse struct {
	Status string      `json:"status"`
	Stores StoreStatus `json:"stores"`
}

func singleHealthHandler(name string, checker func(StatusDeps) HealthChecker, deps StatusDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := checkStatus(name, checker(deps), ctx)
		code := http.StatusOK
		if status != "up" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, healthResponse{Status: status})
	}
}

// healthHandler answers GET /health with a bare liveness check: the process
// is running and able to respond, independent of any backing store.
func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "up"})
	}
}

// allHealthHandler answers GET /health/all, checking every configured store
// concurrently under a shared deadline.
func allHealthHandler(deps StatusDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var (
			wg     sync.WaitGroup
			stores StoreStatus
		)
		checks := []struct {
			name   string
			out    *string
			target HealthChecker
		}{
			{"postgres", &stores.Postgres, deps.Postgres},
			{"qdrant", &stores.Qdrant, deps.Qdrant},
			{"minio", &stores.MinIO, deps.MinIO},
		}
		wg.Add(len(checks))
		for _, c := range checks {
			go func(name string, out *string, target HealthChecker) {
				defer wg.Done()
				*out = checkStatus(name, target, ctx)
			}(c.name, c.out, c.target)
		}
		wg.Wait()

		status := "up"
		if stores.Postgres != "up" || stores.Qdrant != "up" || stores.MinIO != "up" {
			status = "degraded"
		}
		code := http.StatusOK
		if status != "up" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, allHealthResponse{Status: status, Stores: stores})
	}
}

// RegisterHealthRoutes wires the per-store liveness endpoints onto s,
// distinct from the richer combined GET /v1/status.
func RegisterHealthRoutes(s *Server, statusDeps StatusDeps) {
	s.RegisterRoute("GET /health", healthHandler())
	s.RegisterRoute("GET /health/postgres", singleHealthHandler("postgres", func(d StatusDeps) HealthChecker { return d.Postgres }, statusDeps))
	s.RegisterRoute("GET /health/qdrant", singleHealthHandler("qdrant", func(d StatusDeps) HealthChecker { return d.Qdrant }, statusDeps))
	s.RegisterRoute("GET /health/minio", singleHealthHandler("minio", func(d StatusDeps) HealthChecker { return d.MinIO }, statusDeps))
	s.RegisterRoute("GET /health/all", allHealthHandler(statusDeps))
}
