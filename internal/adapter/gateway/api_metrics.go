package gateway

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics tracks counters surfaced by the Prometheus-text /metrics endpoint.
type Metrics struct {
	RecordsIngested  atomic.Int64
	RecordsFailed    atomic.Int64
	SearchesTotal    atomic.Int64
	EmbeddingsCalled atomic.Int64
	PresignsIssued   atomic.Int64
}

// metricsHandler returns an HTTP handler for GET /metrics in the Prometheus
// text exposition format. Uses the lightweight text format directly to
// avoid pulling in the full prometheus client for a handful of gauges.
func metricsHandler(metrics *Metrics, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		fmt.Fprintf(w, "# HELP cortexdb_records_ingested_total Total records successfully ingested.\n")
		fmt.Fprintf(w, "# TYPE cortexdb_records_ingested_total counter\n")
		fmt.Fprintf(w, "cortexdb_records_ingested_total %d\n", metrics.RecordsIngested.Load())

		fmt.Fprintf(w, "# HELP cortexdb_records_failed_total Total records that failed ingestion.\n")
		fmt.Fprintf(w, "# TYPE cortexdb_records_failed_total counter\n")
		fmt.Fprintf(w, "cortexdb_records_failed_total %d\n", metrics.RecordsFailed.Load())

		fmt.Fprintf(w, "# HELP cortexdb_searches_total Total hybrid search requests served.\n")
		fmt.Fprintf(w, "# TYPE cortexdb_searches_total counter\n")
		fmt.Fprintf(w, "cortexdb_searches_total %d\n", metrics.SearchesTotal.Load())

		fmt.Fprintf(w, "# HELP cortexdb_embeddings_calls_total Total embedding provider calls.\n")
		fmt.Fprintf(w, "# TYPE cortexdb_embeddings_calls_total counter\n")
		fmt.Fprintf(w, "cortexdb_embeddings_calls_total %d\n", metrics.EmbeddingsCalled.Load())

		fmt.Fprintf(w, "# HELP cortexdb_presigns_issued_total Total presigned object URLs issued.\n")
		fmt.Fprintf(w, "# TYPE cortexdb_presigns_issued_total counter\n")
		fmt.Fprintf(w, "cortexdb_presigns_issued_total %d\n", metrics.PresignsIssued.Load())

		fmt.Fprintf(w, "# HELP cortexdb_uptime_seconds Seconds since the gateway started.\n")
		fmt.Fprintf(w, "# TYPE cortexdb_uptime_seconds gauge\n")
		fmt.Fprintf(w, "cortexdb_uptime_seconds %.0f\n", time.Since(startTime).Seconds())

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		fmt.Fprintf(w, "# HELP go_goroutines Number of goroutines.\n")
		fmt.Fprintf(w, "# TYPE go_goroutines gauge\n")
		fmt.Fprintf(w, "go_goroutines %d\n", runtime.NumGoroutine())

		fmt.Fprintf(w, "# HELP go_memstats_alloc_bytes Bytes of allocated heap objects.\n")
		fmt.Fprintf(w, "# TYPE go_memstats_alloc_bytes gauge\n")
		fmt.Fprintf(w, "go_memstats_alloc_bytes %d\n", mem.Alloc)

		fmt.Fprintf(w, "# HELP go_memstats_sys_bytes Total bytes of memory obtained from the OS.\n")
		fmt.Fprintf(w, "# TYPE go_memstats_sys_bytes gauge\n")
		fmt.Fprintf(w, "go_memstats_sys_bytes %d\n", mem.Sys)

		fmt.Fprintf(w, "# HELP go_gc_duration_seconds Total GC pause duration.\n")
		fmt.Fprintf(w, "# TYPE go_gc_duration_seconds gauge\n")
		fmt.Fprintf(w, "go_gc_duration_seconds %f\n", float64(mem.PauseTotalNs)/1e9)
	}
}
