package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"
)

func startTestServer(t *testing.T, register func(*Server)) *Server {
	t.Helper()
	srv := NewServer("127.0.0.1:0", slog.Default())
	if register != nil {
		register(srv)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	started := make(chan struct{})
	go func() {
		go func() {
			for srv.BoundAddr() == "" {
				time.Sleep(5 * time.Millisecond)
			}
			close(started)
		}()
		srv.Start(ctx)
	}()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("server did not start in time")
	}

	t.Cleanup(func() {
		srv.Stop(context.Background())
	})

	return srv
}

func TestServerLifecycle(t *testing.T) {
	srv := startTestServer(t, nil)
	if srv.BoundAddr() == "" {
		t.Fatal("BoundAddr is empty")
	}
}

func TestServerRoutesRequests(t *testing.T) {
	srv := startTestServer(t, func(s *Server) {
		s.RegisterRoute("GET /ping", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("pong"))
		})
	})

	resp, err := http.Get("http://" + srv.BoundAddr() + "/ping")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "pong" {
		t.Errorf("body = %q", body)
	}
}

func TestServerUnregisteredRouteNotFound(t *testing.T) {
	srv := startTestServer(t, nil)

	resp, err := http.Get("http://" + srv.BoundAddr() + "/does-not-exist")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServerMiddlewareChainRunsInOrder(t *testing.T) {
	var order []string
	mwA := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "a")
			next.ServeHTTP(w, r)
		})
	}
	mwB := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "b")
			next.ServeHTTP(w, r)
		})
	}

	srv := startTestServer(t, func(s *Server) {
		s.Use(mwA)
		s.Use(mwB)
		s.RegisterRoute("GET /chain", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
			w.WriteHeader(http.StatusOK)
		})
	})

	resp, err := http.Get("http://" + srv.BoundAddr() + "/chain")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "handler" {
		t.Errorf("order = %v, want [a b handler]", order)
	}
}

func TestServerStopIsIdempotentAfterContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer("127.0.0.1:0", slog.Default())

	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	for srv.BoundAddr() == "" {
		time.Sleep(5 * time.Millisecond)
	}

	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}

func TestServerConcurrentRequests(t *testing.T) {
	srv := startTestServer(t, func(s *Server) {
		s.RegisterRoute("GET /concurrent", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	done := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			resp, err := http.Get("http://" + srv.BoundAddr() + "/concurrent")
			if err != nil {
				t.Errorf("GET: %v", err)
				return
			}
			resp.Body.Close()
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
