package source

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/janekbaraniewski/usagesync/internal/core"
)

func startAgentStub(t *testing.T, handler http.Handler) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "agent.sock")

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen on socket: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	return socketPath
}

func TestFetchDecodesProviders(t *testing.T) {
	var gotForce bool
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/usage", func(w http.ResponseWriter, r *http.Request) {
		gotForce = r.URL.Query().Get("force") == "1"
		json.NewEncoder(w).Encode(map[string]any{
			"providers": []core.UsageSnapshot{
				{ProviderID: "anthropic", ProviderName: "Anthropic", UsagePercentage: 42, IsAvailable: true},
			},
		})
	})

	client := NewClient(startAgentStub(t, mux))
	snaps, err := client.Fetch(context.Background(), false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snaps) != 1 || snaps[0].ProviderID != "anthropic" {
		t.Fatalf("snapshots = %+v", snaps)
	}
	if gotForce {
		t.Error("force flag sent without being requested")
	}

	if _, err := client.Fetch(context.Background(), true); err != nil {
		t.Fatalf("forced fetch: %v", err)
	}
	if !gotForce {
		t.Error("forced fetch did not carry force=1")
	}
}

func TestFetchWrapsConnectionErrors(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	_, err := client.Fetch(context.Background(), false)
	if !errors.Is(err, ErrBackendUnreachable) {
		t.Errorf("error = %v, want ErrBackendUnreachable", err)
	}
}

func TestIsBackendRunning(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	client := NewClient(startAgentStub(t, mux))
	if !client.IsBackendRunning(context.Background()) {
		t.Error("healthy agent reported as down")
	}

	down := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	if down.IsBackendRunning(context.Background()) {
		t.Error("missing agent reported as running")
	}
}

func TestWaitUntilReadyTimesOut(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	start := time.Now()
	err := client.WaitUntilReady(context.Background(), 300*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Error("wait ran far past its deadline")
	}
}
