package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/janekbaraniewski/usagesync/internal/core"
)

// Client speaks HTTP to the local agent over a unix socket.
type Client struct {
	SocketPath string
	http       *http.Client
}

func NewClient(socketPath string) *Client {
	dialer := &net.Dialer{Timeout: 2 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socketPath)
		},
		DisableCompression: true,
		DisableKeepAlives:  true,
	}
	return &Client{
		SocketPath: socketPath,
		http: &http.Client{
			Transport: transport,
			Timeout:   12 * time.Second,
		},
	}
}

// ResolveSocketPath returns the default agent socket location.
func ResolveSocketPath() string {
	if p := os.Getenv("USAGESYNC_AGENT_SOCKET"); strings.TrimSpace(p) != "" {
		return p
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "usagesync", "agent.sock")
}

type usageResponse struct {
	Providers []core.UsageSnapshot `json:"providers"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func (c *Client) Fetch(ctx context.Context, forceRefresh bool) ([]core.UsageSnapshot, error) {
	if c == nil || strings.TrimSpace(c.SocketPath) == "" {
		return nil, fmt.Errorf("%w: agent client is not configured", ErrBackendUnreachable)
	}

	endpoint := "http://unix/v1/usage"
	if forceRefresh {
		endpoint += "?force=1"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: agent returned %s: %s",
			ErrBackendUnreachable, resp.Status, strings.TrimSpace(string(body)))
	}

	var out usageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode agent usage response: %w", err)
	}
	return out.Providers, nil
}

func (c *Client) IsBackendRunning(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.health(healthCtx) == nil
}

func (c *Client) health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: agent health status %s", ErrBackendUnreachable, resp.Status)
	}

	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		return nil
	}
	var out healthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("decode agent health response: %w", err)
	}
	if out.Status != "" && out.Status != "ok" {
		return fmt.Errorf("%w: agent reports status %q", ErrBackendUnreachable, out.Status)
	}
	return nil
}

// WaitUntilReady polls the agent health endpoint until it responds or the
// timeout elapses.
func (c *Client) WaitUntilReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	var lastErr error
	for {
		healthCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		lastErr = c.health(healthCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("agent not ready after %s: %w", timeout, lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
