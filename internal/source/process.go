package source

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// AgentSource is the production UsageSource: a socket client plus the agent
// process bring-up used by the orchestrator's startup phase.
type AgentSource struct {
	*Client
	binPath string
}

func NewAgentSource(socketPath, binPath string) *AgentSource {
	return &AgentSource{
		Client:  NewClient(socketPath),
		binPath: strings.TrimSpace(binPath),
	}
}

// ResolveAgentBinary locates the agent executable: env override first, then
// next to our own binary, then PATH.
func ResolveAgentBinary() string {
	if p := os.Getenv("USAGESYNC_AGENT_BIN"); strings.TrimSpace(p) != "" {
		return p
	}
	if exePath, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exePath), "usagesync-agent")
		if _, err := os.Stat(sibling); err == nil {
			return sibling
		}
	}
	if p, err := exec.LookPath("usagesync-agent"); err == nil {
		return p
	}
	return ""
}

// Start launches the agent process detached from our process group. The
// caller is expected to follow up with WaitUntilReady.
func (a *AgentSource) Start() error {
	if a.binPath == "" {
		return fmt.Errorf("%w: agent binary not found", ErrBackendUnreachable)
	}

	cmd := exec.Command(a.binPath, "--socket", a.SocketPath)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting agent %s: %w", a.binPath, err)
	}

	// Reap the child in the background; the agent daemonizes itself and the
	// dashboard must not block on it.
	go func() { _ = cmd.Wait() }()
	return nil
}
