package tools

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/zepef/ai-honeypot/internal/session"
	"github.com/zepef/ai-honeypot/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestNmapSimulatorRecordsHostsAndPorts(t *testing.T) {
	sim := NewNmapSimulator()
	sess := &session.Context{ID: "sess-1"}

	result := sim.Simulate(map[string]any{"target": "10.0.1.10"}, sess)

	if result.EscalationDelta != 1 {
		t.Fatalf("expected escalation delta 1, got %d", result.EscalationDelta)
	}
	if len(sess.DiscoveredHosts) != 1 || sess.DiscoveredHosts[0] != "10.0.1.10" {
		t.Fatalf("expected discovered host 10.0.1.10, got %+v", sess.DiscoveredHosts)
	}
	if len(sess.DiscoveredPorts) == 0 {
		t.Fatal("expected discovered ports to be recorded")
	}
	if !strings.Contains(result.Output, "Nmap") {
		t.Fatalf("expected nmap-shaped output, got %q", result.Output)
	}
}

func TestFileReadSimulatorEmbedsTraceableTokenInEnvFile(t *testing.T) {
	st := openTestStore(t)
	sim := NewFileReadSimulator(st)
	sess := &session.Context{ID: "sess-2"}

	result := sim.Simulate(map[string]any{"path": "/app/.env"}, sess)

	if len(result.TokensDeployed) != 3 {
		t.Fatalf("expected 3 tokens deployed for .env, got %d: %+v", len(result.TokensDeployed), result.TokensDeployed)
	}
	if len(sess.DiscoveredCredentials) != 3 {
		t.Fatalf("expected 3 discovered credentials, got %+v", sess.DiscoveredCredentials)
	}
	if !strings.Contains(result.Output, "DATABASE_URL=") {
		t.Fatalf("expected a DATABASE_URL line in the fake .env, got %q", result.Output)
	}

	tokens, err := st.SessionTokens(sess.ID, 10, 0)
	if err != nil {
		t.Fatalf("SessionTokens: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens logged to the store, got %d", len(tokens))
	}
}

func TestFileReadSimulatorDeniesShadowFile(t *testing.T) {
	st := openTestStore(t)
	sim := NewFileReadSimulator(st)
	sess := &session.Context{ID: "sess-3"}

	result := sim.Simulate(map[string]any{"path": "/etc/shadow"}, sess)
	if !result.IsError {
		t.Fatal("expected /etc/shadow read to be denied")
	}
}

func TestShellExecFlagsDangerousCommand(t *testing.T) {
	sim := NewShellExecSimulator()
	sess := &session.Context{ID: "sess-4"}

	result := sim.Simulate(map[string]any{"command": "rm -rf /tmp/x"}, sess)
	if result.EscalationDelta != 1 {
		t.Fatalf("expected escalation delta 1 for a dangerous command, got %d", result.EscalationDelta)
	}
}

func TestShellExecUnknownCommandReturnsNotFound(t *testing.T) {
	sim := NewShellExecSimulator()
	sess := &session.Context{ID: "sess-5"}

	result := sim.Simulate(map[string]any{"command": "frobnicate --all"}, sess)
	if result.EscalationDelta != 0 {
		t.Fatalf("expected no escalation for an unrecognized command, got %d", result.EscalationDelta)
	}
	if !strings.Contains(result.Output, "command not found") {
		t.Fatalf("expected a command-not-found message, got %q", result.Output)
	}
}

func TestSqlmapDumpUsersInjectsCredentials(t *testing.T) {
	st := openTestStore(t)
	sim := NewSqlmapSimulator(st)
	sess := &session.Context{ID: "sess-6"}

	result := sim.Simulate(map[string]any{"url": "http://x/api", "action": "dump", "table": "admin_users"}, sess)
	if len(result.TokensDeployed) != 2 {
		t.Fatalf("expected 2 tokens deployed dumping admin_users, got %+v", result.TokensDeployed)
	}
}

func TestVaultCliReadUnknownPathReturnsError(t *testing.T) {
	st := openTestStore(t)
	sim := NewVaultCliSimulator(st)
	sess := &session.Context{ID: "sess-7"}

	result := sim.Simulate(map[string]any{"command": "read secret/nope"}, sess)
	if !result.IsError {
		t.Fatal("expected an error reading an unknown vault path")
	}
}

func TestDockerRegistryInspectInjectsEnvTokens(t *testing.T) {
	st := openTestStore(t)
	sim := NewDockerRegistrySimulator(st)
	sess := &session.Context{ID: "sess-8"}

	result := sim.Simulate(map[string]any{"action": "inspect", "image_name": "corp/api-gateway:v1"}, sess)
	if len(result.TokensDeployed) != 2 {
		t.Fatalf("expected 2 tokens deployed on inspect, got %+v", result.TokensDeployed)
	}
	if !strings.Contains(result.Output, "DATABASE_URL=") {
		t.Fatalf("expected DATABASE_URL in inspected manifest, got %q", result.Output)
	}
}

func TestDNSLookupUnknownDomainReturnsNXDomain(t *testing.T) {
	sim := NewDNSLookupSimulator()
	sess := &session.Context{ID: "sess-9"}

	result := sim.Simulate(map[string]any{"domain": "nowhere.example.com"}, sess)
	if !strings.Contains(result.Output, "NXDOMAIN") {
		t.Fatalf("expected NXDOMAIN for an unknown domain, got %q", result.Output)
	}
}

func TestBrowserNavigateAdminLoginHintsDefaultCredentials(t *testing.T) {
	sim := NewBrowserSimulator(openTestStore(t))
	sess := &session.Context{ID: "sess-10"}

	result := sim.Simulate(map[string]any{"url": "http://internal/admin"}, sess)
	if !strings.Contains(result.Output, "Default credentials") {
		t.Fatalf("expected a default-credentials hint in admin login page, got %q", result.Output)
	}
}

func TestKubectlDescribeSecretInjectsSSHKey(t *testing.T) {
	st := openTestStore(t)
	sim := NewKubectlSimulator(st)
	sess := &session.Context{ID: "sess-11"}

	result := sim.Simulate(map[string]any{"command": "describe secret ssh-deploy-key"}, sess)
	if len(result.TokensDeployed) != 1 {
		t.Fatalf("expected 1 token deployed describing ssh-deploy-key, got %+v", result.TokensDeployed)
	}
	if !strings.Contains(result.Output, "BEGIN OPENSSH PRIVATE KEY") {
		t.Fatalf("expected an embedded SSH key, got %q", result.Output)
	}
}

func TestAWSCliIamListUsersInjectsAccessKey(t *testing.T) {
	st := openTestStore(t)
	sim := NewAWSCliSimulator(st)
	sess := &session.Context{ID: "sess-12"}

	result := sim.Simulate(map[string]any{"command": "iam list-users"}, sess)
	if len(result.TokensDeployed) != 1 {
		t.Fatalf("expected 1 token deployed listing IAM users, got %+v", result.TokensDeployed)
	}
}
