package engagement

import (
	"strings"
	"testing"

	"github.com/zepef/ai-honeypot/internal/session"
)

func TestComputeEscalationCapsAtThree(t *testing.T) {
	ctx := &session.Context{
		DiscoveredHosts:       []string{"a", "b"},
		DiscoveredFiles:       []string{"a", "b"},
		DiscoveredCredentials: []string{"a"},
		InteractionCount:      20,
	}
	if got := ComputeEscalation(ctx); got != 3 {
		t.Fatalf("expected escalation capped at 3, got %d", got)
	}
}

func TestComputeEscalationZeroForFreshSession(t *testing.T) {
	ctx := &session.Context{}
	if got := ComputeEscalation(ctx); got != 0 {
		t.Fatalf("expected escalation 0 for a fresh session, got %d", got)
	}
}

func TestComputeEscalationPartialCredit(t *testing.T) {
	ctx := &session.Context{DiscoveredCredentials: []string{"cred-1"}}
	if got := ComputeEscalation(ctx); got != 1 {
		t.Fatalf("expected escalation 1 for a single discovered credential, got %d", got)
	}
}

func TestGetBreadcrumbReturnsLevelAppropriateCrumb(t *testing.T) {
	ctx := &session.Context{EscalationLevel: 2}
	crumb := GetBreadcrumb(ctx)
	if crumb == "" {
		t.Fatal("expected a non-empty breadcrumb at level 2")
	}
	found := false
	for _, c := range breadcrumbsByLevel[2] {
		if c == crumb {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected breadcrumb to come from level 2's list, got %q", crumb)
	}
}

func TestShouldInjectErrorNeverBelowThreshold(t *testing.T) {
	ctx := &session.Context{InteractionCount: 4}
	for i := 0; i < 100; i++ {
		if ShouldInjectError(ctx) {
			t.Fatal("expected no transient error injection below the interaction-count threshold")
		}
	}
}

func TestEnrichOutputPreservesOriginalWhenNoInjection(t *testing.T) {
	ctx := &session.Context{EscalationLevel: 0, InteractionCount: 0}
	out := EnrichOutput("base output", ctx)
	if !strings.Contains(out, "base output") {
		t.Fatalf("expected enriched output to retain the original text, got %q", out)
	}
}
