package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetSession(t *testing.T) {
	s := openTestStore(t)

	sess := &Session{ID: "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6", ClientInfo: map[string]any{"name": "test-client"}}
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.CreatedAt == "" {
		t.Fatal("expected CreatedAt to be stamped")
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.ClientInfo["name"] != "test-client" {
		t.Fatalf("expected client_info to round-trip, got %+v", got.ClientInfo)
	}
	if got.EscalationLevel != 0 {
		t.Fatalf("expected escalation_level 0, got %d", got.EscalationLevel)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := openTestStore(t)

	got, err := s.GetSession("doesnotexist00000000000000000000")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing session, got %+v", got)
	}
}

func TestUpdateSessionWhitelistedFields(t *testing.T) {
	s := openTestStore(t)

	sess := &Session{ID: "11112222333344445555666677778888", ClientInfo: map[string]any{}}
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	level := 2
	if err := s.UpdateSession(sess.ID, SessionFields{
		EscalationLevel: &level,
		DiscoveredHosts: []string{"10.0.1.5"},
	}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.EscalationLevel != 2 {
		t.Fatalf("expected escalation_level 2, got %d", got.EscalationLevel)
	}
	if len(got.DiscoveredHosts) != 1 || got.DiscoveredHosts[0] != "10.0.1.5" {
		t.Fatalf("expected discovered_hosts to round-trip, got %+v", got.DiscoveredHosts)
	}
}

func TestLogInteractionBumpsCount(t *testing.T) {
	s := openTestStore(t)

	sess := &Session{ID: "99998888777766665555444433332222", ClientInfo: map[string]any{}}
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	toolName := "nmap_scan"
	for i := 0; i < 3; i++ {
		if _, err := s.LogInteraction(&Interaction{SessionID: sess.ID, Method: "tools/call", ToolName: &toolName}); err != nil {
			t.Fatalf("LogInteraction: %v", err)
		}
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.InteractionCount != 3 {
		t.Fatalf("expected interaction_count 3, got %d", got.InteractionCount)
	}

	interactions, err := s.SessionInteractions(sess.ID, 50, 0)
	if err != nil {
		t.Fatalf("SessionInteractions: %v", err)
	}
	if len(interactions) != 3 {
		t.Fatalf("expected 3 interactions, got %d", len(interactions))
	}
}

func TestLogHoneyTokenAndListTokens(t *testing.T) {
	s := openTestStore(t)

	sess := &Session{ID: "aaaa0000bbbb1111cccc2222dddd3333", ClientInfo: map[string]any{}}
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := s.LogHoneyToken(&HoneyToken{SessionID: sess.ID, TokenType: "aws_access_key", TokenValue: "AKIA...", Context: "file_read"}); err != nil {
		t.Fatalf("LogHoneyToken: %v", err)
	}

	tokens, err := s.ListTokens("aws_access_key", 50, 0)
	if err != nil {
		t.Fatalf("ListTokens: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}

	count, err := s.TokenCount(sess.ID)
	if err != nil {
		t.Fatalf("TokenCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected token count 1, got %d", count)
	}

	other, err := s.TokenCount("doesnotexist00000000000000000000")
	if err != nil {
		t.Fatalf("TokenCount: %v", err)
	}
	if other != 0 {
		t.Fatalf("expected token count 0 for unrelated session, got %d", other)
	}
}

func TestInteractionCountIsPerSession(t *testing.T) {
	s := openTestStore(t)

	a := &Session{ID: "1111aaaa1111aaaa1111aaaa1111aaaa", ClientInfo: map[string]any{}}
	b := &Session{ID: "2222bbbb2222bbbb2222bbbb2222bbbb", ClientInfo: map[string]any{}}
	if err := s.CreateSession(a); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := s.CreateSession(b); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	toolName := "nmap_scan"
	if _, err := s.LogInteraction(&Interaction{SessionID: a.ID, Method: "tools/call", ToolName: &toolName}); err != nil {
		t.Fatalf("LogInteraction: %v", err)
	}
	if _, err := s.LogInteraction(&Interaction{SessionID: a.ID, Method: "tools/call", ToolName: &toolName}); err != nil {
		t.Fatalf("LogInteraction: %v", err)
	}
	if _, err := s.LogInteraction(&Interaction{SessionID: b.ID, Method: "tools/call", ToolName: &toolName}); err != nil {
		t.Fatalf("LogInteraction: %v", err)
	}

	countA, err := s.InteractionCount(a.ID)
	if err != nil {
		t.Fatalf("InteractionCount: %v", err)
	}
	if countA != 2 {
		t.Fatalf("expected session a to have 2 interactions, got %d", countA)
	}

	countB, err := s.InteractionCount(b.ID)
	if err != nil {
		t.Fatalf("InteractionCount: %v", err)
	}
	if countB != 1 {
		t.Fatalf("expected session b to have 1 interaction, got %d", countB)
	}
}

func TestListSessionsFilterByEscalationLevel(t *testing.T) {
	s := openTestStore(t)

	low := &Session{ID: "0000000000000000000000000000000a", ClientInfo: map[string]any{}}
	high := &Session{ID: "0000000000000000000000000000000b", ClientInfo: map[string]any{}}
	if err := s.CreateSession(low); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := s.CreateSession(high); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	level := 3
	if err := s.UpdateSession(high.ID, SessionFields{EscalationLevel: &level}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	filterLevel := 3
	sessions, err := s.ListSessions(SessionFilter{EscalationLevel: &filterLevel, Limit: 50})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != high.ID {
		t.Fatalf("expected only the escalated session, got %+v", sessions)
	}
}

func TestStatsAggregates(t *testing.T) {
	s := openTestStore(t)

	sess := &Session{ID: "ffff0000ffff0000ffff0000ffff0000", ClientInfo: map[string]any{}}
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	toolName := "shell_exec"
	if _, err := s.LogInteraction(&Interaction{SessionID: sess.ID, Method: "tools/call", ToolName: &toolName}); err != nil {
		t.Fatalf("LogInteraction: %v", err)
	}
	if _, err := s.LogHoneyToken(&HoneyToken{SessionID: sess.ID, TokenType: "admin_login", TokenValue: "admin:x"}); err != nil {
		t.Fatalf("LogHoneyToken: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalSessions != 1 || stats.TotalInteractions != 1 || stats.TotalHoneyTokens != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.InteractionsByTool["shell_exec"] != 1 {
		t.Fatalf("expected shell_exec count 1, got %+v", stats.InteractionsByTool)
	}
}

func TestClearAllData(t *testing.T) {
	s := openTestStore(t)

	sess := &Session{ID: "cccc1111cccc1111cccc1111cccc1111", ClientInfo: map[string]any{}}
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := s.ClearAllData(); err != nil {
		t.Fatalf("ClearAllData: %v", err)
	}
	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Fatal("expected session to be cleared")
	}
}
