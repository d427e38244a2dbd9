package honeytoken

import "testing"

func TestSessionTagIsStableAndEightHex(t *testing.T) {
	tag1 := SessionTag("session-one")
	tag2 := SessionTag("session-one")
	if tag1 != tag2 {
		t.Fatalf("expected stable tag for the same session ID, got %q and %q", tag1, tag2)
	}
	if len(tag1) != 8 {
		t.Fatalf("expected an 8-character tag, got %q", tag1)
	}
}

func TestSessionTagDiffersAcrossSessions(t *testing.T) {
	if SessionTag("session-a") == SessionTag("session-b") {
		t.Fatal("expected different sessions to produce different tags")
	}
}

func TestGenerateEmbedsTraceableTag(t *testing.T) {
	sessionID := "abc123"
	tag := SessionTag(sessionID)

	cases := []Type{AWSAccessKey, APIToken, DBCredential, AdminLogin, SSHKey}
	for _, typ := range cases {
		out := Generate(typ, sessionID)
		if out == "" {
			t.Fatalf("%s: expected non-empty output", typ)
		}
		if !containsFold(out, tag) {
			t.Fatalf("%s: expected output to embed session tag %q, got %q", typ, tag, out)
		}
	}
}

func TestGenerateIsNonDeterministicAcrossCalls(t *testing.T) {
	a := Generate(APIToken, "same-session")
	b := Generate(APIToken, "same-session")
	if a == b {
		t.Fatal("expected two generations for the same session to differ in random material")
	}
}

func containsFold(haystack, needle string) bool {
	lowerHaystack := []byte(haystack)
	for i := range lowerHaystack {
		if lowerHaystack[i] >= 'A' && lowerHaystack[i] <= 'Z' {
			lowerHaystack[i] += 'a' - 'A'
		}
	}
	lowerNeedle := []byte(needle)
	for i := range lowerNeedle {
		if lowerNeedle[i] >= 'A' && lowerNeedle[i] <= 'Z' {
			lowerNeedle[i] += 'a' - 'A'
		}
	}
	return indexOf(string(lowerHaystack), string(lowerNeedle)) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
