// Package store is the durable record of honeypot sessions, interactions,
// and deployed honey tokens. It wraps a single SQLite connection managed
// with goose migrations, the same shape the rest of this codebase uses
// for embedded, pure-Go persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite"
)

// retryableWrite runs fn, retrying with exponential backoff on a
// transient "database is locked"/SQLITE_BUSY error. busy_timeout already
// makes the driver wait inside a single Exec call, but a writer that loses
// the lock race entirely (rather than merely waiting for it) still needs
// an outer retry.
func retryableWrite(fn func() error) error {
	b := retry.NewExponential(10 * time.Millisecond)
	b = retry.WithMaxRetries(3, b)
	return retry.Do(context.Background(), b, func(ctx context.Context) error {
		if err := fn(); err != nil {
			if isBusyErr(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}

func isBusyErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// Store wraps a sql.DB connection to the SQLite database.
type Store struct {
	conn *sql.DB
}

// Session is the durable record of one attacker-facing honeypot session.
type Session struct {
	ID                    string         `json:"id"`
	ClientInfo            map[string]any `json:"client_info"`
	CreatedAt             string         `json:"created_at"`
	LastSeenAt            string         `json:"last_seen_at"`
	EscalationLevel       int            `json:"escalation_level"`
	DiscoveredHosts       []string       `json:"discovered_hosts"`
	DiscoveredPorts       []PortEntry    `json:"discovered_ports"`
	DiscoveredFiles       []string       `json:"discovered_files"`
	DiscoveredCredentials []string       `json:"discovered_credentials"`
	InteractionCount      int            `json:"interaction_count"`
}

// PortEntry is one discovered host/port/service triple, the shape the
// nmap_scan and dns_lookup simulators feed into a session's discovery list.
type PortEntry struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Service string `json:"service"`
}

// Interaction is one logged MCP tool call against a session.
type Interaction struct {
	ID              int64           `json:"id"`
	SessionID       string          `json:"session_id"`
	CreatedAt       string          `json:"created_at"`
	Method          string          `json:"method"`
	ToolName        *string         `json:"tool_name"`
	Params          json.RawMessage `json:"params"`
	Response        json.RawMessage `json:"response"`
	EscalationDelta int             `json:"escalation_delta"`
}

// HoneyToken is one fabricated credential deployed into a session.
type HoneyToken struct {
	ID            int64  `json:"id"`
	SessionID     string `json:"session_id"`
	TokenType     string `json:"token_type"`
	TokenValue    string `json:"token_value"`
	Context       string `json:"context"`
	DeployedAt    string `json:"deployed_at"`
	InteractionID *int64 `json:"interaction_id"`
}

// SessionFields carries the whitelisted mutable columns for UpdateSession.
// Only non-nil fields are written; last_seen_at is always refreshed.
type SessionFields struct {
	EscalationLevel       *int
	DiscoveredHosts       []string
	DiscoveredPorts       []PortEntry
	DiscoveredFiles       []string
	DiscoveredCredentials []string
}

// SessionFilter narrows ListSessions results.
type SessionFilter struct {
	EscalationLevel *int
	Since           string
	Limit           int
	Offset          int
}

// Stats is the dashboard's aggregate overview.
type Stats struct {
	TotalSessions      int            `json:"total_sessions"`
	TotalInteractions  int            `json:"total_interactions"`
	TotalHoneyTokens   int            `json:"total_honey_tokens"`
	SessionsByLevel    map[int]int    `json:"sessions_by_level"`
	InteractionsByTool map[string]int `json:"interactions_by_tool"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Open creates a new Store connection and runs all pending migrations.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	migrationsFS, err := fs.Sub(MigrationFS, "migrations")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations sub-fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrationsFS)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create migration provider: %w", err)
	}

	if _, err := provider.Up(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	if path != ":memory:" {
		_ = os.Chmod(path, 0o600)
	}

	return &Store{conn: conn}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// --- Session methods ---

const sessionColumns = `id, client_info, created_at, last_seen_at, escalation_level, discovered_hosts, discovered_ports, discovered_files, discovered_credentials, interaction_count`

func scanSession(scanner interface{ Scan(...any) error }, sess *Session) error {
	var clientInfo, hosts, ports, files, creds string
	if err := scanner.Scan(&sess.ID, &clientInfo, &sess.CreatedAt, &sess.LastSeenAt, &sess.EscalationLevel, &hosts, &ports, &files, &creds, &sess.InteractionCount); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(clientInfo), &sess.ClientInfo); err != nil {
		return fmt.Errorf("decode client_info: %w", err)
	}
	if err := json.Unmarshal([]byte(hosts), &sess.DiscoveredHosts); err != nil {
		return fmt.Errorf("decode discovered_hosts: %w", err)
	}
	if err := json.Unmarshal([]byte(ports), &sess.DiscoveredPorts); err != nil {
		return fmt.Errorf("decode discovered_ports: %w", err)
	}
	if err := json.Unmarshal([]byte(files), &sess.DiscoveredFiles); err != nil {
		return fmt.Errorf("decode discovered_files: %w", err)
	}
	if err := json.Unmarshal([]byte(creds), &sess.DiscoveredCredentials); err != nil {
		return fmt.Errorf("decode discovered_credentials: %w", err)
	}
	return nil
}

// CreateSession inserts a brand-new session row. CreatedAt and LastSeenAt
// are stamped with the current time regardless of what the caller set.
func (s *Store) CreateSession(sess *Session) error {
	ts := now()
	clientInfo, err := json.Marshal(sess.ClientInfo)
	if err != nil {
		return fmt.Errorf("encode client_info: %w", err)
	}
	err = retryableWrite(func() error {
		_, err := s.conn.Exec(
			`INSERT INTO sessions (id, client_info, created_at, last_seen_at) VALUES (?, ?, ?, ?)`,
			sess.ID, clientInfo, ts, ts,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("create session %s: %w", sess.ID, err)
	}
	sess.CreatedAt, sess.LastSeenAt = ts, ts
	return nil
}

// UpdateSession applies whitelisted field changes and bumps last_seen_at.
func (s *Store) UpdateSession(id string, fields SessionFields) error {
	setParts := []string{"last_seen_at = ?"}
	args := []any{now()}

	if fields.EscalationLevel != nil {
		setParts = append(setParts, "escalation_level = ?")
		args = append(args, *fields.EscalationLevel)
	}
	if fields.DiscoveredHosts != nil {
		b, _ := json.Marshal(fields.DiscoveredHosts)
		setParts = append(setParts, "discovered_hosts = ?")
		args = append(args, string(b))
	}
	if fields.DiscoveredPorts != nil {
		b, _ := json.Marshal(fields.DiscoveredPorts)
		setParts = append(setParts, "discovered_ports = ?")
		args = append(args, string(b))
	}
	if fields.DiscoveredFiles != nil {
		b, _ := json.Marshal(fields.DiscoveredFiles)
		setParts = append(setParts, "discovered_files = ?")
		args = append(args, string(b))
	}
	if fields.DiscoveredCredentials != nil {
		b, _ := json.Marshal(fields.DiscoveredCredentials)
		setParts = append(setParts, "discovered_credentials = ?")
		args = append(args, string(b))
	}

	args = append(args, id)
	query := "UPDATE sessions SET "
	for i, p := range setParts {
		if i > 0 {
			query += ", "
		}
		query += p
	}
	query += " WHERE id = ?"

	err := retryableWrite(func() error {
		_, err := s.conn.Exec(query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	return nil
}

// IncrementInteractionCount bumps a session's interaction_count by one.
// Called by LogInteraction so the counter never drifts from the
// interactions table without a join.
func (s *Store) IncrementInteractionCount(id string) error {
	err := retryableWrite(func() error {
		_, err := s.conn.Exec(`UPDATE sessions SET interaction_count = interaction_count + 1 WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("increment interaction count %s: %w", id, err)
	}
	return nil
}

// GetSession retrieves a single session by ID. Returns nil, nil if missing.
func (s *Store) GetSession(id string) (*Session, error) {
	sess := &Session{}
	row := s.conn.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	if err := scanSession(row, sess); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns sessions ordered by last_seen_at descending, filtered
// by escalation level and/or a since timestamp, with pagination.
func (s *Store) ListSessions(filter SessionFilter) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1=1`
	var args []any
	if filter.EscalationLevel != nil {
		query += ` AND escalation_level = ?`
		args = append(args, *filter.EscalationLevel)
	}
	if filter.Since != "" {
		query += ` AND last_seen_at >= ?`
		args = append(args, filter.Since)
	}
	query += ` ORDER BY last_seen_at DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := scanSession(rows, &sess); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// --- Interaction methods ---

// LogInteraction stores an interaction row and bumps the owning session's
// interaction_count in the same call.
func (s *Store) LogInteraction(in *Interaction) (int64, error) {
	ts := now()
	if in.Params == nil {
		in.Params = json.RawMessage("{}")
	}
	if in.Response == nil {
		in.Response = json.RawMessage("{}")
	}
	var result sql.Result
	err := retryableWrite(func() error {
		var execErr error
		result, execErr = s.conn.Exec(
			`INSERT INTO interactions (session_id, created_at, method, tool_name, params, response, escalation_delta)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			in.SessionID, ts, in.Method, in.ToolName, string(in.Params), string(in.Response), in.EscalationDelta,
		)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("log interaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("log interaction: %w", err)
	}
	if err := s.IncrementInteractionCount(in.SessionID); err != nil {
		return id, err
	}
	in.ID, in.CreatedAt = id, ts
	return id, nil
}

func scanInteraction(scanner interface{ Scan(...any) error }, in *Interaction) error {
	var params, response string
	if err := scanner.Scan(&in.ID, &in.SessionID, &in.CreatedAt, &in.Method, &in.ToolName, &params, &response, &in.EscalationDelta); err != nil {
		return err
	}
	in.Params = json.RawMessage(params)
	in.Response = json.RawMessage(response)
	return nil
}

const interactionColumns = `id, session_id, created_at, method, tool_name, params, response, escalation_delta`

// SessionInteractions returns a session's interactions ordered oldest-first.
func (s *Store) SessionInteractions(sessionID string, limit, offset int) ([]Interaction, error) {
	rows, err := s.conn.Query(
		`SELECT `+interactionColumns+` FROM interactions WHERE session_id = ? ORDER BY id ASC LIMIT ? OFFSET ?`,
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("session interactions %s: %w", sessionID, err)
	}
	defer rows.Close() //nolint:errcheck

	var interactions []Interaction
	for rows.Next() {
		var in Interaction
		if err := scanInteraction(rows, &in); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		interactions = append(interactions, in)
	}
	return interactions, rows.Err()
}

// InteractionCount returns the number of interactions logged against a
// single session.
func (s *Store) InteractionCount(sessionID string) (int, error) {
	var count int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM interactions WHERE session_id = ?`, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("interaction count %s: %w", sessionID, err)
	}
	return count, nil
}

// --- Honey token methods ---

// LogHoneyToken stores a deployed honey token row.
func (s *Store) LogHoneyToken(tok *HoneyToken) (int64, error) {
	ts := now()
	var result sql.Result
	err := retryableWrite(func() error {
		var execErr error
		result, execErr = s.conn.Exec(
			`INSERT INTO honey_tokens (session_id, token_type, token_value, context, deployed_at, interaction_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			tok.SessionID, tok.TokenType, tok.TokenValue, tok.Context, ts, tok.InteractionID,
		)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("log honey token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("log honey token: %w", err)
	}
	tok.ID, tok.DeployedAt = id, ts
	return id, nil
}

const honeyTokenColumns = `id, session_id, token_type, token_value, context, deployed_at, interaction_id`

func scanHoneyToken(scanner interface{ Scan(...any) error }, tok *HoneyToken) error {
	return scanner.Scan(&tok.ID, &tok.SessionID, &tok.TokenType, &tok.TokenValue, &tok.Context, &tok.DeployedAt, &tok.InteractionID)
}

// SessionTokens returns honey tokens deployed into a given session.
func (s *Store) SessionTokens(sessionID string, limit, offset int) ([]HoneyToken, error) {
	rows, err := s.conn.Query(
		`SELECT `+honeyTokenColumns+` FROM honey_tokens WHERE session_id = ? ORDER BY id ASC LIMIT ? OFFSET ?`,
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("session tokens %s: %w", sessionID, err)
	}
	defer rows.Close() //nolint:errcheck

	var tokens []HoneyToken
	for rows.Next() {
		var tok HoneyToken
		if err := scanHoneyToken(rows, &tok); err != nil {
			return nil, fmt.Errorf("scan honey token: %w", err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

// ListTokens returns honey tokens across all sessions, optionally filtered
// by token type, ordered newest-first.
func (s *Store) ListTokens(tokenType string, limit, offset int) ([]HoneyToken, error) {
	query := `SELECT ` + honeyTokenColumns + ` FROM honey_tokens WHERE 1=1`
	var args []any
	if tokenType != "" {
		query += ` AND token_type = ?`
		args = append(args, tokenType)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tokens []HoneyToken
	for rows.Next() {
		var tok HoneyToken
		if err := scanHoneyToken(rows, &tok); err != nil {
			return nil, fmt.Errorf("scan honey token: %w", err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

// TokenCount returns the number of honey tokens deployed into a single
// session. Registry.Dispatch snapshots this before and after a simulate()
// call to detect whether the call planted a new token.
func (s *Store) TokenCount(sessionID string) (int, error) {
	var count int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM honey_tokens WHERE session_id = ?`, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("token count %s: %w", sessionID, err)
	}
	return count, nil
}

// PurgeTokensOlderThan deletes honey tokens deployed more than the given
// number of days ago. Returns the number of rows removed.
func (s *Store) PurgeTokensOlderThan(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	var res sql.Result
	err := retryableWrite(func() error {
		var execErr error
		res, execErr = s.conn.Exec(`DELETE FROM honey_tokens WHERE deployed_at < ?`, cutoff)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	return res.RowsAffected()
}

// --- Dashboard aggregates ---

// Stats computes the dashboard's aggregate overview.
func (s *Store) Stats() (*Stats, error) {
	out := &Stats{
		SessionsByLevel:    make(map[int]int),
		InteractionsByTool: make(map[string]int),
	}

	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&out.TotalSessions); err != nil {
		return nil, fmt.Errorf("stats total sessions: %w", err)
	}
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM interactions`).Scan(&out.TotalInteractions); err != nil {
		return nil, fmt.Errorf("stats total interactions: %w", err)
	}
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM honey_tokens`).Scan(&out.TotalHoneyTokens); err != nil {
		return nil, fmt.Errorf("stats total honey tokens: %w", err)
	}

	levelRows, err := s.conn.Query(`SELECT escalation_level, COUNT(*) FROM sessions GROUP BY escalation_level`)
	if err != nil {
		return nil, fmt.Errorf("stats sessions by level: %w", err)
	}
	defer levelRows.Close() //nolint:errcheck
	for levelRows.Next() {
		var level, count int
		if err := levelRows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("scan sessions by level: %w", err)
		}
		out.SessionsByLevel[level] = count
	}

	toolRows, err := s.conn.Query(`SELECT tool_name, COUNT(*) FROM interactions WHERE tool_name IS NOT NULL GROUP BY tool_name`)
	if err != nil {
		return nil, fmt.Errorf("stats interactions by tool: %w", err)
	}
	defer toolRows.Close() //nolint:errcheck
	for toolRows.Next() {
		var tool string
		var count int
		if err := toolRows.Scan(&tool, &count); err != nil {
			return nil, fmt.Errorf("scan interactions by tool: %w", err)
		}
		out.InteractionsByTool[tool] = count
	}

	return out, levelRows.Err()
}

// ClearAllData wipes all sessions, interactions, and honey tokens. Intended
// for test fixtures and operator-triggered resets, not normal operation.
func (s *Store) ClearAllData() error {
	for _, table := range []string{"honey_tokens", "interactions", "sessions"} {
		table := table
		err := retryableWrite(func() error {
			_, err := s.conn.Exec(`DELETE FROM ` + table)
			return err
		})
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
