package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zepef/ai-honeypot/internal/store"
)

// DefaultTTL is the idle duration after which a cached session is evicted
// if HONEYPOT_SESSION_TTL is not set.
const DefaultTTL = 3600 * time.Second

// evictionInterval is how often the background worker sweeps for idle
// sessions.
const evictionInterval = 60 * time.Second

// Manager owns the in-memory session cache, write-through persistence to
// the store, and a background worker that evicts sessions idle past TTL.
// A single mutex guards both the cache and the last-touch map so the two
// can never drift out of sync with each other.
type Manager struct {
	store *store.Store
	bus   publisher
	ttl   time.Duration

	mu        sync.Mutex
	cache     map[string]*Context
	lastTouch map[string]time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// publisher is the subset of eventbus.Bus the session manager needs,
// declared locally so this package does not import eventbus directly and
// stays free to be tested without a live bus.
type publisher interface {
	Publish(eventType string, payload any) int64
}

// New creates a Manager. ttl <= 0 falls back to DefaultTTL.
func New(st *store.Store, bus publisher, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:     st,
		bus:       bus,
		ttl:       ttl,
		cache:     make(map[string]*Context),
		lastTouch: make(map[string]time.Time),
		done:      make(chan struct{}),
	}
}

// Run starts the background eviction worker. It blocks until ctx is
// cancelled, then stops the worker and returns.
func (m *Manager) Run(ctx context.Context) {
	m.wg.Add(1)
	go m.evictLoop(ctx)
	<-ctx.Done()
	m.wg.Wait()
}

func (m *Manager) evictLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	var expired []string
	for id, touched := range m.lastTouch {
		if touched.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(m.cache, id)
		delete(m.lastTouch, id)
	}
	m.mu.Unlock()
}

// Shutdown stops the background eviction worker without waiting for an
// outer context cancellation.
func (m *Manager) Shutdown() {
	close(m.done)
}

// Create mints a new session ID, registers it in the cache, persists it,
// and returns the new Context.
func (m *Manager) Create(clientInfo map[string]any) (*Context, error) {
	id := uuid.New().String()
	id = removeDashes(id)

	ctx := &Context{ID: id, ClientInfo: clientInfo}

	m.mu.Lock()
	m.cache[id] = ctx
	m.lastTouch[id] = time.Now()
	m.mu.Unlock()

	if err := m.store.CreateSession(&store.Session{ID: id, ClientInfo: clientInfo}); err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}
	m.bus.Publish("session_new", map[string]string{"session_id": id})
	return ctx, nil
}

// Get returns the live Context for id, loading it from the store and
// populating the cache on a miss. Returns nil, nil if the session does not
// exist anywhere.
func (m *Manager) Get(id string) (*Context, error) {
	m.mu.Lock()
	ctx, ok := m.cache[id]
	m.mu.Unlock()
	if ok {
		return ctx, nil
	}

	sess, err := m.store.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	if sess == nil {
		return nil, nil
	}

	ctx = fromStoreSession(sess)
	m.mu.Lock()
	m.cache[id] = ctx
	m.lastTouch[id] = time.Now()
	m.mu.Unlock()
	return ctx, nil
}

// Touch increments a session's interaction count and refreshes its
// eviction clock. If the session is not already cached, it is loaded from
// the store first (a cold MCP request against a session the eviction
// worker has since dropped must still count toward that session's
// history). It is a no-op if the session does not exist anywhere.
func (m *Manager) Touch(id string) {
	m.mu.Lock()
	_, cached := m.cache[id]
	m.mu.Unlock()

	if !cached {
		if _, err := m.Get(id); err != nil {
			return
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx, ok := m.cache[id]; ok {
		ctx.InteractionCount++
		m.lastTouch[id] = time.Now()
	}
}

// Persist writes a session's current in-memory state through to the store.
func (m *Manager) Persist(id string) error {
	m.mu.Lock()
	ctx, ok := m.cache[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if err := m.store.UpdateSession(id, ctx.toFields()); err != nil {
		return fmt.Errorf("persist session %s: %w", id, err)
	}
	return nil
}

// CacheSize reports the number of sessions currently resident in memory.
// Exposed mainly for tests exercising the eviction worker.
func (m *Manager) CacheSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

func removeDashes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
