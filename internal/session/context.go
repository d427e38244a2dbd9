// Package session tracks per-attacker honeypot state: an in-memory cache of
// live Context values backed by write-through persistence to the store,
// with a background worker that evicts sessions idle past their TTL.
package session

import "github.com/zepef/ai-honeypot/internal/store"

// Context is the live, in-memory view of one attacker session. It mirrors
// store.Session but is named Context (not Session) to stay out of the way
// of the ubiquitous context.Context parameter threaded through this codebase.
type Context struct {
	ID                    string
	ClientInfo            map[string]any
	EscalationLevel       int
	DiscoveredHosts       []string
	DiscoveredPorts       []store.PortEntry
	DiscoveredFiles       []string
	DiscoveredCredentials []string
	InteractionCount      int
}

// AddHost records a discovered host, deduplicating against what's already
// known.
func (c *Context) AddHost(host string) {
	for _, h := range c.DiscoveredHosts {
		if h == host {
			return
		}
	}
	c.DiscoveredHosts = append(c.DiscoveredHosts, host)
}

// AddPort records a discovered host/port/service triple, deduplicating
// against what's already known.
func (c *Context) AddPort(host string, port int, service string) {
	entry := store.PortEntry{Host: host, Port: port, Service: service}
	for _, p := range c.DiscoveredPorts {
		if p == entry {
			return
		}
	}
	c.DiscoveredPorts = append(c.DiscoveredPorts, entry)
}

// AddFile records a discovered file path, deduplicating against what's
// already known.
func (c *Context) AddFile(path string) {
	for _, f := range c.DiscoveredFiles {
		if f == path {
			return
		}
	}
	c.DiscoveredFiles = append(c.DiscoveredFiles, path)
}

// AddCredential records a discovered credential identifier, deduplicating
// against what's already known.
func (c *Context) AddCredential(credID string) {
	for _, cr := range c.DiscoveredCredentials {
		if cr == credID {
			return
		}
	}
	c.DiscoveredCredentials = append(c.DiscoveredCredentials, credID)
}

// Escalate raises the escalation level by delta, capped at 3.
func (c *Context) Escalate(delta int) {
	c.EscalationLevel += delta
	if c.EscalationLevel > 3 {
		c.EscalationLevel = 3
	}
}

func (c *Context) toFields() store.SessionFields {
	return store.SessionFields{
		EscalationLevel:       &c.EscalationLevel,
		DiscoveredHosts:       c.DiscoveredHosts,
		DiscoveredPorts:       c.DiscoveredPorts,
		DiscoveredFiles:       c.DiscoveredFiles,
		DiscoveredCredentials: c.DiscoveredCredentials,
	}
}

func fromStoreSession(s *store.Session) *Context {
	return &Context{
		ID:                    s.ID,
		ClientInfo:            s.ClientInfo,
		EscalationLevel:       s.EscalationLevel,
		DiscoveredHosts:       s.DiscoveredHosts,
		DiscoveredPorts:       s.DiscoveredPorts,
		DiscoveredFiles:       s.DiscoveredFiles,
		DiscoveredCredentials: s.DiscoveredCredentials,
		InteractionCount:      s.InteractionCount,
	}
}
