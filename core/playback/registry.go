package playback

import (
	"time"

	"blogmusic/logger"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Factory builds the Coordinator for a new listener session.
type Factory func(sessionID string) *Coordinator

// Registry holds one Coordinator per listener session (a browser tab). Sessions idle
// longer than ttl, or pushed out by size, are closed.
type Registry struct {
	sessions *expirable.LRU[string, *Coordinator]
	factory  Factory
}

// NewRegistry 创建会话注册表
func NewRegistry(size int, ttl time.Duration, factory Factory) *Registry {
	onEvict := func(id string, c *Coordinator) {
		c.Close()
		logger.Info("player session closed", logger.String("session", id))
	}
	return &Registry{
		sessions: expirable.NewLRU[string, *Coordinator](size, onEvict, ttl),
		factory:  factory,
	}
}

// Create starts a new session and returns its id.
func (r *Registry) Create() (string, *Coordinator) {
	id := uuid.NewString()
	c := r.factory(id)
	r.sessions.Add(id, c)
	logger.Info("player session created", logger.String("session", id))
	return id, c
}

// Get returns the session and refreshes its idle timer.
func (r *Registry) Get(id string) (*Coordinator, bool) {
	c, ok := r.sessions.Get(id)
	if !ok {
		return nil, false
	}
	r.sessions.Add(id, c)
	return c, true
}

// Remove closes and forgets the session.
func (r *Registry) Remove(id string) bool {
	return r.sessions.Remove(id)
}

// Len 当前会话数量
func (r *Registry) Len() int {
	return r.sessions.Len()
}
