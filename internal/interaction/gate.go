package interaction

import (
	"sync"
	"time"
)

type Gate struct {
	mu      sync.RWMutex
	granted map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// ttl <= 0 表示授权一直有效，直到撤销
func NewGate(ttl time.Duration, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{granted: make(map[string]time.Time), ttl: ttl, now: now}
}

func (g *Gate) Grant(userID string) {
	g.mu.Lock()
	g.granted[userID] = g.now()
	g.mu.Unlock()
}

func (g *Gate) Revoke(userID string) {
	g.mu.Lock()
	delete(g.granted, userID)
	g.mu.Unlock()
}

func (g *Gate) Allowed(userID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	at, ok := g.granted[userID]
	if !ok {
		return false
	}
	return g.ttl <= 0 || g.now().Sub(at) < g.ttl
}
