// Package session provides the idle-timeout guard: each logged-in session
// carries a single timer that any user interaction resets; if the timer
// fires the session is forcibly expired.
package session

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Guard monitors session activity. One timer per session; no state beyond
// the last-activity timestamp and the live timer handle.
type Guard struct {
	idleTimeout time.Duration
	onExpire    func(userID uuid.UUID)

	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
}

type entry struct {
	lastActivity time.Time
	timer        *time.Timer
}

// NewGuard creates a guard firing onExpire after idleTimeout of inactivity.
func NewGuard(idleTimeout time.Duration, onExpire func(userID uuid.UUID)) *Guard {
	return &Guard{
		idleTimeout: idleTimeout,
		onExpire:    onExpire,
		sessions:    make(map[uuid.UUID]*entry),
	}
}

// Touch records activity for a session, starting its timer on first touch
// and resetting it on every subsequent one.
func (g *Guard) Touch(userID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.sessions[userID]; ok {
		e.lastActivity = time.Now()
		e.timer.Reset(g.idleTimeout)
		return
	}

	e := &entry{lastActivity: time.Now()}
	e.timer = time.AfterFunc(g.idleTimeout, func() {
		g.expire(userID)
	})
	g.sessions[userID] = e
}

func (g *Guard) expire(userID uuid.UUID) {
	g.mu.Lock()
	e, ok := g.sessions[userID]
	if ok {
		delete(g.sessions, userID)
	}
	g.mu.Unlock()

	if !ok {
		return
	}
	log.Printf("session: user %s expired after %s idle (last activity %s)",
		userID, g.idleTimeout, e.lastActivity.Format(time.RFC3339))
	if g.onExpire != nil {
		g.onExpire(userID)
	}
}

// Remove drops a session without firing the expiry callback (logout).
func (g *Guard) Remove(userID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.sessions[userID]; ok {
		e.timer.Stop()
		delete(g.sessions, userID)
	}
}

// LastActivity returns the recorded last-activity time for a session.
func (g *Guard) LastActivity(userID uuid.UUID) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.sessions[userID]
	if !ok {
		return time.Time{}, false
	}
	return e.lastActivity, true
}

// Stop cancels every live timer. Used on shutdown.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, e := range g.sessions {
		e.timer.Stop()
		delete(g.sessions, id)
	}
}
