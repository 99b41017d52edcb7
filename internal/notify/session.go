package notify

import (
	"sync"
	"time"

	"backend/internal/model"
	"backend/internal/permission"

	"github.com/google/uuid"
)

// Session holds one logged-in user's notification state: the diff engine,
// the buffer of undelivered events and the per-channel read timestamps.
// All state is in-memory and dies with the session.
type Session struct {
	UserID uuid.UUID

	mu        sync.Mutex
	engine    *Engine
	pending   []Event
	readState map[string]time.Time // channel key → last-read timestamp
}

// Run executes one diff tick plus the due-date scan and buffers whatever
// came out. Returns the freshly produced events so the caller can also push
// them over the wire.
func (s *Session) Run(docs []model.Document, user *model.User, caps permission.Capabilities, now time.Time) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.engine.Tick(docs, user, caps, now)
	if due, ok := s.engine.ScanDueDates(docs, now); ok {
		events = append(events, due)
	}
	s.pending = append(s.pending, events...)
	return events
}

// Pending returns a copy of the undelivered event buffer.
func (s *Session) Pending() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.pending))
	copy(out, s.pending)
	return out
}

// Ack removes acknowledged events from the buffer. An empty id list clears
// everything.
func (s *Session) Ack(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) == 0 {
		s.pending = nil
		return
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.pending[:0]
	for _, ev := range s.pending {
		if !drop[ev.ID] {
			kept = append(kept, ev)
		}
	}
	s.pending = kept
}

// Checkpoint returns the engine's last-check timestamp for the client to
// persist device-locally.
func (s *Session) Checkpoint() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Checkpoint()
}

// RestoreCheckpoint accepts a device-persisted timestamp pushed up by the
// client after a reload, so the diff window survives page refreshes.
func (s *Session) RestoreCheckpoint(ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts.After(s.engine.Checkpoint()) {
		s.engine.SetCheckpoint(ts)
	}
}

// MarkRead records the last-read timestamp for a notification channel.
func (s *Session) MarkRead(channel string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readState[channel] = ts
}

// ReadState returns a copy of the per-channel read timestamps.
func (s *Session) ReadState() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.readState))
	for k, v := range s.readState {
		out[k] = v
	}
	return out
}

// Registry tracks the live notification sessions, one per logged-in user.
type Registry struct {
	sessions sync.Map // uuid.UUID → *Session
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Get returns the session for a user, creating it on first touch.
func (r *Registry) Get(userID uuid.UUID) *Session {
	if v, ok := r.sessions.Load(userID); ok {
		return v.(*Session)
	}
	s := &Session{
		UserID:    userID,
		engine:    NewEngine(time.Time{}),
		readState: make(map[string]time.Time),
	}
	actual, _ := r.sessions.LoadOrStore(userID, s)
	return actual.(*Session)
}

// Drop evicts a user's session (logout or idle expiry).
func (r *Registry) Drop(userID uuid.UUID) {
	r.sessions.Delete(userID)
}

// Range visits every live session.
func (r *Registry) Range(fn func(*Session) bool) {
	r.sessions.Range(func(_, v any) bool {
		return fn(v.(*Session))
	})
}
