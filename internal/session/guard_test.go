package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expireRecorder struct {
	mu      sync.Mutex
	expired []uuid.UUID
}

func (r *expireRecorder) record(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, id)
}

func (r *expireRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.expired)
}

func TestIdleSessionExpires(t *testing.T) {
	rec := &expireRecorder{}
	g := NewGuard(30*time.Millisecond, rec.record)
	defer g.Stop()

	userID := uuid.New()
	g.Touch(userID)

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)

	_, ok := g.LastActivity(userID)
	assert.False(t, ok, "expired session is forgotten")
}

func TestTouchResetsIdleTimer(t *testing.T) {
	rec := &expireRecorder{}
	g := NewGuard(60*time.Millisecond, rec.record)
	defer g.Stop()

	userID := uuid.New()
	g.Touch(userID)

	// Keep the session alive past its original deadline.
	for i := 0; i < 4; i++ {
		time.Sleep(25 * time.Millisecond)
		g.Touch(userID)
	}
	assert.Zero(t, rec.count(), "active session must not expire")

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond,
		"session expires once activity stops")
}

func TestRemoveDoesNotFireExpiry(t *testing.T) {
	rec := &expireRecorder{}
	g := NewGuard(20*time.Millisecond, rec.record)
	defer g.Stop()

	userID := uuid.New()
	g.Touch(userID)
	g.Remove(userID)

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, rec.count(), "logout removal must not count as idle expiry")
}

func TestSessionsExpireIndependently(t *testing.T) {
	rec := &expireRecorder{}
	g := NewGuard(40*time.Millisecond, rec.record)
	defer g.Stop()

	idle := uuid.New()
	active := uuid.New()
	g.Touch(idle)
	g.Touch(active)

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		g.Touch(active)
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, time.Millisecond)
	rec.mu.Lock()
	expired := append([]uuid.UUID(nil), rec.expired...)
	rec.mu.Unlock()
	assert.Contains(t, expired, idle)
	assert.NotContains(t, expired, active)
}

func TestLastActivityTracksTouches(t *testing.T) {
	g := NewGuard(time.Hour, nil)
	defer g.Stop()

	userID := uuid.New()
	_, ok := g.LastActivity(userID)
	assert.False(t, ok, "unknown session")

	before := time.Now()
	g.Touch(userID)
	got, ok := g.LastActivity(userID)
	require.True(t, ok)
	assert.WithinDuration(t, before, got, time.Second)
}

func TestStopCancelsAllTimers(t *testing.T) {
	rec := &expireRecorder{}
	g := NewGuard(20*time.Millisecond, rec.record)

	g.Touch(uuid.New())
	g.Touch(uuid.New())
	g.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, rec.count())
}
