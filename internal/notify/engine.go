// Package notify turns raw document snapshots into per-session, addressed
// notification events. The engine is a client-observed diff: it compares
// each refresh against the last-seen checkpoint and decides, for one user,
// which transitions are new and worth surfacing. Delivery (websocket push
// or HTTP pull) is layered on top by the session registry and hub.
package notify

import (
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/permission"
	"backend/internal/workflow"

	"github.com/google/uuid"
)

// DueSoonWindowDays is the inclusive calendar-day horizon for cheque
// due-date alerts: a cheque due today, tomorrow or the day after alerts.
const DueSoonWindowDays = 2

// Event is one ephemeral notification. Never persisted server-side; it
// lives in the session buffer until the user acknowledges it or the
// session ends.
type Event struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"read"`
}

// Engine holds the diff state for one session. Not safe for concurrent use;
// the owning Session serializes access.
type Engine struct {
	lastCheck time.Time
	lastSeen  map[uuid.UUID]string // document id → status at last tick

	// emitted dedups (documentID, status) pairs: once notified, a pair is
	// silent until the document moves to a different status. Duplicate or
	// out-of-order refreshes therefore never re-notify.
	emitted map[string]bool

	// dueAlerted dedups the aggregated due-soon alert per scan-day bucket.
	dueAlerted map[string]bool
}

// NewEngine creates an engine resuming from a device-local checkpoint. A
// zero checkpoint means a fresh session: the first tick only seeds the
// snapshot instead of replaying the entire history as "new".
func NewEngine(lastCheck time.Time) *Engine {
	return &Engine{
		lastCheck:  lastCheck,
		lastSeen:   make(map[uuid.UUID]string),
		emitted:    make(map[string]bool),
		dueAlerted: make(map[string]bool),
	}
}

// Checkpoint returns the timestamp of the last completed tick.
func (e *Engine) Checkpoint() time.Time {
	return e.lastCheck
}

// SetCheckpoint restores a device-persisted checkpoint (e.g. after a
// client reload pushes its stored value back up).
func (e *Engine) SetCheckpoint(ts time.Time) {
	e.lastCheck = ts
}

// Tick runs one poll-and-compare cycle for the session's user. It returns
// the addressed events for documents whose UpdatedAt moved past the
// checkpoint, classified against the user's capabilities, then advances
// the checkpoint and replaces the snapshot.
func (e *Engine) Tick(docs []model.Document, user *model.User, caps permission.Capabilities, now time.Time) []Event {
	var events []Event

	seeding := e.lastCheck.IsZero()
	for i := range docs {
		doc := &docs[i]
		if seeding || !doc.UpdatedAt.After(e.lastCheck) {
			continue
		}
		key := doc.ID.String() + "|" + doc.Status
		if e.emitted[key] {
			continue
		}
		if ev, ok := classify(doc, user, caps, now); ok {
			e.emitted[key] = true
			events = append(events, ev)
		}
	}

	// Replace the snapshot and drop dedup entries for documents that moved
	// on — the pair (id, old status) can never recur, and (id, new status)
	// must be eligible again if the document later revisits it via Edit.
	next := make(map[uuid.UUID]string, len(docs))
	for i := range docs {
		next[docs[i].ID] = docs[i].Status
	}
	for key := range e.emitted {
		id, err := uuid.Parse(key[:36]) // key is "<uuid>|<status>"
		status := key[37:]
		if err != nil {
			delete(e.emitted, key)
			continue
		}
		if cur, ok := next[id]; !ok || cur != status {
			delete(e.emitted, key)
		}
	}
	e.lastSeen = next
	e.lastCheck = now

	return events
}

// classify applies the fixed decision table mapping (status, capabilities)
// to a notification, with self-exclusion for the requester's own arrival
// into the first pending state.
func classify(doc *model.Document, user *model.User, caps permission.Capabilities, now time.Time) (Event, bool) {
	chain, ok := workflow.ChainFor(doc.Kind)
	if !ok {
		return Event{}, false
	}

	mk := func(title, body string) (Event, bool) {
		return Event{
			ID:         uuid.NewString(),
			DocumentID: doc.ID.String(),
			Status:     doc.Status,
			Title:      title,
			Body:       body,
			CreatedAt:  now,
		}, true
	}
	label := fmt.Sprintf("%s #%d", kindLabel(doc.Kind), doc.TrackingNumber)

	switch {
	case doc.Status == chain.Initial():
		// New request: surface to the first-stage approver, but never to
		// the requester even when they also hold the approval capability.
		if caps.Has(chain.Stages[0].Capability) && doc.Requester != user.FullName {
			return mk("New request", fmt.Sprintf("%s from %s is awaiting your approval", label, doc.Requester))
		}

	case doc.Status == chain.TerminalSuccess():
		lastCap := chain.Stages[len(chain.Stages)-1].Capability
		if caps.Has(lastCap) || doc.Requester == user.FullName {
			return mk("Fully approved", fmt.Sprintf("%s has completed all approval stages", label))
		}

	case doc.Status == model.StatusRejected:
		if doc.Requester == user.FullName {
			return mk("Request rejected", fmt.Sprintf("%s was rejected by %s: %s", label, doc.RejectedBy, doc.RejectionReason))
		}

	case doc.Status == model.StatusVoided:
		if doc.Requester == user.FullName {
			return mk("Request voided", fmt.Sprintf("%s has been voided", label))
		}

	default:
		if stage, _, ok := chain.NextVoidStatus(doc.Status); ok {
			if caps.Has(stage.Capability) {
				return mk("Void request awaiting you", fmt.Sprintf("%s needs your void approval", label))
			}
			return Event{}, false
		}
		if stage, ok := chain.NextStage(doc.Status); ok && caps.Has(stage.Capability) {
			return mk("Ready for your stage", fmt.Sprintf("%s is awaiting your approval", label))
		}
	}

	return Event{}, false
}

// ScanDueDates produces at most one aggregated "due soon" alert covering
// every cheque whose due date falls within the inclusive two-day window.
// The scan is independent of the timestamp diff — it runs once per full
// data refresh — and is deduped by day bucket so the same refresh day
// never re-alerts.
func (e *Engine) ScanDueDates(docs []model.Document, now time.Time) (Event, bool) {
	bucket := now.Format("2006-01-02")
	if e.dueAlerted[bucket] {
		return Event{}, false
	}

	count := 0
	for i := range docs {
		payload := docs[i].ParsePaymentPayload()
		for _, cheque := range payload.Cheques {
			if days, ok := calendarDaysUntil(now, cheque.DueDate); ok && days >= 0 && days <= DueSoonWindowDays {
				count++
			}
		}
	}
	if count == 0 {
		return Event{}, false
	}

	e.dueAlerted[bucket] = true
	return Event{
		ID:        uuid.NewString(),
		Title:     "Cheques due soon",
		Body:      fmt.Sprintf("%d cheque(s) due within %d days", count, DueSoonWindowDays),
		CreatedAt: now,
	}, true
}

// calendarDaysUntil returns the whole-calendar-day difference between now
// and due in now's location. Past dates return ok=false.
func calendarDaysUntil(now, due time.Time) (int, bool) {
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, now.Location())
	days := int(dueDay.Sub(nowDay).Hours() / 24)
	if days < 0 {
		return days, false
	}
	return days, true
}

func kindLabel(kind string) string {
	switch kind {
	case model.KindPaymentOrder:
		return "Payment order"
	case model.KindExitPermit:
		return "Exit permit"
	case model.KindWarehouseDispatch:
		return "Dispatch note"
	}
	return "Document"
}
