package notify

import (
	"fmt"
	"testing"
	"time"

	"backend/internal/model"
	"backend/internal/permission"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func financeUser() (*model.User, permission.Capabilities) {
	u := &model.User{ID: uuid.New(), FullName: "Bob", Role: model.RoleFinance}
	return u, permission.Resolve(model.RoleFinance, nil, u)
}

func paymentDoc(status string, updatedAt time.Time) model.Document {
	return model.Document{
		ID:             uuid.New(),
		Kind:           model.KindPaymentOrder,
		TrackingNumber: 42,
		Status:         status,
		Requester:      "Alice",
		UpdatedAt:      updatedAt,
	}
}

func TestFirstTickSeedsWithoutReplayingHistory(t *testing.T) {
	user, caps := financeUser()
	engine := NewEngine(time.Time{})

	docs := []model.Document{paymentDoc(model.StatusPending, t0.Add(-time.Hour))}
	events := engine.Tick(docs, user, caps, t0)

	assert.Empty(t, events, "fresh session must not replay old documents")
	assert.Equal(t, t0, engine.Checkpoint())
}

func TestNewRequestNotifiesFirstStageApprover(t *testing.T) {
	user, caps := financeUser()
	engine := NewEngine(t0)

	docs := []model.Document{paymentDoc(model.StatusPending, t0.Add(time.Minute))}
	events := engine.Tick(docs, user, caps, t0.Add(2*time.Minute))

	require.Len(t, events, 1)
	assert.Equal(t, "New request", events[0].Title)
	assert.Equal(t, docs[0].ID.String(), events[0].DocumentID)
	assert.Contains(t, events[0].Body, "Alice")
}

func TestRequesterExcludedFromOwnNewRequest(t *testing.T) {
	user, caps := financeUser()
	engine := NewEngine(t0)

	doc := paymentDoc(model.StatusPending, t0.Add(time.Minute))
	doc.Requester = user.FullName // requester also holds the finance capability

	events := engine.Tick([]model.Document{doc}, user, caps, t0.Add(2*time.Minute))
	assert.Empty(t, events)
}

func TestStaleDocumentsProduceNothing(t *testing.T) {
	user, caps := financeUser()
	engine := NewEngine(t0)

	docs := []model.Document{paymentDoc(model.StatusPending, t0.Add(-time.Minute))}
	events := engine.Tick(docs, user, caps, t0.Add(time.Minute))
	assert.Empty(t, events)
}

func TestDuplicateRefreshNeverReNotifies(t *testing.T) {
	user, caps := financeUser()
	engine := NewEngine(t0)

	doc := paymentDoc(model.StatusPending, t0.Add(time.Minute))

	first := engine.Tick([]model.Document{doc}, user, caps, t0.Add(2*time.Minute))
	require.Len(t, first, 1)

	// Same document arrives again with a bumped timestamp but an unchanged
	// status (e.g. out-of-order refresh).
	doc.UpdatedAt = t0.Add(3 * time.Minute)
	second := engine.Tick([]model.Document{doc}, user, caps, t0.Add(4*time.Minute))
	assert.Empty(t, second)
}

func TestStatusReentryAfterEditReArmsNotification(t *testing.T) {
	user, caps := financeUser()
	engine := NewEngine(t0)

	doc := paymentDoc(model.StatusPending, t0.Add(time.Minute))
	require.Len(t, engine.Tick([]model.Document{doc}, user, caps, t0.Add(2*time.Minute)), 1)

	// Document moves on to the finance-approved status...
	doc.Status = model.StatusApprovedFinance
	doc.UpdatedAt = t0.Add(3 * time.Minute)
	engine.Tick([]model.Document{doc}, user, caps, t0.Add(4*time.Minute))

	// ...then an edit resets it to pending. The pair (id, PENDING) must be
	// eligible again.
	doc.Status = model.StatusPending
	doc.UpdatedAt = t0.Add(5 * time.Minute)
	events := engine.Tick([]model.Document{doc}, user, caps, t0.Add(6*time.Minute))
	require.Len(t, events, 1)
	assert.Equal(t, "New request", events[0].Title)
}

func TestRejectionNotifiesOnlyRequester(t *testing.T) {
	engine := NewEngine(t0)

	doc := paymentDoc(model.StatusRejected, t0.Add(time.Minute))
	doc.RejectedBy = "Carol"
	doc.RejectionReason = "budget exceeded"

	requester := &model.User{ID: uuid.New(), FullName: "Alice", Role: model.RoleStaff}
	caps := permission.Resolve(model.RoleStaff, nil, requester)
	events := engine.Tick([]model.Document{doc}, requester, caps, t0.Add(2*time.Minute))
	require.Len(t, events, 1)
	assert.Equal(t, "Request rejected", events[0].Title)
	assert.Contains(t, events[0].Body, "budget exceeded")

	other, otherCaps := financeUser()
	otherEngine := NewEngine(t0)
	assert.Empty(t, otherEngine.Tick([]model.Document{doc}, other, otherCaps, t0.Add(2*time.Minute)))
}

func TestTerminalSuccessNotifiesRequesterAndLastStage(t *testing.T) {
	doc := paymentDoc(model.StatusApprovedCeo, t0.Add(time.Minute))

	requester := &model.User{ID: uuid.New(), FullName: "Alice", Role: model.RoleStaff}
	reqCaps := permission.Resolve(model.RoleStaff, nil, requester)
	events := NewEngine(t0).Tick([]model.Document{doc}, requester, reqCaps, t0.Add(2*time.Minute))
	require.Len(t, events, 1)
	assert.Equal(t, "Fully approved", events[0].Title)

	ceo := &model.User{ID: uuid.New(), FullName: "Dave", Role: model.RoleCeo}
	ceoCaps := permission.Resolve(model.RoleCeo, nil, ceo)
	events = NewEngine(t0).Tick([]model.Document{doc}, ceo, ceoCaps, t0.Add(2*time.Minute))
	require.Len(t, events, 1)

	bob, bobCaps := financeUser()
	assert.Empty(t, NewEngine(t0).Tick([]model.Document{doc}, bob, bobCaps, t0.Add(2*time.Minute)))
}

func TestMidChainNotifiesNextStageOnly(t *testing.T) {
	doc := paymentDoc(model.StatusApprovedFinance, t0.Add(time.Minute))

	manager := &model.User{ID: uuid.New(), FullName: "Carol", Role: model.RoleManager}
	mgrCaps := permission.Resolve(model.RoleManager, nil, manager)
	events := NewEngine(t0).Tick([]model.Document{doc}, manager, mgrCaps, t0.Add(2*time.Minute))
	require.Len(t, events, 1)
	assert.Equal(t, "Ready for your stage", events[0].Title)

	bob, bobCaps := financeUser()
	assert.Empty(t, NewEngine(t0).Tick([]model.Document{doc}, bob, bobCaps, t0.Add(2*time.Minute)))
}

func TestVoidPendingNotifiesAwaitedStage(t *testing.T) {
	doc := paymentDoc(model.StatusVoidPendingManager, t0.Add(time.Minute))

	manager := &model.User{ID: uuid.New(), FullName: "Carol", Role: model.RoleManager}
	mgrCaps := permission.Resolve(model.RoleManager, nil, manager)
	events := NewEngine(t0).Tick([]model.Document{doc}, manager, mgrCaps, t0.Add(2*time.Minute))
	require.Len(t, events, 1)
	assert.Equal(t, "Void request awaiting you", events[0].Title)

	bob, bobCaps := financeUser()
	assert.Empty(t, NewEngine(t0).Tick([]model.Document{doc}, bob, bobCaps, t0.Add(2*time.Minute)))
}

func chequePayload(dueDates ...time.Time) string {
	payload := `{"lines":[],"cheques":[`
	for i, d := range dueDates {
		if i > 0 {
			payload += ","
		}
		payload += fmt.Sprintf(`{"bank":"B","number":"%d","amount":"100","due_date":%q}`, i, d.Format(time.RFC3339))
	}
	return payload + `]}`
}

func TestScanDueDatesAggregatesWithinWindow(t *testing.T) {
	engine := NewEngine(t0)

	doc := paymentDoc(model.StatusApprovedCeo, t0)
	doc.Payload = chequePayload(
		t0,                      // due today
		t0.Add(24*time.Hour),    // tomorrow
		t0.Add(48*time.Hour),    // window edge, day 2, included
		t0.Add(31*24*time.Hour), // far future, excluded
		t0.Add(-24*time.Hour),   // past, excluded
	)

	event, ok := engine.ScanDueDates([]model.Document{doc}, t0)
	require.True(t, ok)
	assert.Contains(t, event.Body, "3 cheque(s)")
	assert.Empty(t, event.DocumentID, "aggregated alert is not tied to one document")
}

func TestScanDueDatesDedupsPerDayBucket(t *testing.T) {
	engine := NewEngine(t0)
	doc := paymentDoc(model.StatusApprovedCeo, t0)
	doc.Payload = chequePayload(t0.Add(24 * time.Hour))

	_, ok := engine.ScanDueDates([]model.Document{doc}, t0)
	require.True(t, ok)

	_, ok = engine.ScanDueDates([]model.Document{doc}, t0.Add(time.Hour))
	assert.False(t, ok, "same calendar day must not re-alert")

	_, ok = engine.ScanDueDates([]model.Document{doc}, t0.Add(25*time.Hour))
	assert.True(t, ok, "next calendar day alerts again")
}

func TestScanDueDatesNoChequesNoEvent(t *testing.T) {
	engine := NewEngine(t0)
	doc := paymentDoc(model.StatusApprovedCeo, t0)
	doc.Payload = `{"lines":[{"description":"steel","amount":"250.00"}]}`

	_, ok := engine.ScanDueDates([]model.Document{doc}, t0)
	assert.False(t, ok)
}

func TestCheckpointRestore(t *testing.T) {
	engine := NewEngine(time.Time{})
	engine.SetCheckpoint(t0)
	assert.Equal(t, t0, engine.Checkpoint())

	user, caps := financeUser()
	docs := []model.Document{paymentDoc(model.StatusPending, t0.Add(time.Minute))}
	events := engine.Tick(docs, user, caps, t0.Add(2*time.Minute))
	require.Len(t, events, 1, "restored checkpoint resumes diffing, not seeding")
}
