package workflow

import (
	"testing"
	"time"

	"backend/internal/model"
	"backend/internal/permission"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capsOf(codes ...string) permission.Capabilities {
	caps := make(permission.Capabilities)
	for _, code := range model.AllCapabilities() {
		caps[code] = false
	}
	for _, code := range codes {
		caps[code] = true
	}
	return caps
}

func newPaymentOrder(status string) *model.Document {
	return &model.Document{
		ID:        uuid.New(),
		Kind:      model.KindPaymentOrder,
		Status:    status,
		Requester: "Alice",
	}
}

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestApproveAdvancesOneStageAndStampsSlot(t *testing.T) {
	doc := newPaymentOrder(model.StatusPending)
	bob := Actor{FullName: "Bob", Capabilities: capsOf(model.CapApprovePaymentFinance)}

	require.NoError(t, Approve(doc, bob, now))

	assert.Equal(t, model.StatusApprovedFinance, doc.Status)
	assert.Equal(t, "Bob", doc.ApproverStage1)
	assert.Empty(t, doc.ApproverStage2)
	assert.Equal(t, now, doc.UpdatedAt)
}

func TestApproveDeniedWithoutStageCapability(t *testing.T) {
	doc := newPaymentOrder(model.StatusPending)
	carol := Actor{FullName: "Carol", Capabilities: capsOf(model.CapApprovePaymentManager)}

	err := Approve(doc, carol, now)

	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, model.StatusPending, doc.Status, "document must be unchanged")
	assert.Empty(t, doc.ApproverStage1)
}

func TestApproveFullPaymentChainThenTerminal(t *testing.T) {
	doc := newPaymentOrder(model.StatusPending)

	steps := []struct {
		actor string
		cap   string
		want  string
	}{
		{"Bob", model.CapApprovePaymentFinance, model.StatusApprovedFinance},
		{"Carol", model.CapApprovePaymentManager, model.StatusApprovedManager},
		{"Dave", model.CapApprovePaymentCeo, model.StatusApprovedCeo},
	}
	for i, step := range steps {
		actor := Actor{FullName: step.actor, Capabilities: capsOf(step.cap)}
		require.NoError(t, Approve(doc, actor, now))
		assert.Equal(t, step.want, doc.Status)
		assert.Equal(t, step.actor, doc.Approver(i+1))
	}

	// Terminal status: a further approval is an invalid state, even for
	// someone holding every capability.
	admin := Actor{FullName: "Root", Capabilities: capsOf(model.AllCapabilities()...)}
	assert.ErrorIs(t, Approve(doc, admin, now), ErrInvalidState)
}

func TestApproveExitPermitChain(t *testing.T) {
	doc := &model.Document{ID: uuid.New(), Kind: model.KindExitPermit, Status: model.StatusPending, Requester: "Alice"}

	chainCaps := []string{
		model.CapApproveExitCeo,
		model.CapApproveExitFactory,
		model.CapApproveExitWarehouse,
		model.CapApproveExitSecurity,
	}
	for i, cap := range chainCaps {
		actor := Actor{FullName: "Approver", Capabilities: capsOf(cap)}
		require.NoError(t, Approve(doc, actor, now))
		assert.Equal(t, "Approver", doc.Approver(i+1))
	}
	assert.Equal(t, model.StatusExited, doc.Status)
}

func TestApproveUnknownKindIsInvalid(t *testing.T) {
	doc := &model.Document{Kind: "PURCHASE_ORDER", Status: model.StatusPending}
	admin := Actor{FullName: "Root", Capabilities: capsOf(model.AllCapabilities()...)}
	assert.ErrorIs(t, Approve(doc, admin, now), ErrInvalidState)
}

func TestRejectFromAnyForwardPendingState(t *testing.T) {
	for _, status := range []string{model.StatusPending, model.StatusApprovedFinance, model.StatusApprovedManager} {
		doc := newPaymentOrder(status)
		ceo := Actor{FullName: "Dave", Capabilities: capsOf(model.CapApprovePaymentCeo)}

		require.NoError(t, Reject(doc, ceo, "budget exceeded", now), "status %s", status)
		assert.Equal(t, model.StatusRejected, doc.Status)
		assert.Equal(t, "budget exceeded", doc.RejectionReason)
		assert.Equal(t, "Dave", doc.RejectedBy)
	}
}

func TestRejectKeepsPriorApproverSlots(t *testing.T) {
	doc := newPaymentOrder(model.StatusApprovedFinance)
	doc.ApproverStage1 = "Bob"
	manager := Actor{FullName: "Carol", Capabilities: capsOf(model.CapApprovePaymentManager)}

	require.NoError(t, Reject(doc, manager, "wrong amount", now))
	assert.Equal(t, "Bob", doc.ApproverStage1)
}

func TestRejectNotLegalFromTerminalOrVoidStates(t *testing.T) {
	anyChain := Actor{FullName: "Dave", Capabilities: capsOf(model.CapApprovePaymentCeo)}
	for _, status := range []string{model.StatusApprovedCeo, model.StatusRejected, model.StatusVoided, model.StatusVoidPendingFinance} {
		doc := newPaymentOrder(status)
		assert.ErrorIs(t, Reject(doc, anyChain, "x", now), ErrInvalidState, "status %s", status)
	}
}

func TestRejectRequiresSomeChainCapability(t *testing.T) {
	doc := newPaymentOrder(model.StatusPending)
	outsider := Actor{FullName: "Eve", Capabilities: capsOf(model.CapApproveExitSecurity)}
	assert.ErrorIs(t, Reject(doc, outsider, "nope", now), ErrPermissionDenied)
}

func TestEditFromRejectedRestartsChain(t *testing.T) {
	doc := newPaymentOrder(model.StatusRejected)
	doc.ApproverStage1 = "Bob"
	doc.RejectionReason = "wrong amount"
	doc.RejectedBy = "Carol"

	alice := Actor{FullName: "Alice", Capabilities: capsOf()}
	require.NoError(t, Edit(doc, alice, `{"note":"fixed"}`, now))

	assert.Equal(t, model.StatusPending, doc.Status)
	assert.Equal(t, `{"note":"fixed"}`, doc.Payload)
	assert.Empty(t, doc.ApproverStage1)
	assert.Empty(t, doc.RejectionReason)
	assert.Empty(t, doc.RejectedBy)
}

func TestEditMidChainRequiresOwnershipOrEditAll(t *testing.T) {
	t.Run("owner with edit_own", func(t *testing.T) {
		doc := newPaymentOrder(model.StatusApprovedFinance)
		doc.ApproverStage1 = "Bob"
		alice := Actor{FullName: "Alice", Capabilities: capsOf(model.CapEditOwnDocuments)}

		require.NoError(t, Edit(doc, alice, "{}", now))
		assert.Equal(t, model.StatusPending, doc.Status)
		assert.Empty(t, doc.ApproverStage1, "edit restarts the chain")
	})

	t.Run("non-owner with edit_own denied", func(t *testing.T) {
		doc := newPaymentOrder(model.StatusApprovedFinance)
		eve := Actor{FullName: "Eve", Capabilities: capsOf(model.CapEditOwnDocuments)}
		assert.ErrorIs(t, Edit(doc, eve, "{}", now), ErrPermissionDenied)
	})

	t.Run("non-owner with edit_all allowed", func(t *testing.T) {
		doc := newPaymentOrder(model.StatusApprovedFinance)
		admin := Actor{FullName: "Root", Capabilities: capsOf(model.CapEditAllDocuments)}
		require.NoError(t, Edit(doc, admin, "{}", now))
	})
}

func TestEditNotLegalInVoidChainOrAfterTerminal(t *testing.T) {
	admin := Actor{FullName: "Root", Capabilities: capsOf(model.AllCapabilities()...)}
	for _, status := range []string{model.StatusApprovedCeo, model.StatusVoided, model.StatusVoidPendingManager} {
		doc := newPaymentOrder(status)
		assert.ErrorIs(t, Edit(doc, admin, "{}", now), ErrInvalidState, "status %s", status)
	}
}

func TestRequestVoidOnlyFromRejected(t *testing.T) {
	alice := Actor{FullName: "Alice", Capabilities: capsOf()}

	doc := newPaymentOrder(model.StatusRejected)
	require.NoError(t, RequestVoid(doc, alice, now))
	assert.Equal(t, model.StatusVoidPendingFinance, doc.Status)

	for _, status := range []string{model.StatusPending, model.StatusApprovedFinance, model.StatusApprovedCeo, model.StatusVoided} {
		doc := newPaymentOrder(status)
		assert.ErrorIs(t, RequestVoid(doc, alice, now), ErrInvalidState, "status %s", status)
	}
}

func TestRequestVoidDeniedForUnrelatedUser(t *testing.T) {
	doc := newPaymentOrder(model.StatusRejected)
	eve := Actor{FullName: "Eve", Capabilities: capsOf()}
	assert.ErrorIs(t, RequestVoid(doc, eve, now), ErrPermissionDenied)

	// A chain approver who is not the requester may open the void.
	carol := Actor{FullName: "Carol", Capabilities: capsOf(model.CapApprovePaymentManager)}
	require.NoError(t, RequestVoid(doc, carol, now))
}

func TestVoidChainRunsEveryStageThenVoided(t *testing.T) {
	doc := newPaymentOrder(model.StatusRejected)
	doc.ApproverStage1 = "Bob"
	doc.ApproverStage2 = "Carol"

	alice := Actor{FullName: "Alice", Capabilities: capsOf()}
	require.NoError(t, RequestVoid(doc, alice, now))

	steps := []struct {
		cap  string
		want string
	}{
		{model.CapApprovePaymentFinance, model.StatusVoidPendingManager},
		{model.CapApprovePaymentManager, model.StatusVoidPendingCeo},
		{model.CapApprovePaymentCeo, model.StatusVoided},
	}
	for _, step := range steps {
		actor := Actor{FullName: "Approver", Capabilities: capsOf(step.cap)}
		require.NoError(t, Approve(doc, actor, now))
		assert.Equal(t, step.want, doc.Status)
	}

	// Historical forward slots survive the void chain untouched.
	assert.Equal(t, "Bob", doc.ApproverStage1)
	assert.Equal(t, "Carol", doc.ApproverStage2)

	admin := Actor{FullName: "Root", Capabilities: capsOf(model.AllCapabilities()...)}
	assert.ErrorIs(t, Approve(doc, admin, now), ErrInvalidState, "voided is terminal")
}

func TestVoidApprovalRequiresStageCapability(t *testing.T) {
	doc := newPaymentOrder(model.StatusVoidPendingManager)
	finance := Actor{FullName: "Bob", Capabilities: capsOf(model.CapApprovePaymentFinance)}
	assert.ErrorIs(t, Approve(doc, finance, now), ErrPermissionDenied)
}

func TestCanApprove(t *testing.T) {
	cases := []struct {
		name   string
		status string
		caps   permission.Capabilities
		want   bool
	}{
		{"first stage holder at pending", model.StatusPending, capsOf(model.CapApprovePaymentFinance), true},
		{"wrong stage holder at pending", model.StatusPending, capsOf(model.CapApprovePaymentCeo), false},
		{"next stage mid-chain", model.StatusApprovedFinance, capsOf(model.CapApprovePaymentManager), true},
		{"terminal", model.StatusApprovedCeo, capsOf(model.AllCapabilities()...), false},
		{"rejected", model.StatusRejected, capsOf(model.AllCapabilities()...), false},
		{"void pending stage holder", model.StatusVoidPendingCeo, capsOf(model.CapApprovePaymentCeo), true},
		{"void pending wrong holder", model.StatusVoidPendingCeo, capsOf(model.CapApprovePaymentFinance), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := newPaymentOrder(tc.status)
			assert.Equal(t, tc.want, CanApprove(doc, tc.caps))
		})
	}
}

func TestDispatchChainIsTwoStages(t *testing.T) {
	doc := &model.Document{ID: uuid.New(), Kind: model.KindWarehouseDispatch, Status: model.StatusPending, Requester: "Alice"}

	wh := Actor{FullName: "Walt", Capabilities: capsOf(model.CapApproveDispatchWarehouse)}
	require.NoError(t, Approve(doc, wh, now))
	assert.Equal(t, model.StatusDispatchApprovedWarehouse, doc.Status)

	mgr := Actor{FullName: "Carol", Capabilities: capsOf(model.CapApproveDispatchManager)}
	require.NoError(t, Approve(doc, mgr, now))
	assert.Equal(t, model.StatusDispatched, doc.Status)
}
