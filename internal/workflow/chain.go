// Package workflow implements the multi-stage approval state machine shared
// by payment orders, factory exit permits and warehouse dispatch notes, plus
// the mirrored void chain that cancels an already-rejected document.
//
// The engine is pure: operations take a document plus the actor's resolved
// capabilities and either mutate the in-memory copy or return a typed error.
// Persistence, auditing and notification are the caller's concern.
package workflow

import "backend/internal/model"

// Stage is one approval step in a document's forward chain. Each stage is
// gated by exactly one capability and stamps exactly one approver slot. The
// void chain reuses the same stages with its own pending statuses.
type Stage struct {
	Name        string // human label, e.g. "finance"
	Capability  string // capability code gating this stage (forward and void)
	Forward     string // status the document enters once this stage approves
	VoidPending string // status while this stage's void approval is awaited
	Slot        int    // 1-based approver slot stamped on forward approval
}

// Chain describes the full lifecycle of one document kind. The forward
// chain runs Initial → Stages[0].Forward → … → Stages[N-1].Forward (the
// terminal success status); Rejected is reachable from every non-terminal
// forward status; the void chain runs Stages[0].VoidPending → … → Voided.
type Chain struct {
	Kind   string
	Stages []Stage
}

var chains = map[string]Chain{
	model.KindPaymentOrder: {
		Kind: model.KindPaymentOrder,
		Stages: []Stage{
			{Name: "finance", Capability: model.CapApprovePaymentFinance, Forward: model.StatusApprovedFinance, VoidPending: model.StatusVoidPendingFinance, Slot: 1},
			{Name: "manager", Capability: model.CapApprovePaymentManager, Forward: model.StatusApprovedManager, VoidPending: model.StatusVoidPendingManager, Slot: 2},
			{Name: "ceo", Capability: model.CapApprovePaymentCeo, Forward: model.StatusApprovedCeo, VoidPending: model.StatusVoidPendingCeo, Slot: 3},
		},
	},
	model.KindExitPermit: {
		Kind: model.KindExitPermit,
		Stages: []Stage{
			{Name: "ceo", Capability: model.CapApproveExitCeo, Forward: model.StatusExitApprovedCeo, VoidPending: model.StatusVoidPendingExitCeo, Slot: 1},
			{Name: "factory", Capability: model.CapApproveExitFactory, Forward: model.StatusExitApprovedFactory, VoidPending: model.StatusVoidPendingExitFactory, Slot: 2},
			{Name: "warehouse", Capability: model.CapApproveExitWarehouse, Forward: model.StatusExitApprovedWarehouse, VoidPending: model.StatusVoidPendingExitWarehouse, Slot: 3},
			{Name: "security", Capability: model.CapApproveExitSecurity, Forward: model.StatusExited, VoidPending: model.StatusVoidPendingExitSecurity, Slot: 4},
		},
	},
	model.KindWarehouseDispatch: {
		Kind: model.KindWarehouseDispatch,
		Stages: []Stage{
			{Name: "warehouse", Capability: model.CapApproveDispatchWarehouse, Forward: model.StatusDispatchApprovedWarehouse, VoidPending: model.StatusVoidPendingDispatchWarehouse, Slot: 1},
			{Name: "manager", Capability: model.CapApproveDispatchManager, Forward: model.StatusDispatched, VoidPending: model.StatusVoidPendingDispatchManager, Slot: 2},
		},
	},
}

// ChainFor returns the chain for a document kind. The second return is
// false for unknown kinds.
func ChainFor(kind string) (Chain, bool) {
	c, ok := chains[kind]
	return c, ok
}

// Initial is the status a freshly created (or edited) document holds.
func (c Chain) Initial() string {
	return model.StatusPending
}

// TerminalSuccess is the status after the last forward stage approves.
func (c Chain) TerminalSuccess() string {
	return c.Stages[len(c.Stages)-1].Forward
}

// NextStage returns the stage that must act next given the current forward
// status. Only one stage is ever legal from any status, so "next" is a pure
// function of status alone. The second return is false when the status has
// no forward edge (terminal, rejected, void chain, or foreign status).
func (c Chain) NextStage(status string) (Stage, bool) {
	if status == c.Initial() {
		return c.Stages[0], true
	}
	for i, s := range c.Stages {
		if status == s.Forward && i+1 < len(c.Stages) {
			return c.Stages[i+1], true
		}
	}
	return Stage{}, false
}

// NextVoidStatus returns the stage whose void approval is awaited and the
// status the document enters once it approves. The second status is Voided
// after the final stage.
func (c Chain) NextVoidStatus(status string) (stage Stage, next string, ok bool) {
	for i, s := range c.Stages {
		if status == s.VoidPending {
			if i+1 < len(c.Stages) {
				return s, c.Stages[i+1].VoidPending, true
			}
			return s, model.StatusVoided, true
		}
	}
	return Stage{}, "", false
}

// IsForwardPending reports whether the status is a forward-chain state from
// which Approve or Reject remain legal (initial or intermediate approval).
func (c Chain) IsForwardPending(status string) bool {
	if status == c.Initial() {
		return true
	}
	for i, s := range c.Stages {
		if status == s.Forward {
			return i+1 < len(c.Stages)
		}
	}
	return false
}

// IsVoidPending reports whether the status is a void-chain pending state.
func (c Chain) IsVoidPending(status string) bool {
	for _, s := range c.Stages {
		if status == s.VoidPending {
			return true
		}
	}
	return false
}

// StageCapabilities returns the capability codes of every stage in the
// chain. Reject is open to any holder of one of these.
func (c Chain) StageCapabilities() []string {
	codes := make([]string, 0, len(c.Stages))
	for _, s := range c.Stages {
		codes = append(codes, s.Capability)
	}
	return codes
}
