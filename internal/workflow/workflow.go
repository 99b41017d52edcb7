package workflow

import (
	"time"

	"backend/internal/model"
	"backend/internal/permission"
)

// Actor is the user attempting a transition, reduced to what the engine
// needs: the name stamped into slots and the resolved capability map.
type Actor struct {
	FullName     string
	Capabilities permission.Capabilities
}

// Approve advances the document exactly one stage along its current chain
// (forward or void). On the forward chain the acting stage's approver slot
// is stamped with the actor's full name; void approvals advance the status
// only — the historical forward approvals stay untouched.
func Approve(doc *model.Document, actor Actor, now time.Time) error {
	chain, ok := ChainFor(doc.Kind)
	if !ok {
		return ErrInvalidState
	}

	if stage, next, ok := chain.NextVoidStatus(doc.Status); ok {
		if !actor.Capabilities.Has(stage.Capability) {
			return ErrPermissionDenied
		}
		doc.Status = next
		doc.UpdatedAt = now
		return nil
	}

	stage, ok := chain.NextStage(doc.Status)
	if !ok {
		return ErrInvalidState
	}
	if !actor.Capabilities.Has(stage.Capability) {
		return ErrPermissionDenied
	}

	doc.Status = stage.Forward
	doc.SetApprover(stage.Slot, actor.FullName)
	doc.UpdatedAt = now
	return nil
}

// Reject moves the document to the rejected terminal. Legal from every
// non-terminal forward status and nowhere else; any holder of a stage
// capability in this kind's chain may reject, not only the next approver.
// Prior approver slots are kept as historical record.
func Reject(doc *model.Document, actor Actor, reason string, now time.Time) error {
	chain, ok := ChainFor(doc.Kind)
	if !ok {
		return ErrInvalidState
	}
	if !chain.IsForwardPending(doc.Status) {
		return ErrInvalidState
	}

	allowed := false
	for _, code := range chain.StageCapabilities() {
		if actor.Capabilities.Has(code) {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrPermissionDenied
	}

	doc.Status = model.StatusRejected
	doc.RejectionReason = reason
	doc.RejectedBy = actor.FullName
	doc.UpdatedAt = now
	return nil
}

// Edit replaces the payload and deliberately restarts the whole approval
// chain: status back to initial, every approver slot and the rejection
// fields cleared. Allowed from the rejected state, or from a forward
// pending state when the actor may edit all documents or owns this one and
// may edit their own. Never allowed in the void chain or after terminal
// success.
func Edit(doc *model.Document, actor Actor, payload string, now time.Time) error {
	chain, ok := ChainFor(doc.Kind)
	if !ok {
		return ErrInvalidState
	}

	switch {
	case doc.Status == model.StatusRejected:
		// Rejected documents may always be reworked by anyone who can
		// reach them; the rework restarts the chain below.
	case chain.IsForwardPending(doc.Status):
		canEdit := actor.Capabilities.Has(model.CapEditAllDocuments) ||
			(actor.Capabilities.Has(model.CapEditOwnDocuments) && doc.Requester == actor.FullName)
		if !canEdit {
			return ErrPermissionDenied
		}
	default:
		return ErrInvalidState
	}

	doc.Payload = payload
	doc.Status = chain.Initial()
	doc.ClearApprovers()
	doc.RejectionReason = ""
	doc.RejectedBy = ""
	doc.UpdatedAt = now
	return nil
}

// RequestVoid enters the cancellation chain. Legal if and only if the
// document sits in the rejected terminal; the requester of the document or
// any chain approver may open the void request.
func RequestVoid(doc *model.Document, actor Actor, now time.Time) error {
	chain, ok := ChainFor(doc.Kind)
	if !ok {
		return ErrInvalidState
	}
	if doc.Status != model.StatusRejected {
		return ErrInvalidState
	}

	allowed := doc.Requester == actor.FullName
	if !allowed {
		for _, code := range chain.StageCapabilities() {
			if actor.Capabilities.Has(code) {
				allowed = true
				break
			}
		}
	}
	if !allowed {
		return ErrPermissionDenied
	}

	doc.Status = chain.Stages[0].VoidPending
	doc.UpdatedAt = now
	return nil
}

// CanApprove reports whether the capability map allows pushing the document
// along its single legal edge right now. Derived, never stored: false for
// rejected and terminal statuses.
func CanApprove(doc *model.Document, caps permission.Capabilities) bool {
	chain, ok := ChainFor(doc.Kind)
	if !ok {
		return false
	}
	if stage, _, ok := chain.NextVoidStatus(doc.Status); ok {
		return caps.Has(stage.Capability)
	}
	if stage, ok := chain.NextStage(doc.Status); ok {
		return caps.Has(stage.Capability)
	}
	return false
}
