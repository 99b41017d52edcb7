package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentKind enum constants
const (
	KindPaymentOrder      = "PAYMENT_ORDER"
	KindExitPermit        = "EXIT_PERMIT"
	KindWarehouseDispatch = "WAREHOUSE_DISPATCH"
)

// Shared status constants. Kind-specific statuses live alongside because a
// single documents table holds all three kinds; the workflow chain tables
// decide which statuses are meaningful for which kind.
const (
	StatusPending  = "PENDING"
	StatusRejected = "REJECTED"
	StatusVoided   = "VOIDED"

	// Payment order forward chain
	StatusApprovedFinance = "APPROVED_FINANCE"
	StatusApprovedManager = "APPROVED_MANAGER"
	StatusApprovedCeo     = "APPROVED_CEO"

	// Exit permit forward chain (CEO → factory → warehouse → security)
	StatusExitApprovedCeo       = "EXIT_APPROVED_CEO"
	StatusExitApprovedFactory   = "EXIT_APPROVED_FACTORY"
	StatusExitApprovedWarehouse = "EXIT_APPROVED_WAREHOUSE"
	StatusExited                = "EXITED"

	// Warehouse dispatch forward chain
	StatusDispatchApprovedWarehouse = "DISPATCH_APPROVED_WAREHOUSE"
	StatusDispatched                = "DISPATCHED"

	// Void chains — one pending status per stage, re-running the same approvers
	StatusVoidPendingFinance = "VOID_PENDING_FINANCE"
	StatusVoidPendingManager = "VOID_PENDING_MANAGER"
	StatusVoidPendingCeo     = "VOID_PENDING_CEO"

	StatusVoidPendingExitCeo       = "VOID_PENDING_EXIT_CEO"
	StatusVoidPendingExitFactory   = "VOID_PENDING_EXIT_FACTORY"
	StatusVoidPendingExitWarehouse = "VOID_PENDING_EXIT_WAREHOUSE"
	StatusVoidPendingExitSecurity  = "VOID_PENDING_EXIT_SECURITY"

	StatusVoidPendingDispatchWarehouse = "VOID_PENDING_DISPATCH_WAREHOUSE"
	StatusVoidPendingDispatchManager   = "VOID_PENDING_DISPATCH_MANAGER"
)

// Document is the generic workflow entity behind payment orders, factory
// exit permits and warehouse dispatch notes. The kind-specific payload is
// opaque to the workflow engine; only the notification engine peeks into
// payment payloads for cheque due dates.
type Document struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind           string    `gorm:"type:varchar(30);not null;index" json:"kind"`
	TrackingNumber int64     `gorm:"not null;index" json:"tracking_number"` // sequential per kind; per paying company for payment orders
	PayingCompany  string    `gorm:"type:varchar(100);index" json:"paying_company,omitempty"`
	Status         string    `gorm:"type:varchar(40);not null;index" json:"status"`
	Requester      string    `gorm:"type:varchar(255);not null" json:"requester"` // full name snapshot, not a FK

	// Approver slots, one per chain stage, stamped as each stage approves.
	ApproverStage1 string `gorm:"type:varchar(255)" json:"approver_stage1,omitempty"`
	ApproverStage2 string `gorm:"type:varchar(255)" json:"approver_stage2,omitempty"`
	ApproverStage3 string `gorm:"type:varchar(255)" json:"approver_stage3,omitempty"`
	ApproverStage4 string `gorm:"type:varchar(255)" json:"approver_stage4,omitempty"`

	RejectionReason string `gorm:"type:text" json:"rejection_reason,omitempty"`
	RejectedBy      string `gorm:"type:varchar(255)" json:"rejected_by,omitempty"`

	Payload string `gorm:"type:jsonb" json:"payload"` // kind-specific body, opaque to the workflow

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

// Approver returns the stamped approver name for a 1-based stage slot.
func (d *Document) Approver(slot int) string {
	switch slot {
	case 1:
		return d.ApproverStage1
	case 2:
		return d.ApproverStage2
	case 3:
		return d.ApproverStage3
	case 4:
		return d.ApproverStage4
	}
	return ""
}

// SetApprover stamps the approver name for a 1-based stage slot.
func (d *Document) SetApprover(slot int, name string) {
	switch slot {
	case 1:
		d.ApproverStage1 = name
	case 2:
		d.ApproverStage2 = name
	case 3:
		d.ApproverStage3 = name
	case 4:
		d.ApproverStage4 = name
	}
}

// ClearApprovers wipes every approver slot. Used by Edit, which restarts
// the approval chain from scratch.
func (d *Document) ClearApprovers() {
	d.ApproverStage1 = ""
	d.ApproverStage2 = ""
	d.ApproverStage3 = ""
	d.ApproverStage4 = ""
}

// PaymentLine is one row of a payment order body.
type PaymentLine struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Cheque is a cheque attached to a payment order. DueDate drives the
// "due soon" notification scan.
type Cheque struct {
	Bank    string          `json:"bank"`
	Number  string          `json:"number"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate time.Time       `json:"due_date"`
}

// PaymentOrderPayload is the typed body of a payment order document.
type PaymentOrderPayload struct {
	Lines   []PaymentLine `json:"lines"`
	Cheques []Cheque      `json:"cheques,omitempty"`
	Note    string        `json:"note,omitempty"`
}

// ParsePaymentPayload decodes the payload of a payment order document.
// Returns a zero payload for non-payment kinds or malformed bodies —
// callers scanning many documents should not fail the whole scan on one
// bad row.
func (d *Document) ParsePaymentPayload() PaymentOrderPayload {
	var p PaymentOrderPayload
	if d.Kind != KindPaymentOrder || d.Payload == "" {
		return p
	}
	_ = json.Unmarshal([]byte(d.Payload), &p)
	return p
}
