package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/permission"
	"backend/internal/repository"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateDocumentDTO struct {
	Kind          string `json:"kind" binding:"required,oneof=PAYMENT_ORDER EXIT_PERMIT WAREHOUSE_DISPATCH"`
	PayingCompany string `json:"paying_company"`
	Payload       string `json:"payload" binding:"required"` // kind-specific JSON body
}

type DocumentFilter struct {
	Kind   string
	Status string
	Page   int
	Limit  int
}

// TransitionOp selects which workflow operation ApplyTransition runs.
type TransitionOp string

const (
	OpApprove     TransitionOp = "APPROVE"
	OpReject      TransitionOp = "REJECT"
	OpEdit        TransitionOp = "EDIT"
	OpRequestVoid TransitionOp = "REQUEST_VOID"
)

// TransitionInput carries the operation-specific extras: a rejection reason
// for Reject, a replacement payload for Edit.
type TransitionInput struct {
	Reason  string `json:"reason"`
	Payload string `json:"payload"`
}

type DocumentResponse struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	TrackingNumber  int64  `json:"tracking_number"`
	PayingCompany   string `json:"paying_company,omitempty"`
	Status          string `json:"status"`
	Requester       string `json:"requester"`
	ApproverStage1  string `json:"approver_stage1,omitempty"`
	ApproverStage2  string `json:"approver_stage2,omitempty"`
	ApproverStage3  string `json:"approver_stage3,omitempty"`
	ApproverStage4  string `json:"approver_stage4,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	RejectedBy      string `json:"rejected_by,omitempty"`
	Payload         string `json:"payload"`
	CanApprove      bool   `json:"can_approve"` // advisory for the caller's UI; re-checked on every transition
	CreatedAt       int64  `json:"created_at"`  // epoch milliseconds
	UpdatedAt       int64  `json:"updated_at"`
}

// --- Interface ---

type DocumentService interface {
	CreateDocument(ctx context.Context, actorID string, req CreateDocumentDTO) (DocumentResponse, error)
	GetDocument(ctx context.Context, actorID, id string) (*DocumentResponse, error)
	ListDocuments(ctx context.Context, actorID string, filter DocumentFilter) ([]DocumentResponse, int64, error)
	// Cartable returns the documents currently awaiting the acting user's
	// stage — the per-role inbox, derived, never stored.
	Cartable(ctx context.Context, actorID string) ([]DocumentResponse, error)
	ApplyTransition(ctx context.Context, id string, op TransitionOp, actorID string, input TransitionInput) (DocumentResponse, error)
	DeleteDocument(ctx context.Context, actorID, id string) error
}

type documentService struct {
	db     *gorm.DB
	docs   repository.DocumentRepository
	users  repository.UserRepository
	audits repository.AuditRepository
	tx     repository.TransactionManager
}

func NewDocumentService(db *gorm.DB, docs repository.DocumentRepository, users repository.UserRepository, tx repository.TransactionManager) DocumentService {
	return &documentService{db: db, docs: docs, users: users, audits: repository.NewAuditRepository(db), tx: tx}
}

// --- Implementation ---

func (s *documentService) CreateDocument(ctx context.Context, actorID string, req CreateDocumentDTO) (DocumentResponse, error) {
	actor, _, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return DocumentResponse{}, err
	}

	if req.Kind == model.KindPaymentOrder && req.PayingCompany == "" {
		return DocumentResponse{}, errors.New("paying_company is required for payment orders")
	}
	chain, ok := workflow.ChainFor(req.Kind)
	if !ok {
		return DocumentResponse{}, fmt.Errorf("unknown document kind: %s", req.Kind)
	}

	doc := model.Document{
		Kind:          req.Kind,
		PayingCompany: req.PayingCompany,
		Status:        chain.Initial(),
		Requester:     actor.FullName,
		Payload:       req.Payload,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		tracking, trackErr := s.docs.NextTrackingNumber(txCtx, req.Kind, req.PayingCompany)
		if trackErr != nil {
			return fmt.Errorf("failed to allocate tracking number: %w", trackErr)
		}
		doc.TrackingNumber = tracking

		if createErr := s.docs.Create(txCtx, &doc); createErr != nil {
			return fmt.Errorf("failed to create document: %w", createErr)
		}

		return s.writeAudit(txCtx, actor.ID, model.ActionCreateDocument, &doc, map[string]any{
			"kind":            doc.Kind,
			"tracking_number": doc.TrackingNumber,
		})
	})
	if err != nil {
		return DocumentResponse{}, wrapPersistence(err)
	}

	return toDocumentResponse(doc, nil), nil
}

func (s *documentService) GetDocument(ctx context.Context, actorID, id string) (*DocumentResponse, error) {
	docID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid document id: %w", err)
	}

	_, caps, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	doc, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("document not found: %w", err)
	}

	resp := toDocumentResponse(*doc, caps)
	return &resp, nil
}

func (s *documentService) ListDocuments(ctx context.Context, actorID string, filter DocumentFilter) ([]DocumentResponse, int64, error) {
	_, caps, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}

	docs, total, err := s.docs.List(ctx, repository.DocumentFilter{
		Kind:   filter.Kind,
		Status: filter.Status,
		Page:   filter.Page,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch documents: %w", err)
	}

	result := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		result = append(result, toDocumentResponse(d, caps))
	}
	return result, total, nil
}

func (s *documentService) Cartable(ctx context.Context, actorID string) ([]DocumentResponse, error) {
	_, caps, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	// Candidate statuses are every forward/void state whose next stage the
	// user can act on; statuses like PENDING span kinds, so the final say
	// belongs to CanApprove per document.
	statuses := awaitingStatuses(caps)
	if len(statuses) == 0 {
		return []DocumentResponse{}, nil
	}

	docs, err := s.docs.ListByStatuses(ctx, statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cartable: %w", err)
	}

	result := make([]DocumentResponse, 0, len(docs))
	for i := range docs {
		if workflow.CanApprove(&docs[i], caps) {
			result = append(result, toDocumentResponse(docs[i], caps))
		}
	}
	return result, nil
}

func (s *documentService) ApplyTransition(ctx context.Context, id string, op TransitionOp, actorID string, input TransitionInput) (DocumentResponse, error) {
	docID, err := uuid.Parse(id)
	if err != nil {
		return DocumentResponse{}, fmt.Errorf("invalid document id: %w", err)
	}

	user, caps, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return DocumentResponse{}, err
	}
	actor := workflow.Actor{FullName: user.FullName, Capabilities: caps}

	var doc *model.Document
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		doc, findErr = s.docs.FindByID(txCtx, docID)
		if findErr != nil {
			return fmt.Errorf("document not found: %w", findErr)
		}

		loadedStatus := doc.Status
		now := time.Now()

		var action string
		switch op {
		case OpApprove:
			action = model.ActionApproveDocument
			if chain, ok := workflow.ChainFor(doc.Kind); ok && chain.IsVoidPending(doc.Status) {
				action = model.ActionApproveVoid
			}
			if opErr := workflow.Approve(doc, actor, now); opErr != nil {
				return opErr
			}
		case OpReject:
			action = model.ActionRejectDocument
			if opErr := workflow.Reject(doc, actor, input.Reason, now); opErr != nil {
				return opErr
			}
		case OpEdit:
			action = model.ActionEditDocument
			if opErr := workflow.Edit(doc, actor, input.Payload, now); opErr != nil {
				return opErr
			}
		case OpRequestVoid:
			action = model.ActionRequestVoid
			if opErr := workflow.RequestVoid(doc, actor, now); opErr != nil {
				return opErr
			}
		default:
			return fmt.Errorf("unknown transition operation: %s", op)
		}

		rows, updateErr := s.docs.UpdateIfStatus(txCtx, doc, loadedStatus)
		if updateErr != nil {
			return fmt.Errorf("failed to update document: %w", updateErr)
		}
		if rows == 0 {
			// Another actor moved the document between our read and write.
			return workflow.ErrConflict
		}

		return s.writeAudit(txCtx, user.ID, action, doc, map[string]any{
			"from_status": loadedStatus,
			"to_status":   doc.Status,
			"reason":      input.Reason,
		})
	})
	if err != nil {
		if isWorkflowError(err) {
			return DocumentResponse{}, err
		}
		return DocumentResponse{}, wrapPersistence(err)
	}

	// Reload for the authoritative row
	reloaded, loadErr := s.docs.FindByID(ctx, docID)
	if loadErr != nil {
		return DocumentResponse{}, wrapPersistence(fmt.Errorf("failed to reload document: %w", loadErr))
	}
	return toDocumentResponse(*reloaded, caps), nil
}

func (s *documentService) DeleteDocument(ctx context.Context, actorID, id string) error {
	docID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}

	user, caps, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return err
	}
	if !caps.Has(model.CapDeleteDocuments) {
		return workflow.ErrPermissionDenied
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		doc, findErr := s.docs.FindByID(txCtx, docID)
		if findErr != nil {
			return fmt.Errorf("document not found: %w", findErr)
		}
		if delErr := s.docs.Delete(txCtx, docID); delErr != nil {
			return fmt.Errorf("failed to delete document: %w", delErr)
		}
		return s.writeAudit(txCtx, user.ID, model.ActionDeleteDocument, doc, map[string]any{
			"kind":            doc.Kind,
			"tracking_number": doc.TrackingNumber,
		})
	})
}

// --- Helpers ---

// resolveActor loads the acting user and resolves their effective
// capabilities from role defaults, system overrides and standing grants.
// This is the authoritative server-side check; anything the client decided
// is advisory only.
func (s *documentService) resolveActor(ctx context.Context, actorID string) (*model.User, permission.Capabilities, error) {
	user, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, nil, fmt.Errorf("acting user not found: %w", err)
	}

	overrides, err := LoadOverrides(ctx, s.db)
	if err != nil {
		return nil, nil, wrapPersistence(fmt.Errorf("failed to load permission overrides: %w", err))
	}

	return user, permission.Resolve(user.Role, overrides, user), nil
}

// LoadOverrides reads the system-wide override rows into the resolver's
// input shape.
func LoadOverrides(ctx context.Context, db *gorm.DB) (permission.Overrides, error) {
	var rows []model.PermissionOverride
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	overrides := make(permission.Overrides)
	for _, row := range rows {
		if overrides[row.RoleName] == nil {
			overrides[row.RoleName] = make(map[string]bool)
		}
		overrides[row.RoleName][row.Capability] = row.Allowed
	}
	return overrides, nil
}

func (s *documentService) writeAudit(ctx context.Context, userID uuid.UUID, action string, doc *model.Document, details map[string]any) error {
	payload, _ := json.Marshal(details)
	audit := model.AuditLog{
		UserID:     &userID,
		Action:     action,
		EntityID:   doc.ID.String(),
		EntityName: fmt.Sprintf("%s #%d", doc.Kind, doc.TrackingNumber),
		Details:    string(payload),
	}
	if err := s.audits.Log(ctx, &audit); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// awaitingStatuses lists every status whose next acting stage the given
// capabilities cover, across all three chains.
func awaitingStatuses(caps permission.Capabilities) []string {
	seen := make(map[string]bool)
	var statuses []string
	add := func(status string) {
		if !seen[status] {
			seen[status] = true
			statuses = append(statuses, status)
		}
	}

	for _, kind := range []string{model.KindPaymentOrder, model.KindExitPermit, model.KindWarehouseDispatch} {
		chain, _ := workflow.ChainFor(kind)
		for i, stage := range chain.Stages {
			if !caps.Has(stage.Capability) {
				continue
			}
			if i == 0 {
				add(chain.Initial())
			} else {
				add(chain.Stages[i-1].Forward)
			}
			add(stage.VoidPending)
		}
	}
	return statuses
}

func isWorkflowError(err error) bool {
	return errors.Is(err, workflow.ErrPermissionDenied) ||
		errors.Is(err, workflow.ErrInvalidState) ||
		errors.Is(err, workflow.ErrConflict)
}

// wrapPersistence tags store failures so handlers can report them as "not
// applied, retry manually" without guessing from gorm internals.
func wrapPersistence(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", workflow.ErrPersistence, err)
}

func toDocumentResponse(d model.Document, caps permission.Capabilities) DocumentResponse {
	resp := DocumentResponse{
		ID:              d.ID.String(),
		Kind:            d.Kind,
		TrackingNumber:  d.TrackingNumber,
		PayingCompany:   d.PayingCompany,
		Status:          d.Status,
		Requester:       d.Requester,
		ApproverStage1:  d.ApproverStage1,
		ApproverStage2:  d.ApproverStage2,
		ApproverStage3:  d.ApproverStage3,
		ApproverStage4:  d.ApproverStage4,
		RejectionReason: d.RejectionReason,
		RejectedBy:      d.RejectedBy,
		Payload:         d.Payload,
		CreatedAt:       d.CreatedAt.UnixMilli(),
		UpdatedAt:       d.UpdatedAt.UnixMilli(),
	}
	if caps != nil {
		resp.CanApprove = workflow.CanApprove(&d, caps)
	}
	return resp
}
