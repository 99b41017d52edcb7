package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentFilter narrows List queries.
type DocumentFilter struct {
	Kind   string
	Status string
	Page   int
	Limit  int
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]model.Document, int64, error)
	ListAll(ctx context.Context) ([]model.Document, error)
	ListByStatuses(ctx context.Context, statuses []string) ([]model.Document, error)
	// UpdateIfStatus applies the document's new field values only when the
	// stored row still carries expectedStatus. Returns the number of rows
	// updated: zero means another actor won the race.
	UpdateIfStatus(ctx context.Context, doc *model.Document, expectedStatus string) (int64, error)
	// NextTrackingNumber allocates the next sequential number for a kind
	// (and paying company, for payment orders) under a pg advisory lock so
	// concurrent creates never collide.
	NextTrackingNumber(ctx context.Context, kind, payingCompany string) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	return GetDB(ctx, r.db).Create(doc).Error
}

func (r *documentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := GetDB(ctx, r.db).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) List(ctx context.Context, filter DocumentFilter) ([]model.Document, int64, error) {
	db := GetDB(ctx, r.db)

	query := db.Model(&model.Document{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	offset := (filter.Page - 1) * filter.Limit

	var docs []model.Document
	if err := query.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&docs).Error; err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *documentRepository) ListAll(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	if err := GetDB(ctx, r.db).Order("updated_at DESC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepository) ListByStatuses(ctx context.Context, statuses []string) ([]model.Document, error) {
	var docs []model.Document
	if err := GetDB(ctx, r.db).Where("status IN ?", statuses).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepository) UpdateIfStatus(ctx context.Context, doc *model.Document, expectedStatus string) (int64, error) {
	// Full-column map on purpose: Edit clears slots back to empty strings
	// and struct-based Updates would skip those zero values.
	res := GetDB(ctx, r.db).Model(&model.Document{}).
		Where("id = ? AND status = ?", doc.ID, expectedStatus).
		Updates(map[string]any{
			"status":           doc.Status,
			"approver_stage1":  doc.ApproverStage1,
			"approver_stage2":  doc.ApproverStage2,
			"approver_stage3":  doc.ApproverStage3,
			"approver_stage4":  doc.ApproverStage4,
			"rejection_reason": doc.RejectionReason,
			"rejected_by":      doc.RejectedBy,
			"payload":          doc.Payload,
			"updated_at":       doc.UpdatedAt,
		})
	return res.RowsAffected, res.Error
}

func (r *documentRepository) NextTrackingNumber(ctx context.Context, kind, payingCompany string) (int64, error) {
	db := GetDB(ctx, r.db)
	scope := kind + "/" + payingCompany

	// Advisory lock serializes concurrent allocations within this scope.
	db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", scope)

	query := db.Model(&model.Document{}).Where("kind = ?", kind)
	if kind == model.KindPaymentOrder {
		query = query.Where("paying_company = ?", payingCompany)
	}

	var max int64
	if err := query.Select("COALESCE(MAX(tracking_number), 0)").Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Document{}).Error
}
