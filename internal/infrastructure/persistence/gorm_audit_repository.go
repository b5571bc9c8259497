package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/trinity-ai/gateway/internal/domain/trinity"
	"github.com/trinity-ai/gateway/internal/infrastructure/persistence/models"
)

// GormAuditRepository is the default trinity.AuditLog adapter (C14) and
// backs the GET /api/audit listing endpoint.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository wraps an already-migrated *gorm.DB.
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// AppendConversation persists one completed request/response pair.
func (r *GormAuditRepository) AppendConversation(ctx context.Context, rec trinity.ConversationRecord) error {
	row := models.AuditModel{
		RequestID: rec.RequestID,
		SessionID: rec.SessionID,
		Prompt:    rec.Prompt,
		Response:  rec.Response,
		Tier:      string(rec.Tier),
		CreatedAt: rec.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// ListRecent returns up to limit most-recent audit records, newest first.
// A non-positive limit becomes 20 and a limit above 100 becomes 100.
func (r *GormAuditRepository) ListRecent(ctx context.Context, limit int) ([]models.AuditModel, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	var rows []models.AuditModel
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

var _ trinity.AuditLog = (*GormAuditRepository)(nil)
