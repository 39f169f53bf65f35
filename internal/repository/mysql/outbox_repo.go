package mysql

import (
	"context"
	"encoding/json"
	"time"

	"Food_Share/internal/model"

	"gorm.io/gorm"
)

type OutboxRepository struct {
	DB *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{DB: db}
}

// Insert records an event. Call it with the transaction handle of the change
// being described.
func (r *OutboxRepository) Insert(ctx context.Context, event string, p model.EventPayload) error {
	if p.EventTime == "" {
		p.EventTime = time.Now().UTC().Format(time.RFC3339Nano)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ob := &model.OutboxEvent{
		EventType: event,
		PostKind:  p.Post.Kind,
		PostID:    p.Post.ID,
		RequestID: p.RequestID,
		Payload:   string(payload),
		Status:    model.OutboxPending,
	}
	return r.DB.WithContext(ctx).Create(ob).Error
}

// ListDeliverable returns pending rows and failed rows still under the
// retry budget, oldest first.
func (r *OutboxRepository) ListDeliverable(ctx context.Context, batchSize, maxRetry int) ([]model.OutboxEvent, error) {
	var list []model.OutboxEvent
	if err := r.DB.WithContext(ctx).
		Where("status IN ? AND retry < ?", []model.OutboxStatus{model.OutboxPending, model.OutboxFailed}, maxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Update("status", model.OutboxSent).Error
}

// MarkFailed bumps the retry count and records which sinks already took the
// event so the next attempt skips them.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uint64, delivered uint32) error {
	return r.DB.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":    model.OutboxFailed,
			"retry":     gorm.Expr("retry + 1"),
			"delivered": delivered,
		}).Error
}
