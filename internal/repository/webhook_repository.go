package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cleanlists/api/internal/model"
)

// WebhookRepository persists the idempotency ledger and retry queue.
type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) FindProcessed(eventID string) (*model.ProcessedWebhookEvent, error) {
	var event model.ProcessedWebhookEvent
	err := r.db.Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// RecordProcessed is an atomic insert-if-absent against the event id's
// unique index. Returns false when another delivery won the race.
func (r *WebhookRepository) RecordProcessed(event *model.ProcessedWebhookEvent) (bool, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.ProcessedAt.IsZero() {
		event.ProcessedAt = time.Now()
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *WebhookRepository) FindRetryByEventID(eventID string) (*model.WebhookRetry, error) {
	var retry model.WebhookRetry
	err := r.db.Where("event_id = ?", eventID).First(&retry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &retry, nil
}

func (r *WebhookRepository) CreateRetry(retry *model.WebhookRetry) error {
	if retry.ID == "" {
		retry.ID = uuid.New().String()
	}
	return r.db.Create(retry).Error
}

func (r *WebhookRepository) SaveRetry(retry *model.WebhookRetry) error {
	return r.db.Save(retry).Error
}

// DueRetries returns pending retries whose backoff has elapsed.
func (r *WebhookRepository) DueRetries(now time.Time) ([]*model.WebhookRetry, error) {
	var retries []*model.WebhookRetry
	err := r.db.Where("status = ? AND next_retry_at <= ?", model.RetryStatusPending, now).Find(&retries).Error
	return retries, err
}
