package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cleanlists/api/internal/model"
)

// SubscriptionRepository persists the core's view of payment state.
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) FindByUser(userID string) (*model.UserSubscription, error) {
	var sub model.UserSubscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// Upsert creates or overwrites the single subscription row per user.
func (r *SubscriptionRepository) Upsert(sub *model.UserSubscription) error {
	existing, err := r.FindByUser(sub.UserID)
	if err != nil {
		return err
	}
	if existing == nil {
		if sub.ID == "" {
			sub.ID = uuid.New().String()
		}
		return r.db.Create(sub).Error
	}
	sub.ID = existing.ID
	sub.CreatedAt = existing.CreatedAt
	return r.db.Save(sub).Error
}
