package model

import "time"

// WebhookRetry tracks a payment-processor event whose first processing
// attempt failed transiently. Terminal at succeeded, or abandoned once
// AttemptNumber exceeds MaxRetries.
type WebhookRetry struct {
	ID               string      `json:"id" gorm:"primaryKey"`
	EventID          string      `json:"eventId" gorm:"uniqueIndex;not null"`
	EventType        string      `json:"eventType" gorm:"not null"`
	Payload          string      `json:"payload"`
	Signature        string      `json:"signature"`
	AttemptNumber    int         `json:"attemptNumber" gorm:"default:0"`
	MaxRetries       int         `json:"maxRetries" gorm:"default:3"`
	Status           RetryStatus `json:"status" gorm:"index;default:pending"`
	NextRetryAt      *time.Time  `json:"nextRetryAt,omitempty" gorm:"index"`
	LastErrorMessage string      `json:"lastErrorMessage,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// ProcessedWebhookEvent is the idempotency ledger: one write-once row per
// event id that has been processed to a terminal outcome. The unique index
// on EventID is what makes duplicate delivery a no-op.
type ProcessedWebhookEvent struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	EventID      string    `json:"eventId" gorm:"uniqueIndex;not null"`
	EventType    string    `json:"eventType"`
	ProcessedAt  time.Time `json:"processedAt"`
	IsSuccessful bool      `json:"isSuccessful"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// UserSubscription is the core's view of a user's payment state. Mutated
// only by the webhook layer, read at sync enable-time.
type UserSubscription struct {
	ID                     string             `json:"id" gorm:"primaryKey"`
	UserID                 string             `json:"userId" gorm:"uniqueIndex;not null"`
	Plan                   string             `json:"plan"`
	Status                 SubscriptionStatus `json:"status" gorm:"default:canceled"`
	ExternalCustomerID     string             `json:"externalCustomerId,omitempty"`
	ExternalSubscriptionID string             `json:"externalSubscriptionId,omitempty"`
	CurrentPeriodEnd       *time.Time         `json:"currentPeriodEnd,omitempty"`
	CreatedAt              time.Time          `json:"createdAt"`
	UpdatedAt              time.Time          `json:"updatedAt"`
}

// Active reports whether the subscription currently grants paid features.
func (s *UserSubscription) Active() bool {
	return s.Status == SubscriptionStatusActive
}
