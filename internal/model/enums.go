package model

// JobStatus is the lifecycle state of a clean-playlist job.
// Transitions only move forward: pending -> processing -> completed | failed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition may leave this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// SyncStatus is the state of a single sync attempt.
type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncFrequency determines how far ahead the next scheduled sync is placed.
type SyncFrequency string

const (
	SyncFrequencyDaily   SyncFrequency = "daily"
	SyncFrequencyWeekly  SyncFrequency = "weekly"
	SyncFrequencyMonthly SyncFrequency = "monthly"
)

var ValidSyncFrequencies = []SyncFrequency{
	SyncFrequencyDaily, SyncFrequencyWeekly, SyncFrequencyMonthly,
}

// RetryStatus is the state of a webhook retry row.
type RetryStatus string

const (
	RetryStatusPending   RetryStatus = "pending"
	RetryStatusSucceeded RetryStatus = "succeeded"
	RetryStatusAbandoned RetryStatus = "abandoned"
)

// SubscriptionStatus mirrors the payment processor's view of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
)

// Webhook event types emitted by the payment processor.
const (
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCanceled  = "subscription.canceled"
	EventPaymentFailed         = "payment.failed"
)
