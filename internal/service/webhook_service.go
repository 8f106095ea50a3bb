package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cleanlists/api/internal/config"
	"github.com/cleanlists/api/internal/model"
	"github.com/cleanlists/api/internal/repository"
)

var (
	// ErrInvalidSignature means the payload failed verification. Such
	// events are dropped without storage so forged traffic cannot fill
	// the retry tables.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidEvent     = errors.New("invalid webhook event")
)

// terminalError marks processing failures that must not be retried.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// WebhookService consumes payment-processor events with at-least-once
// delivery, layering an at-most-once effect via the idempotency ledger.
type WebhookService struct {
	webhooks      *repository.WebhookRepository
	subscriptions *repository.SubscriptionRepository
	cfg           config.WebhookConfig
}

func NewWebhookService(webhooks *repository.WebhookRepository, subscriptions *repository.SubscriptionRepository, cfg config.WebhookConfig) *WebhookService {
	return &WebhookService{webhooks: webhooks, subscriptions: subscriptions, cfg: cfg}
}

// VerifySignature checks the HMAC-SHA256 hex signature of the raw body.
func (s *WebhookService) VerifySignature(payload []byte, signature string) bool {
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(s.cfg.Secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// Handle processes one delivery. Duplicate event ids are a no-op. A
// transient processing failure schedules a retry with exponential backoff;
// a terminal one is recorded in the ledger so it is never reprocessed.
func (s *WebhookService) Handle(ctx context.Context, eventID, eventType string, payload []byte, signature string) error {
	if !s.VerifySignature(payload, signature) {
		return ErrInvalidSignature
	}
	if eventID == "" {
		return ErrInvalidEvent
	}

	processed, err := s.webhooks.FindProcessed(eventID)
	if err != nil {
		return err
	}
	if processed != nil {
		return nil
	}

	if err := s.apply(ctx, eventType, payload); err != nil {
		var te *terminalError
		if errors.As(err, &te) {
			s.recordProcessed(eventID, eventType, false, err.Error())
			return nil
		}
		return s.scheduleRetry(eventID, eventType, payload, signature, err)
	}

	s.recordProcessed(eventID, eventType, true, "")
	return nil
}

// ProcessRetry re-drives a pending retry row through the same idempotent
// path. Exhaustion abandons the row and seals the event id in the ledger.
func (s *WebhookService) ProcessRetry(ctx context.Context, retry *model.WebhookRetry) error {
	processed, err := s.webhooks.FindProcessed(retry.EventID)
	if err != nil {
		return err
	}
	if processed != nil {
		retry.Status = model.RetryStatusSucceeded
		return s.webhooks.SaveRetry(retry)
	}

	if err := s.apply(ctx, retry.EventType, []byte(retry.Payload)); err != nil {
		var te *terminalError
		if errors.As(err, &te) {
			retry.Status = model.RetryStatusAbandoned
			retry.LastErrorMessage = err.Error()
			s.recordProcessed(retry.EventID, retry.EventType, false, err.Error())
			return s.webhooks.SaveRetry(retry)
		}
		return s.bumpRetry(retry, err)
	}

	retry.Status = model.RetryStatusSucceeded
	if err := s.webhooks.SaveRetry(retry); err != nil {
		return err
	}
	s.recordProcessed(retry.EventID, retry.EventType, true, "")
	return nil
}

// apply performs the event's side effect on the subscription state.
func (s *WebhookService) apply(ctx context.Context, eventType string, payload []byte) error {
	var envelope model.WebhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return &terminalError{err: fmt.Errorf("malformed payload: %v", err)}
	}
	data := envelope.Data
	if data.UserID == "" {
		return &terminalError{err: errors.New("event payload missing user id")}
	}

	sub := &model.UserSubscription{
		UserID:                 data.UserID,
		Plan:                   data.Plan,
		ExternalCustomerID:     data.ExternalCustomerID,
		ExternalSubscriptionID: data.ExternalSubscriptionID,
	}
	if data.CurrentPeriodEnd > 0 {
		end := time.Unix(data.CurrentPeriodEnd, 0)
		sub.CurrentPeriodEnd = &end
	}

	switch eventType {
	case model.EventSubscriptionActivated:
		sub.Status = model.SubscriptionStatusActive
	case model.EventSubscriptionCanceled:
		sub.Status = model.SubscriptionStatusCanceled
	case model.EventPaymentFailed:
		sub.Status = model.SubscriptionStatusPastDue
	default:
		// Unrecognized types are acknowledged so the processor stops
		// redelivering them.
		return nil
	}

	return s.subscriptions.Upsert(sub)
}

// scheduleRetry inserts or bumps the retry row for a transient failure.
func (s *WebhookService) scheduleRetry(eventID, eventType string, payload []byte, signature string, cause error) error {
	retry, err := s.webhooks.FindRetryByEventID(eventID)
	if err != nil {
		return err
	}
	if retry == nil {
		retry = &model.WebhookRetry{
			EventID:    eventID,
			EventType:  eventType,
			Payload:    string(payload),
			Signature:  signature,
			MaxRetries: s.cfg.MaxRetries,
			Status:     model.RetryStatusPending,
		}
		retry.AttemptNumber = 1
		next := time.Now().Add(s.backoff(retry.AttemptNumber))
		retry.NextRetryAt = &next
		retry.LastErrorMessage = cause.Error()
		return s.webhooks.CreateRetry(retry)
	}

	return s.bumpRetry(retry, cause)
}

// bumpRetry increments the attempt counter, abandoning past the limit.
func (s *WebhookService) bumpRetry(retry *model.WebhookRetry, cause error) error {
	retry.AttemptNumber++
	retry.LastErrorMessage = cause.Error()

	if retry.AttemptNumber > retry.MaxRetries {
		retry.Status = model.RetryStatusAbandoned
		retry.NextRetryAt = nil
		if err := s.webhooks.SaveRetry(retry); err != nil {
			return err
		}
		s.recordProcessed(retry.EventID, retry.EventType, false, "retries exhausted: "+cause.Error())
		return nil
	}

	next := time.Now().Add(s.backoff(retry.AttemptNumber))
	retry.NextRetryAt = &next
	return s.webhooks.SaveRetry(retry)
}

// backoff is base * 2^attempt, capped.
func (s *WebhookService) backoff(attempt int) time.Duration {
	base := time.Duration(s.cfg.BaseBackoffSeconds) * time.Second
	max := time.Duration(s.cfg.MaxBackoffSeconds) * time.Second

	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}

func (s *WebhookService) recordProcessed(eventID, eventType string, successful bool, errorMessage string) {
	inserted, err := s.webhooks.RecordProcessed(&model.ProcessedWebhookEvent{
		EventID:      eventID,
		EventType:    eventType,
		IsSuccessful: successful,
		ErrorMessage: errorMessage,
	})
	if err != nil {
		log.Printf("[WebhookService] failed to record processed event %s: %v", eventID, err)
		return
	}
	if !inserted {
		log.Printf("[WebhookService] event %s already recorded by a concurrent delivery", eventID)
	}
}

// Subscription returns the stored subscription for a user, nil when none.
func (s *WebhookService) Subscription(ctx context.Context, userID string) (*model.UserSubscription, error) {
	return s.subscriptions.FindByUser(userID)
}
