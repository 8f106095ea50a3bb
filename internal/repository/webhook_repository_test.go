package repository

import (
	"testing"
	"time"

	"github.com/cleanlists/api/internal/model"
)

func TestWebhookRepository_RecordProcessedOnce(t *testing.T) {
	repo := NewWebhookRepository(newTestDB(t))

	inserted, err := repo.RecordProcessed(&model.ProcessedWebhookEvent{
		EventID:      "evt-1",
		EventType:    "subscription.activated",
		IsSuccessful: true,
	})
	if err != nil {
		t.Fatalf("RecordProcessed() error = %v", err)
	}
	if !inserted {
		t.Fatal("first insert reported as conflict")
	}

	// A concurrent delivery racing on the same event id loses silently.
	inserted, err = repo.RecordProcessed(&model.ProcessedWebhookEvent{
		EventID:      "evt-1",
		EventType:    "subscription.activated",
		IsSuccessful: false,
	})
	if err != nil {
		t.Fatalf("duplicate RecordProcessed() error = %v", err)
	}
	if inserted {
		t.Error("duplicate insert reported as new row")
	}

	row, err := repo.FindProcessed("evt-1")
	if err != nil || row == nil {
		t.Fatalf("FindProcessed() = %v, %v", row, err)
	}
	if !row.IsSuccessful {
		t.Error("losing write overwrote the original ledger row")
	}
}

func TestWebhookRepository_DueRetries(t *testing.T) {
	repo := NewWebhookRepository(newTestDB(t))
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	seed := func(eventID string, status model.RetryStatus, next *time.Time) {
		err := repo.CreateRetry(&model.WebhookRetry{
			EventID:     eventID,
			EventType:   "subscription.activated",
			Status:      status,
			NextRetryAt: next,
			MaxRetries:  3,
		})
		if err != nil {
			t.Fatalf("CreateRetry(%s) error = %v", eventID, err)
		}
	}
	seed("evt-due", model.RetryStatusPending, &past)
	seed("evt-early", model.RetryStatusPending, &future)
	seed("evt-done", model.RetryStatusSucceeded, &past)
	seed("evt-dead", model.RetryStatusAbandoned, &past)

	due, err := repo.DueRetries(now)
	if err != nil {
		t.Fatalf("DueRetries() error = %v", err)
	}
	if len(due) != 1 || due[0].EventID != "evt-due" {
		t.Errorf("DueRetries() = %d rows, want only the overdue pending one", len(due))
	}
}
