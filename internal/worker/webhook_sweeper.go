package worker

import (
	"context"
	"log"
	"time"

	"github.com/cleanlists/api/internal/repository"
	"github.com/cleanlists/api/internal/service"
)

// WebhookSweeper re-drives pending webhook retries whose backoff elapsed.
type WebhookSweeper struct {
	webhooks *repository.WebhookRepository
	service  *service.WebhookService
	interval time.Duration
	stopChan chan struct{}
}

func NewWebhookSweeper(webhooks *repository.WebhookRepository, svc *service.WebhookService, interval time.Duration) *WebhookSweeper {
	return &WebhookSweeper{
		webhooks: webhooks,
		service:  svc,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the sweeper loop
func (s *WebhookSweeper) Start() {
	log.Printf("[WebhookSweeper] starting (interval: %s)", s.interval)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopChan:
				log.Println("[WebhookSweeper] stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the sweeper
func (s *WebhookSweeper) Stop() {
	close(s.stopChan)
}

func (s *WebhookSweeper) sweep() {
	due, err := s.webhooks.DueRetries(time.Now())
	if err != nil {
		log.Printf("[WebhookSweeper] error finding due retries: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	log.Printf("[WebhookSweeper] found %d due retries", len(due))

	for _, retry := range due {
		if err := s.service.ProcessRetry(context.Background(), retry); err != nil {
			log.Printf("[WebhookSweeper] retry %s failed: %v", retry.ID, err)
		}
	}
}
