package worker

import (
	"context"
	"log"
	"time"

	"github.com/cleanlists/api/internal/model"
	"github.com/cleanlists/api/internal/service"
)

// SyncScheduler polls for due sync configs and runs them on a bounded
// worker pool. Configs are not locked across a cluster; overlapping runs
// are tolerated because the diff is idempotent.
type SyncScheduler struct {
	syncs    *service.SyncService
	interval time.Duration
	workers  int
	stopChan chan struct{}
}

func NewSyncScheduler(syncs *service.SyncService, interval time.Duration, workers int) *SyncScheduler {
	if workers <= 0 {
		workers = 4
	}
	return &SyncScheduler{
		syncs:    syncs,
		interval: interval,
		workers:  workers,
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *SyncScheduler) Start() {
	log.Printf("[SyncScheduler] starting (interval: %s, workers: %d)", s.interval, s.workers)

	go func() {
		// Run immediately on start
		s.tick()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stopChan:
				log.Println("[SyncScheduler] stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *SyncScheduler) Stop() {
	close(s.stopChan)
}

func (s *SyncScheduler) tick() {
	due, err := s.syncs.Due(time.Now())
	if err != nil {
		log.Printf("[SyncScheduler] error finding due configs: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	log.Printf("[SyncScheduler] found %d due configs", len(due))

	// Bounded pool so one slow provider call cannot serialize everything.
	sem := make(chan struct{}, s.workers)
	for _, config := range due {
		sem <- struct{}{}
		go func(config *model.SyncConfig) {
			defer func() { <-sem }()

			if _, err := s.syncs.Run(context.Background(), config); err != nil {
				log.Printf("[SyncScheduler] sync %s failed: %v", config.ID, err)
			}
		}(config)
	}

	for i := 0; i < s.workers; i++ {
		sem <- struct{}{}
	}
}
