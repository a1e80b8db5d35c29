package jobs

import (
	"context"
	"log"
	"time"

	"squad-predictions/internal/repository"
)

// DeadlineSweeper periodically moves polls past their deadline from open to
// locked. The sweep is gated by the state machine's own status guard, so
// running it repeatedly (or concurrently with moderation) is safe.
type DeadlineSweeper struct {
	repo     *repository.Repository
	interval time.Duration
	stopChan chan struct{}
}

// NewDeadlineSweeper creates a new sweeper job
func NewDeadlineSweeper(repo *repository.Repository, interval time.Duration) *DeadlineSweeper {
	return &DeadlineSweeper{
		repo:     repo,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the sweep loop
func (ds *DeadlineSweeper) Start() {
	log.Printf("[DeadlineSweeper] Starting deadline sweep job (interval: %v)", ds.interval)

	ticker := time.NewTicker(ds.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ds.sweep()
		case <-ds.stopChan:
			log.Println("[DeadlineSweeper] Stopping deadline sweep job")
			return
		}
	}
}

// Stop stops the sweep loop
func (ds *DeadlineSweeper) Stop() {
	close(ds.stopChan)
}

func (ds *DeadlineSweeper) sweep() {
	ctx := context.Background()

	locked, err := ds.repo.LockExpiredPolls(ctx, time.Now())
	if err != nil {
		log.Printf("[DeadlineSweeper] Error locking expired polls: %v", err)
		return
	}

	if locked > 0 {
		log.Printf("[DeadlineSweeper] Locked %d polls past their deadline", locked)
	}
}
