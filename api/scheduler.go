/*
scheduler.go - Automated leave grant scheduler

PURPOSE:
  Periodically runs the leave grant service so enabled auto-add settings
  execute on their scheduled dates without manual triggering.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick calls leavegrant.Service.ExecuteDue, which picks up every
    enabled setting whose next execution date has arrived
  - ExecuteDue is idempotent per day, so a generous interval is safe:
    a setting that already ran today is skipped by its idempotency keys

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewGrantScheduler(grants)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - leavegrant/service.go: ExecuteDue
  - handlers.go: ExecuteSettings endpoint (manual trigger)
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/timekeeping/leavegrant"
)

// GrantScheduler handles automated leave grant execution.
type GrantScheduler struct {
	Grants        *leavegrant.Service
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewGrantScheduler creates a new scheduler.
func NewGrantScheduler(grants *leavegrant.Service) *GrantScheduler {
	return &GrantScheduler{
		Grants:        grants,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (gs *GrantScheduler) Start() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if !gs.Enabled {
		log.Println("[GrantScheduler] Disabled, not starting")
		return
	}

	gs.ticker = time.NewTicker(gs.CheckInterval)
	gs.wg.Add(1)

	go gs.run()

	log.Printf("[GrantScheduler] Started with check interval: %v", gs.CheckInterval)
}

// Stop stops the scheduler.
func (gs *GrantScheduler) Stop() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.ticker != nil {
		gs.ticker.Stop()
		close(gs.stop)
		gs.wg.Wait()
		log.Println("[GrantScheduler] Stopped")
	}
}

func (gs *GrantScheduler) run() {
	defer gs.wg.Done()

	// Run immediately on start
	gs.checkAndExecute()

	for {
		select {
		case <-gs.ticker.C:
			gs.checkAndExecute()
		case <-gs.stop:
			return
		}
	}
}

func (gs *GrantScheduler) checkAndExecute() {
	ctx := context.Background()

	executed, err := gs.Grants.ExecuteDue(ctx)
	if err != nil {
		log.Printf("[GrantScheduler] Error executing due settings: %v", err)
		return
	}
	if executed > 0 {
		log.Printf("[GrantScheduler] Executed %d due setting(s)", executed)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (gs *GrantScheduler) RunNow() {
	gs.checkAndExecute()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (gs *GrantScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(gs.CheckInterval)
}
