// Package sweep deletes drafts whose retention TTL has passed, on a
// fixed schedule. The draft manager itself never deletes expired rows;
// it only stamps expires_at.
package sweep

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/metamonk/yipyap/internal/draft"
)

// Sweeper runs a scheduled purge of expired drafts.
type Sweeper struct {
	store    draft.Store
	interval time.Duration
	cron     *cron.Cron
}

// New creates a Sweeper that purges every interval.
func New(store draft.Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
	}
}

// Start runs one purge immediately, then schedules recurring purges.
func (s *Sweeper) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", s.interval)
	}

	if _, err := s.RunOnce(); err != nil {
		log.Printf("[sweep] initial purge failed: %v", err)
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		if _, err := s.RunOnce(); err != nil {
			log.Printf("[sweep] purge failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	log.Printf("[sweep] started, purging expired drafts every %s", s.interval)
	return nil
}

// Stop halts the schedule. A purge already running completes.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
}

// RunOnce purges drafts expired as of now and returns the count.
func (s *Sweeper) RunOnce() (int, error) {
	purged, err := s.store.PurgeExpired(time.Now().Unix())
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		log.Printf("[sweep] purged %d expired drafts", purged)
	}
	return purged, nil
}
