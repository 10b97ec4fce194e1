package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vmorozov/droplink/internal/store"
)

// Sweeper periodically expires links past their TTL and reclaims their
// blobs. It shares the LinkService with live upload/download traffic; the
// store's compare-and-swap keeps the two from stepping on each other, so a
// sweep is safe to run at any time and safe to re-run if interrupted.
type Sweeper struct {
	links    store.LinkStore
	service  *LinkService
	interval time.Duration
	log      *slog.Logger
	cron     *cron.Cron
	now      func() time.Time
}

func NewSweeper(links store.LinkStore, service *LinkService, interval time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{
		links:    links,
		service:  service,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Start schedules the sweep on its own timer. Call Stop to halt it.
func (s *Sweeper) Start() error {
	if s.cron != nil {
		return errors.New("sweeper already started")
	}
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}
	c.Start()
	s.cron = c
	s.log.Info("sweeper started", "interval", s.interval)
	return nil
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

// Sweep runs one pass over every link past its deadline and not yet
// expired. A failure on one link is logged and does not stop the rest of
// the batch. Returns how many links were processed and how many failed.
func (s *Sweeper) Sweep(ctx context.Context) (processed, failed int) {
	candidates, err := s.links.ListExpiredCandidates(ctx, s.now())
	if err != nil {
		s.log.Error("sweep aborted, cannot list candidates", "error", err)
		return 0, 0
	}
	if len(candidates) == 0 {
		return 0, 0
	}

	for _, link := range candidates {
		processed++
		if err := s.service.Expire(ctx, link.LinkID); err != nil {
			failed++
			s.log.Error("failed to expire link", "link_id", link.LinkID, "error", err)
		}
	}

	s.log.Info("sweep finished", "candidates", processed, "failed", failed)
	return processed, failed
}
