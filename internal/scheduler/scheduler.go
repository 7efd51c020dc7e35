package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zapcampaign/zapcampaign/internal/domain"
	"github.com/zapcampaign/zapcampaign/internal/transport"
)

// DispatchFunc hands a fired job to the dispatch pipeline.
type DispatchFunc func(ctx context.Context, job domain.DispatchJob)

// Scheduler defers dispatch jobs with one-shot timers kept in process
// memory. Pending entries do not survive a restart; callers that need
// durability must persist due jobs themselves and re-schedule on boot.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer

	transport transport.Transport
	dispatch  DispatchFunc
	logger    *slog.Logger
}

func New(t transport.Transport, dispatch DispatchFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		timers:    map[string]*time.Timer{},
		transport: t,
		dispatch:  dispatch,
		logger:    logger,
	}
}

// Schedule registers the job to fire at the given instant and returns
// immediately. A fire time at or before now is rejected outright; the
// job is not executed retroactively.
func (s *Scheduler) Schedule(job domain.DispatchJob, fireAt time.Time) error {
	delay := time.Until(fireAt)
	if delay <= 0 {
		return domain.ErrScheduleInPast
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[job.JobID] = time.AfterFunc(delay, func() {
		s.fire(job)
	})

	s.logger.Info("job scheduled",
		slog.String("job", job.JobID),
		slog.Time("fireAt", fireAt),
		slog.Int("targets", len(job.Targets)),
	)
	return nil
}

// Cancel stops a pending timer. Returns false when nothing is pending
// for the id (already fired, already cancelled, or never scheduled).
func (s *Scheduler) Cancel(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[jobID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, jobID)

	s.logger.Info("scheduled job cancelled", slog.String("job", jobID))
	return true
}

// Pending reports the number of not-yet-fired timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop drops every pending timer. Used on shutdown; the entries are
// lost, matching the non-durable contract.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = map[string]*time.Timer{}

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) fire(job domain.DispatchJob) {
	s.mu.Lock()
	delete(s.timers, job.JobID)
	s.mu.Unlock()

	// Readiness may have changed since scheduling. An unusable transport
	// abandons the fire; there is no retry or re-scheduling.
	if !s.transport.ConnectionState().Usable() {
		s.logger.Warn("scheduled fire abandoned, transport not ready", slog.String("job", job.JobID))
		return
	}

	s.logger.Info("scheduled job firing", slog.String("job", job.JobID))
	s.dispatch(context.Background(), job)
}
