package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Completer finalises exams whose deadline passed. Implemented by the exam
// service; the indirection breaks the construction cycle between the two.
type Completer interface {
	CompleteExpired(ctx context.Context, examID uint) error
	CompleteOverdue(ctx context.Context) error
}

// AutoSubmitScheduler turns exam deadlines into automatic submissions. Each
// started exam gets an in-process one-shot timer; a periodic sweep catches
// exams whose timer was lost to a restart.
type AutoSubmitScheduler struct {
	completer Completer
	logger    zerolog.Logger
	cron      *cron.Cron
	sweepSpec string
	now       func() time.Time

	mu     sync.Mutex
	timers map[uint]*time.Timer
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs the scheduler. The completer is wired via SetCompleter
// before Start.
func New(sweepSpec string, logger zerolog.Logger) *AutoSubmitScheduler {
	if sweepSpec == "" {
		sweepSpec = "@every 1m"
	}
	return &AutoSubmitScheduler{
		logger:    logger.With().Str("component", "auto_submit_scheduler").Logger(),
		cron:      cron.New(),
		sweepSpec: sweepSpec,
		now:       time.Now,
		timers:    make(map[uint]*time.Timer),
	}
}

// SetCompleter wires the exam finaliser.
func (s *AutoSubmitScheduler) SetCompleter(completer Completer) {
	s.completer = completer
}

// Start runs an immediate overdue sweep, then schedules the periodic one.
// The immediate sweep restores deadlines that expired while the process was
// down.
func (s *AutoSubmitScheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.sweep()
	if _, err := s.cron.AddFunc(s.sweepSpec, s.sweep); err != nil {
		return err
	}
	s.cron.Start()

	s.logger.Info().Str("sweep", s.sweepSpec).Msg("auto-submit scheduler started")
	return nil
}

// Stop halts the sweep and drops all armed timers.
func (s *AutoSubmitScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.cron.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Arm schedules the exam's auto submission at its deadline. Re-arming an
// exam replaces the previous timer.
func (s *AutoSubmitScheduler) Arm(examID uint, deadline time.Time) {
	delay := deadline.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.timers[examID]; ok {
		existing.Stop()
	}
	s.timers[examID] = time.AfterFunc(delay, func() {
		s.fire(examID)
	})
}

// Cancel drops the exam's timer. Unknown ids are a no-op.
func (s *AutoSubmitScheduler) Cancel(examID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[examID]; ok {
		timer.Stop()
		delete(s.timers, examID)
	}
}

func (s *AutoSubmitScheduler) fire(examID uint) {
	s.mu.Lock()
	delete(s.timers, examID)
	s.mu.Unlock()

	if s.completer == nil {
		return
	}

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.completer.CompleteExpired(ctx, examID); err != nil {
		s.logger.Error().Err(err).Uint("exam_id", examID).Msg("deadline auto-submit failed")
		return
	}
	s.logger.Info().Uint("exam_id", examID).Msg("exam auto-submitted at deadline")
}

func (s *AutoSubmitScheduler) sweep() {
	if s.completer == nil {
		return
	}

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if err := s.completer.CompleteOverdue(ctx); err != nil {
		s.logger.Error().Err(err).Msg("overdue sweep failed")
	}
}
