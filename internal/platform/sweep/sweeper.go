// Package sweep runs the periodic scan that marks overdue appointments as
// missed. The same scan backs the mark-overdue-as-missed endpoint; this
// package only adds the schedule.
package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Dragos0000/patient-appointment-api/internal/domain/appointment"
)

// Service is the subset of the appointment service the sweeper needs.
type Service interface {
	RunOverdueSweep(ctx context.Context, asOf time.Time) (*appointment.SweepResult, error)
}

// Sweeper periodically sweeps scheduled appointments whose time has passed.
type Sweeper struct {
	svc    Service
	logger zerolog.Logger

	// Interval controls how often the sweep runs.
	Interval time.Duration
	// Now supplies the reference time for each pass.
	Now func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Sweeper with a five minute interval.
func New(svc Service, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		svc:      svc,
		logger:   logger,
		Interval: 5 * time.Minute,
		Now:      time.Now,
	}
}

// Start launches the sweep loop and returns. The loop runs one sweep
// immediately, then one per interval until Stop or ctx cancellation.
// Starting a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.logger.Warn().Msg("overdue sweeper already running")
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.logger.Info().Dur("interval", s.Interval).Msg("overdue sweeper started")
	go s.run(ctx, s.done)
}

// Stop cancels the loop and waits for it to exit. Safe to call repeatedly
// and on a sweeper that never started.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("overdue sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	res, err := s.svc.RunOverdueSweep(ctx, s.Now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Msg("overdue sweep failed")
		return
	}

	for _, a := range res.Marked {
		s.logger.Info().
			Str("appointment", a.ID.String()).
			Str("patient", a.NHSNumber).
			Time("scheduled", a.ScheduledTime).
			Msg("marked overdue appointment as missed")
	}
	for _, itemErr := range res.Errors {
		s.logger.Error().Err(itemErr).Msg("overdue sweep item failed")
	}
	if res.Skipped > 0 {
		s.logger.Debug().Int("skipped", res.Skipped).Msg("overdue sweep skipped concurrently changed appointments")
	}

	if len(res.Marked) > 0 || len(res.Errors) > 0 {
		s.logger.Info().
			Int("marked", len(res.Marked)).
			Int("skipped", res.Skipped).
			Int("errors", len(res.Errors)).
			Msg("overdue sweep complete")
	}
}
