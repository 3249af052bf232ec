package patrol

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"transcode-patrol/internal/policy"
)

// Patrol fans one polling cycle out across all configured servers. Servers
// are independent, so they are polled concurrently; a failing server only
// affects its own result.
type Patrol struct {
	servers []*ServerPatrol
	log     zerolog.Logger
}

// NewPatrol groups per-server patrols into one unit the scheduler can drive.
func NewPatrol(servers []*ServerPatrol, log zerolog.Logger) *Patrol {
	return &Patrol{servers: servers, log: log}
}

// RunCycle polls every server once and returns the per-server results.
func (p *Patrol) RunCycle(ctx context.Context, pol policy.Policy) []CycleResult {
	results := make([]CycleResult, len(p.servers))

	var g errgroup.Group
	for i, server := range p.servers {
		g.Go(func() error {
			results[i] = server.PollOnce(ctx, pol)
			return nil
		})
	}
	// PollOnce never returns an error through the group; failures live in
	// the per-server results.
	_ = g.Wait()

	return results
}

// Scheduler repeats polling cycles on a fixed interval until the context is
// cancelled. Each cycle is stateless: nothing carries over to the next one.
type Scheduler struct {
	patrol   *Patrol
	pol      policy.Policy
	interval time.Duration
	log      zerolog.Logger
}

// NewScheduler builds the repeating loop around a patrol.
func NewScheduler(patrol *Patrol, pol policy.Policy, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{patrol: patrol, pol: pol, interval: interval, log: log}
}

// Run blocks, executing one cycle immediately and then one per interval,
// until ctx is cancelled. The cycle in flight when cancellation arrives is
// allowed to finish: remote calls run off a non-cancelable context and are
// bounded by their own timeouts.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("patrol scheduler started")
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("patrol scheduler stopping")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	start := time.Now()
	results := s.patrol.RunCycle(context.WithoutCancel(ctx), s.pol)

	for _, r := range results {
		event := s.log.Info()
		if r.Err != nil {
			event = s.log.Warn().Err(r.Err)
		}
		event.
			Str("server", r.Server).
			Int("sessions", r.Sessions).
			Int("evaluated", r.Evaluated).
			Int("terminated", r.Terminated).
			Int("dry_runs", r.DryRuns).
			Msg("server poll complete")
	}

	s.log.Debug().Dur("elapsed", time.Since(start)).Msg("cycle complete")
}
