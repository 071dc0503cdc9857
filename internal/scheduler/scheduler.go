package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"uph-engine/internal/service/recompute"
)

type Recomputer interface {
	Recompute(windowDays *int) (recompute.JobHandle, error)
}

// Scheduler triggers a full recompute on a standard 5-field cron
// expression, e.g. "0 2 * * *" for every night at 02:00.
type Scheduler struct {
	log    *slog.Logger
	spec   string
	sched  cron.Schedule
	target Recomputer
	cron   *cron.Cron
}

func New(log *slog.Logger, spec string, loc *time.Location, target Recomputer) (*Scheduler, error) {
	const op = "scheduler.New"

	spec = strings.TrimSpace(spec)
	if loc == nil {
		loc = time.UTC
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid schedule %q: %w", op, spec, err)
	}

	s := &Scheduler{
		log:    log,
		spec:   spec,
		sched:  sched,
		target: target,
		cron:   cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
	}
	s.cron.Schedule(sched, cron.FuncJob(s.fire))

	return s, nil
}

func (s *Scheduler) Next(now time.Time) time.Time {
	return s.sched.Next(now)
}

// Run blocks until ctx is done, then waits for a firing in progress.
func (s *Scheduler) Run(ctx context.Context) {
	const op = "scheduler.Run"

	s.log.Info("recompute scheduled", slog.String("op", op), slog.String("cron", s.spec),
		slog.Time("next", s.Next(time.Now())))

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) fire() {
	const op = "scheduler.fire"

	log := s.log.With(slog.String("op", op))

	handle, err := s.target.Recompute(nil)
	switch {
	case errors.Is(err, recompute.ErrRecomputeInProgress):
		log.Info("scheduled recompute skipped, run in progress", slog.String("job_id", string(handle)))
	case err != nil:
		log.Error("scheduled recompute failed to start", slog.String("error", err.Error()))
	default:
		log.Info("scheduled recompute started", slog.String("job_id", string(handle)))
	}
}
