// Package jobs runs periodic maintenance inside the web process.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/digkill/InteriorAI/internal/metrics"
)

// StaleSweepSpec runs the stale generation sweep every ten minutes.
const StaleSweepSpec = "@every 10m"

type staleFailer interface {
	FailStale(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

// StaleSweeper closes generations left in processing by a crashed or
// restarted process, so they do not stay pending forever.
type StaleSweeper struct {
	generations staleFailer
	log         *slog.Logger
	maxAge      time.Duration
	now         func() time.Time
}

// NewStaleSweeper treats rows older than twice the model timeout as abandoned.
func NewStaleSweeper(generations staleFailer, log *slog.Logger, modelTimeout time.Duration) *StaleSweeper {
	if modelTimeout <= 0 {
		modelTimeout = 120 * time.Second
	}
	return &StaleSweeper{generations: generations, log: log, maxAge: 2 * modelTimeout, now: time.Now}
}

func (s *StaleSweeper) Run(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.maxAge)
	n, err := s.generations.FailStale(ctx, cutoff, "abandoned: no model result before timeout")
	if err != nil {
		return 0, err
	}
	metrics.RecordStaleSwept(n)
	if n > 0 {
		s.log.Warn("closed stale generations", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

func NewScheduler(log *slog.Logger) *Scheduler {
	logger := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		log:  log,
	}
}

// Add registers fn under spec. Each run gets its own bounded context.
func (s *Scheduler) Add(spec, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.log.Error("job failed", "job", name, "err", err)
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
