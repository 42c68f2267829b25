package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Job is a named unit of periodic maintenance work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler drives maintenance jobs on standard 5-field cron specs.
// Runs of the same job never overlap; a tick that lands while the
// previous run is still going is dropped, not queued.
type Scheduler struct {
	cron    *cron.Cron
	baseCtx atomic.Pointer[context.Context]
}

func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{cron: cron.New(cron.WithParser(parser))}
}

func (s *Scheduler) AddJob(j Job, spec string) error {
	if _, err := s.cron.AddFunc(spec, s.runner(j)); err != nil {
		logutil.GetLogger(context.Background()).Error("schedule job failed",
			zap.String("job", j.Name()), zap.String("spec", spec), zap.Error(err))
		return err
	}
	logutil.GetLogger(context.Background()).Info("job scheduled",
		zap.String("job", j.Name()), zap.String("spec", spec))
	return nil
}

// Start begins dispatching ticks. Jobs run with the given context, so
// cancelling it signals in-flight runs to stop.
func (s *Scheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.baseCtx.Store(&ctx)
	s.cron.Start()
}

// Stop halts dispatch and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runner(j Job) func() {
	var busy atomic.Bool
	return func() {
		ctx := context.Background()
		if p := s.baseCtx.Load(); p != nil {
			ctx = *p
		}
		logger := logutil.GetLogger(ctx).With(zap.String("job", j.Name()))
		if !busy.CompareAndSwap(false, true) {
			logger.Info("job tick dropped: previous run still active")
			return
		}
		defer busy.Store(false)

		start := time.Now()
		logger.Info("job started")
		if err := j.Run(ctx); err != nil {
			logger.Error("job finished with error", zap.Error(err), zap.Duration("duration", time.Since(start)))
			return
		}
		logger.Info("job finished", zap.Duration("duration", time.Since(start)))
	}
}
