// Package scheduler runs jobs on cron schedules.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"OmniSpectrum/pkg/logger"
)

// Runner wraps a cron instance whose jobs share one base context.
type Runner struct {
	cron    *cron.Cron
	log     *logger.Logger
	baseCtx context.Context
}

// New accepts five-field specs, six-field specs with seconds, and
// descriptors such as "@every 30m".
func New(baseCtx context.Context, log *logger.Logger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if log == nil {
		log = logger.NewNop()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Runner{
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:     log,
		baseCtx: baseCtx,
	}
}

func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() { job(r.baseCtx) })
}

func (r *Runner) Len() int { return len(r.cron.Entries()) }

func (r *Runner) Start() {
	r.log.Info("scheduler started", logger.Int("jobs", r.Len()))
	r.cron.Start()
}

// Stop waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("scheduler stopped")
}
