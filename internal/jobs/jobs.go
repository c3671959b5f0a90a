// Package jobs runs periodic maintenance of event posts.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "venuebot/internal/log"
)

// PostRefresher re-renders posts whose content or lock state changed.
type PostRefresher interface {
	RefreshPosts(ctx context.Context) (int, error)
}

// Scheduler triggers post refreshes on a cron spec.
type Scheduler struct {
	cron      *cron.Cron
	refresher PostRefresher
	timeout   time.Duration
}

// New parses spec (standard five fields or descriptors like "@every 1m").
func New(spec string, refresher PostRefresher) (*Scheduler, error) {
	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		refresher: refresher,
		timeout:   time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, s.refresh); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is cancelled and the running
// job, if any, has finished.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	appLog.Info("job scheduler started")
	<-ctx.Done()
	<-s.cron.Stop().Done()
	appLog.Info("job scheduler stopped")
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.refresher.RefreshPosts(ctx)
	if err != nil {
		appLog.Warn("post refresh incomplete", "refreshed", n, "err", err)
		return
	}
	if n > 0 {
		appLog.Info("posts refreshed", "count", n, "duration", time.Since(start).String())
	}
}

// cronLogger forwards cron's own messages to the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
