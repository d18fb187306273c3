package server

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/mohammad-safakhou/sift/internal/pipeline"
	"github.com/mohammad-safakhou/sift/internal/store"
)

// Scheduler fires the pipeline on a cron schedule. Overlap protection
// lives in the pipeline's run lock, so a slow run simply makes the next
// due tick a no-op.
type Scheduler struct {
	Store    *store.Store
	Pipeline *pipeline.Pipeline
	Cron     string
	Stop     chan struct{}
	Logger   *log.Logger
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	last, err := s.Store.LatestRunTime(ctx)
	if err != nil {
		s.Logger.Printf("warn: latest run time: %v", err)
		return
	}
	if !isDue(s.Cron, last) {
		return
	}
	go func() {
		if err := s.Pipeline.Run(context.Background(), "scheduled"); err != nil {
			if errors.Is(err, pipeline.ErrAlreadyRunning) {
				return
			}
			s.Logger.Printf("scheduled pipeline run failed: %v", err)
		}
	}()
}

// isDue determines if the cron schedule is due now given the last run
// time. Supports "@daily", "@hourly", and standard 5-field cron
// expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Fallback: treat as @daily if invalid
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
