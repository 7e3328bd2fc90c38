package cron

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nzahrani/offercast/internal/config"
	"github.com/nzahrani/offercast/internal/metrics"
	"github.com/nzahrani/offercast/internal/notification"
	"github.com/nzahrani/offercast/internal/storage"
)

const (
	jobName          = "retry_deliveries"
	advisoryLockKey  = int64(73201)
	intervalSetting  = "retry_interval_seconds"
	controlTickEvery = 10 * time.Second
)

// Run starts the delivery retry worker. It periodically re-sends failed
// deliveries from the outbox. On a postgres backend the run is guarded by
// an advisory lock so that only one replica drains the outbox; other
// backends are assumed single-process.
func Run(ctx context.Context, cfg config.Config) error {
	st, err := storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		return err
	}
	defer st.Close()

	var pool *storage.PostgresPool
	if strings.HasPrefix(cfg.DBDriver, "postgres") {
		pool, err = storage.OpenPostgresPool(ctx, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
	} else {
		log.Printf("cron: driver %q has no advisory locks, running unguarded", cfg.DBDriver)
	}

	sender := notification.NewService(st).WithCountryPrefix(cfg.CountryPrefix)
	retrier := NewRetrier(st, sender, cfg.RetryBatch)

	setting := strconv.Itoa(int(cfg.RetryInterval / time.Second))
	if val, err := st.GetSetting(ctx, intervalSetting); err == nil && val != "" {
		setting = val
	}

	ticker := time.NewTicker(controlTickEvery)
	defer ticker.Stop()

	nextRun := time.Now()
	log.Printf("cron worker starting, setting=%q driver=%s", setting, cfg.DBDriver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Pick up interval overrides stored by the admin API.
			if val, err := st.GetSetting(ctx, intervalSetting); err == nil && val != "" && val != setting {
				log.Printf("cron: interval updated from %q to %q", setting, val)
				setting = val
				nextRun = nextAfter(setting, time.Now())
			}
			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()
			if pool != nil {
				ok, err := pool.AcquireAdvisoryLock(ctx, advisoryLockKey)
				if err != nil {
					log.Printf("cron: acquire advisory lock failed: %v", err)
					metrics.UpdateJobMetrics(jobName, started, err)
					nextRun = nextAfter(setting, time.Now())
					continue
				}
				if !ok {
					log.Printf("cron: advisory lock held by another worker, skipping run")
					nextRun = nextAfter(setting, time.Now())
					continue
				}
			}

			retried, runErr := retrier.Run(ctx)
			if pool != nil {
				if _, err := pool.ReleaseAdvisoryLock(ctx, advisoryLockKey); err != nil {
					log.Printf("cron: release advisory lock failed: %v", err)
				}
			}

			metrics.UpdateJobMetrics(jobName, started, runErr)
			dur := time.Since(started)
			if pool != nil {
				total, idle, acquired, _ := pool.Stat()
				metrics.UpdateDBPoolMetrics("postgrespool", total, idle, acquired)
				errMsg := ""
				if runErr != nil {
					errMsg = runErr.Error()
				}
				if err := pool.UpdateScheduledJob(ctx, jobName, started, dur, runErr == nil, errMsg); err != nil {
					log.Printf("cron: update scheduled_jobs failed: %v", err)
				}
			}

			if runErr != nil {
				log.Printf("cron: job %s completed with error: %v (retried=%d duration=%s)", jobName, runErr, retried, dur)
			} else {
				log.Printf("cron: job %s completed (retried=%d duration=%s)", jobName, retried, dur)
			}
			nextRun = nextAfter(setting, time.Now())
		}
	}
}

// nextAfter interprets a schedule setting as integer seconds or a standard
// cron expression, falling back to five minutes.
func nextAfter(setting string, from time.Time) time.Time {
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return from.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cron.ParseStandard(setting); err == nil {
		return sched.Next(from)
	}
	return from.Add(5 * time.Minute)
}
