package metrics

import (
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    OffersIngestedTotal = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Name: "offercast_offers_ingested_total",
            Help: "Total number of offer rows saved per supplier code",
        },
        []string{"supplier"},
    )

    MessagesSentTotal = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Name: "offercast_messages_sent_total",
            Help: "Total number of messages dispatched to the transport, by outcome",
        },
        []string{"outcome"},
    )

    SubscribersSkippedTotal = promauto.NewCounter(
        prometheus.CounterOpts{
            Name: "offercast_subscribers_skipped_total",
            Help: "Subscribers whose filtered offer set was empty during a run",
        },
    )

    PricingErrorsTotal = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Name: "offercast_pricing_errors_total",
            Help: "Offers that could not be priced, by missing currency pair",
        },
        []string{"pair"},
    )

    ExtractionFailuresTotal = promauto.NewCounter(
        prometheus.CounterOpts{
            Name: "offercast_extraction_failures_total",
            Help: "Total number of failed AI extraction calls",
        },
    )

    DistributionDurationSeconds = promauto.NewHistogram(
        prometheus.HistogramOpts{
            Name:    "offercast_distribution_duration_seconds",
            Help:    "Wall time of a full distribution run",
            Buckets: prometheus.DefBuckets,
        },
    )

    DBPoolTotalConns = promauto.NewGaugeVec(
        prometheus.GaugeOpts{
            Name: "offercast_db_pool_total_conns",
            Help: "Total number of connections in the DB pool per driver",
        },
        []string{"driver"},
    )

    DBPoolIdleConns = promauto.NewGaugeVec(
        prometheus.GaugeOpts{
            Name: "offercast_db_pool_idle_conns",
            Help: "Idle connections in the DB pool per driver",
        },
        []string{"driver"},
    )

    DBPoolAcquiredConns = promauto.NewGaugeVec(
        prometheus.GaugeOpts{
            Name: "offercast_db_pool_acquired_conns",
            Help: "Currently acquired (in-use) connections per driver",
        },
        []string{"driver"},
    )
)

func UpdateDBPoolMetrics(driver string, total, idle, acquired float64) {
    DBPoolTotalConns.WithLabelValues(driver).Set(total)
    DBPoolIdleConns.WithLabelValues(driver).Set(idle)
    DBPoolAcquiredConns.WithLabelValues(driver).Set(acquired)
}

var (
    ScheduledJobLastRun = promauto.NewGaugeVec(
        prometheus.GaugeOpts{
            Name: "offercast_job_last_run_timestamp",
            Help: "Unix timestamp of the last completed run for a job",
        },
        []string{"job"},
    )

    ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
        prometheus.GaugeOpts{
            Name: "offercast_job_last_duration_seconds",
            Help: "Duration of the last completed run for a job",
        },
        []string{"job"},
    )

    ScheduledJobFailuresTotal = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Name: "offercast_job_failures_total",
            Help: "Total number of failed executions per job",
        },
        []string{"job"},
    )
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
    dur := time.Since(startedAt).Seconds()
    ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
    ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
    if err != nil {
        ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
    }
}
