package dispatch

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powhash_jobs_submitted_total",
		Help: "The total number of jobs accepted by the dispatcher",
	}, []string{"variant"})

	jobsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powhash_jobs_rejected_total",
		Help: "The total number of jobs the dispatcher refused to queue",
	}, []string{"reason"})

	jobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powhash_jobs_completed_total",
		Help: "The total number of jobs that resolved their sink",
	}, []string{"variant", "outcome"})

	queueWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "powhash_job_queue_wait",
		Help:    "Time a job spent queued before a worker picked it up (milliseconds)",
		Buckets: prometheus.ExponentialBucketsRange(1, math.Pow(2, 16), 16),
	}, []string{"variant"})

	pendingJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powhash_jobs_pending",
		Help: "Number of jobs waiting for a worker",
	})

	busyWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powhash_workers_busy",
		Help: "Number of workers currently running a job",
	})
)
