package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronos_scheduler_job_runs_total",
		Help: "Job task invocations, by job name.",
	}, []string{"job"})

	jobFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronos_scheduler_job_failures_total",
		Help: "Job task invocations that returned an error or panicked.",
	}, []string{"job"})

	jobSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronos_scheduler_job_skips_total",
		Help: "Fires skipped because the job was still running.",
	}, []string{"job"})
)
