package measure

import "time"

// Measure collects one Metric per step name.
type Measure interface {
	AddMetric(name string) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
	// Means returns the mean duration of every step with at least one sample.
	Means() map[string]time.Duration
}

// Metric accumulates the durations of one step across jobs.
type Metric interface {
	AddDuration(elapsed time.Duration)
	AVGDuration() time.Duration
	Count() int64
	Total() time.Duration
}
