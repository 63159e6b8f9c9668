package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwygoda/fetchdata/internal/domain"
)

const namespace = "fetchdata"

// Collector implements domain.RunRecorder by updating Prometheus metrics.
type Collector struct {
	entriesTotal  *prometheus.CounterVec
	bytesTotal    prometheus.Counter
	expectedBytes prometheus.Gauge
	runsTotal     prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		entriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_total",
				Help:      "Dataset entries processed, by outcome.",
			},
			[]string{"outcome"},
		),
		bytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "On-disk bytes of entries downloaded in this process.",
		}),
		expectedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "expected_bytes",
			Help:      "Total expected bytes of the most recent batch.",
		}),
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Batches started.",
		}),
	}
	reg.MustRegister(c.entriesTotal, c.bytesTotal, c.expectedBytes, c.runsTotal)
	return c
}

// StartRun records a new batch.
func (c *Collector) StartRun(ctx context.Context, runID string, req domain.BatchRequest, totalBytes int64) error {
	c.runsTotal.Inc()
	c.expectedBytes.Set(float64(totalBytes))
	return nil
}

// RecordResult counts one outcome. Downloaded and extracted entries also add
// their on-disk size to the byte counter.
func (c *Collector) RecordResult(ctx context.Context, runID string, position int, res domain.EntryResult) error {
	c.entriesTotal.WithLabelValues(string(res.Outcome.Kind)).Inc()

	switch res.Outcome.Kind {
	case domain.OutcomeDownloaded, domain.OutcomeExtracted, domain.OutcomeExtractFailed:
		c.bytesTotal.Add(float64(res.Size))
	}
	return nil
}

// FinishRun is a no-op; all counters are updated per entry.
func (c *Collector) FinishRun(ctx context.Context, report *domain.BatchReport) error {
	return nil
}
