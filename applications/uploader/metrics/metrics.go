package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/donmikel/uploadform/applications/uploader/domain"
	"github.com/donmikel/uploadform/applications/uploader/interfaces"
)

const namespace = "uploadform"

// Metrics turns form state notifications into Prometheus metrics.
// Observe is meant to be registered with FormService.Subscribe.
type Metrics struct {
	submissions    *prometheus.CounterVec
	uploadedBytes  prometheus.Counter
	uploadDuration prometheus.Histogram
	inFlight       prometheus.Gauge

	mu   sync.Mutex
	last domain.UploadState
}

func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of settled submissions by outcome",
		}, []string{"outcome"}),

		uploadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Total size of successfully uploaded files in bytes",
		}),

		uploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time spent waiting for the endpoint to settle an upload",
			Buckets:   prometheus.DefBuckets,
		}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upload_in_flight",
			Help:      "1 while a submission is in flight",
		}),
	}
}

func (m *Metrics) Observe(s domain.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.last == domain.Idle && s.State == domain.InFlight:
		m.inFlight.Set(1)
	case m.last == domain.InFlight && s.State == domain.Idle:
		m.inFlight.Set(0)
		if s.Outcome != nil {
			m.submissions.WithLabelValues(string(s.Outcome.Type)).Inc()
		}
	}

	m.last = s.State
}

type instrumentedTransport struct {
	next    interfaces.Transport
	metrics *Metrics
}

// InstrumentTransport wraps next so that upload durations and the size of
// accepted files are recorded.
func (m *Metrics) InstrumentTransport(next interfaces.Transport) interfaces.Transport {
	return &instrumentedTransport{next: next, metrics: m}
}

func (t *instrumentedTransport) Upload(ctx context.Context, file domain.Blob) error {
	begin := time.Now()
	err := t.next.Upload(ctx, file)
	t.metrics.uploadDuration.Observe(time.Since(begin).Seconds())
	if err == nil {
		t.metrics.uploadedBytes.Add(float64(file.Size()))
	}

	return err
}
