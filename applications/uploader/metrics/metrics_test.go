package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/donmikel/uploadform/applications/uploader/domain"
)

type stubTransport struct {
	err error
}

func (s stubTransport) Upload(context.Context, domain.Blob) error {
	return s.err
}

func TestObserveCountsOutcomes(t *testing.T) {
	m := New(prometheus.NewRegistry())
	file := domain.NewMemoryBlob("a.txt", []byte("abc"))

	m.Observe(domain.Snapshot{File: file, State: domain.Idle})
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))

	m.Observe(domain.Snapshot{File: file, State: domain.InFlight})
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inFlight))

	m.Observe(domain.Snapshot{File: file, State: domain.Idle, Outcome: domain.Success()})
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))

	m.Observe(domain.Snapshot{File: file, State: domain.InFlight})
	m.Observe(domain.Snapshot{File: file, State: domain.Idle, Outcome: domain.Failure()})

	// selecting a file after a settled upload must not count again
	m.Observe(domain.Snapshot{File: file, State: domain.Idle})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.submissions.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.submissions.WithLabelValues("error")))
}

func TestInstrumentTransport(t *testing.T) {
	m := New(prometheus.NewRegistry())
	file := domain.NewMemoryBlob("a.txt", []byte("abcd"))

	assert.NoError(t, m.InstrumentTransport(stubTransport{}).Upload(context.Background(), file))
	assert.Error(t, m.InstrumentTransport(stubTransport{err: errors.New("boom")}).Upload(context.Background(), file))

	assert.Equal(t, float64(4), testutil.ToFloat64(m.uploadedBytes))
	assert.Equal(t, 1, testutil.CollectAndCount(m.uploadDuration))
}
