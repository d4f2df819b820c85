package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/uploadform/applications/uploader/domain"
)

type upload struct {
	name string
	data []byte
}

type fakeTransport struct {
	mu      sync.Mutex
	uploads []upload
	err     error
	panic   bool
	started chan struct{}
	release chan struct{}
}

func (f *fakeTransport) Upload(ctx context.Context, file domain.Blob) error {
	body, err := file.Open()
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.uploads = append(f.uploads, upload{name: file.Name(), data: data})
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.panic {
		panic("transport exploded")
	}

	return f.err
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.uploads)
}

func TestSubmitWithoutFile(t *testing.T) {
	transport := &fakeTransport{}
	svc := NewService(transport, log.NewNopLogger())

	var notified int
	svc.Subscribe(func(domain.Snapshot) { notified++ })

	assert.False(t, svc.Submit(context.Background()))
	assert.Equal(t, 0, transport.count())
	assert.Equal(t, 0, notified)

	snap := svc.Snapshot()
	assert.Equal(t, domain.Idle, snap.State)
	assert.Nil(t, snap.Outcome)
	assert.False(t, snap.CanSubmit())
}

func TestSubmitSuccess(t *testing.T) {
	transport := &fakeTransport{}
	svc := NewService(transport, log.NewNopLogger())

	svc.SelectFile(domain.NewMemoryBlob("report.pdf", []byte("%PDF-1.4")))
	require.True(t, svc.Submit(context.Background()))

	snap := svc.Snapshot()
	assert.Equal(t, domain.Idle, snap.State)
	require.NotNil(t, snap.Outcome)
	assert.Equal(t, domain.OutcomeSuccess, snap.Outcome.Type)
	assert.Equal(t, "File uploaded successfully!", snap.Outcome.Message)

	require.Len(t, transport.uploads, 1)
	assert.Equal(t, "report.pdf", transport.uploads[0].name)
	assert.Equal(t, []byte("%PDF-1.4"), transport.uploads[0].data)
}

func TestSubmitFailure(t *testing.T) {
	tests := []struct {
		name      string
		transport *fakeTransport
	}{
		{name: "transport error", transport: &fakeTransport{err: errors.New("status 500")}},
		{name: "transport panic", transport: &fakeTransport{panic: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.transport, log.NewNopLogger())

			svc.SelectFile(domain.NewMemoryBlob("report.pdf", []byte("%PDF-1.4")))
			require.True(t, svc.Submit(context.Background()))

			snap := svc.Snapshot()
			assert.Equal(t, domain.Idle, snap.State)
			require.NotNil(t, snap.Outcome)
			assert.Equal(t, domain.OutcomeFailure, snap.Outcome.Type)
			assert.Equal(t, "Failed to upload file. Please try again.", snap.Outcome.Message)
			assert.Equal(t, 1, tt.transport.count())
		})
	}
}

func TestSubmitWhileInFlight(t *testing.T) {
	transport := &fakeTransport{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewService(transport, log.NewNopLogger())
	svc.SelectFile(domain.NewMemoryBlob("report.pdf", []byte("data")))

	done := make(chan bool)
	go func() {
		done <- svc.Submit(context.Background())
	}()
	<-transport.started

	snap := svc.Snapshot()
	assert.Equal(t, domain.InFlight, snap.State)
	assert.False(t, snap.CanSubmit())
	assert.False(t, svc.Submit(context.Background()))

	close(transport.release)
	assert.True(t, <-done)
	assert.Equal(t, 1, transport.count())
	assert.Equal(t, domain.Idle, svc.Snapshot().State)
}

func TestSubmitIgnoresCancellation(t *testing.T) {
	transport := &fakeTransport{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewService(transport, log.NewNopLogger())
	svc.SelectFile(domain.NewMemoryBlob("report.pdf", []byte("data")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		done <- svc.Submit(ctx)
	}()
	<-transport.started
	cancel()
	close(transport.release)

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not settle")
	}
	assert.Equal(t, domain.OutcomeSuccess, svc.Snapshot().Outcome.Type)
}

func TestSelectFileClearsOutcome(t *testing.T) {
	svc := NewService(&fakeTransport{err: errors.New("boom")}, log.NewNopLogger())

	svc.SelectFile(domain.NewMemoryBlob("a.txt", []byte("a")))
	svc.Submit(context.Background())
	require.NotNil(t, svc.Snapshot().Outcome)

	svc.SelectFile(domain.NewMemoryBlob("b.txt", []byte("b")))

	snap := svc.Snapshot()
	assert.Nil(t, snap.Outcome)
	assert.Equal(t, domain.Idle, snap.State)
}

func TestSelectFileDuringUploadKeepsState(t *testing.T) {
	transport := &fakeTransport{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewService(transport, log.NewNopLogger())
	svc.SelectFile(domain.NewMemoryBlob("a.txt", []byte("a")))

	done := make(chan bool)
	go func() {
		done <- svc.Submit(context.Background())
	}()
	<-transport.started

	svc.SelectFile(domain.NewMemoryBlob("b.txt", []byte("b")))
	snap := svc.Snapshot()
	assert.Equal(t, domain.InFlight, snap.State)
	assert.Equal(t, "b.txt", snap.File.Name())

	close(transport.release)
	<-done
	require.Len(t, transport.uploads, 1)
	assert.Equal(t, "a.txt", transport.uploads[0].name)
}

func TestSelectFileReplaces(t *testing.T) {
	transport := &fakeTransport{}
	svc := NewService(transport, log.NewNopLogger())

	first := domain.NewMemoryBlob("first.txt", []byte("1"))
	second := domain.NewMemoryBlob("second.txt", []byte("2"))
	svc.SelectFile(first)
	svc.SelectFile(second)

	assert.Same(t, second, svc.Snapshot().File)

	svc.Submit(context.Background())
	require.Len(t, transport.uploads, 1)
	assert.Equal(t, "second.txt", transport.uploads[0].name)
}

func TestSelectNilFileIgnored(t *testing.T) {
	svc := NewService(&fakeTransport{}, log.NewNopLogger())

	blob := domain.NewMemoryBlob("a.txt", []byte("a"))
	svc.SelectFile(blob)
	svc.SelectFile(nil)

	assert.Same(t, blob, svc.Snapshot().File)
}

func TestSubscribe(t *testing.T) {
	svc := NewService(&fakeTransport{}, log.NewNopLogger())

	var states []domain.UploadState
	var outcomes []*domain.Outcome
	unsubscribe := svc.Subscribe(func(s domain.Snapshot) {
		states = append(states, s.State)
		outcomes = append(outcomes, s.Outcome)
	})

	svc.SelectFile(domain.NewMemoryBlob("a.txt", []byte("a")))
	svc.Submit(context.Background())

	assert.Equal(t, []domain.UploadState{domain.Idle, domain.InFlight, domain.Idle}, states)
	assert.Nil(t, outcomes[0])
	assert.Nil(t, outcomes[1])
	require.NotNil(t, outcomes[2])
	assert.Equal(t, domain.OutcomeSuccess, outcomes[2].Type)

	unsubscribe()
	svc.SelectFile(domain.NewMemoryBlob("b.txt", []byte("b")))
	assert.Len(t, states, 3)
}
