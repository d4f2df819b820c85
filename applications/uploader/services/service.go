package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/donmikel/uploadform/applications/uploader"
	"github.com/donmikel/uploadform/applications/uploader/domain"
	"github.com/donmikel/uploadform/applications/uploader/interfaces"
)

type subscriber struct {
	id uint64
	fn func(domain.Snapshot)
}

type service struct {
	transport interfaces.Transport
	logger    log.Logger

	// notifyMu keeps notifications in the same order as the state changes
	// they describe. It is always taken before mu.
	notifyMu sync.Mutex
	mu       sync.Mutex

	file    domain.Blob
	state   domain.UploadState
	outcome *domain.Outcome

	nextID      uint64
	subscribers []subscriber
}

func NewService(transport interfaces.Transport, logger log.Logger) uploader.FormService {
	return &service{
		transport: transport,
		logger:    logger,
		state:     domain.Idle,
	}
}

// SelectFile replaces the selected file and clears the last outcome.
// A nil file means nothing was picked and is ignored.
func (s *service) SelectFile(file domain.Blob) {
	if file == nil {
		return
	}

	s.update(func() bool {
		s.file = file
		s.outcome = nil
		return true
	})

	level.Info(s.logger).Log("msg", "file selected",
		"file", file.Name(),
		"size", humanize.Bytes(uint64(file.Size())),
	)
}

// Submit uploads the selected file and blocks until the upload settles.
// It returns false without doing anything when no file is selected or an
// upload is already in flight. Cancellation of ctx does not abort the upload.
func (s *service) Submit(ctx context.Context) bool {
	var (
		file    domain.Blob
		started bool
	)
	s.update(func() bool {
		if s.file == nil || s.state != domain.Idle {
			return false
		}

		file = s.file
		s.state = domain.InFlight
		s.outcome = nil
		started = true
		return true
	})
	if !started {
		return false
	}

	logger := log.With(s.logger,
		"attempt", uuid.NewString(),
		"file", file.Name(),
		"size", humanize.Bytes(uint64(file.Size())),
	)
	level.Info(logger).Log("msg", "upload started")

	begin := time.Now()
	outcome := domain.Success()
	if err := s.upload(context.WithoutCancel(ctx), file); err != nil {
		level.Error(logger).Log("msg", "upload failed",
			"took", time.Since(begin),
			"err", err,
		)
		outcome = domain.Failure()
	} else {
		level.Info(logger).Log("msg", "upload completed",
			"took", time.Since(begin),
		)
	}

	s.update(func() bool {
		s.outcome = outcome
		s.state = domain.Idle
		return true
	})

	return true
}

func (s *service) upload(ctx context.Context, file domain.Blob) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v \n stack trace: %s", rec, debug.Stack())
		}
	}()

	return s.transport.Upload(ctx, file)
}

func (s *service) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot()
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs synchronously and must not select or submit.
func (s *service) Subscribe(fn func(domain.Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// update applies change under the state lock and, if change reports that
// something changed, notifies subscribers with the resulting snapshot.
func (s *service) update(change func() bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	changed := change()
	after := s.snapshot()
	subscribers := make([]subscriber, len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	if !changed {
		return
	}

	for _, sub := range subscribers {
		sub.fn(after)
	}
}

func (s *service) snapshot() domain.Snapshot {
	return domain.Snapshot{
		File:    s.file,
		State:   s.state,
		Outcome: s.outcome,
	}
}
