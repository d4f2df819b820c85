package inmemory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/uploadform/applications/uploader/domain"
)

const defaultCapacityInBytes = 100 * 1024 * 1024 // 100 Mb

// Transport keeps uploaded files in memory instead of sending them anywhere.
// It backs the dry-run mode.
type Transport struct {
	dataByName map[string][]byte
	freeSpace  int64
	log        log.Logger
	mutex      sync.RWMutex
}

func NewTransport(logger log.Logger) *Transport {
	return &Transport{
		dataByName: map[string][]byte{},
		freeSpace:  defaultCapacityInBytes,
		log:        logger,
	}
}

func (m *Transport) Upload(ctx context.Context, file domain.Blob) error {
	body, err := file.Open()
	if err != nil {
		return fmt.Errorf("can't open file: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("can't read file: %w", err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	dataLen := int64(len(data)) - int64(len(m.dataByName[file.Name()]))
	if dataLen > m.freeSpace {
		return fmt.Errorf("not enough free space")
	}

	m.dataByName[file.Name()] = data
	m.freeSpace -= dataLen

	level.Info(m.log).Log("msg", "file stored",
		"file", file.Name(),
		"size", humanize.Bytes(uint64(len(data))),
		"free_space", humanize.Bytes(uint64(m.freeSpace)),
	)

	return nil
}

// File returns the content stored under name.
func (m *Transport) File(name string) ([]byte, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	data, ok := m.dataByName[name]
	return data, ok
}
