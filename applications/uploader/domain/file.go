package domain

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Blob is a named reference to binary file content.
type Blob interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// MemoryBlob holds the file content in memory.
type MemoryBlob struct {
	name string
	data []byte
}

func NewMemoryBlob(name string, data []byte) *MemoryBlob {
	return &MemoryBlob{
		name: name,
		data: data,
	}
}

func (b *MemoryBlob) Name() string {
	return b.name
}

func (b *MemoryBlob) Size() int64 {
	return int64(len(b.data))
}

func (b *MemoryBlob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// LocalBlob references a file on the local file system. The content is read
// on every Open, so the file must stay in place until the upload settles.
type LocalBlob struct {
	path string
	size int64
}

func NewLocalBlob(path string) (*LocalBlob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("can't stat file: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return &LocalBlob{
		path: path,
		size: info.Size(),
	}, nil
}

func (b *LocalBlob) Name() string {
	return filepath.Base(b.path)
}

func (b *LocalBlob) Size() int64 {
	return b.size
}

func (b *LocalBlob) Open() (io.ReadCloser, error) {
	return os.Open(b.path)
}
