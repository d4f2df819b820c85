package uploader

import (
	"context"

	"github.com/donmikel/uploadform/applications/uploader/domain"
)

type FormService interface {
	SelectFile(file domain.Blob)
	Submit(ctx context.Context) bool
	Snapshot() domain.Snapshot
	Subscribe(fn func(domain.Snapshot)) (unsubscribe func())
}
