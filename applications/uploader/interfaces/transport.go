package interfaces

import (
	"context"

	"github.com/donmikel/uploadform/applications/uploader/domain"
)

// Transport delivers a file to the remote endpoint. A nil error means the
// endpoint accepted the upload.
type Transport interface {
	Upload(ctx context.Context, file domain.Blob) error
}
