package httptransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/uploadform/applications/uploader/domain"
	"github.com/donmikel/uploadform/applications/uploader/interfaces"
)

// FieldName is the multipart form field carrying the file.
const FieldName = "file"

var ErrUnexpectedStatus = errors.New("unexpected response status")

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrUnexpectedStatus, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

type transport struct {
	url    string
	client *http.Client
	logger log.Logger
}

// NewTransport returns a Transport posting files to url. A zero timeout
// leaves the request unbounded.
func NewTransport(url string, timeout time.Duration, logger log.Logger) interfaces.Transport {
	return &transport{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (t *transport) Upload(ctx context.Context, file domain.Blob) error {
	body, err := file.Open()
	if err != nil {
		return fmt.Errorf("can't open file: %w", err)
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer body.Close()
		pw.CloseWithError(writeBody(writer, file.Name(), body))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, pr)
	if err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("can't create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("can't send request: %w", err)
	}
	defer resp.Body.Close()

	if _, err = io.Copy(io.Discard, resp.Body); err != nil {
		level.Debug(t.logger).Log("msg", "can't drain response body", "err", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: resp.StatusCode}
	}

	return nil
}

func writeBody(writer *multipart.Writer, filename string, body io.Reader) error {
	part, err := writer.CreateFormFile(FieldName, filename)
	if err != nil {
		return fmt.Errorf("can't create form file: %w", err)
	}

	if _, err = io.Copy(part, body); err != nil {
		return fmt.Errorf("can't write file content: %w", err)
	}

	return writer.Close()
}
