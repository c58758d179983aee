package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"postgate/internal/apperr"
	"postgate/internal/logger"
)

const copyBufferSize = 32 * 1024

var ErrUnsupportedURL = errors.New("image_url must be an absolute http or https URL")

// Fetcher downloads remote images into scratch.
type Fetcher struct {
	client  *http.Client
	scratch *Scratch
	maxSize int64
	logger  *slog.Logger
}

type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default client. Its timeout is left as is.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

func NewFetcher(scratch *Scratch, timeout time.Duration, maxSize int64, log *slog.Logger, opts ...FetcherOption) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	f := &Fetcher{
		client:  &http.Client{Timeout: timeout},
		scratch: scratch,
		maxSize: maxSize,
		logger:  log.With(logger.Component("fetcher")),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch streams rawURL into a new scratch file and returns its path and a
// cleanup func. On error nothing is left behind.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, func(), error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", nil, apperr.Download("", ErrUnsupportedURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", nil, apperr.Download("failed to create request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, apperr.Download("download request failed", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Debug("failed to close response body", logger.Error(closeErr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, apperr.Download(fmt.Sprintf("download failed: status %s", resp.Status), nil)
	}
	if resp.ContentLength > f.maxSize {
		return "", nil, apperr.Download(fmt.Sprintf("image exceeds %d bytes", f.maxSize), nil)
	}

	out, err := f.scratch.Create(SafeExtension(u.Path))
	if err != nil {
		return "", nil, err
	}
	localPath := out.Name()
	cleanup := f.scratch.Cleanup(localPath)

	n, err := io.CopyBuffer(out, io.LimitReader(resp.Body, f.maxSize+1), make([]byte, copyBufferSize))
	closeErr := out.Close()

	switch {
	case err != nil:
		cleanup()
		return "", nil, apperr.Download("failed to save downloaded file", err)
	case closeErr != nil:
		cleanup()
		return "", nil, fmt.Errorf("close downloaded file: %w", closeErr)
	case n > f.maxSize:
		cleanup()
		return "", nil, apperr.Download(fmt.Sprintf("image exceeds %d bytes", f.maxSize), nil)
	}

	if info, err := os.Stat(localPath); err != nil || info.Size() == 0 {
		cleanup()
		return "", nil, apperr.Download("downloaded file is empty", err)
	}

	f.logger.Debug("image downloaded", logger.File(localPath), slog.Int64("bytes", n))
	return localPath, cleanup, nil
}
