package files

import (
	"context"
)

// Source produces a local image file for one request. cleanup removes
// whatever Acquire created and is safe to call on every exit path.
type Source interface {
	Acquire(ctx context.Context) (localPath string, cleanup func(), err error)
}

// URLSource downloads the image at URL into scratch.
type URLSource struct {
	Fetcher *Fetcher
	URL     string
}

func (s URLSource) Acquire(ctx context.Context) (string, func(), error) {
	return s.Fetcher.Fetch(ctx, s.URL)
}

// LocalSource uses a file that already exists on this host. The file belongs
// to the caller and is never removed.
type LocalSource struct {
	Path string
}

func (s LocalSource) Acquire(context.Context) (string, func(), error) {
	return s.Path, func() {}, nil
}

// SavedSource is a file already written to scratch, e.g. a streamed upload.
// Cleanup is handed over with it.
type SavedSource struct {
	Path    string
	Cleanup func()
}

func (s SavedSource) Acquire(context.Context) (string, func(), error) {
	return s.Path, s.Cleanup, nil
}
