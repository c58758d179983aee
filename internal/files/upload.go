package files

import (
	"context"
	"fmt"
	"io"

	"postgate/internal/apperr"
)

// UploadSource stores an uploaded file part into scratch. The extension comes
// from the client's file name.
type UploadSource struct {
	Scratch  *Scratch
	File     io.Reader
	Filename string
	MaxSize  int64
}

func (s UploadSource) Acquire(context.Context) (string, func(), error) {
	out, err := s.Scratch.Create(SafeExtension(s.Filename))
	if err != nil {
		return "", nil, err
	}
	localPath := out.Name()
	cleanup := s.Scratch.Cleanup(localPath)

	n, err := io.CopyBuffer(out, io.LimitReader(s.File, s.MaxSize+1), make([]byte, copyBufferSize))
	closeErr := out.Close()

	switch {
	case err != nil:
		cleanup()
		return "", nil, fmt.Errorf("failed to save uploaded file: %w", err)
	case closeErr != nil:
		cleanup()
		return "", nil, fmt.Errorf("close uploaded file: %w", closeErr)
	case n > s.MaxSize:
		cleanup()
		return "", nil, apperr.Validation(fmt.Sprintf("image exceeds %d bytes", s.MaxSize))
	case n == 0:
		cleanup()
		return "", nil, apperr.Validation("uploaded image is empty")
	}

	return localPath, cleanup, nil
}
