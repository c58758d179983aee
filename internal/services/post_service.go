package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"postgate/internal/apperr"
	"postgate/internal/files"
	"postgate/internal/logger"
	"postgate/internal/social"
)

// SessionProvider yields an authenticated session for an account.
type SessionProvider interface {
	Acquire(ctx context.Context, identifier, secret string) (social.Session, error)
}

// ImagePreparer turns an acquired image into the file that gets uploaded.
type ImagePreparer interface {
	Prepare(inputPath string) (string, error)
}

type PostRequest struct {
	Identifier string
	Secret     string
	Caption    string
	Source     files.Source
}

type PostResult struct {
	MediaID string
	Caption string
}

type PostService struct {
	sessions SessionProvider
	client   social.Client
	preparer ImagePreparer
	logger   *slog.Logger
}

// NewPostService wires the pipeline. A nil preparer uploads acquired files
// as they are.
func NewPostService(sessions SessionProvider, client social.Client, preparer ImagePreparer, log *slog.Logger) *PostService {
	if log == nil {
		log = slog.Default()
	}
	return &PostService{
		sessions: sessions,
		client:   client,
		preparer: preparer,
		logger:   log.With(logger.Component("post")),
	}
}

// Publish acquires the image, prepares it, gets a session and uploads. Every
// scratch file created along the way is removed before Publish returns,
// whatever the outcome.
func (s *PostService) Publish(ctx context.Context, req PostRequest) (*PostResult, error) {
	localPath, cleanup, err := req.Source.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire image: %w", err)
	}
	defer cleanup()

	uploadPath := localPath
	if s.preparer != nil {
		prepared, err := s.preparer.Prepare(localPath)
		if err != nil {
			if _, remote := req.Source.(files.URLSource); remote && errors.Is(err, ErrUnsupportedImage) {
				return nil, apperr.Download("downloaded file is not a supported image", err)
			}
			return nil, fmt.Errorf("prepare image: %w", err)
		}
		defer func() {
			if err := os.Remove(prepared); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to remove prepared image", logger.File(prepared), logger.Error(err))
			}
		}()
		uploadPath = prepared
	}

	sess, err := s.sessions.Acquire(ctx, req.Identifier, req.Secret)
	if err != nil {
		return nil, err
	}

	post, err := s.client.UploadImage(ctx, sess, uploadPath, req.Caption)
	if err != nil {
		return nil, apperr.Upload(err)
	}

	s.logger.Info("image posted", logger.MediaID(post.ID))
	return &PostResult{
		MediaID: post.ID,
		Caption: req.Caption,
	}, nil
}
