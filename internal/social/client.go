// Package social defines the capability used to publish images on a
// social-media account, plus the Telegram implementation of it.
package social

import (
	"context"
	"errors"
)

// Session is the authenticated state of one account. It is opaque to
// everything but the Client that produced it.
type Session any

type Post struct {
	ID string
}

// Client is the external social-media capability. Implementations own the
// wire protocol; callers only move sessions around.
type Client interface {
	Login(ctx context.Context, identifier, secret string) (Session, error)
	// Probe returns nil when the session still grants access.
	Probe(ctx context.Context, session Session) error

	Save(session Session) ([]byte, error)
	Load(blob []byte) (Session, error)

	UploadImage(ctx context.Context, session Session, path, caption string) (*Post, error)
}

var (
	ErrForeignSession = errors.New("session was not created by this client")
	ErrInvalidSession = errors.New("invalid session data")
)
