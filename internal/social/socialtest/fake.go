// Package socialtest provides an in-memory social.Client for tests.
package socialtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"postgate/internal/social"
)

var ErrBadCredentials = errors.New("bad credentials")

type Session struct {
	Identifier string `json:"identifier"`
	Generation int    `json:"generation"`
}

// Upload records one UploadImage call. Size is the file size seen at upload
// time, so tests can assert the file existed then and is gone afterwards.
type Upload struct {
	Identifier string
	Path       string
	Caption    string
	Size       int64
}

// Client counts every call. Secrets maps identifier to the accepted secret;
// an identifier missing from the map accepts any secret.
type Client struct {
	mu sync.Mutex

	Secrets   map[string]string
	ProbeErr  error
	UploadErr error
	MediaID   string

	Logins  int
	Probes  int
	Saves   int
	Loads   int
	Uploads []Upload
}

var _ social.Client = (*Client)(nil)

func New() *Client {
	return &Client{
		Secrets: make(map[string]string),
		MediaID: "media-1",
	}
}

func (c *Client) Login(_ context.Context, identifier, secret string) (social.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Logins++
	if want, ok := c.Secrets[identifier]; ok && want != secret {
		return nil, ErrBadCredentials
	}
	return &Session{Identifier: identifier, Generation: c.Logins}, nil
}

func (c *Client) Probe(_ context.Context, session social.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Probes++
	if _, ok := session.(*Session); !ok {
		return social.ErrForeignSession
	}
	return c.ProbeErr
}

func (c *Client) Save(session social.Session) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Saves++
	s, ok := session.(*Session)
	if !ok {
		return nil, social.ErrForeignSession
	}
	return json.Marshal(s)
}

func (c *Client) Load(blob []byte) (social.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Loads++
	var s Session
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", social.ErrInvalidSession, err)
	}
	return &s, nil
}

func (c *Client) UploadImage(_ context.Context, session social.Session, path, caption string) (*social.Post, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := session.(*Session)
	if !ok {
		return nil, social.ErrForeignSession
	}

	var size int64 = -1
	if stat, err := os.Stat(path); err == nil {
		size = stat.Size()
	}
	c.Uploads = append(c.Uploads, Upload{Identifier: s.Identifier, Path: path, Caption: caption, Size: size})

	if c.UploadErr != nil {
		return nil, c.UploadErr
	}
	return &social.Post{ID: c.MediaID}, nil
}

// Counts returns login, probe and upload counts under the lock.
func (c *Client) Counts() (logins, probes, uploads int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Logins, c.Probes, len(c.Uploads)
}

func (c *Client) LastUpload() (Upload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Uploads) == 0 {
		return Upload{}, false
	}
	return c.Uploads[len(c.Uploads)-1], true
}
