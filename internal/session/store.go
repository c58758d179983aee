// Package session caches authenticated social-media sessions on disk, one
// sealed record per account, and hands out a working session per request.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const recordSuffix = "_session.json"

// Store maps account identifiers to record paths. File names are SHA-256
// digests, so they neither leak the identifier nor allow path traversal.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Key is the hex digest of identifier. It names the record and is the only
// form of the identifier that gets logged.
func (s *Store) Key(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])
}

func (s *Store) PathFor(identifier string) string {
	return filepath.Join(s.dir, s.Key(identifier)+recordSuffix)
}

func (s *Store) Exists(identifier string) bool {
	info, err := os.Stat(s.PathFor(identifier))
	return err == nil && info.Mode().IsRegular()
}
