package files

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	DefaultExtension = "jpg"
	maxExtensionLen  = 5
)

// Scratch is the private directory holding short-lived per-request files.
type Scratch struct {
	dir string
}

func NewScratch(dir string) (*Scratch, error) {
	if dir == "" {
		dir = "temp"
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &Scratch{dir: dir}, nil
}

func (s *Scratch) Dir() string {
	return s.dir
}

// Create opens a new file with a random hex name and the given extension.
// ext must already be sanitized.
func (s *Scratch) Create(ext string) (*os.File, error) {
	name, err := randomName()
	if err != nil {
		return nil, err
	}
	p := filepath.Join(s.dir, name+"."+ext)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create local file: %w", err)
	}
	return f, nil
}

// Cleanup returns a func removing path. Removal errors are ignored; the file
// is either gone or was never created.
func (s *Scratch) Cleanup(p string) func() {
	return func() {
		_ = os.Remove(p)
	}
}

func randomName() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate file name: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// SafeExtension derives a file extension from name (a file name or URL path).
// Only 1-5 ASCII letters or digits are accepted, lowercased; anything else
// yields DefaultExtension.
func SafeExtension(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" || len(ext) > maxExtensionLen {
		return DefaultExtension
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return DefaultExtension
		}
	}
	return ext
}
