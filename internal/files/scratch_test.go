package files_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postgate/internal/apperr"
	"postgate/internal/files"
)

func TestSafeExtension(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"pic.JPG":           "jpg",
		"archive.tar.gz":    "gz",
		"photo.jpeg":        "jpeg",
		"a.heic":            "heic",
		"no-extension":      "jpg",
		"trailing.":         "jpg",
		"bad.ex-t":          "jpg",
		"toolong.abcdef":    "jpg",
		"unicode.jpé":       "jpg",
		"/some/dir/x.PNG":   "png",
		"":                  "jpg",
		"C:/Users/me/p.gif": "gif",
	}
	for in, want := range cases {
		assert.Equal(t, want, files.SafeExtension(in), in)
	}
}

func TestScratchCreateIsPrivateAndUnique(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "scratch")
	scratch, err := files.NewScratch(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		f, err := scratch.Create("png")
		require.NoError(t, err)
		require.NoError(t, f.Close())
		assert.False(t, seen[f.Name()])
		seen[f.Name()] = true
	}
}

func TestUploadSource(t *testing.T) {
	t.Parallel()

	scratch, err := files.NewScratch(t.TempDir())
	require.NoError(t, err)

	t.Run("stores part", func(t *testing.T) {
		src := files.UploadSource{Scratch: scratch, File: strings.NewReader("png bytes"), Filename: "Holiday.PNG", MaxSize: 100}
		local, cleanup, err := src.Acquire(context.Background())
		require.NoError(t, err)
		defer cleanup()

		assert.Equal(t, ".png", filepath.Ext(local))
		data, err := os.ReadFile(local)
		require.NoError(t, err)
		assert.Equal(t, "png bytes", string(data))
	})

	t.Run("rejects oversize", func(t *testing.T) {
		src := files.UploadSource{Scratch: scratch, File: strings.NewReader(strings.Repeat("x", 101)), Filename: "a.jpg", MaxSize: 100}
		_, _, err := src.Acquire(context.Background())
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("rejects empty", func(t *testing.T) {
		src := files.UploadSource{Scratch: scratch, File: strings.NewReader(""), Filename: "a.jpg", MaxSize: 100}
		_, _, err := src.Acquire(context.Background())
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	entries, err := os.ReadDir(scratch.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalSourceNeverRemovesCallerFile(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "mine.jpg")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))

	local, cleanup, err := files.LocalSource{Path: p}.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, p, local)

	cleanup()
	_, err = os.Stat(p)
	assert.NoError(t, err)
}

func TestAssetLoader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	overlayPath := filepath.Join(dir, "overlay.png")
	f, err := os.Create(overlayPath)
	require.NoError(t, err)
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	assets, err := files.NewAssetLoader(overlayPath, "").Load()
	require.NoError(t, err)
	require.NotNil(t, assets.Overlay)
	assert.Equal(t, 4, assets.Overlay.Bounds().Dx())

	empty, err := files.NewAssetLoader("", "").Load()
	require.NoError(t, err)
	assert.Nil(t, empty.Overlay)

	_, err = files.NewAssetLoader(filepath.Join(dir, "missing.png"), "").Load()
	require.Error(t, err)
}
