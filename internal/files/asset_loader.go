package files

import (
	"fmt"
	"image"
	"os"
	"sync"

	// decoders for overlay assets and incoming images
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// AssetLoader reads the overlay once and hands out the same Assets after.
type AssetLoader struct {
	overlayPath string
	fontPath    string

	once   sync.Once
	assets *Assets
	err    error
}

// NewAssetLoader takes full paths; an empty path disables that asset.
func NewAssetLoader(overlayPath, fontPath string) *AssetLoader {
	return &AssetLoader{
		overlayPath: overlayPath,
		fontPath:    fontPath,
	}
}

func (l *AssetLoader) Load() (*Assets, error) {
	l.once.Do(func() {
		assets := &Assets{FontPath: l.fontPath}

		if l.fontPath != "" {
			if _, err := os.Stat(l.fontPath); err != nil {
				l.err = fmt.Errorf("font asset: %w", err)
				return
			}
		}

		if l.overlayPath != "" {
			overlay, err := OpenImage(l.overlayPath)
			if err != nil {
				l.err = fmt.Errorf("overlay asset: %w", err)
				return
			}
			assets.Overlay = overlay
		}

		l.assets = assets
	})
	return l.assets, l.err
}

// OpenImage decodes any registered format: JPEG, PNG, GIF, BMP, TIFF, WebP.
func OpenImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}
