package image

import (
	"image"

	"github.com/fogleman/gg"
)

// TextRenderer stamps a short watermark into the bottom-right corner. An
// empty FontPath uses gg's built-in face.
type TextRenderer struct {
	FontPath string
}

func (tr *TextRenderer) DrawWatermark(img image.Image, text string) (image.Image, error) {
	dc := gg.NewContextForImage(img)

	if tr.FontPath != "" {
		fontSize := float64(max(dc.Width(), dc.Height())) / 1000.0 * 30
		if err := dc.LoadFontFace(tr.FontPath, fontSize); err != nil {
			return nil, err
		}
	}

	margin := float64(min(dc.Width(), dc.Height())) * 0.03
	x := float64(dc.Width()) - margin
	y := float64(dc.Height()) - margin

	// shadow, then text
	dc.SetRGBA(0, 0, 0, 0.5)
	dc.DrawStringAnchored(text, x+1, y+1, 1, 0)
	dc.SetRGBA(1, 1, 1, 0.85)
	dc.DrawStringAnchored(text, x, y, 1, 0)

	return dc.Image(), nil
}
