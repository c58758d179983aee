package image

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
)

type Processor struct{}

func (p *Processor) CropToSquare(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if w == h {
		return img
	}

	var crop image.Rectangle
	if w > h {
		offset := (w - h) / 2
		crop = image.Rect(b.Min.X+offset, b.Min.Y, b.Min.X+offset+h, b.Min.Y+h)
	} else {
		offset := (h - w) / 2
		crop = image.Rect(b.Min.X, b.Min.Y+offset, b.Min.X+w, b.Min.Y+offset+w)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, crop.Min, draw.Src)
	return rgba
}

// Fit scales img down so its longest side is at most maxSide, keeping the
// aspect ratio. Smaller images and maxSide <= 0 return img unchanged.
func (p *Processor) Fit(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}
	if w >= h {
		return resize.Resize(uint(maxSide), 0, img, resize.Lanczos3)
	}
	return resize.Resize(0, uint(maxSide), img, resize.Lanczos3)
}

// Flatten draws img onto an opaque white canvas. JPEG has no alpha, so
// transparent PNG/WebP pixels would otherwise come out black.
func (p *Processor) Flatten(img image.Image) image.Image {
	b := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(result, result.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(result, result.Bounds(), img, b.Min, draw.Over)
	return result
}

func (p *Processor) OverlayCentered(base image.Image, overlay image.Image, alpha float64) image.Image {
	baseRGBA := image.NewRGBA(image.Rect(0, 0, base.Bounds().Dx(), base.Bounds().Dy()))
	draw.Draw(baseRGBA, baseRGBA.Bounds(), base, base.Bounds().Min, draw.Src)

	ob := overlay.Bounds()
	overlayRGBA := image.NewNRGBA(image.Rect(0, 0, ob.Dx(), ob.Dy()))
	for y := 0; y < ob.Dy(); y++ {
		for x := 0; x < ob.Dx(); x++ {
			c := color.NRGBAModel.Convert(overlay.At(ob.Min.X+x, ob.Min.Y+y)).(color.NRGBA)
			c.A = uint8(float64(c.A) * alpha)
			overlayRGBA.SetNRGBA(x, y, c)
		}
	}

	centerX := (baseRGBA.Bounds().Dx() - ob.Dx()) / 2
	centerY := (baseRGBA.Bounds().Dy() - ob.Dy()) / 2

	draw.Draw(
		baseRGBA,
		overlayRGBA.Bounds().Add(image.Pt(centerX, centerY)),
		overlayRGBA,
		image.Point{},
		draw.Over,
	)

	return baseRGBA
}
