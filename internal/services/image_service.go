package services

import (
	"errors"
	"fmt"
	img "image"
	"image/jpeg"
	"os"

	"postgate/internal/files"
	"postgate/internal/image"
)

var ErrUnsupportedImage = errors.New("file is not a supported image")

type ImageOptions struct {
	MaxSide        int
	Square         bool
	JPEGQuality    int
	OverlayOpacity float64
	Watermark      string
}

// ImageService turns an acquired image into the JPEG that gets posted.
type ImageService struct {
	scratch     *files.Scratch
	assetLoader *files.AssetLoader
	processor   *image.Processor
	opts        ImageOptions
}

func NewImageService(
	assetLoader *files.AssetLoader,
	processor *image.Processor,
	scratch *files.Scratch,
	opts ImageOptions,
) *ImageService {
	if opts.JPEGQuality == 0 {
		opts.JPEGQuality = jpeg.DefaultQuality
	}
	return &ImageService{
		scratch:     scratch,
		assetLoader: assetLoader,
		processor:   processor,
		opts:        opts,
	}
}

// Prepare decodes inputPath, applies crop/resize/overlay/watermark and writes
// the result to a new scratch JPEG. The caller owns the returned file.
func (s *ImageService) Prepare(inputPath string) (string, error) {
	assets, err := s.assetLoader.Load()
	if err != nil {
		return "", fmt.Errorf("asset load error: %w", err)
	}

	userImg, err := files.OpenImage(inputPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	if s.opts.Square {
		userImg = s.processor.CropToSquare(userImg)
	}
	userImg = s.processor.Fit(userImg, s.opts.MaxSide)
	userImg = s.processor.Flatten(userImg)

	if assets.Overlay != nil {
		userImg = s.processor.OverlayCentered(userImg, assets.Overlay, s.opts.OverlayOpacity)
	}

	if s.opts.Watermark != "" {
		renderer := &image.TextRenderer{FontPath: assets.FontPath}
		userImg, err = renderer.DrawWatermark(userImg, s.opts.Watermark)
		if err != nil {
			return "", fmt.Errorf("watermark render: %w", err)
		}
	}

	out, err := s.scratch.Create("jpg")
	if err != nil {
		return "", err
	}
	outPath := out.Name()

	if err := encodeJPEG(out, userImg, s.opts.JPEGQuality); err != nil {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("save output: %w", err)
	}
	return outPath, nil
}

func encodeJPEG(f *os.File, image img.Image, quality int) error {
	options := &jpeg.Options{
		Quality: quality,
	}

	if err := jpeg.Encode(f, image, options); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
