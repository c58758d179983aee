package files

import "image"

// Assets decorate prepared images. Both fields are optional.
type Assets struct {
	Overlay  image.Image
	FontPath string
}
