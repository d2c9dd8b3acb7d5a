package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultJPEGQuality matches a 0.8 quality setting.
const DefaultJPEGQuality = 80

// Rasterize draws frame onto a width x height canvas and encodes it as JPEG.
// A zero size falls back to the frame's own bounds. It fails when there is
// nothing to draw or the encoder produced no bytes.
func Rasterize(frame image.Image, width, height, quality int) ([]byte, error) {
	if frame == nil {
		return nil, fmt.Errorf("no frame")
	}
	src := frame.Bounds()
	if width <= 0 || height <= 0 {
		width, height = src.Dx(), src.Dy()
	}
	if width <= 0 || height <= 0 || src.Empty() {
		return nil, fmt.Errorf("empty frame %dx%d", src.Dx(), src.Dy())
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	if src.Dx() == width && src.Dy() == height {
		draw.Draw(canvas, canvas.Bounds(), frame, src.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), frame, src, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("encoder produced no data")
	}
	return buf.Bytes(), nil
}
