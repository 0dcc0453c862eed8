package capture

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	"screenai-backend/internal/models"
)

const jpegQuality = 90

func cropFailed(err error) error {
	return models.NewError(models.KindCropFailure, "Failed to crop screenshot.", err)
}

// Crop cuts region out of an encoded viewport frame. The region is in CSS
// pixels and is scaled by its device pixel ratio, then clamped to the frame.
// The result is JPEG.
func Crop(frame []byte, region models.SelectionRegion) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, cropFailed(err)
	}

	x, y, w, h := region.Scaled()
	bounds := src.Bounds()
	rect := image.Rect(x, y, x+w, y+h).Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return nil, cropFailed(nil)
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, cropFailed(err)
	}
	return out.Bytes(), nil
}
