package imageprep

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"vinobench/internal/groundtruth"
)

// jpegQuality matches the quality the backends expect from mobile uploads.
const jpegQuality = 90

// CropJPEG applies a normalized crop rectangle to an encoded image and
// returns the cropped region re-encoded as JPEG. Coordinates outside
// [0, 1] are clamped; a degenerate rectangle is an error rather than a
// zero-pixel upload.
func CropJPEG(data []byte, crop groundtruth.Crop) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	rect, err := pixelRect(src.Bounds(), crop)
	if err != nil {
		return nil, err
	}
	cropped := imaging.Crop(src, rect)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}

func pixelRect(bounds image.Rectangle, crop groundtruth.Crop) (image.Rectangle, error) {
	width := float64(bounds.Dx())
	height := float64(bounds.Dy())

	x0 := clamp01(crop.X)
	y0 := clamp01(crop.Y)
	x1 := clamp01(crop.X + crop.Width)
	y1 := clamp01(crop.Y + crop.Height)

	rect := image.Rect(
		bounds.Min.X+int(math.Round(x0*width)),
		bounds.Min.Y+int(math.Round(y0*height)),
		bounds.Min.X+int(math.Round(x1*width)),
		bounds.Min.Y+int(math.Round(y1*height)),
	)
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return image.Rectangle{}, fmt.Errorf("crop rectangle %+v yields empty region", crop)
	}
	return rect, nil
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
