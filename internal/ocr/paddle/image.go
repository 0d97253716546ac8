package paddle

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// DefaultMaxSide caps the longest image edge sent to the service
const DefaultMaxSide = 4096

// prepareImage loads an image for upload. PNG and JPEG within maxSide are sent
// as-is; BMP and TIFF are re-encoded as PNG, and anything larger than maxSide
// is scaled down first.
func prepareImage(path string, maxSide int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bmp":
		img, err = bmp.Decode(bytes.NewReader(data))
	case ".tif", ".tiff":
		img, err = tiff.Decode(bytes.NewReader(data))
	default:
		cfg, _, cfgErr := image.DecodeConfig(bytes.NewReader(data))
		if cfgErr != nil || !tooLarge(cfg.Width, cfg.Height, maxSide) {
			// Unknown encodings are left for the service to reject
			return data, nil
		}
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	img = downscale(img, maxSide)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode %s as PNG: %w", filepath.Base(path), err)
	}
	return buf.Bytes(), nil
}

func tooLarge(w, h, maxSide int) bool {
	return maxSide > 0 && (w > maxSide || h > maxSide)
}

// downscale keeps the aspect ratio and fits the longest edge into maxSide
func downscale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if !tooLarge(w, h, maxSide) {
		return img
	}

	scale := float64(maxSide) / float64(w)
	if h > w {
		scale = float64(maxSide) / float64(h)
	}
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
