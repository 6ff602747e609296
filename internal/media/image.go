package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
)

const (
	MaxUploadSize = 5 << 20 // 5MB
	MaxWidth      = 800
	MaxHeight     = 600
	jpegQuality   = 85
)

var (
	ErrImageTooLarge    = errors.New("image exceeds the 5MB limit")
	ErrUnsupportedImage = errors.New("only jpg, jpeg and png images are allowed")
)

// Processed 重新编码后待上传的图片
type Processed struct {
	Data   []byte
	Width  int
	Height int
}

// fitWithin scales w×h down to fit maxW×maxH keeping the aspect ratio.
// Images already inside the box are left alone.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	newW, newH := maxW, h*maxW/w
	if newH > maxH {
		newW, newH = w*maxH/h, maxH
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return newW, newH
}

// ProcessImage decodes a jpeg or png, shrinks it to fit within 800×600 and
// encodes it as JPEG.
func ProcessImage(src io.Reader) (*Processed, error) {
	img, format, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if format != "jpeg" && format != "png" {
		return nil, ErrUnsupportedImage
	}

	bounds := img.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), MaxWidth, MaxHeight)
	if w != bounds.Dx() || h != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return &Processed{Data: buf.Bytes(), Width: w, Height: h}, nil
}
