// Package imaging validates uploaded photos and normalises them before they reach the model.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

/**** MARK: formats ****/
const (
	MIME_JPEG = "image/jpeg"
	MIME_PNG  = "image/png"
	MIME_WEBP = "image/webp"

	jpegQuality = 90
)

var (
	ErrEmpty       = errors.New("image is empty")
	ErrTooLarge    = errors.New("image exceeds the upload size limit")
	ErrUnsupported = errors.New("unsupported image format (jpeg, png or webp expected)")
)

// Limits bounds an upload. Zero fields are not enforced.
type Limits struct {
	MaxBytes     int64
	MaxDimension int
	// MaxPixels caps width*height as declared by the image header, checked before decoding.
	MaxPixels int
}

type Normalized struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// Normalize checks the upload, decodes it and returns a re-encoded copy whose longest side is
// at most limits.MaxDimension. PNG stays PNG to keep transparency; everything else becomes JPEG.
func Normalize(data []byte, limits Limits) (Normalized, error) {
	if len(data) == 0 {
		return Normalized{}, ErrEmpty
	}
	if limits.MaxBytes > 0 && int64(len(data)) > limits.MaxBytes {
		return Normalized{}, ErrTooLarge
	}

	sniffed := http.DetectContentType(data)
	if !IsSupported(sniffed) {
		return Normalized{}, ErrUnsupported
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Normalized{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if limits.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(limits.MaxPixels) {
		return Normalized{}, fmt.Errorf("%w: %dx%d pixels", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Normalized{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	bounds := img.Bounds()
	slog.Debug("imaging: decoded upload",
		"format", format,
		"width", bounds.Dx(),
		"height", bounds.Dy(),
		"input_size_bytes", len(data))

	img = Downscale(img, limits.MaxDimension)

	var buf bytes.Buffer
	out := Normalized{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	if format == "png" {
		if err := png.Encode(&buf, img); err != nil {
			return Normalized{}, fmt.Errorf("failed to encode png: %w", err)
		}
		out.MimeType = MIME_PNG
	} else {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return Normalized{}, fmt.Errorf("failed to encode jpeg: %w", err)
		}
		out.MimeType = MIME_JPEG
	}
	out.Data = buf.Bytes()
	return out, nil
}

// Downscale returns img unchanged when it already fits, otherwise a CatmullRom-resampled copy
// whose longest side equals maxDimension.
func Downscale(img image.Image, maxDimension int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDimension <= 0 || (w <= maxDimension && h <= maxDimension) {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = maxDimension
		nh = max(1, h*maxDimension/w)
	} else {
		nh = maxDimension
		nw = max(1, w*maxDimension/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func IsSupported(mime string) bool {
	switch mime {
	case MIME_JPEG, MIME_PNG, MIME_WEBP:
		return true
	}
	return false
}

// Extension returns the file extension used for object keys and downloads.
func Extension(mime string) string {
	switch mime {
	case MIME_PNG:
		return "png"
	case MIME_WEBP:
		return "webp"
	case MIME_JPEG:
		return "jpg"
	default:
		return "bin"
	}
}
