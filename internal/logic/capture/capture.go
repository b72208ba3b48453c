// Package capture turns the current frame of a live source into a
// mirrored, PNG-encoded still.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// ErrSourceNotReady means capture was sequenced before the stream had
// frames. It is a programming error in the caller, not a user condition.
var ErrSourceNotReady = errors.New("capture: source not ready")

// Source is what the capturer reads from. camera.Stream satisfies it.
type Source interface {
	Frame() (image.Image, error)
	Size() (width, height int)
}

// Still is one captured photo.
type Still struct {
	Image *image.NRGBA
	PNG   []byte
	Taken time.Time
}

// Width returns the still's width in pixels.
func (s *Still) Width() int { return s.Image.Bounds().Dx() }

// Height returns the still's height in pixels.
func (s *Still) Height() int { return s.Image.Bounds().Dy() }

// Capture reads the current frame at native resolution and mirrors it
// horizontally ("selfie" orientation): output (x, y) = source (w-1-x, y).
func Capture(src Source) (*Still, error) {
	w, h := src.Size()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrSourceNotReady, w, h)
	}
	frame, err := src.Frame()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceNotReady, err)
	}
	if frame == nil {
		return nil, fmt.Errorf("%w: no frame", ErrSourceNotReady)
	}

	img := Mirror(frame)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode still: %w", err)
	}
	return &Still{Image: img, PNG: buf.Bytes(), Taken: time.Now()}, nil
}

// Mirror flips src horizontally into a new image anchored at (0, 0).
func Mirror(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	// translate(width, 0) then scale(-1, 1), expressed in source coordinates
	s2d := f64.Aff3{
		-1, 0, float64(b.Max.X),
		0, 1, float64(-b.Min.Y),
	}
	draw.NearestNeighbor.Transform(dst, s2d, src, b, draw.Src, nil)
	return dst
}
