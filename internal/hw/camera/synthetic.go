package camera

import (
	"context"
	"image"
	"image/color"
	"os"
	"sync"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// Synthetic is a development camera that renders a moving test pattern.
// Used when no webcam is attached, or in tests.
type Synthetic struct {
	Width  int
	Height int
	Warmup time.Duration // delay before the first frame is reported
	Deny   bool          // simulate a refused permission
}

// NewSynthetic returns a test-pattern camera of the given size.
func NewSynthetic(width, height int) *Synthetic {
	return &Synthetic{Width: width, Height: height}
}

func (s *Synthetic) Name() string { return "synthetic" }

func (s *Synthetic) Open(ctx context.Context) (Stream, error) {
	if s.Deny {
		return nil, &os.PathError{Op: "open", Path: s.Name(), Err: os.ErrPermission}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	debug.Info("Using SYNTHETIC camera (%dx%d)", s.Width, s.Height)
	return &syntheticStream{
		width:   s.Width,
		height:  s.Height,
		readyAt: time.Now().Add(s.Warmup),
	}, nil
}

type syntheticStream struct {
	width, height int
	readyAt       time.Time

	mu     sync.Mutex
	frame  int
	closed bool
}

func (s *syntheticStream) ready() bool {
	return !time.Now().Before(s.readyAt)
}

func (s *syntheticStream) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.ready() {
		return 0, 0
	}
	return s.width, s.height
}

// Frame renders a gradient with a bar that moves one column per frame, so
// the mirror is visible in the output.
func (s *syntheticStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if !s.ready() {
		return nil, nil
	}
	s.frame++

	img := image.NewNRGBA(image.Rect(0, 0, s.width, s.height))
	bar := s.frame % s.width
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			c := color.NRGBA{
				R: uint8(x * 255 / s.width),
				G: uint8(y * 255 / s.height),
				B: 0x80,
				A: 0xff,
			}
			if x >= bar && x < bar+s.width/16+1 {
				c = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img, nil
}

func (s *syntheticStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
