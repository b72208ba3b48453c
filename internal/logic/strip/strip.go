// Package strip composes the filled slots into the exported photostrip.
package strip

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/logic/slots"
)

// Filename is the name offered for the downloaded strip.
const Filename = "photostrip.png"

var (
	placeholder  = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x40}
	captionColor = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Layout describes the strip geometry in pixels.
type Layout struct {
	SlotWidth  int
	SlotHeight int
	Margin     int
	Caption    string
}

// Size returns the full strip dimensions for n slots.
func (l Layout) Size(n int) (int, int) {
	w := l.SlotWidth + 2*l.Margin
	h := l.Margin + n*(l.SlotHeight+l.Margin)
	if l.Caption != "" {
		h += basicfont.Face7x13.Metrics().Height.Ceil() + l.Margin
	}
	return w, h
}

// SlotRect returns where slot i is drawn.
func (l Layout) SlotRect(i int) image.Rectangle {
	y := l.Margin + i*(l.SlotHeight+l.Margin)
	return image.Rect(l.Margin, y, l.Margin+l.SlotWidth, y+l.SlotHeight)
}

// Surface is the composite surface: a background layer, the slot frames
// and the caption.
type Surface struct {
	store  *slots.Store
	layout Layout

	exportMu sync.Mutex // one export at a time, so restores never interleave

	mu         sync.RWMutex
	background color.Color
}

// NewSurface creates a surface over store.
func NewSurface(store *slots.Store, layout Layout, background color.Color) *Surface {
	return &Surface{store: store, layout: layout, background: background}
}

// Background returns the current background layer.
func (s *Surface) Background() color.Color {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.background
}

// SetBackground replaces the background layer.
func (s *Surface) SetBackground(c color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.background = c
}

// Render draws the strip as it currently looks.
func (s *Surface) Render() *image.NRGBA {
	stills := s.store.Snapshot()
	w, h := s.layout.Size(len(stills))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	draw.Draw(dst, dst.Bounds(), image.NewUniform(s.Background()), image.Point{}, draw.Src)

	for i, st := range stills {
		r := s.layout.SlotRect(i)
		if st == nil {
			draw.Draw(dst, r, image.NewUniform(placeholder), image.Point{}, draw.Over)
			continue
		}
		src := coverRect(st.Image.Bounds(), r.Dx(), r.Dy())
		draw.ApproxBiLinear.Scale(dst, r, st.Image, src, draw.Src, nil)
	}

	if s.layout.Caption != "" {
		s.drawCaption(dst, len(stills))
	}
	return dst
}

func (s *Surface) drawCaption(dst *image.NRGBA, n int) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(captionColor), Face: face}
	textW := d.MeasureString(s.layout.Caption).Ceil()
	top := s.layout.Margin + n*(s.layout.SlotHeight+s.layout.Margin)
	x := (dst.Bounds().Dx() - textW) / 2
	d.Dot = fixed.P(x, top+face.Metrics().Ascent.Ceil())
	d.DrawString(s.layout.Caption)
}

// coverRect returns the centred part of src with the aspect ratio of a
// w x h frame, so scaling it fills the frame without distortion.
func coverRect(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw*h > sh*w {
		cw := sh * w / h
		x0 := src.Min.X + (sw-cw)/2
		return image.Rect(x0, src.Min.Y, x0+cw, src.Max.Y)
	}
	ch := sw * h / w
	y0 := src.Min.Y + (sh-ch)/2
	return image.Rect(src.Min.X, y0, src.Max.X, y0+ch)
}

// Export renders the strip with the background suppressed and writes it
// as PNG. The background is restored on every exit path, panics included.
// Errors from encoding or the writer are returned to the caller.
func (s *Surface) Export(w io.Writer) error {
	s.exportMu.Lock()
	defer s.exportMu.Unlock()

	saved := s.Background()
	s.SetBackground(color.Transparent)
	defer s.SetBackground(saved)

	img := s.Render()
	debug.Info("Exporting %s (%dx%d, %d/%d slots)", Filename, img.Bounds().Dx(), img.Bounds().Dy(), s.store.Filled(), s.store.Len())
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("export %s: %w", Filename, err)
	}
	return nil
}
