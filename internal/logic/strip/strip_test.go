package strip

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/logic/slots"
)

var (
	purple = color.NRGBA{R: 0x2b, G: 0x1d, B: 0x3a, A: 0xff}
	red    = color.NRGBA{R: 0xff, A: 0xff}
)

func solid(w, h int, c color.NRGBA) *capture.Still {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return &capture.Still{Image: img}
}

func testLayout() Layout {
	return Layout{SlotWidth: 40, SlotHeight: 30, Margin: 5}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

type panickingWriter struct{}

func (panickingWriter) Write([]byte) (int, error) { panic("boom") }

func TestLayout_Size(t *testing.T) {
	l := testLayout()
	w, h := l.Size(3)
	assert.Equal(t, 50, w)
	assert.Equal(t, 5+3*35, h)

	l.Caption = "hi"
	_, hc := l.Size(3)
	assert.Greater(t, hc, h)
}

func TestRender_DrawsBackgroundAndSlots(t *testing.T) {
	store := slots.NewStore(2)
	require.NoError(t, store.Set(0, solid(80, 60, red)))
	s := NewSurface(store, testLayout(), purple)

	img := s.Render()
	assert.Equal(t, image.Rect(0, 0, 50, 75), img.Bounds())

	// margin pixel shows the background
	assert.Equal(t, purple, img.NRGBAAt(0, 0))
	// centre of slot 0 shows the photo
	r0 := testLayout().SlotRect(0)
	c := img.NRGBAAt((r0.Min.X+r0.Max.X)/2, (r0.Min.Y+r0.Max.Y)/2)
	assert.Equal(t, red, c)
	// empty slot 1 is lighter than the bare background
	r1 := testLayout().SlotRect(1)
	e := img.NRGBAAt((r1.Min.X+r1.Max.X)/2, (r1.Min.Y+r1.Max.Y)/2)
	assert.NotEqual(t, purple, e)
}

func TestCoverRect(t *testing.T) {
	// wide source into a 4:3 frame: crop the sides
	r := coverRect(image.Rect(0, 0, 160, 60), 40, 30)
	assert.Equal(t, image.Rect(40, 0, 120, 60), r)

	// tall source: crop top and bottom
	r = coverRect(image.Rect(0, 0, 40, 90), 40, 30)
	assert.Equal(t, image.Rect(0, 30, 40, 60), r)

	// same aspect: untouched
	r = coverRect(image.Rect(0, 0, 80, 60), 40, 30)
	assert.Equal(t, image.Rect(0, 0, 80, 60), r)
}

func TestExport_SuppressesBackgroundAndRestores(t *testing.T) {
	store := slots.NewStore(1)
	require.NoError(t, store.Set(0, solid(40, 30, red)))
	s := NewSurface(store, testLayout(), purple)

	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf))

	out, err := png.Decode(&buf)
	require.NoError(t, err)
	_, _, _, a := out.At(0, 0).RGBA()
	assert.Zero(t, a, "background must be transparent in the export")

	assert.Equal(t, purple, s.Background())
}

func TestExport_FailureRestoresBackground(t *testing.T) {
	s := NewSurface(slots.NewStore(2), testLayout(), purple)

	err := s.Export(failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, purple, s.Background())
}

func TestExport_PanicRestoresBackground(t *testing.T) {
	s := NewSurface(slots.NewStore(1), testLayout(), purple)

	func() {
		defer func() { _ = recover() }()
		_ = s.Export(panickingWriter{})
	}()
	assert.Equal(t, purple, s.Background())
}

func TestRender_CaptionDrawn(t *testing.T) {
	l := testLayout()
	l.SlotWidth = 100
	l.Caption = "booth"
	s := NewSurface(slots.NewStore(1), l, purple)

	img := s.Render()
	_, top := l.Size(1)
	var lit bool
	for y := top - 20; y < top; y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			if img.NRGBAAt(x, y) == captionColor {
				lit = true
			}
		}
	}
	assert.True(t, lit, "caption pixels expected near the bottom")
}
