//go:build linux

package camera

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/blackjack/webcam"

	"github.com/cjeanneret/photobooth/internal/debug"
)

func fourcc(s string) webcam.PixelFormat {
	return webcam.PixelFormat(uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24)
}

var pixelFormats = map[string]webcam.PixelFormat{
	"yuyv":  fourcc("YUYV"),
	"mjpeg": fourcc("MJPG"),
}

// Open negotiates the format, starts streaming and launches the reader
// goroutine that keeps the latest decoded frame.
func (v *V4L2) Open(ctx context.Context) (Stream, error) {
	pf, ok := pixelFormats[v.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %q", v.Format)
	}

	cam, err := webcam.Open(v.Path)
	if err != nil {
		return nil, err
	}

	if _, ok := cam.GetSupportedFormats()[pf]; !ok {
		cam.Close()
		return nil, fmt.Errorf("%s: format %s not supported by device", v.Path, v.Format)
	}
	gotPF, w, h, err := cam.SetImageFormat(pf, uint32(v.Width), uint32(v.Height))
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("%s: set format: %w", v.Path, err)
	}
	if gotPF != pf {
		cam.Close()
		return nil, fmt.Errorf("%s: driver switched format to %08x", v.Path, uint32(gotPF))
	}
	debug.Verbose("V4L2 %s: asked %dx%d, got %dx%d (%s)", v.Path, v.Width, v.Height, w, h, v.Format)

	if err := cam.SetBufferCount(4); err != nil {
		debug.Verbose("V4L2 %s: SetBufferCount: %v", v.Path, err)
	}
	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("%s: start streaming: %w", v.Path, err)
	}

	s := &v4l2Stream{
		cam:    cam,
		format: v.Format,
		width:  int(w),
		height: int(h),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

type v4l2Stream struct {
	cam    *webcam.Webcam
	format string
	width  int
	height int

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	latest image.Image
	err    error
}

// loop continually reads frames and keeps the newest one.
func (s *v4l2Stream) loop() {
	defer close(s.done)
	var frames uint64
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		err := s.cam.WaitForFrame(1)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			s.fail(err)
			return
		}

		buf, err := s.cam.ReadFrame()
		if err != nil {
			s.fail(err)
			return
		}
		if len(buf) == 0 {
			continue
		}
		img, err := decodeFrame(s.format, buf, s.width, s.height)
		if err != nil {
			debug.Trace("V4L2: dropping frame: %v", err)
			continue
		}
		frames++
		if debug.IsEnabled(debug.LevelTrace) {
			debug.Trace("V4L2: frame %d, %d bytes", frames, len(buf))
		}

		s.mu.Lock()
		s.latest = img
		s.mu.Unlock()
	}
}

func (s *v4l2Stream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *v4l2Stream) Frame() (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.latest, nil
}

func (s *v4l2Stream) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return 0, 0
	}
	b := s.latest.Bounds()
	return b.Dx(), b.Dy()
}

func (s *v4l2Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		if stopErr := s.cam.StopStreaming(); stopErr != nil {
			err = stopErr
		}
		if closeErr := s.cam.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		s.mu.Lock()
		s.latest = nil
		s.err = ErrClosed
		s.mu.Unlock()
	})
	return err
}
