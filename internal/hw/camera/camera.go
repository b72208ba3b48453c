package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// UserNotice is the text shown to the person in front of the booth when
// the camera cannot be opened.
const UserNotice = "Cannot access camera. Please allow camera permissions."

// ErrPermission matches every acquisition failure (denied, missing
// device, no frames in time).
var ErrPermission = errors.New("camera access denied")

// ErrClosed is returned by a Stream that has been released.
var ErrClosed = errors.New("camera stream closed")

// PermissionError wraps the underlying device failure.
type PermissionError struct {
	Device string
	Err    error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("camera %s: %v", e.Device, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// Is reports ErrPermission so callers can test with errors.Is.
func (e *PermissionError) Is(target error) bool { return target == ErrPermission }

// Stream is a live video input. Size reports the native resolution and
// stays 0x0 until the first frame has arrived.
type Stream interface {
	Frame() (image.Image, error)
	Size() (width, height int)
	Close() error
}

// Device is the high-level interface used by the rest of the application.
// It represents an abstract video source, regardless of how it's reached
// (V4L2, test pattern, etc.).
type Device interface {
	Name() string
	Open(ctx context.Context) (Stream, error)
}

// Manager owns the single camera stream. Acquire and Release are its only
// mutators.
type Manager struct {
	dev          Device
	readyTimeout time.Duration
	poll         time.Duration

	mu     sync.Mutex
	stream Stream
}

// NewManager creates a lifecycle manager for dev. readyTimeout bounds the
// wait for the first frame after opening (0 means 3s).
func NewManager(dev Device, readyTimeout time.Duration) *Manager {
	if readyTimeout <= 0 {
		readyTimeout = 3 * time.Second
	}
	return &Manager{
		dev:          dev,
		readyTimeout: readyTimeout,
		poll:         10 * time.Millisecond,
	}
}

// Acquire returns the active stream, opening the device if needed.
// The returned stream already reports non-zero dimensions.
func (m *Manager) Acquire(ctx context.Context) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return m.stream, nil
	}

	debug.Camera("acquire", m.dev.Name())
	s, err := m.dev.Open(ctx)
	if err != nil {
		return nil, &PermissionError{Device: m.dev.Name(), Err: err}
	}
	if err := m.waitReady(ctx, s); err != nil {
		_ = s.Close()
		return nil, &PermissionError{Device: m.dev.Name(), Err: err}
	}

	w, h := s.Size()
	debug.Verbose("Camera ready at %dx%d", w, h)
	m.stream = s
	return s, nil
}

func (m *Manager) waitReady(ctx context.Context, s Stream) error {
	ctx, cancel := context.WithTimeout(ctx, m.readyTimeout)
	defer cancel()

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()
	for {
		if w, h := s.Size(); w > 0 && h > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no frame within %v: %w", m.readyTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Release stops all tracks and clears the handle. It is a no-op when no
// stream is active.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}
	err := m.stream.Close()
	m.stream = nil
	debug.Camera("release", m.dev.Name())
	if err != nil {
		return fmt.Errorf("close camera %s: %w", m.dev.Name(), err)
	}
	return nil
}

// Active reports whether a stream is currently held.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream != nil
}

// Current returns the active stream or nil.
func (m *Manager) Current() Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream
}
