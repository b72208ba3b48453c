// Package session runs the photobooth capture sequence: countdown,
// capture and flash for every slot, in order, with one camera stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/logic/slots"
)

// State of the session.
type State string

const (
	Idle    State = "idle"
	Running State = "running"
)

const (
	eventStart  = "start"
	eventFinish = "finish"
)

// Action labels.
const (
	LabelIdle  = "idle" // camera icon
	LabelSmile = "Smile!"
)

// ErrRunning rejects a start trigger while a pass is in progress.
var ErrRunning = errors.New("session already running")

// Camera is the lifecycle the session needs. *camera.Manager satisfies it.
type Camera interface {
	Acquire(ctx context.Context) (camera.Stream, error)
	Release() error
}

// Clock schedules countdown ticks.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Flasher fires a flash for d without blocking.
type Flasher interface {
	Flash(d time.Duration)
}

// Options tunes the sequence. Zero values fall back to 3 ticks of 1s and
// a 150ms flash.
type Options struct {
	CountdownFrom int
	Tick          time.Duration
	Flash         time.Duration
	Clock         Clock
	Flashers      []Flasher
}

// Session is the single source of truth for "is a session running".
type Session struct {
	camera Camera
	store  *slots.Store
	opts   Options

	// trigger serializes Start and Retake.
	trigger sync.Mutex

	machine *fsm.FSM

	mu     sync.Mutex
	id     string
	label  string
	cancel context.CancelFunc
	done   chan struct{}
	err    error

	obsMu     sync.RWMutex
	observers []func(Event)
}

// New creates an idle session over cam and store.
func New(cam Camera, store *slots.Store, opts Options) *Session {
	if opts.CountdownFrom <= 0 {
		opts.CountdownFrom = 3
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Flash <= 0 {
		opts.Flash = 150 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}

	s := &Session{
		camera: cam,
		store:  store,
		opts:   opts,
		label:  LabelIdle,
	}
	s.machine = fsm.NewFSM(
		string(Idle),
		fsm.Events{
			{Name: eventStart, Src: []string{string(Idle)}, Dst: string(Running)},
			{Name: eventFinish, Src: []string{string(Running)}, Dst: string(Idle)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				debug.Info("Session state: %s -> %s", e.Src, e.Dst)
				s.emit(Event{Kind: EventState, State: State(e.Dst), SessionID: s.sessionID()})
			},
		},
	)
	return s
}

// Subscribe registers fn for every event. fn must not block.
func (s *Session) Subscribe(fn func(Event)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Session) emit(e Event) {
	s.obsMu.RLock()
	obs := s.observers
	s.obsMu.RUnlock()
	for _, fn := range obs {
		fn(e)
	}
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.machine.Current())
}

func (s *Session) sessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Snapshot returns the UI projection.
func (s *Session) Snapshot() Snapshot {
	st := s.State()
	s.mu.Lock()
	label, id := s.label, s.id
	s.mu.Unlock()
	return Snapshot{
		State:     st,
		Label:     label,
		Busy:      st == Running,
		SessionID: id,
		Slots:     s.store.FilledFlags(),
		AllFilled: s.store.AllFilled(),
	}
}

// Start acquires the camera and launches a pass. On acquisition failure
// the session stays Idle, slots are untouched, a notice event is emitted
// and the *camera.PermissionError is returned. Slots left over from a
// previous pass are cleared once the camera is available.
func (s *Session) Start(ctx context.Context) (string, error) {
	s.trigger.Lock()
	defer s.trigger.Unlock()

	if s.State() == Running {
		return "", ErrRunning
	}

	stream, err := s.camera.Acquire(ctx)
	if err != nil {
		debug.Error(fmt.Errorf("start session: %w", err))
		s.emit(Event{Kind: EventNotice, Message: camera.UserNotice})
		return "", err
	}

	if n := s.store.Filled(); n > 0 {
		debug.Info("Clearing %d filled slot(s) before new session", n)
		s.store.Clear()
		s.emit(Event{Kind: EventCleared})
	}

	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.id = id
	s.cancel = cancel
	s.done = done
	s.err = nil
	s.mu.Unlock()

	if err := s.machine.Event(context.Background(), eventStart); err != nil {
		cancel()
		_ = s.camera.Release()
		close(done)
		return "", fmt.Errorf("start session: %w", err)
	}

	debug.Summary("Session " + id)
	go s.run(runCtx, cancel, stream, id, done)
	return id, nil
}

// run is the capture loop. The camera is released on every exit path and
// the state returns to Idle only after that.
func (s *Session) run(ctx context.Context, cancel context.CancelFunc, stream camera.Stream, id string, done chan struct{}) {
	defer close(done)
	defer cancel()

	err := s.shoot(ctx, stream, id)

	if relErr := s.camera.Release(); relErr != nil {
		debug.Error(relErr)
	}
	s.setLabel(id, -1, LabelIdle)

	switch {
	case err == nil:
		debug.Info("Session %s complete: %d slot(s) filled", id, s.store.Filled())
	case errors.Is(err, context.Canceled):
		debug.Info("Session %s cancelled", id)
	default:
		debug.Error(fmt.Errorf("session %s: %w", id, err))
		s.emit(Event{Kind: EventError, SessionID: id, Message: err.Error()})
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	if ferr := s.machine.Event(context.Background(), eventFinish); ferr != nil {
		debug.Error(fmt.Errorf("finish session: %w", ferr))
	}
}

func (s *Session) shoot(ctx context.Context, stream camera.Stream, id string) error {
	total := s.store.Len()
	for i := 0; i < total; i++ {
		for n := s.opts.CountdownFrom; n > 0; n-- {
			s.setLabel(id, i, strconv.Itoa(n))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.opts.Clock.After(s.opts.Tick):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.setLabel(id, i, LabelSmile)

		still, err := capture.Capture(stream)
		if err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
		if err := s.store.Set(i, still); err != nil {
			return err
		}
		debug.Shot(i+1, still.Width(), still.Height())
		s.emit(Event{Kind: EventSlot, SessionID: id, Slot: i})

		s.flash(id, i)
		s.setLabel(id, i, LabelIdle)
	}
	return nil
}

func (s *Session) flash(id string, slot int) {
	for _, f := range s.opts.Flashers {
		f.Flash(s.opts.Flash)
	}
	s.emit(Event{Kind: EventFlash, SessionID: id, Slot: slot, DurationMs: s.opts.Flash.Milliseconds()})
}

func (s *Session) setLabel(id string, slot int, label string) {
	s.mu.Lock()
	s.label = label
	s.mu.Unlock()
	if label != LabelIdle {
		debug.Countdown(slot+1, s.store.Len(), label)
	}
	s.emit(Event{Kind: EventCountdown, SessionID: id, Slot: slot, Label: label})
}

// Retake cancels a pass in progress and waits for its loop to exit, then
// empties every slot and releases the camera. After Retake returns the
// session is Idle and no capture of the cancelled pass can land.
func (s *Session) Retake(ctx context.Context) error {
	s.trigger.Lock()
	defer s.trigger.Unlock()

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.store.Clear()
	err := s.camera.Release()
	s.setLabel(s.sessionID(), -1, LabelIdle)
	s.emit(Event{Kind: EventCleared})
	debug.Info("Retake: slots cleared")
	if err != nil {
		return fmt.Errorf("retake: %w", err)
	}
	return nil
}

// Wait blocks until the current pass ends and returns its error.
// It returns nil immediately if no pass was ever started.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
