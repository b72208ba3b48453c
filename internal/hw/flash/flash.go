package flash

import (
	"sync"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/hw/gpio"
)

// LED is a flash lamp driven by one GPIO output (HIGH = lit).
//
// Flash sequence:
// 1. pin to HIGH
// 2. return immediately
// 3. pin back to LOW once the pulse duration has elapsed
//
// A second Flash while lit extends the pulse instead of stacking timers.
type LED struct {
	gpio gpio.Driver
	pin  int

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64 // bumped by every Flash; off ignores older pulses
}

// NewLED configures pin as an output and switches the lamp off.
func NewLED(g gpio.Driver, pin int) *LED {
	_ = g.SetupPin(pin, gpio.Output)
	_ = g.WritePin(pin, gpio.Low)
	return &LED{gpio: g, pin: pin}
}

// Flash lights the lamp for d without blocking the caller.
func (l *LED) Flash(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	debug.Verbose("Flash: pin %d HIGH for %v", l.pin, d)
	if err := l.gpio.WritePin(l.pin, gpio.High); err != nil {
		debug.Error(err)
		return
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	l.gen++
	gen := l.gen
	l.timer = time.AfterFunc(d, func() { l.off(gen) })
}

// off ends pulse gen. A timer that fired just before a re-trigger
// carries a stale gen and leaves the lamp lit.
func (l *LED) off(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return
	}
	if err := l.gpio.WritePin(l.pin, gpio.Low); err != nil {
		debug.Error(err)
	}
	l.timer = nil
}

// Close switches the lamp off and cancels a pending pulse.
func (l *LED) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.gen++
	return l.gpio.WritePin(l.pin, gpio.Low)
}
