package button

import (
	"context"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/hw/gpio"
)

// Button is a momentary push button wired between a GPIO pin and GND,
// read with the internal pull-up: released = HIGH, pressed = LOW.
type Button struct {
	gpio     gpio.Driver
	pin      int
	poll     time.Duration
	debounce time.Duration
}

// New configures pin as a pulled-up input.
// poll and debounce default to 10ms and 50ms when zero.
func New(g gpio.Driver, pin int, poll, debounce time.Duration) *Button {
	_ = g.SetupPin(pin, gpio.InputPullUp)
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	if debounce <= 0 {
		debounce = 50 * time.Millisecond
	}
	return &Button{gpio: g, pin: pin, poll: poll, debounce: debounce}
}

// Run polls the pin until ctx is cancelled and calls onPress once per
// press, after the LOW level has been stable for the debounce window.
func (b *Button) Run(ctx context.Context, onPress func()) error {
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	stable := gpio.High
	var changedAt time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			lvl, err := b.gpio.ReadPin(b.pin)
			if err != nil {
				return err
			}
			if lvl == stable {
				changedAt = time.Time{}
				continue
			}
			if changedAt.IsZero() {
				changedAt = now
				continue
			}
			if now.Sub(changedAt) < b.debounce {
				continue
			}
			stable = lvl
			changedAt = time.Time{}
			if stable == gpio.Low {
				debug.Live("Button on pin %d pressed", b.pin)
				onPress()
			}
		}
	}
}
