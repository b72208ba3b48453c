package flash

import (
	"testing"
	"time"

	"github.com/cjeanneret/photobooth/internal/hw/gpio"
)

func TestLED_StartsOff(t *testing.T) {
	drv := gpio.NewMockDriver()
	NewLED(drv, 27)
	if drv.Level(27) != gpio.Low {
		t.Error("flash pin should be initialized LOW")
	}
}

func TestLED_FlashIsNonBlockingAndTurnsOff(t *testing.T) {
	drv := gpio.NewMockDriver()
	led := NewLED(drv, 27)

	start := time.Now()
	led.Flash(30 * time.Millisecond)
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("Flash blocked for %v", elapsed)
	}
	if drv.Level(27) != gpio.High {
		t.Error("flash pin should be HIGH right after Flash")
	}

	deadline := time.Now().Add(time.Second)
	for drv.Level(27) != gpio.Low {
		if time.Now().After(deadline) {
			t.Fatal("flash pin never returned LOW")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLED_CloseSwitchesOff(t *testing.T) {
	drv := gpio.NewMockDriver()
	led := NewLED(drv, 27)
	led.Flash(time.Hour)

	if err := led.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if drv.Level(27) != gpio.Low {
		t.Error("flash pin should be LOW after Close")
	}
}

func TestLED_StaleExpiryKeepsRetriggeredPulse(t *testing.T) {
	drv := gpio.NewMockDriver()
	led := NewLED(drv, 27)
	defer led.Close()

	led.Flash(time.Hour)
	led.mu.Lock()
	first := led.gen
	led.mu.Unlock()

	// Re-trigger, then deliver the first pulse's expiry late, as if its
	// timer had fired just before the second Flash took the lock.
	led.Flash(time.Hour)
	led.off(first)

	if drv.Level(27) != gpio.High {
		t.Error("an expired earlier pulse must not switch off a re-triggered flash")
	}
}

func TestLED_RetriggerExtendsPulse(t *testing.T) {
	drv := gpio.NewMockDriver()
	led := NewLED(drv, 27)
	defer led.Close()

	led.Flash(40 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	led.Flash(200 * time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	if drv.Level(27) != gpio.High {
		t.Error("flash should still be lit after the first pulse would have ended")
	}
}
