package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/hw/button"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/hw/flash"
	"github.com/cjeanneret/photobooth/internal/hw/gpio"
	"github.com/cjeanneret/photobooth/internal/logic/session"
	"github.com/cjeanneret/photobooth/internal/logic/slots"
	"github.com/cjeanneret/photobooth/internal/logic/strip"
	"github.com/cjeanneret/photobooth/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	outDir := flag.String("out", ".", "directory the strip is written to in one-shot mode")
	slotsFlag := flag.Int("slots", 0, "override the number of slots (1-12)")
	countdownFlag := flag.Int("countdown", 0, "override the countdown start value (1-10)")
	tickFlag := flag.Int("tick_ms", 0, "override the countdown tick in ms (100-5000)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	ov := overrides{Slots: *slotsFlag, CountdownFrom: *countdownFlag, TickMs: *tickFlag}
	if err := validateCLIOverrides(ov); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, ov)

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	debug.Value("Mock GPIO", cfg.GPIO.Mock)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.GPIO.Mock)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	b, err := newBooth(cfg, gpioDriver)
	if err != nil {
		log.Fatalf("init booth failed: %v", err)
	}
	defer b.Close()

	if cfg.GPIO.ButtonPin > 0 {
		debug.Step(5, "Watching shutter button")
		btn := button.New(gpioDriver, cfg.GPIO.ButtonPin, 0, 0)
		go func() {
			err := btn.Run(ctx, func() { b.trigger(ctx) })
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("shutter button stopped: %v", err)
			}
		}()
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.LogWriter(broadcaster)))
		b.session.Subscribe(broadcaster.BroadcastEvent)

		deps := web.Deps{
			Booth:   b.session,
			Slots:   b.store,
			Strip:   b.surface,
			Preview: b.camera,
		}
		boothCfg := web.BoothConfig{
			Slots:         cfg.Session.Slots,
			CountdownFrom: cfg.Session.CountdownFrom,
			TickMs:        cfg.Session.TickMs,
			FlashMs:       cfg.Session.FlashMs,
			Filename:      strip.Filename,
		}
		srv := web.NewServer(webAddr, broadcaster, deps, boothCfg)
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	path, err := b.runOnce(ctx, *outDir)
	if err != nil {
		log.Fatalf("session failed: %v", err)
	}
	fmt.Println(path)
}

// booth wires the session to its camera, slots, strip and flash LED.
type booth struct {
	camera  *camera.Manager
	store   *slots.Store
	surface *strip.Surface
	session *session.Session
	leds    []*flash.LED
}

func newBooth(cfg *config.Config, g gpio.Driver) (*booth, error) {
	debug.Step(2, "Initializing camera")
	dev, err := newCameraFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	debug.Value("Camera type", cfg.Camera.Type)
	debug.Value("Camera device", cfg.Camera.Device)
	mgr := camera.NewManager(dev, cfg.ReadyTimeout())

	debug.Step(3, "Preparing slots and strip")
	store := slots.NewStore(cfg.Session.Slots)
	surface := strip.NewSurface(store, strip.Layout{
		SlotWidth:  cfg.Strip.SlotWidth,
		SlotHeight: cfg.Strip.SlotHeight,
		Margin:     cfg.Strip.Margin,
		Caption:    cfg.Strip.Caption,
	}, cfg.BackgroundColor())
	debug.PrintStruct("Strip config", cfg.Strip)

	debug.Step(4, "Creating session")
	b := &booth{camera: mgr, store: store, surface: surface}
	var flashers []session.Flasher
	if cfg.GPIO.FlashPin > 0 {
		led := flash.NewLED(g, cfg.GPIO.FlashPin)
		b.leds = append(b.leds, led)
		flashers = append(flashers, led)
	}
	b.session = session.New(mgr, store, session.Options{
		CountdownFrom: cfg.Session.CountdownFrom,
		Tick:          cfg.Tick(),
		Flash:         cfg.Flash(),
		Flashers:      flashers,
	})
	debug.PrintStruct("Session config", cfg.Session)
	return b, nil
}

// trigger starts a pass from the shutter button. A press during a pass is ignored.
func (b *booth) trigger(ctx context.Context) {
	_, err := b.session.Start(ctx)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrRunning):
		debug.Verbose("Button pressed while running, ignored")
	default:
		log.Printf("start from button failed: %v", err)
	}
}

// runOnce runs a single pass and writes the strip into dir.
func (b *booth) runOnce(ctx context.Context, dir string) (string, error) {
	debug.Section("Starting session")
	if _, err := b.session.Start(ctx); err != nil {
		return "", err
	}
	if err := b.session.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			// Interrupted: stop the pass and release the camera.
			_ = b.session.Retake(context.Background())
		}
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, strip.Filename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create strip file: %w", err)
	}
	if err := b.surface.Export(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close strip file: %w", err)
	}
	debug.Section("Session complete")
	debug.Info("Strip written to %s", path)
	return path, nil
}

func (b *booth) Close() {
	if err := b.camera.Release(); err != nil {
		log.Printf("releasing camera failed: %v", err)
	}
	for _, led := range b.leds {
		if err := led.Close(); err != nil {
			log.Printf("closing flash LED failed: %v", err)
		}
	}
}

// overrides holds CLI values that replace config settings. Zero means "use config".
type overrides struct {
	Slots         int
	CountdownFrom int
	TickMs        int
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
func validateCLIOverrides(o overrides) error {
	if o.Slots != 0 && (o.Slots < 1 || o.Slots > 12) {
		return fmt.Errorf("slots must be between 1 and 12, got %d", o.Slots)
	}
	if o.CountdownFrom != 0 && (o.CountdownFrom < 1 || o.CountdownFrom > 10) {
		return fmt.Errorf("countdown must be between 1 and 10, got %d", o.CountdownFrom)
	}
	if o.TickMs != 0 && (o.TickMs < 100 || o.TickMs > 5000) {
		return fmt.Errorf("tick_ms must be between 100 and 5000, got %d", o.TickMs)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.Slots > 0 {
		cfg.Session.Slots = o.Slots
	}
	if o.CountdownFrom > 0 {
		cfg.Session.CountdownFrom = o.CountdownFrom
	}
	if o.TickMs > 0 {
		cfg.Session.TickMs = o.TickMs
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newCameraFromConfig selects a camera implementation based on configuration.
func newCameraFromConfig(cfg *config.Config) (camera.Device, error) {
	switch cfg.Camera.Type {
	case "v4l2":
		return &camera.V4L2{
			Path:   cfg.Camera.Device,
			Width:  cfg.Camera.Width,
			Height: cfg.Camera.Height,
			Format: cfg.Camera.Format,
		}, nil
	case "synthetic":
		return camera.NewSynthetic(cfg.Camera.Width, cfg.Camera.Height), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}
