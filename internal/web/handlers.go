package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/jpeg"
	"io"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/hw/camera"
	"github.com/cjeanneret/photobooth/internal/logic/capture"
	"github.com/cjeanneret/photobooth/internal/logic/session"
	"github.com/cjeanneret/photobooth/internal/logic/slots"
	"github.com/cjeanneret/photobooth/internal/logic/strip"
)

// PreviewInterval is the delay between two preview frames.
const PreviewInterval = 100 * time.Millisecond

// Booth is the session surface the handlers drive. *session.Session satisfies it.
type Booth interface {
	Start(ctx context.Context) (string, error)
	Retake(ctx context.Context) error
	Snapshot() session.Snapshot
}

// SlotReader gives read access to captured stills. *slots.Store satisfies it.
type SlotReader interface {
	Get(i int) (*capture.Still, error)
}

// Exporter writes the composed strip. *strip.Surface satisfies it.
type Exporter interface {
	Export(w io.Writer) error
}

// FrameSource exposes the active camera stream, nil when released.
// *camera.Manager satisfies it.
type FrameSource interface {
	Active() bool
	Current() camera.Stream
}

// Deps groups the domain objects behind the HTTP surface.
type Deps struct {
	Booth   Booth
	Slots   SlotReader
	Strip   Exporter
	Preview FrameSource
}

// BoothConfig holds the booth settings shown by the page (from config).
type BoothConfig struct {
	Slots         int    `json:"slots"`
	CountdownFrom int    `json:"countdown_from"`
	TickMs        int    `json:"tick_ms"`
	FlashMs       int    `json:"flash_ms"`
	Filename      string `json:"filename"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Deps        Deps
	Booth       BoothConfig
	staticFS    fs.FS
	upgrader    websocket.Upgrader
}

// NewHandlers creates handlers with the given dependencies.
// If deps.Booth is nil, the trigger endpoints return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, deps Deps, booth BoothConfig, staticFS fs.FS) *Handlers {
	if booth.Filename == "" {
		booth.Filename = strip.Filename
	}
	return &Handlers{
		Broadcaster: broadcaster,
		Deps:        deps,
		Booth:       booth,
		staticFS:    staticFS,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 << 10,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HandleConfig returns the booth settings as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Booth)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStart handles POST /start. The pass runs in the background;
// progress is pushed on /status/stream.
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Deps.Booth == nil {
		http.Error(w, "session not configured", http.StatusServiceUnavailable)
		return
	}

	id, err := h.Deps.Booth.Start(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, session.ErrRunning):
		writeError(w, http.StatusConflict, "session already running")
		return
	case errors.Is(err, camera.ErrPermission):
		writeError(w, http.StatusForbidden, camera.UserNotice)
		return
	default:
		log.Printf("start failed: %v", err)
		writeError(w, http.StatusInternalServerError, "start failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "session_id": id})
}

// HandleRetake handles POST /retake: cancel any pass and clear every slot.
func (h *Handlers) HandleRetake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Deps.Booth == nil {
		http.Error(w, "session not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.Deps.Booth.Retake(r.Context()); err != nil {
		log.Printf("retake failed: %v", err)
		writeError(w, http.StatusInternalServerError, "retake failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// HandleState returns the session snapshot.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if h.Deps.Booth == nil {
		http.Error(w, "session not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.Deps.Booth.Snapshot())
}

// HandleSlot handles GET /slots/{index} and serves the still as PNG.
func (h *Handlers) HandleSlot(w http.ResponseWriter, r *http.Request) {
	if h.Deps.Slots == nil {
		http.Error(w, "slots not configured", http.StatusServiceUnavailable)
		return
	}
	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "slot index must be an integer", http.StatusBadRequest)
		return
	}
	still, err := h.Deps.Slots.Get(idx)
	if errors.Is(err, slots.ErrOutOfRange) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if still == nil {
		http.Error(w, "slot is empty", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(still.PNG)
}

// HandleDownload handles GET /download. The strip is rendered into memory
// first so a failed export still gets a proper status code.
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	if h.Deps.Strip == nil {
		http.Error(w, "export not configured", http.StatusServiceUnavailable)
		return
	}
	var buf bytes.Buffer
	if err := h.Deps.Strip.Export(&buf); err != nil {
		log.Printf("export failed: %v", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.Booth.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
	debug.Info("Strip downloaded (%d bytes)", buf.Len())
}

// HandlePreview handles GET /preview as a WebSocket of mirrored JPEG frames.
// Frames are only sent while the camera is held by a session.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if h.Deps.Preview == nil {
		http.Error(w, "preview not configured", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		debug.Verbose("preview upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: the client never sends data, but reading surfaces the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(PreviewInterval)
	defer ticker.Stop()

	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !h.Deps.Preview.Active() {
			continue
		}
		stream := h.Deps.Preview.Current()
		if stream == nil {
			continue
		}
		frame, err := stream.Frame()
		if err != nil || frame == nil {
			continue
		}

		buf.Reset()
		if err := jpeg.Encode(&buf, capture.Mirror(frame), &jpeg.Options{Quality: 70}); err != nil {
			debug.Error(err)
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
			debug.Verbose("preview client gone: %v", err)
			return
		}
	}
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
