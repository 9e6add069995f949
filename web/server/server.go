// Package server exposes a running render over HTTP: progress, image snapshots,
// pixel inspection and stop controls.
package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/df07/go-volumetric-pathtracer/pkg/renderer"
)

// Controller is the render the server reports on and controls
type Controller interface {
	RenderID() uuid.UUID
	Progress() renderer.Progress
	Film() *renderer.Film
	StopAtNextWave()
	StopNow()
}

// Server handles web requests for a running render
type Server struct {
	controller Controller
	inspector  Inspector
	console    *ConsoleHandler
	logger     *slog.Logger
	interval   time.Duration
	mux        *http.ServeMux
}

// Option configures optional server features
type Option func(*Server)

// WithInspector enables /api/inspect
func WithInspector(i Inspector) Option {
	return func(s *Server) { s.inspector = i }
}

// WithConsole streams log records from h to /api/events subscribers
func WithConsole(h *ConsoleHandler) Option {
	return func(s *Server) { s.console = h }
}

// WithEventInterval sets how often /api/events sends progress updates
func WithEventInterval(d time.Duration) Option {
	return func(s *Server) { s.interval = d }
}

// NewServer creates a new web server for controller
func NewServer(controller Controller, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		controller: controller,
		logger:     logger,
		interval:   time.Second,
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/progress", s.handleProgress)
	s.mux.HandleFunc("GET /api/image", s.handleImage)
	s.mux.HandleFunc("POST /api/stop", s.handleStop)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/inspect", s.handleInspect)
	return s
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", addr)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", "addr", listener.Addr().String())
		errChan <- srv.Serve(listener)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down web server")
	}
	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ProgressResponse is the JSON body of /api/progress and of SSE progress events
type ProgressResponse struct {
	RenderID       string  `json:"renderId"`
	State          string  `json:"state"`
	Wave           int     `json:"wave"`
	RequestedWaves int     `json:"requestedWaves"`
	CompletedTiles int64   `json:"completedTiles"`
	TotalTiles     int64   `json:"totalTiles"`
	Ratio          float64 `json:"ratio"`
	ElapsedMs      int64   `json:"elapsedMs"`
	EtaMs          int64   `json:"etaMs"`
	Summary        string  `json:"summary"`
	ImageData      string  `json:"imageData,omitempty"` // Base64 encoded PNG
}

func (s *Server) progressResponse() ProgressResponse {
	p := s.controller.Progress()
	return ProgressResponse{
		RenderID:       s.controller.RenderID().String(),
		State:          p.State.String(),
		Wave:           p.StartedWaves,
		RequestedWaves: p.RequestedWaves,
		CompletedTiles: p.Completed,
		TotalTiles:     p.Total,
		Ratio:          p.Ratio,
		ElapsedMs:      p.Elapsed.Milliseconds(),
		EtaMs:          p.ETA.Milliseconds(),
		Summary:        p.String(),
	}
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.progressResponse())
}

// handleImage returns a PNG snapshot of the film. depth=16 selects 16-bit output.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	depth, err := parseIntParam(r.URL.Query(), "depth", 8, 8, 16)
	if err != nil || (depth != 8 && depth != 16) {
		s.writeError(w, http.StatusBadRequest, "depth must be 8 or 16")
		return
	}

	var img image.Image
	if depth == 16 {
		img = s.controller.Film().Image16()
	} else {
		img = s.controller.Film().Image()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.Bytes())
}

// handleStop stops the render at the next wave boundary (mode=wave) or immediately (mode=now)
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	switch mode {
	case "", "wave":
		mode = "wave"
		s.controller.StopAtNextWave()
	case "now":
		s.controller.StopNow()
	default:
		s.writeError(w, http.StatusBadRequest, "mode must be wave or now")
		return
	}
	s.logger.Info("stop requested over http", "mode", mode)
	s.writeJSON(w, http.StatusAccepted, s.progressResponse())
}

// handleEvents streams progress (with an image snapshot when images=1) and console
// messages as Server-Sent Events until the render stops or the client disconnects
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	withImages := r.URL.Query().Get("images") == "1"
	s.setSSEHeaders(w)

	var console <-chan ConsoleMessage
	if s.console != nil {
		ch, unsubscribe := s.console.Subscribe(64)
		defer unsubscribe()
		console = ch
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	ctx := r.Context()

	for {
		update := s.progressResponse()
		if withImages {
			data, err := s.imageToBase64PNG(s.controller.Film().Image())
			if err != nil {
				s.sendSSEEvent(w, "error", err.Error())
				return
			}
			update.ImageData = data
		}
		if err := s.sendSSEUpdate(w, update); err != nil {
			return
		}
		if s.controller.Progress().Finished() {
			s.sendSSEEvent(w, "complete", "Rendering completed")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case msg := <-console:
			data, err := json.Marshal(msg)
			if err != nil {
				return
			}
			if err := s.sendSSEEvent(w, "console", string(data)); err != nil {
				return
			}
		}
	}
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// sendSSEUpdate sends a progress update via SSE
func (s *Server) sendSSEUpdate(w http.ResponseWriter, update ProgressResponse) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return s.sendSSEEvent(w, "progress", string(data))
}

// sendSSEEvent sends a generic SSE event
func (s *Server) sendSSEEvent(w http.ResponseWriter, event, data string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return errors.New("streaming not supported")
	}
	if _, err := w.Write([]byte("event: " + event + "\ndata: " + data + "\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// imageToBase64PNG converts an image to base64-encoded PNG
func (s *Server) imageToBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.MarshalWrite(w, v); err != nil {
		s.logger.Debug("writing response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, errors.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, errors.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}
