package server

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/png"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
	"github.com/df07/go-volumetric-pathtracer/pkg/renderer"
	"github.com/df07/go-volumetric-pathtracer/pkg/volume"
)

// fakeController records stop calls and serves a fixed film
type fakeController struct {
	mu       sync.Mutex
	id       uuid.UUID
	progress renderer.Progress
	film     *renderer.Film
	stops    []string
}

func newFakeController() *fakeController {
	film := renderer.NewFilm(4, 3)
	samples := make([]renderer.Cell, 12)
	for i := range samples {
		samples[i] = renderer.Cell{0.95047, 1, 1.08883, 1}
	}
	film.CommitTile(image.Rect(0, 0, 4, 3), samples)
	return &fakeController{
		id:   uuid.MustParse("2b1f0c2e-8a55-4c2f-9b77-2f7d3c4a9e10"),
		film: film,
		progress: renderer.Progress{
			Completed: 1234, Total: 5000, StartedWaves: 3, RequestedWaves: 10,
			State: renderer.StateRunning, Ratio: 0.2468,
			Elapsed: 61 * time.Second, ETA: 3 * time.Minute,
		},
	}
}

func (f *fakeController) RenderID() uuid.UUID   { return f.id }
func (f *fakeController) Film() *renderer.Film { return f.film }

func (f *fakeController) Progress() renderer.Progress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress
}

func (f *fakeController) StopAtNextWave() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, "wave")
	f.progress.State = renderer.StateStoppingAtNextWave
}

func (f *fakeController) StopNow() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, "now")
	f.progress.State = renderer.StateStoppedImmediately
}

func quietLogger() *slog.Logger { return core.NewNopLogger() }

func TestHealth(t *testing.T) {
	s := NewServer(newFakeController(), quietLogger())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body)
	}
}

func TestProgress(t *testing.T) {
	s := NewServer(newFakeController(), quietLogger())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
	var got ProgressResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	expected := ProgressResponse{
		RenderID:       "2b1f0c2e-8a55-4c2f-9b77-2f7d3c4a9e10",
		State:          "running",
		Wave:           3,
		RequestedWaves: 10,
		CompletedTiles: 1234,
		TotalTiles:     5000,
		Ratio:          0.2468,
		ElapsedMs:      61000,
		EtaMs:          180000,
		Summary:        "wave 3/10, 1,234/5,000 tiles (24.7%), elapsed 1m1s, eta 3m0s, running",
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("Progress mismatch (-want +got):\n%s", diff)
	}
}

func TestImage(t *testing.T) {
	s := NewServer(newFakeController(), quietLogger())

	tests := []struct {
		query  string
		status int
		depth  int
	}{
		{"", http.StatusOK, 8},
		{"?depth=16", http.StatusOK, 16},
		{"?depth=12", http.StatusBadRequest, 0},
		{"?depth=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/image"+tt.query, nil))
			if rec.Code != tt.status {
				t.Fatalf("Expected status %d, got %d", tt.status, rec.Code)
			}
			if tt.status != http.StatusOK {
				return
			}

			img, err := png.Decode(rec.Body)
			if err != nil {
				t.Fatalf("Invalid PNG: %v", err)
			}
			if img.Bounds() != image.Rect(0, 0, 4, 3) {
				t.Errorf("Expected 4x3 image, got %v", img.Bounds())
			}
			r, g, b, _ := img.At(1, 1).RGBA()
			if r < 0xff00 || g < 0xff00 || b < 0xff00 {
				t.Errorf("Expected a white pixel, got %d %d %d", r, g, b)
			}
			_, is16 := img.(*image.RGBA64)
			if (tt.depth == 16) != is16 {
				t.Errorf("Expected depth %d, got %T", tt.depth, img)
			}
		})
	}
}

func TestStop(t *testing.T) {
	tests := []struct {
		query    string
		status   int
		expected []string
	}{
		{"", http.StatusAccepted, []string{"wave"}},
		{"?mode=wave", http.StatusAccepted, []string{"wave"}},
		{"?mode=now", http.StatusAccepted, []string{"now"}},
		{"?mode=later", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			fake := newFakeController()
			s := NewServer(fake, quietLogger())
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stop"+tt.query, nil))

			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rec.Code)
			}
			if diff := cmp.Diff(tt.expected, fake.stops); diff != "" {
				t.Errorf("Stop calls mismatch (-want +got):\n%s", diff)
			}
		})
	}

	// Stop requires POST
	rec := httptest.NewRecorder()
	NewServer(newFakeController(), quietLogger()).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stop", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rec.Code)
	}
}

// readEvents parses an SSE stream into (event, data) pairs
func readEvents(t *testing.T, body string) [][2]string {
	t.Helper()
	var events [][2]string
	var event string
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			events = append(events, [2]string{event, strings.TrimPrefix(line, "data: ")})
		}
	}
	return events
}

func TestEventsUntilComplete(t *testing.T) {
	fake := newFakeController()
	fake.progress.Completed = fake.progress.Total
	s := NewServer(fake, quietLogger())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?images=1", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected SSE content type, got %q", ct)
	}
	events := readEvents(t, rec.Body.String())
	if len(events) != 2 || events[0][0] != "progress" || events[1][0] != "complete" {
		t.Fatalf("Expected progress then complete, got %v", events)
	}

	var update ProgressResponse
	if err := json.Unmarshal([]byte(events[0][1]), &update); err != nil {
		t.Fatalf("Invalid progress JSON: %v", err)
	}
	if update.ImageData == "" {
		t.Error("Expected an image snapshot in the progress event")
	}
}

func TestEventsStreamsConsole(t *testing.T) {
	fake := newFakeController()
	console := NewConsoleHandler(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s := NewServer(fake, quietLogger(), WithConsole(console), WithEventInterval(10*time.Millisecond))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var kinds []string
	logged, stopped := false, false
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		kind, ok := strings.CutPrefix(strings.TrimSpace(line), "event: ")
		if !ok {
			continue
		}
		kinds = append(kinds, kind)

		switch {
		case kind == "progress" && !logged:
			// The subscription exists once the first event is out
			slog.New(console).Info("wave started", "wave", 4)
			logged = true
		case kind == "console" && !stopped:
			fake.StopNow()
			stopped = true
		}
	}

	if len(kinds) < 3 || kinds[0] != "progress" || kinds[len(kinds)-1] != "complete" {
		t.Fatalf("Expected progress first and complete last, got %v", kinds)
	}
	if !stopped {
		t.Errorf("Expected a console event, got %v", kinds)
	}
}

func TestInspect(t *testing.T) {
	b := volume.NewGridBuilder("density", 0.1, core.NewVec3(-0.5, -0.5, -0.5))
	volume.CoordBBox{Max: volume.Coord{X: 9, Y: 9, Z: 9}}.ForEach(func(c volume.Coord) { b.Set(c, 2) })
	vol, err := volume.NewVolume(b.Build(), nil, volume.Trilinear)
	if err != nil {
		t.Fatalf("NewVolume failed: %v", err)
	}
	inspector := &VolumeInspector{
		Camera: renderer.NewCamera(renderer.DefaultCameraParams(), 9, 9),
		Volume: vol,
		Width:  9,
		Height: 9,
	}
	s := NewServer(newFakeController(), quietLogger(), WithInspector(inspector))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/inspect", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got InspectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if !got.Hit || got.MaxMajorant != 2 || len(got.Segments) == 0 || len(got.Steps) == 0 {
		t.Errorf("Expected a hit with majorant 2, got %+v", got)
	}

	for _, query := range []string{"?x=9", "?y=-1", "?x=a"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/inspect"+query, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", query, rec.Code)
		}
	}

	rec = httptest.NewRecorder()
	NewServer(newFakeController(), quietLogger()).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/inspect", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without an inspector, got %d", rec.Code)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	s := NewServer(newFakeController(), quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- s.Serve(ctx, listener) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/api/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for shutdown")
	}
}
