package server

import (
	"net/http"

	"github.com/df07/go-volumetric-pathtracer/pkg/renderer"
	"github.com/df07/go-volumetric-pathtracer/pkg/volume"
)

// Inspector traces the ray through a pixel
type Inspector interface {
	Bounds() (width, height int)
	Inspect(x, y int) renderer.PixelTrace
}

// VolumeInspector inspects pixels of a camera looking at a volume
type VolumeInspector struct {
	Camera        *renderer.Camera
	Volume        *volume.Volume
	Width, Height int
}

// Bounds returns the image size
func (vi *VolumeInspector) Bounds() (int, int) { return vi.Width, vi.Height }

// Inspect traces the pixel center
func (vi *VolumeInspector) Inspect(x, y int) renderer.PixelTrace {
	return renderer.TracePixel(vi.Camera, vi.Volume, x, y)
}

// SegmentInfo is one majorant segment in index-space ray parameters
type SegmentInfo struct {
	T0       float64 `json:"t0"`
	T1       float64 `json:"t1"`
	Majorant float64 `json:"majorant"`
}

// StepInfo is one cell visited by the traversal
type StepInfo struct {
	Voxel   [3]int  `json:"voxel"`
	Dim     int     `json:"dim"`
	Time    float64 `json:"time"`
	Maximum float64 `json:"maximum"`
}

// InspectResponse represents the JSON response for pixel inspection
type InspectResponse struct {
	Hit         bool          `json:"hit"`
	Origin      [3]float64    `json:"origin"`
	Direction   [3]float64    `json:"direction"`
	MaxMajorant float64       `json:"maxMajorant"`
	Segments    []SegmentInfo `json:"segments"`
	Steps       []StepInfo    `json:"steps"`
}

// NewInspectResponse converts a pixel trace for JSON output
func NewInspectResponse(trace renderer.PixelTrace) InspectResponse {
	o, d := trace.Ray.Origin, trace.Ray.Direction
	resp := InspectResponse{
		Hit:         trace.Hit,
		Origin:      [3]float64{o.X, o.Y, o.Z},
		Direction:   [3]float64{d.X, d.Y, d.Z},
		MaxMajorant: trace.MaxMajorant(),
		Segments:    make([]SegmentInfo, 0, len(trace.Segments)),
		Steps:       make([]StepInfo, 0, len(trace.Steps)),
	}
	for _, s := range trace.Segments {
		resp.Segments = append(resp.Segments, SegmentInfo{T0: s.T0, T1: s.T1, Majorant: s.Majorant})
	}
	for _, s := range trace.Steps {
		resp.Steps = append(resp.Steps, StepInfo{
			Voxel:   [3]int{s.Voxel.X, s.Voxel.Y, s.Voxel.Z},
			Dim:     s.Dim,
			Time:    s.Time,
			Maximum: s.Maximum,
		})
	}
	return resp
}

// handleInspect returns the majorant trace through pixel (x, y)
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	if s.inspector == nil {
		s.writeError(w, http.StatusNotFound, "inspection not available")
		return
	}

	width, height := s.inspector.Bounds()
	x, err := parseIntParam(r.URL.Query(), "x", width/2, 0, width-1)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	y, err := parseIntParam(r.URL.Query(), "y", height/2, 0, height-1)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, NewInspectResponse(s.inspector.Inspect(x, y)))
}
