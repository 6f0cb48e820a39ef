package nav

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// GridSnapshot is the wire form of a GridMap shared between agents
type GridSnapshot struct {
	AgentID    string    `json:"agentId"`
	MessageID  string    `json:"messageId"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Resolution float64   `json:"resolution"`
	Values     []float64 `json:"values"`
	Timestamp  int64     `json:"timestamp"`
}

// Snapshot captures the current grid for agentID
func (g *GridMap) Snapshot(agentID string) *GridSnapshot {
	return &GridSnapshot{
		AgentID:    agentID,
		MessageID:  uuid.NewString(),
		Width:      g.cfg.Width,
		Height:     g.cfg.Height,
		Resolution: g.cfg.Resolution,
		Values:     g.Values(),
		Timestamp:  time.Now().Unix(),
	}
}

// MergeSnapshot blends a peer snapshot into the grid. The snapshot must have
// the same dimensions and resolution.
func (g *GridMap) MergeSnapshot(s *GridSnapshot, confidence float64) error {
	if s == nil {
		return fmt.Errorf("merge snapshot: nil snapshot")
	}
	if s.Width != g.cfg.Width || s.Height != g.cfg.Height {
		return fmt.Errorf("merge snapshot from %s: grid is %dx%d, want %dx%d",
			s.AgentID, s.Width, s.Height, g.cfg.Width, g.cfg.Height)
	}
	if s.Resolution != g.cfg.Resolution {
		return fmt.Errorf("merge snapshot from %s: resolution %v, want %v",
			s.AgentID, s.Resolution, g.cfg.Resolution)
	}
	return g.Merge(s.Values, confidence)
}

// EncodeSnapshot serializes a snapshot as zlib-compressed JSON
func EncodeSnapshot(s *GridSnapshot) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot decodes a snapshot from either format:
// - Zlib-compressed JSON (what EncodeSnapshot produces)
// - Raw JSON (starts with '{', handy for testing)
func DecodeSnapshot(data []byte) (*GridSnapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	jsonBytes := data
	if data[0] != '{' {
		var err error
		jsonBytes, err = inflateZlib(data)
		if err != nil {
			return nil, fmt.Errorf("unknown format: not JSON or zlib-compressed")
		}
	}

	var s GridSnapshot
	if err := json.Unmarshal(jsonBytes, &s); err != nil {
		return nil, fmt.Errorf("parsing snapshot JSON: %w", err)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("snapshot has invalid size %dx%d", s.Width, s.Height)
	}
	if len(s.Values) != s.Width*s.Height {
		return nil, fmt.Errorf("snapshot has %d values, want %d", len(s.Values), s.Width*s.Height)
	}
	return &s, nil
}

// inflateZlib decompresses zlib-compressed data
func inflateZlib(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating zlib reader: %w", err)
	}
	defer reader.Close()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("decompressing zlib data: %w", err)
	}
	return decompressed, nil
}

// ToGridMap rebuilds a GridMap from the snapshot using base for every
// parameter other than the size and resolution.
func (s *GridSnapshot) ToGridMap(base GridConfig) (*GridMap, error) {
	base.Width = s.Width
	base.Height = s.Height
	base.Resolution = s.Resolution
	g, err := NewGridMap(base)
	if err != nil {
		return nil, err
	}
	if err := g.Merge(s.Values, 1); err != nil {
		return nil, err
	}
	return g, nil
}
