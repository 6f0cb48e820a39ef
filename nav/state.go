package nav

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PeerPose is the last pose heard from another agent
type PeerPose struct {
	AgentID   string    `json:"agentId"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Theta     float64   `json:"theta"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentState is the JSON view served on /state
type AgentState struct {
	AgentID   string              `json:"agentId"`
	Status    string              `json:"status"`
	Pose      *Pose               `json:"pose,omitempty"`
	Target    *Point              `json:"target,omitempty"`
	Path      Path                `json:"path"`
	Frontiers int                 `json:"frontiers"`
	Ticks     int                 `json:"ticks"`
	Peers     map[string]PeerPose `json:"peers"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// StateTracker holds the latest navigation state for the HTTP endpoints.
// With a cache path it also persists the grid so a restart resumes from the
// last map.
type StateTracker struct {
	mu        sync.RWMutex
	agentID   string
	status    NavigatorStatus
	pose      *Pose
	target    *Point
	path      Path
	frontiers []*Frontier
	ticks     int
	peers     map[string]PeerPose
	updatedAt time.Time
	cachePath string // empty disables persistence
}

// NewStateTracker creates a new state tracker
func NewStateTracker(agentID string) *StateTracker {
	return &StateTracker{
		agentID: agentID,
		peers:   make(map[string]PeerPose),
	}
}

// NewStateTrackerWithCache creates a state tracker that persists grid
// snapshots to cachePath
func NewStateTrackerWithCache(agentID, cachePath string) *StateTracker {
	st := NewStateTracker(agentID)
	st.cachePath = cachePath
	return st
}

// CachePath returns the snapshot cache path, or "" when persistence is off
func (st *StateTracker) CachePath() string {
	return st.cachePath
}

// UpdateFromNavigator copies the navigator's current view
func (st *StateTracker) UpdateFromNavigator(n *Navigator, pose Pose) {
	status := n.Status()
	path := n.CurrentPath()
	frontiers := n.Frontiers()
	ticks := n.Ticks()
	target, hasTarget := n.Target()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.status = status
	st.path = path
	st.frontiers = frontiers
	st.ticks = ticks
	if pose.Valid() {
		p := pose
		st.pose = &p
	}
	if hasTarget {
		st.target = &target
	} else {
		st.target = nil
	}
	st.updatedAt = time.Now()
}

// UpdatePeerPose records a pose message from another agent
func (st *StateTracker) UpdatePeerPose(msg *PoseMessage) {
	if msg == nil || msg.AgentID == "" || msg.AgentID == st.agentID {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.peers[msg.AgentID] = PeerPose{
		AgentID:   msg.AgentID,
		X:         msg.X,
		Y:         msg.Y,
		Theta:     msg.Theta,
		Status:    msg.Status,
		Timestamp: time.Unix(msg.Timestamp, 0),
	}
}

// Overlay returns the current state in renderer form
func (st *StateTracker) Overlay() Overlay {
	st.mu.RLock()
	defer st.mu.RUnlock()

	ov := Overlay{
		Path:      append(Path(nil), st.path...),
		Frontiers: append([]*Frontier(nil), st.frontiers...),
		Label:     fmt.Sprintf("%s %s t=%d", st.agentID, st.status, st.ticks),
	}
	if st.pose != nil {
		p := *st.pose
		ov.Pose = &p
	}
	if st.target != nil {
		t := *st.target
		ov.Target = &t
	}
	return ov
}

// Frontiers returns the frontiers from the last update
func (st *StateTracker) Frontiers() []*Frontier {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]*Frontier(nil), st.frontiers...)
}

// GetState returns a copy of the tracked state
func (st *StateTracker) GetState() AgentState {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s := AgentState{
		AgentID:   st.agentID,
		Status:    st.status.String(),
		Path:      append(Path{}, st.path...),
		Frontiers: len(st.frontiers),
		Ticks:     st.ticks,
		Peers:     make(map[string]PeerPose, len(st.peers)),
		UpdatedAt: st.updatedAt,
	}
	if st.pose != nil {
		p := *st.pose
		s.Pose = &p
	}
	if st.target != nil {
		t := *st.target
		s.Target = &t
	}
	for k, v := range st.peers {
		s.Peers[k] = v
	}
	return s
}

// Persist writes a snapshot of g to the cache path, if one is set
func (st *StateTracker) Persist(g *GridMap) {
	if st.cachePath == "" {
		return
	}
	if err := SaveSnapshot(g.Snapshot(st.agentID), st.cachePath); err != nil {
		log.Printf("warning: failed to save grid cache: %v", err)
	}
}

// Restore merges the cached snapshot into g at full confidence. A missing
// cache is not an error.
func (st *StateTracker) Restore(g *GridMap) error {
	if st.cachePath == "" {
		return nil
	}
	s, err := LoadSnapshot(st.cachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := g.MergeSnapshot(s, 1); err != nil {
		return fmt.Errorf("restore grid cache: %w", err)
	}
	log.Printf("Restored %dx%d grid from %s", s.Width, s.Height, st.cachePath)
	return nil
}

// SaveSnapshot writes a GridSnapshot to disk as indented JSON.
func SaveSnapshot(s *GridSnapshot, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot cache: %w", err)
	}
	return nil
}

// LoadSnapshot reads a GridSnapshot from disk. Both the JSON cache form and
// the compressed wire form are accepted.
func LoadSnapshot(path string) (*GridSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot cache: %w", err)
	}
	return s, nil
}
