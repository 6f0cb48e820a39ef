package main

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kwv/tudonav/nav"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// trackedAgent runs one tick in the test room and returns a tracker holding
// the result together with the grid and config the handlers serve
func trackedAgent(t *testing.T) (*nav.StateTracker, *nav.GridMap, *nav.Config) {
	t.Helper()
	config := nav.DefaultConfig()
	config.AgentID = "bot-a"

	world, err := nav.ParseSimWorld(testRoom, config.Grid.Resolution)
	if err != nil {
		t.Fatalf("ParseSimWorld: %v", err)
	}
	config.Grid = world.GridConfigFor(config.Grid)

	n, err := nav.NewNavigator(config)
	if err != nil {
		t.Fatalf("NewNavigator: %v", err)
	}
	ranges, angles := world.Scan(36, config.Grid.MaxRange)
	n.Tick(context.Background(), world.Pose, ranges, angles)

	st := nav.NewStateTracker(config.AgentID)
	st.UpdateFromNavigator(n, world.Pose)
	return st, n.Grid, config
}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// endpoints
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	st, grid, config := trackedAgent(t)
	rec := serve(t, newHTTPServer(st, grid, config), "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body struct {
		Status    string `json:"status"`
		AgentID   string `json:"agentId"`
		Navigator string `json:"navigator"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.AgentID != "bot-a" {
		t.Errorf("agentId = %q, want bot-a", body.AgentID)
	}
	if body.Navigator != st.GetState().Status {
		t.Errorf("navigator = %q, want %q", body.Navigator, st.GetState().Status)
	}
}

func TestMapPNG(t *testing.T) {
	st, grid, config := trackedAgent(t)
	h := newHTTPServer(st, grid, config)

	for _, target := range []string{"/map.png", "/map.png?ternary=1"} {
		rec := serve(t, h, target)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", target, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s: Content-Type = %q, want image/png", target, ct)
		}
		img, err := png.Decode(rec.Body)
		if err != nil {
			t.Fatalf("%s: decode PNG: %v", target, err)
		}
		if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
			t.Errorf("%s: empty image", target)
		}
	}
}

func TestMapSVG(t *testing.T) {
	st, grid, config := trackedAgent(t)
	rec := serve(t, newHTTPServer(st, grid, config), "/map.svg")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q, want image/svg+xml", ct)
	}
	if !strings.Contains(rec.Body.String(), "<svg") {
		t.Error("expected SVG document")
	}
}

func TestGridSnapshot(t *testing.T) {
	st, grid, config := trackedAgent(t)
	rec := serve(t, newHTTPServer(st, grid, config), "/grid")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Content-Type = %q, want application/octet-stream", ct)
	}

	s, err := nav.DecodeSnapshot(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if s.AgentID != "bot-a" {
		t.Errorf("AgentID = %q, want bot-a", s.AgentID)
	}
	if s.Width != grid.Width() || s.Height != grid.Height() {
		t.Errorf("snapshot = %dx%d, want %dx%d", s.Width, s.Height, grid.Width(), grid.Height())
	}
	if len(s.Values) != grid.Width()*grid.Height() {
		t.Errorf("len(Values) = %d, want %d", len(s.Values), grid.Width()*grid.Height())
	}
}

func TestGridSnapshot_PeerFetch(t *testing.T) {
	st, grid, config := trackedAgent(t)
	srv := httptest.NewServer(newHTTPServer(st, grid, config))
	defer srv.Close()

	s, err := nav.FetchPeerSnapshot(context.Background(), srv.URL+"/grid")
	if err != nil {
		t.Fatalf("FetchPeerSnapshot: %v", err)
	}

	peer, err := nav.NewGridMap(grid.Config())
	if err != nil {
		t.Fatal(err)
	}
	if err := peer.MergeSnapshot(s, 1); err != nil {
		t.Fatalf("MergeSnapshot: %v", err)
	}
	want := grid.ToTernary()
	got := peer.ToTernary()
	if got.Count(nav.Free) != want.Count(nav.Free) {
		t.Errorf("merged free cells = %d, want %d", got.Count(nav.Free), want.Count(nav.Free))
	}
}

func TestFrontiers(t *testing.T) {
	st, grid, config := trackedAgent(t)
	rec := serve(t, newHTTPServer(st, grid, config), "/frontiers")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var views []frontierView
	if err := json.NewDecoder(rec.Body).Decode(&views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	frontiers := st.Frontiers()
	if len(views) != len(frontiers) {
		t.Fatalf("len = %d, want %d", len(views), len(frontiers))
	}
	for i, f := range frontiers {
		if views[i].Size != f.Size() {
			t.Errorf("frontier %d size = %d, want %d", i, views[i].Size, f.Size())
		}
		if views[i].Centroid != grid.GridToWorld(f.CentroidCell()) {
			t.Errorf("frontier %d centroid = %v, want %v", i, views[i].Centroid, grid.GridToWorld(f.CentroidCell()))
		}
	}
}

func TestFrontiers_EmptyIsArray(t *testing.T) {
	_, grid, config := trackedAgent(t)
	rec := serve(t, newHTTPServer(nav.NewStateTracker("bot-a"), grid, config), "/frontiers")
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestPath(t *testing.T) {
	st, grid, config := trackedAgent(t)
	rec := serve(t, newHTTPServer(st, grid, config), "/path")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var view pathView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	state := st.GetState()
	if len(view.Waypoints) != len(state.Path) {
		t.Errorf("waypoints = %d, want %d", len(view.Waypoints), len(state.Path))
	}
	if view.Length != state.Path.Length() {
		t.Errorf("length = %f, want %f", view.Length, state.Path.Length())
	}
}

func TestState(t *testing.T) {
	st, grid, config := trackedAgent(t)
	st.UpdatePeerPose(&nav.PoseMessage{AgentID: "bot-b", X: 1, Y: 2, Theta: 0.5})
	rec := serve(t, newHTTPServer(st, grid, config), "/state")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var state nav.AgentState
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.AgentID != "bot-a" {
		t.Errorf("agentId = %q, want bot-a", state.AgentID)
	}
	if state.Ticks != 1 {
		t.Errorf("ticks = %d, want 1", state.Ticks)
	}
	if state.Pose == nil {
		t.Error("expected pose")
	}
	if peer, ok := state.Peers["bot-b"]; !ok || peer.X != 1 || peer.Y != 2 {
		t.Errorf("peers = %v, want bot-b at (1,2)", state.Peers)
	}
}

func TestUnknownEndpoint(t *testing.T) {
	st, grid, config := trackedAgent(t)
	rec := serve(t, newHTTPServer(st, grid, config), "/composite-map.png")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
