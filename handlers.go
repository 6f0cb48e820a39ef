package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/kwv/tudonav/nav"
)

// frontierView is the JSON form of a frontier served on /frontiers
type frontierView struct {
	Size     int       `json:"size"`
	Centroid nav.Point `json:"centroid"` // world coordinates
	Cell     nav.Cell  `json:"cell"`
}

// pathView is the JSON form served on /path
type pathView struct {
	Waypoints nav.Path   `json:"waypoints"`
	Target    *nav.Point `json:"target,omitempty"`
	Length    float64    `json:"length"`
}

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *nav.StateTracker, grid *nav.GridMap, config *nav.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		state := stateTracker.GetState()
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			AgentID   string    `json:"agentId"`
			Navigator string    `json:"navigator"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			AgentID:   config.AgentID,
			Navigator: state.Status,
		}
		writeJSON(w, status)
	})

	// Raster map with the navigation overlay
	mux.HandleFunc("/map.png", func(w http.ResponseWriter, r *http.Request) {
		renderer := nav.NewGridRenderer()
		renderer.Ternary = r.URL.Query().Get("ternary") == "1"

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.EncodePNG(w, grid, stateTracker.Overlay()); err != nil {
			log.Printf("[HTTP] Error encoding map PNG: %v", err)
		}
	})

	// Vector map with the navigation overlay
	mux.HandleFunc("/map.svg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := nav.NewVectorRenderer().RenderToSVG(w, grid, stateTracker.Overlay()); err != nil {
			log.Printf("[HTTP] Error encoding map SVG: %v", err)
		}
	})

	// Compressed snapshot pulled by peers
	mux.HandleFunc("/grid", func(w http.ResponseWriter, r *http.Request) {
		data, err := nav.EncodeSnapshot(grid.Snapshot(config.AgentID))
		if err != nil {
			log.Printf("[HTTP] Error encoding snapshot: %v", err)
			http.Error(w, "Failed to encode snapshot", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(data); err != nil {
			log.Printf("[HTTP] Error writing snapshot: %v", err)
		}
	})

	mux.HandleFunc("/frontiers", func(w http.ResponseWriter, r *http.Request) {
		frontiers := stateTracker.Frontiers()
		views := make([]frontierView, 0, len(frontiers))
		for _, f := range frontiers {
			c := f.CentroidCell()
			views = append(views, frontierView{
				Size:     f.Size(),
				Centroid: grid.GridToWorld(c),
				Cell:     c,
			})
		}
		writeJSON(w, views)
	})

	mux.HandleFunc("/path", func(w http.ResponseWriter, r *http.Request) {
		state := stateTracker.GetState()
		writeJSON(w, pathView{
			Waypoints: state.Path,
			Target:    state.Target,
			Length:    state.Path.Length(),
		})
	})

	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, stateTracker.GetState())
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Error encoding JSON: %v", err)
	}
}
