package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kwv/tudonav/nav"
)

const (
	publishEveryTicks = 10
	persistEveryTicks = 100
	peerSyncInterval  = 30 * time.Second
)

// App encapsulates the application state and dependencies
type App struct {
	Config       *nav.Config
	World        *nav.SimWorld
	Navigator    *nav.Navigator
	StateTracker *nav.StateTracker
	MQTTClient   *nav.MQTTClient
	Publisher    *nav.Publisher

	// CLI Flags (effectively dependencies)
	ConfigFile   string
	WorldFile    string
	CacheFile    string
	OutputFile   string
	SnapshotFile string
	RenderFormat string
	Goal         string
	Steps        int
	Rays         int
	Dt           float64
	TickInterval time.Duration
	HttpPort     int
	MqttMode     bool
	HttpMode     bool

	ticks      int
	lastStatus nav.NavigatorStatus
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: nav.NewStateTracker(""),
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.WorldFile = opts.WorldFile
	a.CacheFile = opts.CacheFile
	a.OutputFile = opts.OutputFile
	a.SnapshotFile = opts.SnapshotFile
	a.RenderFormat = opts.RenderFormat
	a.Goal = opts.Goal
	a.Steps = opts.Steps
	a.Rays = opts.Rays
	a.Dt = opts.Dt
	a.TickInterval = opts.TickInterval
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist. An agent without an ID gets a random one.
func (a *App) loadConfig() (*nav.Config, error) {
	var config *nav.Config
	if _, err := os.Stat(a.ConfigFile); err == nil {
		config, err = nav.LoadConfig(a.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", a.ConfigFile, err)
		}
		log.Printf("Loaded config from %s", a.ConfigFile)
	} else {
		log.Printf("No config at %s, using defaults", a.ConfigFile)
		config = nav.DefaultConfig()
	}

	if config.AgentID == "" {
		config.AgentID = "agent-" + uuid.NewString()[:8]
		log.Printf("Agent ID not configured, using %s", config.AgentID)
	}
	a.Config = config
	return config, nil
}

// setupNavigator loads the simulated world and sizes the grid to cover it
func (a *App) setupNavigator(config *nav.Config) error {
	var (
		world *nav.SimWorld
		err   error
	)
	if a.WorldFile != "" {
		world, err = nav.LoadSimWorld(a.WorldFile, config.Grid.Resolution)
	} else {
		world, err = nav.ParseSimWorld(nav.DefaultWorldMap, config.Grid.Resolution)
	}
	if err != nil {
		return fmt.Errorf("load world: %w", err)
	}
	config.Grid = world.GridConfigFor(config.Grid)

	n, err := nav.NewNavigator(config)
	if err != nil {
		return fmt.Errorf("create navigator: %w", err)
	}

	if a.Goal != "" {
		goal, err := parseGoal(a.Goal)
		if err != nil {
			return err
		}
		n.NavigateTo(goal)
		log.Printf("Navigating to (%.2f, %.2f)", goal.X, goal.Y)
	}

	a.World = world
	a.Navigator = n
	return nil
}

// parseGoal parses "x,y" in world units
func parseGoal(s string) (nav.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nav.Point{}, fmt.Errorf("invalid goal %q: want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nav.Point{}, fmt.Errorf("invalid goal x %q: %w", parts[0], err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nav.Point{}, fmt.Errorf("invalid goal y %q: %w", parts[1], err)
	}
	return nav.Point{X: x, Y: y}, nil
}

// RunSimulate explores the simulated world and writes the resulting map
func (a *App) RunSimulate() error {
	config, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := a.setupNavigator(config); err != nil {
		return err
	}
	a.StateTracker = nav.NewStateTracker(config.AgentID)

	fmt.Printf("Simulating %dx%d world at %.2f m/cell (max %d ticks)\n",
		config.Grid.Width, config.Grid.Height, config.Grid.Resolution, a.Steps)

	start := time.Now()
	status, err := nav.RunSimulation(context.Background(), a.Navigator, a.World, a.Rays, a.Dt, a.Steps,
		func(tick int, pose nav.Pose, cmd nav.Command) {
			a.StateTracker.UpdateFromNavigator(a.Navigator, pose)
		})
	if err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	t := a.Navigator.Grid.ToTernary()
	fmt.Printf("Finished after %d ticks in %v: %s\n", a.Navigator.Ticks(), time.Since(start).Round(time.Millisecond), status)
	fmt.Printf("Cells: %d free, %d obstacle, %d undiscovered\n",
		t.Count(nav.Free), t.Count(nav.Obstacle), t.Count(nav.Undiscovered))

	if a.OutputFile != "" {
		if err := a.writeMap(a.OutputFile, a.Navigator.Grid, a.StateTracker.Overlay()); err != nil {
			return err
		}
		fmt.Printf("Map written to %s\n", a.OutputFile)
	}
	if a.SnapshotFile != "" {
		if err := nav.SaveSnapshot(a.Navigator.Grid.Snapshot(config.AgentID), a.SnapshotFile); err != nil {
			return err
		}
		fmt.Printf("Snapshot written to %s\n", a.SnapshotFile)
	}
	return nil
}

// RunRender renders a saved snapshot to OutputFile
func (a *App) RunRender() error {
	if a.SnapshotFile == "" {
		return errors.New("--render needs --snapshot")
	}
	config, err := a.loadConfig()
	if err != nil {
		return err
	}

	s, err := nav.LoadSnapshot(a.SnapshotFile)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	g, err := s.ToGridMap(config.Grid)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", a.SnapshotFile, err)
	}
	fmt.Printf("Loaded %dx%d snapshot from %s\n", s.Width, s.Height, s.AgentID)

	ov := nav.Overlay{
		Frontiers: nav.ExtractFrontiers(g.ToTernary(), config.Frontier.MinSize),
		Label:     s.AgentID,
	}
	if err := a.writeMap(a.OutputFile, g, ov); err != nil {
		return err
	}
	fmt.Printf("Map written to %s\n", a.OutputFile)
	return nil
}

// writeMap renders g with the configured format. Vector output is SVG when
// the file ends in .svg and PNG otherwise.
func (a *App) writeMap(path string, g *nav.GridMap, ov nav.Overlay) error {
	if a.RenderFormat != "vector" {
		return nav.NewGridRenderer().SavePNG(path, g, ov)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	vr := nav.NewVectorRenderer()
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		err = vr.RenderToSVG(f, g, ov)
	} else {
		err = vr.RenderToPNG(f, g, ov)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}

// RunService runs the agent against the simulated world, sharing its map
// over MQTT and HTTP until interrupted.
func (a *App) RunService() error {
	fmt.Println("Starting tudonav service...")

	config, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := a.setupNavigator(config); err != nil {
		return err
	}

	a.StateTracker = nav.NewStateTrackerWithCache(config.AgentID, a.CacheFile)
	if err := a.StateTracker.Restore(a.Navigator.Grid); err != nil {
		log.Printf("Warning: ignoring grid cache %s: %v", a.CacheFile, err)
	}

	if a.MqttMode {
		snapshotHandler := func(peerID string, snap *nav.GridSnapshot, err error) {
			if err != nil {
				log.Printf("Peer %s: %v", peerID, err)
			}
		}

		mqttClient, err := nav.InitMQTT(config, a.Navigator.Grid, snapshotHandler)
		if err != nil {
			return fmt.Errorf("initialize MQTT: %w", err)
		}
		if mqttClient == nil {
			return errors.New("MQTT broker not configured in config.yaml")
		}
		mqttClient.SetPoseHandler(a.StateTracker.UpdatePeerPose)
		a.MQTTClient = mqttClient

		a.Publisher = nav.NewPublisher(mqttClient.GetClient(), config.AgentID, config.MQTT.PublishPrefix)
		fmt.Println("MQTT publisher initialized")
	}

	var server *http.Server
	if a.HttpMode {
		server = &http.Server{
			Addr:    fmt.Sprintf("0.0.0.0:%d", a.HttpPort),
			Handler: newHTTPServer(a.StateTracker, a.Navigator.Grid, config),
		}
		go func() {
			log.Printf("[HTTP] Starting server on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	a.printServiceInfo(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.syncPeersLoop(ctx, config)
	a.tickLoop(ctx)

	fmt.Println("\nShutting down...")
	a.StateTracker.Persist(a.Navigator.Grid)
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[HTTP] Shutdown error: %v", err)
		}
	}
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	return nil
}

func (a *App) printServiceInfo(config *nav.Config) {
	fmt.Println("\nService Running")
	fmt.Println("===============")
	fmt.Printf("Agent: %s\n", config.AgentID)

	if a.MqttMode {
		fmt.Println("\nMQTT:")
		fmt.Println("  Subscribed topics:")
		for _, peer := range config.Peers {
			fmt.Printf("    - %s (%s)\n", peer.Topic, peer.ID)
		}
		fmt.Printf("  Publishing to: %s\n", a.Publisher.Topic("{grid,pose,path}"))
	}

	if a.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", a.HttpPort)
		fmt.Println("  GET /health     - Health check")
		fmt.Println("  GET /map.png    - Raster map with overlay")
		fmt.Println("  GET /map.svg    - Vector map with overlay")
		fmt.Println("  GET /grid       - Compressed grid snapshot for peers")
		fmt.Println("  GET /frontiers  - Current frontiers")
		fmt.Println("  GET /path       - Path being followed")
		fmt.Println("  GET /state      - Navigator state and peer poses")
	}
	fmt.Println("\nPress Ctrl+C to stop")
}

// tickLoop runs the control loop until ctx is cancelled
func (a *App) tickLoop(ctx context.Context) {
	interval := a.TickInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.step(ctx)
		}
	}
}

// step runs one control tick and publishes the result
func (a *App) step(ctx context.Context) {
	ranges, angles := a.World.Scan(a.Rays, a.Config.Grid.MaxRange)
	pose := a.World.Pose
	cmd := a.Navigator.Tick(ctx, pose, ranges, angles)
	a.World.Apply(cmd, a.Dt)
	a.StateTracker.UpdateFromNavigator(a.Navigator, pose)
	a.ticks++

	status := a.Navigator.Status()
	if status != a.lastStatus {
		log.Printf("Navigator %s -> %s after %d ticks", a.lastStatus, status, a.ticks)
		a.lastStatus = status
	}

	if a.Publisher != nil {
		if err := a.Publisher.PublishPose(pose, status); err != nil {
			log.Printf("Error publishing pose: %v", err)
		}
		if a.ticks%publishEveryTicks == 0 {
			if err := a.Publisher.PublishGrid(a.Navigator.Grid); err != nil {
				log.Printf("Error publishing grid: %v", err)
			}
			var target *nav.Point
			if p, ok := a.Navigator.Target(); ok {
				target = &p
			}
			if err := a.Publisher.PublishPath(a.Navigator.CurrentPath(), target); err != nil {
				log.Printf("Error publishing path: %v", err)
			}
		}
	}

	if a.ticks%persistEveryTicks == 0 {
		a.StateTracker.Persist(a.Navigator.Grid)
	}
}

// syncPeersLoop pulls snapshots from peers with an HTTP endpoint
func (a *App) syncPeersLoop(ctx context.Context, config *nav.Config) {
	hasAPI := false
	for _, peer := range config.Peers {
		if peer.ApiURL != nil && *peer.ApiURL != "" {
			hasAPI = true
			break
		}
	}
	if !hasAPI {
		return
	}

	ticker := time.NewTicker(peerSyncInterval)
	defer ticker.Stop()
	for {
		merged, errs := nav.SyncPeers(ctx, config, a.Navigator.Grid)
		for _, err := range errs {
			log.Printf("Peer sync: %v", err)
		}
		if merged > 0 {
			log.Printf("Merged %d peer snapshot(s) over HTTP", merged)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
