package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line
type AppOptions struct {
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
	Simulate     bool
	Render       bool
	MqttMode     bool
	HttpMode     bool
}

// application is the surface run dispatches to
type application interface {
	ApplyOptions(opts AppOptions)
	RunSimulate() error
	RunRender() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer, app application) error {
	fs := flag.NewFlagSet("tudonav", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to config file")
	fs.StringVar(&opts.WorldFile, "world", "", "ASCII world map for the simulator (default: built-in map)")
	fs.StringVar(&opts.CacheFile, "cache", ".grid-cache.json", "Grid snapshot cache used by the service")
	fs.StringVar(&opts.OutputFile, "output", "tudonav.png", "Output image for --simulate and --render")
	fs.StringVar(&opts.SnapshotFile, "snapshot", "", "Snapshot file to write (--simulate) or read (--render)")
	fs.StringVar(&opts.RenderFormat, "format", "raster", "Render format: raster or vector")
	fs.StringVar(&opts.Goal, "goal", "", "Navigate to x,y instead of exploring")
	fs.IntVar(&opts.Steps, "steps", 3000, "Maximum simulation ticks")
	fs.IntVar(&opts.Rays, "rays", 180, "Range readings per scan")
	fs.Float64Var(&opts.Dt, "dt", 0.1, "Simulation time step in seconds")
	fs.DurationVar(&opts.TickInterval, "tick", 100*time.Millisecond, "Control tick interval in service mode")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")
	fs.BoolVar(&opts.Simulate, "simulate", false, "Explore the simulated world and write the map")
	fs.BoolVar(&opts.Render, "render", false, "Render a saved snapshot")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Share maps over MQTT in service mode")
	fs.BoolVar(&opts.HttpMode, "http", false, "Serve maps and state over HTTP in service mode")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "tudonav version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.Simulate:
		return app.RunSimulate()
	case opts.Render:
		return app.RunRender()
	default:
		fmt.Fprintln(out, "tudonav service starting...")
		return app.RunService()
	}
}
