package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/cheggaaa/pb.v1"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/tilegrid/internal/api"
	"github.com/joeblew999/tilegrid/internal/cover"
	"github.com/joeblew999/tilegrid/internal/gridtiles"
	"github.com/joeblew999/tilegrid/internal/logging"
	"github.com/joeblew999/tilegrid/internal/navigate"
	"github.com/joeblew999/tilegrid/internal/overlay"
	"github.com/joeblew999/tilegrid/internal/server"
)

// Options defines all CLI flags and env vars for the tilegrid server.
// Flags: --host, --port, --data-dir, --web-dir, --style-url, --log-level, --log-dir, --dev
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, ...
type Options struct {
	Host     string `doc:"Host to bind to" default:"0.0.0.0"`
	Port     int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir  string `doc:"Directory for the history database" default:".data"`
	WebDir   string `doc:"Path to web/ directory" default:"web"`
	StyleURL string `doc:"Base map style loaded by the viewer" default:"https://demotiles.maplibre.org/style.json"`
	LogLevel string `doc:"Log level (debug, info, warn, error)" default:"info"`
	LogDir   string `doc:"Also write logs to dated files in this directory"`
	Dev      bool   `doc:"Reload page templates on every request"`
}

func newLogger(opts *Options) *logrus.Logger {
	log, err := logging.New(logging.Config{Level: opts.LogLevel, Dir: opts.LogDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	return log
}

func newServer(opts *Options, log *logrus.Logger) *server.Server {
	return server.New(server.Config{
		Host:     opts.Host,
		Port:     fmt.Sprintf("%d", opts.Port),
		DataDir:  opts.DataDir,
		WebDir:   opts.WebDir,
		StyleURL: opts.StyleURL,
		Dev:      opts.Dev,
		Log:      log,
	})
}

// parseBBox reads "west,south,east,north".
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox %q: want west,south,east,north", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("bbox %q: min above max", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		log := newLogger(opts)
		srv := newServer(opts, log)
		httpServer := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", opts.Host, opts.Port),
			Handler: srv,
		}

		hooks.OnStart(func() {
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			log.WithFields(logrus.Fields{
				"server":  baseURL,
				"data":    opts.DataDir,
				"viewer":  baseURL + "/viewer",
				"docs":    baseURL + "/docs",
				"openapi": baseURL + "/openapi.json",
			}).Info("tilegrid API server starting")

			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Fatal("server error")
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(ctx)
			if err := srv.Close(); err != nil {
				log.WithError(err).Warn("closing server")
			}
		})
	})

	cli.Root().Use = "tilegrid"
	cli.Root().Short = "Slippy-map tile grid overlay and quadkey navigator"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := server.New(server.Config{Host: opts.Host, Port: fmt.Sprintf("%d", opts.Port)})
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// quadkey subcommand: resolve a quadkey to its tile
	quadkeyCmd := &cobra.Command{
		Use:   "quadkey <quadkey>",
		Short: "Print the tile, bounds and fit padding of a quadkey",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			target, err := navigate.Resolve(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			printJSON(api.QuadkeyBody{Tile: api.NewTileBody(target.Tile), Padding: target.Padding})
		},
	}
	cli.Root().AddCommand(quadkeyCmd)

	// grid subcommand: print the overlay for one viewport
	gridCmd := &cobra.Command{
		Use:   "grid",
		Short: "Print the tile and label GeoJSON the map would draw for a viewport",
		Run: func(cmd *cobra.Command, args []string) {
			bboxFlag, _ := cmd.Flags().GetString("bbox")
			zoom, _ := cmd.Flags().GetFloat64("zoom")

			b, err := parseBBox(bboxFlag)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			v := overlay.ViewportFromBound(b, zoom)
			if err := api.CheckSize(v); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			cols, err := overlay.Build(v, cover.TileCover{})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error building grid: %v\n", err)
				os.Exit(1)
			}
			printJSON(api.GridBody{Zoom: uint32(cols.Zoom), Tiles: cols.Tiles, Centers: cols.Centers})
		},
	}
	gridCmd.Flags().String("bbox", "-180,-85,180,85", "Viewport as west,south,east,north")
	gridCmd.Flags().Float64("zoom", 1.3, "Map zoom, fractional")
	cli.Root().AddCommand(gridCmd)

	// export subcommand: write the grid as a PMTiles archive
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Render the grid as vector tiles into a PMTiles archive",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			log := newLogger(opts)
			out, _ := cmd.Flags().GetString("output")
			bboxFlag, _ := cmd.Flags().GetString("bbox")
			minZoom, _ := cmd.Flags().GetInt("min-zoom")
			maxZoom, _ := cmd.Flags().GetInt("max-zoom")
			name, _ := cmd.Flags().GetString("name")

			b, err := parseBBox(bboxFlag)
			if err != nil {
				log.WithError(err).Fatal("invalid bbox")
			}
			exportOpts := gridtiles.ExportOptions{Bound: b, MinZoom: minZoom, MaxZoom: maxZoom, Name: name}

			f, err := os.Create(out)
			if err != nil {
				log.WithError(err).Fatal("creating archive")
			}
			defer f.Close()

			bar := pb.New(gridtiles.Count(exportOpts)).Prefix("Grid tiles: ")
			bar.SetRefreshRate(200 * time.Millisecond)
			bar.Output = os.Stderr
			bar.Start()

			started := time.Now()
			stats, err := gridtiles.Export(f, exportOpts, func(done, total int) {
				bar.Set(done)
			})
			bar.Finish()
			if err != nil {
				log.WithError(err).Fatal("export failed")
			}

			log.WithFields(logrus.Fields{
				"file":  out,
				"tiles": humanize.Comma(int64(stats.Tiles)),
				"size":  humanize.Bytes(uint64(stats.Bytes)),
				"took":  time.Since(started).Round(time.Millisecond),
			}).Info("export finished")
		}),
	}
	exportCmd.Flags().StringP("output", "o", "grid.pmtiles", "Archive to write")
	exportCmd.Flags().String("bbox", "-180,-85.0511,180,85.0511", "Area to export as west,south,east,north")
	exportCmd.Flags().Int("min-zoom", 0, "Lowest zoom")
	exportCmd.Flags().Int("max-zoom", 5, "Highest zoom")
	exportCmd.Flags().String("name", "tilegrid", "Archive name in metadata")
	cli.Root().AddCommand(exportCmd)

	cli.Run()
}
