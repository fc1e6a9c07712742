package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb/maptile"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/tilegrid/internal/api"
	"github.com/joeblew999/tilegrid/internal/api/mapui"
	"github.com/joeblew999/tilegrid/internal/cover"
	"github.com/joeblew999/tilegrid/internal/gridtiles"
	"github.com/joeblew999/tilegrid/internal/history"
	"github.com/joeblew999/tilegrid/internal/logging"
	"github.com/joeblew999/tilegrid/internal/navigate"
	"github.com/joeblew999/tilegrid/internal/service"
	"github.com/joeblew999/tilegrid/internal/templates"
)

// DefaultStyleURL is the base map style the viewer loads.
const DefaultStyleURL = "https://demotiles.maplibre.org/style.json"

// Config holds the server configuration.
type Config struct {
	Host     string
	Port     string
	DataDir  string
	WebDir   string // Path to web/ directory for static files and templates
	StyleURL string
	Dev      bool // reparse page templates on every request
	Log      *logrus.Logger
}

// Server is the tilegrid HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	log      *logrus.Logger
	maps     *service.MapService
	history  *history.Store
	archives *service.ArchiveService
	renderer *templates.Renderer
}

// New creates a new tilegrid server. History and the viewer page are
// optional: when the database or the templates cannot be opened the
// server runs without them.
func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = logging.Discard()
	}
	if cfg.StyleURL == "" {
		cfg.StyleURL = DefaultStyleURL
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("tilegrid API", "1.0.0")
	humaConfig.Info.Description = "Slippy-map tile grid API: quadkeys, viewport grids, vector tiles and live map overlays."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		log:     log,
	}

	var recorder navigate.Recorder
	if cfg.DataDir != "" {
		store, err := history.Open(history.Config{DataDir: cfg.DataDir, DBName: "tilegrid"})
		if err != nil {
			log.WithError(err).Warn("navigation history disabled")
		} else {
			s.history = store
			recorder = store
		}
	}
	s.maps = service.NewMapService(cover.TileCover{}, recorder, log)
	s.archives = service.NewArchiveService(cfg.DataDir)

	if cfg.WebDir != "" {
		templatesDir := filepath.Join(cfg.WebDir, "templates")
		if r, err := templates.New(templatesDir); err == nil {
			s.renderer = r
			log.WithField("dir", templatesDir).Info("loaded page templates")
		} else {
			log.WithError(err).Warn("viewer page disabled")
		}
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close closes every open map and the history database.
func (s *Server) Close() error {
	s.maps.CloseAll()
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.NewAPIHandler(cover.TileCover{}).RegisterRoutes(s.humaAPI)
	api.NewInfoHandler(s.config.DataDir, s.history != nil).RegisterRoutes(s.humaAPI)
	api.NewHistoryHandler(s.history).RegisterRoutes(s.humaAPI)
	api.NewArchivesHandler(s.archives).RegisterRoutes(s.humaAPI)

	// Register map SSE routes using Huma + Datastar SDK
	mapui.NewMapHandler(s.maps, s.log).RegisterRoutes(s.humaAPI)

	// Vector tiles are binary and keep a file-like path, so they stay off Huma.
	s.mux.HandleFunc("GET /grid/{z}/{x}/{y}", s.handleGridTile)

	// Generated archives, with CORS and Range support for PMTiles readers
	s.mux.Handle("/tiles/", http.StripPrefix("/tiles/", s.handleTiles(s.archives.TilesDir())))

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	// Page routes
	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "tilegrid",
		"status":  "running",
	})
}

// ViewerData seeds the map page.
type ViewerData struct {
	StyleURL string           `json:"styleUrl"`
	Center   [2]float64       `json:"center"`
	Zoom     float64          `json:"zoom"`
	Padding  navigate.Padding `json:"padding"`
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	if s.renderer == nil {
		http.Error(w, "Viewer not available", http.StatusNotFound)
		return
	}
	if s.config.Dev {
		if err := s.renderer.Reload(filepath.Join(s.config.WebDir, "templates")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	data := ViewerData{
		StyleURL: s.config.StyleURL,
		Center:   [2]float64{0, 25},
		Zoom:     1.3,
		Padding:  navigate.DefaultPadding,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Execute(w, "viewer.html", data); err != nil {
		s.log.WithError(err).Error("rendering viewer")
	}
}

func (s *Server) handleTiles(tilesDir string) http.Handler {
	files := http.FileServer(http.Dir(tilesDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		files.ServeHTTP(w, r)
	})
}

// handleGridTile serves /grid/{z}/{x}/{y}.mvt: the tile outline and
// label point as a gzipped Mapbox vector tile.
func (s *Server) handleGridTile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	t, ok := parseTilePath(r.PathValue("z"), r.PathValue("x"), r.PathValue("y"))
	if !ok {
		http.Error(w, "Invalid tile", http.StatusBadRequest)
		return
	}

	data, err := gridtiles.Render(t)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.mapbox-vector-tile")
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

func parseTilePath(zs, xs, ys string) (maptile.Tile, bool) {
	ys = strings.TrimSuffix(ys, ".mvt")
	z, err := strconv.ParseUint(zs, 10, 8)
	if err != nil {
		return maptile.Tile{}, false
	}
	x, err := strconv.ParseUint(xs, 10, 32)
	if err != nil {
		return maptile.Tile{}, false
	}
	y, err := strconv.ParseUint(ys, 10, 32)
	if err != nil {
		return maptile.Tile{}, false
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), true
}
