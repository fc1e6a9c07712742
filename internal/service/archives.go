package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"

	"github.com/joeblew999/tilegrid/internal/gridtiles"
)

// MaxArchiveTiles caps one generated archive.
const MaxArchiveTiles = 200_000

// ErrArchiveTooLarge is returned when an archive would hold more than
// MaxArchiveTiles tiles.
var ErrArchiveTooLarge = errors.New("archive too large")

// ArchiveFile is a grid archive in the tiles directory.
type ArchiveFile struct {
	Name  string `json:"name" doc:"File name, served under /tiles/"`
	Size  string `json:"size" doc:"Human readable size"`
	Bytes int64  `json:"bytes" doc:"Size in bytes"`
}

// GenerateOptions selects the area and zooms of a grid archive.
type GenerateOptions struct {
	Name    string  `json:"name" required:"true" doc:"Output PMTiles name" example:"world"`
	West    float64 `json:"west,omitempty" minimum:"-180" maximum:"180" default:"-180"`
	South   float64 `json:"south,omitempty" minimum:"-85.0511" maximum:"85.0511" default:"-85.0511"`
	East    float64 `json:"east,omitempty" minimum:"-180" maximum:"180" default:"180"`
	North   float64 `json:"north,omitempty" minimum:"-85.0511" maximum:"85.0511" default:"85.0511"`
	MinZoom int     `json:"minZoom,omitempty" minimum:"0" maximum:"22" doc:"Minimum zoom level"`
	MaxZoom int     `json:"maxZoom,omitempty" minimum:"0" maximum:"22" default:"5" doc:"Maximum zoom level"`
}

func (o GenerateOptions) export() gridtiles.ExportOptions {
	return gridtiles.ExportOptions{
		Bound:   orb.Bound{Min: orb.Point{o.West, o.South}, Max: orb.Point{o.East, o.North}},
		MinZoom: o.MinZoom,
		MaxZoom: o.MaxZoom,
		Name:    strings.TrimSuffix(o.Name, ".pmtiles"),
	}
}

// ArchiveService writes grid archives to <DataDir>/tiles and lists them.
type ArchiveService struct {
	tilesDir string
}

// NewArchiveService creates a new archive service.
func NewArchiveService(dataDir string) *ArchiveService {
	return &ArchiveService{
		tilesDir: filepath.Join(dataDir, "tiles"),
	}
}

// TilesDir returns the path to the tiles directory.
func (s *ArchiveService) TilesDir() string {
	return s.tilesDir
}

// List returns all available PMTiles files.
func (s *ArchiveService) List() ([]ArchiveFile, error) {
	entries, err := os.ReadDir(s.tilesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ArchiveFile{}, nil
		}
		return nil, err
	}

	files := []ArchiveFile{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pmtiles" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, ArchiveFile{
			Name:  entry.Name(),
			Size:  humanize.Bytes(uint64(info.Size())),
			Bytes: info.Size(),
		})
	}

	return files, nil
}

// ValidateName rejects names that would escape the tiles directory.
func ValidateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid archive name %q", name)
	}
	return nil
}

// Generate renders the grid described by opts into <name>.pmtiles. The
// archive is written to a temporary file and renamed into place, so a
// failed run leaves any previous archive untouched.
func (s *ArchiveService) Generate(opts GenerateOptions, onProgress gridtiles.ProgressFunc) (ArchiveFile, gridtiles.Stats, error) {
	if err := ValidateName(opts.Name); err != nil {
		return ArchiveFile{}, gridtiles.Stats{}, err
	}
	if !strings.HasSuffix(opts.Name, ".pmtiles") {
		opts.Name += ".pmtiles"
	}
	eo := opts.export()
	if n := gridtiles.Count(eo); n > MaxArchiveTiles {
		return ArchiveFile{}, gridtiles.Stats{}, fmt.Errorf("%w: %d tiles, limit %d", ErrArchiveTooLarge, n, MaxArchiveTiles)
	}

	if err := os.MkdirAll(s.tilesDir, 0755); err != nil {
		return ArchiveFile{}, gridtiles.Stats{}, fmt.Errorf("failed to create tiles directory: %w", err)
	}

	f, err := os.CreateTemp(s.tilesDir, ".export-*")
	if err != nil {
		return ArchiveFile{}, gridtiles.Stats{}, err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	stats, err := gridtiles.Export(f, eo, onProgress)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return ArchiveFile{}, gridtiles.Stats{}, err
	}

	outputPath := filepath.Join(s.tilesDir, opts.Name)
	if err := os.Rename(tmp, outputPath); err != nil {
		return ArchiveFile{}, gridtiles.Stats{}, err
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		return ArchiveFile{}, gridtiles.Stats{}, err
	}
	return ArchiveFile{
		Name:  opts.Name,
		Size:  humanize.Bytes(uint64(info.Size())),
		Bytes: info.Size(),
	}, stats, nil
}
