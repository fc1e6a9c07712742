// Package pmtiles writes single-directory PMTiles v3 archives.
//
// Only what the grid exporter needs is here: gzip or raw directories, a
// root directory with no leaf directories, and one entry per tile.
// Format: https://github.com/protomaps/PMTiles/blob/main/spec/v3/spec.md
package pmtiles

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Compression applies to tiles, the directory and metadata.
type Compression uint8

const (
	NoCompression Compression = 1
	Gzip          Compression = 2
)

// TileType is the format of the tile payloads.
type TileType uint8

const Mvt TileType = 1

// HeaderLen is the fixed size of a v3 header.
const HeaderLen = 127

var magic = []byte("PMTiles")

// Header is the v3 header. Offsets and counts are filled in by Write.
type Header struct {
	SpecVersion         uint8
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirectoryOffset uint64
	LeafDirectoryLength uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTilesCount uint64
	TileEntriesCount    uint64
	TileContentsCount   uint64
	Clustered           bool
	InternalCompression Compression
	TileCompression     Compression
	TileType            TileType
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

// Entry points at one run of tile data.
type Entry struct {
	TileID    uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

// ZxyToID converts tile coordinates to the Hilbert tile ID.
func ZxyToID(z uint8, x, y uint32) uint64 {
	id := (uint64(1)<<(2*uint(z)) - 1) / 3
	if z == 0 {
		return id
	}
	n := uint32(z - 1)
	for s := uint32(1) << n; s > 0; s >>= 1 {
		rx, ry := s&x, s&y
		id += uint64((3*rx)^ry) << n
		if ry == 0 {
			if rx != 0 {
				x, y = s-1-x, s-1-y
			}
			x, y = y, x
		}
		n--
	}
	return id
}

// MarshalHeader encodes h. The version byte is always 3.
func MarshalHeader(h Header) []byte {
	b := make([]byte, 0, HeaderLen)
	b = append(b, magic...)
	b = append(b, 3)
	for _, v := range []uint64{
		h.RootOffset, h.RootLength,
		h.MetadataOffset, h.MetadataLength,
		h.LeafDirectoryOffset, h.LeafDirectoryLength,
		h.TileDataOffset, h.TileDataLength,
		h.AddressedTilesCount, h.TileEntriesCount, h.TileContentsCount,
	} {
		b = binary.LittleEndian.AppendUint64(b, v)
	}
	var clustered byte
	if h.Clustered {
		clustered = 1
	}
	b = append(b, clustered, byte(h.InternalCompression), byte(h.TileCompression), byte(h.TileType), h.MinZoom, h.MaxZoom)
	for _, v := range []int32{h.MinLonE7, h.MinLatE7, h.MaxLonE7, h.MaxLatE7} {
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	b = append(b, h.CenterZoom)
	b = binary.LittleEndian.AppendUint32(b, uint32(h.CenterLonE7))
	b = binary.LittleEndian.AppendUint32(b, uint32(h.CenterLatE7))
	return b
}

// UnmarshalHeader decodes a header produced by MarshalHeader.
func UnmarshalHeader(d []byte) (Header, error) {
	var h Header
	if len(d) < HeaderLen {
		return h, errors.New("buffer too small for header")
	}
	if !bytes.Equal(d[:7], magic) {
		return h, errors.New("magic number not detected")
	}
	h.SpecVersion = d[7]

	u64 := func(off int) uint64 { return binary.LittleEndian.Uint64(d[off:]) }
	i32 := func(off int) int32 { return int32(binary.LittleEndian.Uint32(d[off:])) }

	h.RootOffset, h.RootLength = u64(8), u64(16)
	h.MetadataOffset, h.MetadataLength = u64(24), u64(32)
	h.LeafDirectoryOffset, h.LeafDirectoryLength = u64(40), u64(48)
	h.TileDataOffset, h.TileDataLength = u64(56), u64(64)
	h.AddressedTilesCount, h.TileEntriesCount, h.TileContentsCount = u64(72), u64(80), u64(88)
	h.Clustered = d[96] == 1
	h.InternalCompression = Compression(d[97])
	h.TileCompression = Compression(d[98])
	h.TileType = TileType(d[99])
	h.MinZoom, h.MaxZoom = d[100], d[101]
	h.MinLonE7, h.MinLatE7, h.MaxLonE7, h.MaxLatE7 = i32(102), i32(106), i32(110), i32(114)
	h.CenterZoom = d[118]
	h.CenterLonE7, h.CenterLatE7 = i32(119), i32(123)
	return h, nil
}

func compress(raw []byte, c Compression) ([]byte, error) {
	switch c {
	case NoCompression:
		return raw, nil
	case Gzip:
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("compression %d not supported", c)
}

// MarshalDirectory encodes entries as a v3 directory. Entries must be
// sorted by TileID.
func MarshalDirectory(entries []Entry, c Compression) ([]byte, error) {
	var raw []byte
	raw = binary.AppendUvarint(raw, uint64(len(entries)))

	var lastID uint64
	for _, e := range entries {
		raw = binary.AppendUvarint(raw, e.TileID-lastID)
		lastID = e.TileID
	}
	for _, e := range entries {
		raw = binary.AppendUvarint(raw, uint64(e.RunLength))
	}
	for _, e := range entries {
		raw = binary.AppendUvarint(raw, uint64(e.Length))
	}
	for i, e := range entries {
		// 0 means "directly after the previous entry"
		if i > 0 && e.Offset == entries[i-1].Offset+uint64(entries[i-1].Length) {
			raw = binary.AppendUvarint(raw, 0)
		} else {
			raw = binary.AppendUvarint(raw, e.Offset+1)
		}
	}
	return compress(raw, c)
}

// Tile is one tile payload, already compressed with the archive's tile
// compression.
type Tile struct {
	Z    uint8
	X, Y uint32
	Data []byte
}

// Archive describes the archive apart from its tiles.
type Archive struct {
	Header   Header // zoom, bounds, center, compression and type
	Metadata map[string]any
}

// Write writes header, root directory, metadata and tile data, in that
// order, with tiles clustered by ID.
func Write(w io.Writer, a Archive, tiles []Tile) error {
	if len(tiles) == 0 {
		return errors.New("no tiles to write")
	}

	ids := make([]uint64, len(tiles))
	order := make([]int, len(tiles))
	for i, t := range tiles {
		ids[i] = ZxyToID(t.Z, t.X, t.Y)
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return ids[order[i]] < ids[order[j]] })

	entries := make([]Entry, 0, len(tiles))
	var data bytes.Buffer
	for _, i := range order {
		entries = append(entries, Entry{
			TileID:    ids[i],
			Offset:    uint64(data.Len()),
			Length:    uint32(len(tiles[i].Data)),
			RunLength: 1,
		})
		data.Write(tiles[i].Data)
	}

	h := a.Header
	root, err := MarshalDirectory(entries, h.InternalCompression)
	if err != nil {
		return fmt.Errorf("serializing directory: %w", err)
	}
	metaJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("serializing metadata: %w", err)
	}
	meta, err := compress(metaJSON, h.InternalCompression)
	if err != nil {
		return fmt.Errorf("compressing metadata: %w", err)
	}

	h.SpecVersion = 3
	h.RootOffset = HeaderLen
	h.RootLength = uint64(len(root))
	h.MetadataOffset = h.RootOffset + h.RootLength
	h.MetadataLength = uint64(len(meta))
	h.TileDataOffset = h.MetadataOffset + h.MetadataLength
	h.TileDataLength = uint64(data.Len())
	h.AddressedTilesCount = uint64(len(entries))
	h.TileEntriesCount = uint64(len(entries))
	h.TileContentsCount = uint64(len(entries))
	h.Clustered = true

	for _, part := range [][]byte{MarshalHeader(h), root, meta, data.Bytes()} {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}
