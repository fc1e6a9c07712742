package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb/encoding/mvt"
)

func newTestServer(t *testing.T, webDir string) *httptest.Server {
	t.Helper()
	return startServer(t, Config{Host: "localhost", Port: "0", DataDir: t.TempDir(), WebDir: webDir})
}

func startServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	s := New(cfg)
	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode
}

func post(t *testing.T, url string, body any) int {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", strings.NewReader(string(b)))
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "")
	var body struct{ Status string }
	if code := getJSON(t, ts.URL+"/health", &body); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if body.Status != "ok" {
		t.Fatalf("status=%q, want ok", body.Status)
	}
}

func TestInfo(t *testing.T) {
	ts := newTestServer(t, "")
	var body struct {
		Name    string
		History bool
	}
	getJSON(t, ts.URL+"/api/v1/info", &body)
	if body.Name != "tilegrid" {
		t.Fatalf("name=%q, want tilegrid", body.Name)
	}
	if !body.History {
		t.Fatal("history should be available with a data dir")
	}
}

func TestGridWholeWorld(t *testing.T) {
	ts := newTestServer(t, "")
	var body struct {
		Zoom  int
		Tiles struct {
			Features []json.RawMessage
		}
	}
	code := getJSON(t, ts.URL+"/api/v1/grid?west=-179&south=-85&east=179&north=85&zoom=1.3", &body)
	if code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if body.Zoom != 2 {
		t.Fatalf("zoom=%d, want 2", body.Zoom)
	}
	if len(body.Tiles.Features) != 16 {
		t.Fatalf("tiles=%d, want 16", len(body.Tiles.Features))
	}
}

func TestQuadkeyLookup(t *testing.T) {
	ts := newTestServer(t, "")
	var body struct {
		Tile struct{ X, Y, Z uint32 }
	}
	if code := getJSON(t, ts.URL+"/api/v1/quadkeys/3", &body); code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if tl := body.Tile; tl.X != 1 || tl.Y != 1 || tl.Z != 1 {
		t.Fatalf("tile=%d/%d/%d, want 1/1/1", tl.Z, tl.X, tl.Y)
	}

	if code := getJSON(t, ts.URL+"/api/v1/quadkeys/X9", nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("code=%d, want 422", code)
	}
}

func TestGridTile(t *testing.T) {
	ts := newTestServer(t, "")

	// asking for gzip explicitly keeps the transport from decompressing
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/grid/1/1/0.mvt", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.mapbox-vector-tile" {
		t.Fatalf("content-type=%q", ct)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	layers, err := mvt.UnmarshalGzipped(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 2 {
		t.Fatalf("layers=%d, want 2", len(layers))
	}

	for _, path := range []string{"/grid/1/2/0.mvt", "/grid/a/0/0.mvt", "/grid/23/0/0.mvt"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: code=%d, want 400", path, resp.StatusCode)
		}
	}
}

func TestViewer(t *testing.T) {
	web := t.TempDir()
	if err := os.MkdirAll(filepath.Join(web, "templates"), 0755); err != nil {
		t.Fatal(err)
	}
	page := `<script>const cfg = {{json .}};</script>`
	if err := os.WriteFile(filepath.Join(web, "templates", "viewer.html"), []byte(page), 0644); err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, web)

	resp, err := http.Get(ts.URL + "/viewer")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), `"padding":{"top":200,"bottom":200,"left":200,"right":200}`) {
		t.Fatalf("viewer=%s", b)
	}
}

func TestViewerDevReload(t *testing.T) {
	web := t.TempDir()
	dir := filepath.Join(web, "templates")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	page := filepath.Join(dir, "viewer.html")
	if err := os.WriteFile(page, []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}
	ts := startServer(t, Config{DataDir: t.TempDir(), WebDir: web, Dev: true})

	get := func() string {
		resp, err := http.Get(ts.URL + "/viewer")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return string(b)
	}
	if got := get(); got != "v1" {
		t.Fatalf("viewer=%q, want v1", got)
	}
	if err := os.WriteFile(page, []byte("v2"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := get(); got != "v2" {
		t.Fatalf("viewer=%q, want v2 after edit", got)
	}
}

// stream reads an SSE body line by line.
type stream struct {
	lines chan string
}

func openStream(t *testing.T, url string) *stream {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	s := &stream{lines: make(chan string, 256)}
	go func() {
		defer close(s.lines)
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
		for sc.Scan() {
			s.lines <- sc.Text()
		}
	}()
	return s
}

// next returns the first line containing substr.
func (s *stream) next(t *testing.T, substr string) string {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				t.Fatalf("stream ended waiting for %q", substr)
			}
			if strings.Contains(line, substr) {
				return line
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", substr)
		}
	}
}

var mapIDPattern = regexp.MustCompile(`"mapid":"([^"]+)"`)

func TestMapSession(t *testing.T) {
	ts := newTestServer(t, "")
	events := openStream(t, ts.URL+"/api/v1/map/events")

	m := mapIDPattern.FindStringSubmatch(events.next(t, `"mapid"`))
	if m == nil {
		t.Fatal("no map id signal")
	}
	id := m[1]

	code := post(t, ts.URL+"/api/v1/map/viewport", map[string]any{
		"mapid": id,
		"viewport": map[string]any{
			"sw":   []float64{-179, -85},
			"nw":   []float64{-179, 85},
			"ne":   []float64{179, 85},
			"se":   []float64{179, -85},
			"zoom": 1.3,
		},
	})
	if code >= 300 {
		t.Fatalf("viewport code=%d", code)
	}
	events.next(t, `"quadkey":"33"`)

	// an invalid quadkey moves nothing, so the first fit seen is for "3"
	if code := post(t, ts.URL+"/api/v1/map/search", map[string]any{"mapid": id, "quadkey": "X9"}); code >= 300 {
		t.Fatalf("search code=%d", code)
	}
	if code := post(t, ts.URL+"/api/v1/map/search", map[string]any{"mapid": id, "quadkey": "3"}); code >= 300 {
		t.Fatalf("search code=%d", code)
	}
	fit := events.next(t, "tilegrid.fitBounds")
	if !strings.Contains(fit, "tilegrid.fitBounds([[0,-85.05") {
		t.Fatalf("fit=%s", fit)
	}

	var hist struct {
		Navigations []struct{ Quadkey string }
	}
	getJSON(t, ts.URL+"/api/v1/history", &hist)
	if len(hist.Navigations) != 1 || hist.Navigations[0].Quadkey != "3" {
		t.Fatalf("history=%+v, want one jump to 3", hist.Navigations)
	}

	if code := post(t, ts.URL+"/api/v1/map/click", map[string]any{"mapid": id, "lng": 10.0, "lat": 10.0}); code >= 300 {
		t.Fatalf("click code=%d", code)
	}
	events.next(t, `navigator.clipboard.writeText("12")`)
	events.next(t, `"snackbar":true`)
}

func TestMapUnknown(t *testing.T) {
	ts := newTestServer(t, "")
	if code := post(t, ts.URL+"/api/v1/map/search", map[string]any{"mapid": "nope", "quadkey": "1"}); code != http.StatusNotFound {
		t.Fatalf("code=%d, want 404", code)
	}
}

func TestArchives(t *testing.T) {
	ts := newTestServer(t, "")

	code := post(t, ts.URL+"/api/v1/archives", map[string]any{"name": "small", "maxZoom": 1})
	if code != http.StatusOK {
		t.Fatalf("create code=%d", code)
	}
	if code := post(t, ts.URL+"/api/v1/archives", map[string]any{"name": "../escape"}); code != http.StatusUnprocessableEntity {
		t.Fatalf("bad name code=%d, want 422", code)
	}

	var list struct {
		Archives []struct{ Name string }
	}
	getJSON(t, ts.URL+"/api/v1/archives", &list)
	if len(list.Archives) != 1 || list.Archives[0].Name != "small.pmtiles" {
		t.Fatalf("archives=%+v", list.Archives)
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/tiles/small.pmtiles", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Range", "bytes=0-6")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("code=%d, want 206", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
	magic, _ := io.ReadAll(resp.Body)
	if string(magic) != "PMTiles" {
		t.Fatalf("magic=%q", magic)
	}
}
