// internal/tile/stitcher_test.go - Unit tests for tile stitching
package tile

import (
	"context"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"terrain-tiler/internal"
	"terrain-tiler/internal/geo"
)

// tileServer records every z/x/y it serves and optionally fails some.
type tileServer struct {
	*httptest.Server
	mu     sync.Mutex
	served map[string]int
	fail   map[string]bool
	body   []byte
}

func newTileServer(t *testing.T, fill color.RGBA) *tileServer {
	ts := &tileServer{
		served: make(map[string]int),
		fail:   make(map[string]bool),
		body:   tilePNG(t, fill),
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".png")
		ts.mu.Lock()
		ts.served[key]++
		failed := ts.fail[key]
		ts.mu.Unlock()
		if failed {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(ts.body)
	}))
	return ts
}

func (ts *tileServer) failTile(z, x, y int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.fail[strconv.Itoa(z)+"/"+strconv.Itoa(x)+"/"+strconv.Itoa(y)] = true
}

func (ts *tileServer) servedX(z int) map[string]bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	xs := make(map[string]bool)
	prefix := strconv.Itoa(z) + "/"
	for key := range ts.served {
		rest := strings.TrimPrefix(key, prefix)
		if rest != key {
			xs[strings.SplitN(rest, "/", 2)[0]] = true
		}
	}
	return xs
}

func TestStitchCompositesTiles(t *testing.T) {
	tileColor := color.RGBA{130, 12, 0, 255}
	ts := newTileServer(t, tileColor)
	defer ts.Close()

	f := NewFetcher(testConfig(ts.URL+"/{z}/{x}/{y}.png", ts.URL+"/{z}/{y}/{x}"))
	b := geo.Bounds{North: 40, South: -40, West: -100, East: 100}

	canvas, err := f.Stitch(context.Background(), b, 2, KindElevation)
	if err != nil {
		t.Fatalf("Stitch() error = %v", err)
	}
	if canvas.Zoom != 2 {
		t.Errorf("canvas zoom = %d, want 2", canvas.Zoom)
	}
	if w := canvas.Image.Bounds().Dx(); w%geo.TileSize != 0 || w == 0 {
		t.Errorf("canvas width = %d, want a positive multiple of %d", w, geo.TileSize)
	}
	got, ok := canvas.At(10, 10)
	if !ok || got != tileColor {
		t.Errorf("canvas pixel = %v, want served tile color %v", got, tileColor)
	}
}

func TestStitchFillsFailedTiles(t *testing.T) {
	tileColor := color.RGBA{130, 12, 0, 255}
	ts := newTileServer(t, tileColor)
	defer ts.Close()

	f := NewFetcher(testConfig(ts.URL+"/{z}/{x}/{y}.png", ts.URL+"/{z}/{y}/{x}"))
	b := geo.Bounds{North: 40, South: -40, West: -100, East: 100}

	// Fail the north-west corner tile of the covering range.
	ts.failTile(2, 0, 1)

	canvas, err := f.Stitch(context.Background(), b, 2, KindElevation)
	if err != nil {
		t.Fatalf("Stitch() with one failed tile error = %v, want degraded success", err)
	}

	got, _ := canvas.At(10, 10)
	if got != elevationFill {
		t.Errorf("failed tile pixel = %v, want flat fill %v", got, elevationFill)
	}
	got, _ = canvas.At(300, 10)
	if got != tileColor {
		t.Errorf("healthy tile pixel = %v, want %v", got, tileColor)
	}
}

func TestStitchFailsWhenNoTileSucceeds(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	f := NewFetcher(testConfig(ts.URL+"/{z}/{x}/{y}.png", ts.URL+"/{z}/{y}/{x}"))
	b := geo.Bounds{North: 40, South: -40, West: -100, East: 100}

	_, err := f.Stitch(context.Background(), b, 2, KindElevation)
	if err == nil {
		t.Fatalf("Stitch() succeeded with every tile failing")
	}
	var appErr *internal.Error
	if !errors.As(err, &appErr) || appErr.Code != internal.ErrorCodeProvider {
		t.Errorf("Stitch() error = %v, want code %s", err, internal.ErrorCodeProvider)
	}
}

func TestStitchWrapsAcrossAntimeridian(t *testing.T) {
	ts := newTileServer(t, color.RGBA{128, 0, 0, 255})
	defer ts.Close()

	f := NewFetcher(testConfig(ts.URL+"/{z}/{x}/{y}.png", ts.URL+"/{z}/{y}/{x}"))
	b := geo.Bounds{North: 40, South: -40, West: 170, East: -170}

	canvas, err := f.Stitch(context.Background(), b, 2, KindElevation)
	if err != nil {
		t.Fatalf("Stitch() across antimeridian error = %v", err)
	}
	if w := canvas.Image.Bounds().Dx(); w != 2*geo.TileSize {
		t.Errorf("canvas width = %d, want %d (two wrapped columns)", w, 2*geo.TileSize)
	}

	// Requested tile X indices must be wrapped into [0, 2^zoom).
	xs := ts.servedX(2)
	for x := range xs {
		v, err := strconv.Atoi(x)
		if err != nil || v < 0 || v > 3 {
			t.Errorf("served tile column %q outside [0, 3]", x)
		}
	}
	if !xs["3"] || !xs["0"] {
		t.Errorf("served columns = %v, want both 3 and the wrapped 0", xs)
	}
}

func TestStitchCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	defer ts.Close()

	f := NewFetcher(testConfig(ts.URL+"/{z}/{x}/{y}.png", ts.URL+"/{z}/{y}/{x}"))
	b := geo.Bounds{North: 40, South: -40, West: -100, East: 100}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := f.Stitch(ctx, b, 2, KindElevation)
	if err == nil {
		t.Fatalf("Stitch() succeeded after cancellation")
	}
	if !internal.IsCanceled(err) {
		t.Errorf("Stitch() error = %v, want cancellation", err)
	}
}
