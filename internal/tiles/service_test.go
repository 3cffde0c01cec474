package tiles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/travellife/internal/logging"
	"github.com/dmitrijs2005/travellife/internal/tilemath"
)

var tokyo = []tilemath.LatLng{{Lat: 35.6762, Lng: 139.6503}}

func newTestService(t *testing.T, handler http.Handler) (*Service, string) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	s := New(Config{
		URLTemplate: ts.URL + "/{z}/{x}/{y}.png",
		CacheDir:    dir,
		Concurrency: 2,
	}, ts.Client(), logging.NewNopLogger())
	return s, dir
}

func TestEstimate(t *testing.T) {
	s := New(Config{AverageTileSize: 10_000}, nil, logging.NewNopLogger())

	est, err := s.Estimate(tokyo, 5, 10, 11)
	require.NoError(t, err)
	assert.Positive(t, est.TileCount)
	assert.Equal(t, int64(est.TileCount)*10_000, est.EstimatedBytes)
}

func TestEstimate_NoCoordinates(t *testing.T) {
	s := New(Config{}, nil, logging.NewNopLogger())

	_, err := s.Estimate(nil, 5, 10, 11)
	assert.ErrorIs(t, err, tilemath.ErrNoValidCoordinates)
}

func TestPrepare_DownloadsAndSkipsCached(t *testing.T) {
	var hits atomic.Int64
	s, dir := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("png-bytes"))
	}))
	ctx := context.Background()

	res, err := s.Prepare(ctx, tokyo, 1, 10, 10)
	require.NoError(t, err)
	assert.Positive(t, res.Downloaded)
	assert.Zero(t, res.Skipped)
	assert.Zero(t, res.Failed)
	assert.Equal(t, int64(res.Downloaded)*int64(len("png-bytes")), res.Bytes)

	// every downloaded tile is on disk under z/x/y.png
	tile := tilemath.LatLngToTile(tokyo[0].Lat, tokyo[0].Lng, 10)
	_, err = os.Stat(filepath.Join(dir, "10",
		strconv.Itoa(tile.X), strconv.Itoa(tile.Y)+".png"))
	require.NoError(t, err)

	// a second run touches the network for nothing
	before := hits.Load()
	res, err = s.Prepare(ctx, tokyo, 1, 10, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Downloaded)
	assert.Positive(t, res.Skipped)
	assert.Equal(t, before, hits.Load())
}

func TestPrepare_CountsFailures(t *testing.T) {
	s, dir := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tile missing", http.StatusNotFound)
	}))

	res, err := s.Prepare(context.Background(), tokyo, 1, 10, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Downloaded)
	assert.Positive(t, res.Failed)

	// nothing half-written left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, e.IsDir())
	}
}

