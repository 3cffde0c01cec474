// Package tiles pre-fetches map tiles for offline browsing: it enumerates
// the tiles covering a trip's buffered area and downloads the missing ones
// into the on-disk tile cache.
package tiles

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/travellife/internal/logging"
	"github.com/dmitrijs2005/travellife/internal/tilemath"
)

// Config tunes the pre-fetch service.
type Config struct {
	// URLTemplate is the tile server URL with {z}, {x} and {y} placeholders,
	// e.g. "https://tile.example.org/{z}/{x}/{y}.png".
	URLTemplate string

	// CacheDir is the root of the on-disk tile cache.
	CacheDir string

	// Concurrency caps parallel downloads.
	Concurrency int

	// AverageTileSize is the per-tile byte estimate used by Estimate.
	AverageTileSize int64
}

// DefaultConfig returns the tuning used when the caller has no opinion.
func DefaultConfig() Config {
	return Config{
		Concurrency:     4,
		AverageTileSize: 20_000,
	}
}

// Service downloads and caches map tiles.
type Service struct {
	cfg    Config
	client *http.Client
	log    logging.Logger
}

// New builds a Service. client may be nil, in which case http.DefaultClient
// is used.
func New(cfg Config, client *http.Client, log logging.Logger) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.AverageTileSize <= 0 {
		cfg.AverageTileSize = DefaultConfig().AverageTileSize
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Service{cfg: cfg, client: client, log: log.With("component", "tiles")}
}

// Estimate describes a planned pre-fetch before any bytes move.
type Estimate struct {
	Bounds         tilemath.Bounds
	TileCount      int
	EstimatedBytes int64
}

// Estimate enumerates the tiles covering the points (buffered by bufferKm)
// across [minZoom, maxZoom] and predicts the download size.
func (s *Service) Estimate(points []tilemath.LatLng, bufferKm float64, minZoom, maxZoom int) (*Estimate, error) {
	bounds, err := tilemath.CalculateBufferedBounds(points, bufferKm)
	if err != nil {
		return nil, err
	}
	count := len(tilemath.TilesForBounds(bounds, minZoom, maxZoom))
	return &Estimate{
		Bounds:         bounds,
		TileCount:      count,
		EstimatedBytes: tilemath.EstimateDownloadSize(count, s.cfg.AverageTileSize),
	}, nil
}

// Result summarizes one pre-fetch run.
type Result struct {
	Downloaded int
	Skipped    int // already cached
	Failed     int
	Bytes      int64
}

// Prepare downloads every missing tile for the area. Tiles already on disk
// are skipped; individual download failures are counted, not fatal. The
// context cancels the whole run.
func (s *Service) Prepare(ctx context.Context, points []tilemath.LatLng, bufferKm float64, minZoom, maxZoom int) (*Result, error) {
	bounds, err := tilemath.CalculateBufferedBounds(points, bufferKm)
	if err != nil {
		return nil, err
	}
	tiles := tilemath.TilesForBounds(bounds, minZoom, maxZoom)

	var downloaded, skipped, failed, bytes atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, tile := range tiles {
		g.Go(func() error {
			path := s.tilePath(tile)
			if _, err := os.Stat(path); err == nil {
				skipped.Add(1)
				return nil
			}
			n, err := s.download(gctx, tile, path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Warn(gctx, "tile download failed",
					"zoom", tile.Zoom, "x", tile.X, "y", tile.Y, "error", err)
				failed.Add(1)
				return nil
			}
			downloaded.Add(1)
			bytes.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Downloaded: int(downloaded.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
		Bytes:      bytes.Load(),
	}
	s.log.Info(ctx, "tile pre-fetch finished",
		"downloaded", res.Downloaded, "skipped", res.Skipped,
		"failed", res.Failed, "bytes", res.Bytes)
	return res, nil
}

func (s *Service) tilePath(t tilemath.Tile) string {
	return filepath.Join(s.cfg.CacheDir,
		strconv.Itoa(t.Zoom), strconv.Itoa(t.X), strconv.Itoa(t.Y)+".png")
}

func (s *Service) tileURL(t tilemath.Tile) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(t.Zoom),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
	)
	return r.Replace(s.cfg.URLTemplate)
}

// download fetches one tile and writes it atomically (temp file + rename) so
// a cancelled run never leaves a truncated tile behind.
func (s *Service) download(ctx context.Context, t tilemath.Tile, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tileURL(t), nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("tile server returned %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tile-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}
