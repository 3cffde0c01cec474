package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/travellife/internal/tilemath"
)

var offlineMapCmd = &cobra.Command{
	Use:   "offline-map",
	Short: "Pre-fetch map tiles for a trip",
}

var offlineMapEstimateCmd = &cobra.Command{
	Use:   "estimate <trip-id>",
	Short: "Estimate the download size for a trip's map area",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		points, err := tripPoints(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		cfg := current.cfg.Tiles
		est, err := current.tileSvc.Estimate(points, cfg.BufferKm, cfg.MinZoom, cfg.MaxZoom)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d tiles, about %s (zoom %d–%d)\n",
			est.TileCount, formatBytes(est.EstimatedBytes), cfg.MinZoom, cfg.MaxZoom)
		return nil
	},
}

var offlineMapPrepareCmd = &cobra.Command{
	Use:   "prepare <trip-id>",
	Short: "Download the trip's map tiles into the local cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		points, err := tripPoints(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := current.store.EnsureCapacity(cmd.Context()); err != nil {
			return err
		}
		cfg := current.cfg.Tiles
		res, err := current.tileSvc.Prepare(cmd.Context(), points, cfg.BufferKm, cfg.MinZoom, cfg.MaxZoom)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "downloaded %d (%s), skipped %d cached, %d failed\n",
			res.Downloaded, formatBytes(res.Bytes), res.Skipped, res.Failed)
		return nil
	},
}

func init() {
	offlineMapCmd.AddCommand(offlineMapEstimateCmd)
	offlineMapCmd.AddCommand(offlineMapPrepareCmd)
}

// tripPoints collects every coordinate stored in a trip's records.
func tripPoints(ctx context.Context, tripID string) ([]tilemath.LatLng, error) {
	recs, err := current.engine.TripRecords(ctx, tripID)
	if err != nil {
		return nil, err
	}
	var points []tilemath.LatLng
	for _, rec := range recs {
		var probe struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		}
		if err := json.Unmarshal(rec.Data, &probe); err != nil {
			continue
		}
		if probe.Latitude == nil || probe.Longitude == nil {
			continue
		}
		points = append(points, tilemath.LatLng{Lat: *probe.Latitude, Lng: *probe.Longitude})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("trip %s has no records with coordinates", tripID)
	}
	return points, nil
}
