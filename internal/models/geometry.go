package models

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// GeometryFromGeoJSON parses a GeoJSON geometry string into WKB bytes for
// storage.
func GeometryFromGeoJSON(raw string) ([]byte, error) {
	var g geom.T
	if err := geojson.Unmarshal([]byte(raw), &g); err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON geometry: %w", err)
	}
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry as WKB: %w", err)
	}
	return data, nil
}

// GeometryToGeoJSON decodes stored WKB bytes back into a GeoJSON string for
// API responses. Returns "" for empty geometry.
func GeometryToGeoJSON(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode WKB geometry: %w", err)
	}
	out, err := geojson.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("failed to encode geometry as GeoJSON: %w", err)
	}
	return string(out), nil
}
