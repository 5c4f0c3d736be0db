// Package grid loads the clustered bounding-box grid exported by the
// modelling pipeline and answers point-containment queries against it.
package grid

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
)

// CSV column names as exported by the modelling pipeline.
const (
	clusterColumn     = "new_cluster_id"
	boundaryColumn    = "coordinates"
	minBoundaryPoints = 4
)

// Cell is one rectangular grid cell. ClusterID is nil for cells the
// modelling pipeline left unclustered; the boundary rectangle is derived
// from the first and third vertex of the cell's first linear ring.
type Cell struct {
	ClusterID *int
	Min       domain.Geo
	Max       domain.Geo
}

// Contains reports whether the point lies inside the cell's rectangle,
// boundaries inclusive.
func (c Cell) Contains(lat, lon float64) bool {
	return c.Min.Lat <= lat && lat <= c.Max.Lat &&
		c.Min.Lon <= lon && lon <= c.Max.Lon
}

// Grid is an immutable set of cells in file order.
type Grid struct {
	cells []Cell
}

// Load parses the bounding-box CSV. Each row's boundary field is a
// JSON-encoded array of linear rings of [lon, lat] pairs; rows whose
// boundary is missing, unparsable, or shorter than four points are logged
// and skipped rather than failing the whole load.
//
// Only the first ring is read, and it is assumed to be an axis-aligned
// rectangle with vertex 0 at (minLon, minLat) and vertex 2 at
// (maxLon, maxLat). Non-rectangular or differently-wound polygons produce
// wrong rectangles; this is an accepted approximation of the upstream
// export format, not a general point-in-polygon implementation.
func Load(r io.Reader, logger *slog.Logger) (*Grid, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read grid header: %w", err)
	}

	clusterIdx, boundaryIdx := -1, -1
	for i, name := range header {
		switch name {
		case clusterColumn:
			clusterIdx = i
		case boundaryColumn:
			boundaryIdx = i
		}
	}
	if boundaryIdx < 0 {
		return nil, fmt.Errorf("grid CSV has no %q column", boundaryColumn)
	}

	var cells []Cell
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read grid row: %w", err)
		}

		cell, err := parseCell(record, clusterIdx, boundaryIdx)
		if err != nil {
			logger.Warn("skipping grid row", "line", line, "error", err)
			continue
		}
		cells = append(cells, cell)
	}

	return &Grid{cells: cells}, nil
}

// Locate returns the first cell containing the point. First match wins
// when cells overlap; the grid is expected to partition the space, but
// exclusivity is not enforced.
func (g *Grid) Locate(lat, lon float64) (Cell, bool) {
	for _, c := range g.cells {
		if c.Contains(lat, lon) {
			return c, true
		}
	}
	return Cell{}, false
}

// Len returns the number of loaded cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

func parseCell(record []string, clusterIdx, boundaryIdx int) (Cell, error) {
	if boundaryIdx >= len(record) || record[boundaryIdx] == "" {
		return Cell{}, fmt.Errorf("missing boundary field")
	}

	var rings [][][]float64
	if err := json.Unmarshal([]byte(record[boundaryIdx]), &rings); err != nil {
		return Cell{}, fmt.Errorf("parse boundary: %w", err)
	}
	if len(rings) == 0 {
		return Cell{}, fmt.Errorf("boundary has no rings")
	}
	ring := rings[0]
	if len(ring) < minBoundaryPoints {
		return Cell{}, fmt.Errorf("boundary ring has %d points, need %d", len(ring), minBoundaryPoints)
	}
	if len(ring[0]) < 2 || len(ring[2]) < 2 {
		return Cell{}, fmt.Errorf("boundary vertices are not [lon, lat] pairs")
	}

	cell := Cell{
		Min: domain.Geo{Lon: ring[0][0], Lat: ring[0][1]},
		Max: domain.Geo{Lon: ring[2][0], Lat: ring[2][1]},
	}
	if clusterIdx >= 0 && clusterIdx < len(record) {
		cell.ClusterID = parseClusterID(record[clusterIdx])
	}
	return cell, nil
}

// parseClusterID reads an integer cluster id, tolerating the float
// rendering some exports use ("3.0"). Empty or non-numeric values mean
// the cell is unclustered.
func parseClusterID(s string) *int {
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		n := int(f)
		return &n
	}
	return nil
}
