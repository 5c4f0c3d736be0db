// Package forecast loads the date-indexed prediction tables exported by the
// modelling pipeline (mean magnitude and earthquake count, one column per
// geographic cluster) and selects the latest applicable row.
package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"time"
)

const dateColumn = "fecha"

// clusterColumnRe matches cluster value columns: the fixed "bbox" prefix
// followed by the cluster id, e.g. "bbox3".
var clusterColumnRe = regexp.MustCompile(`^bbox(\d+)$`)

// Row is one forecast row: a calendar day and the predicted value per
// cluster. The cluster mapping is typed at load time; no field-name
// matching happens during lookups.
type Row struct {
	Date   time.Time
	Values map[int]float64
}

// Value returns the predicted value for the cluster, and whether the
// table has a column for it.
func (r Row) Value(cluster int) (float64, bool) {
	v, ok := r.Values[cluster]
	return v, ok
}

// Table is an immutable forecast snapshot.
type Table struct {
	rows []Row
}

// Load parses a forecast CSV. The header is scanned once: the date column
// and every cluster column are located up front, and all other columns are
// discarded. Rows with a missing or unparsable date are logged and skipped;
// non-numeric cluster cells are left out of that row's mapping.
func Load(r io.Reader, logger *slog.Logger) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read forecast header: %w", err)
	}

	dateIdx := -1
	clusters := make(map[int]int) // column index -> cluster id
	for i, name := range header {
		if name == dateColumn {
			dateIdx = i
			continue
		}
		if m := clusterColumnRe.FindStringSubmatch(name); m != nil {
			id, err := strconv.Atoi(m[1])
			if err == nil {
				clusters[i] = id
			}
		}
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("forecast CSV has no %q column", dateColumn)
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read forecast row: %w", err)
		}

		if dateIdx >= len(record) {
			logger.Warn("skipping forecast row without date", "line", line)
			continue
		}
		date, err := parseDate(record[dateIdx])
		if err != nil {
			logger.Warn("skipping forecast row", "line", line, "error", err)
			continue
		}

		values := make(map[int]float64, len(clusters))
		for idx, cluster := range clusters {
			if idx >= len(record) {
				continue
			}
			if v, err := strconv.ParseFloat(record[idx], 64); err == nil {
				values[cluster] = v
			}
		}
		rows = append(rows, Row{Date: date, Values: values})
	}

	return &Table{rows: rows}, nil
}

// Latest returns the row for today's calendar day if present, else the
// most recent row by date. The second return is false when the table has
// no dated rows at all.
func (t *Table) Latest(today time.Time) (Row, bool) {
	if len(t.rows) == 0 {
		return Row{}, false
	}

	sorted := make([]Row, len(t.rows))
	copy(sorted, t.rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	day := today.UTC().Truncate(24 * time.Hour)
	for _, row := range sorted {
		if row.Date.Equal(day) {
			return row, true
		}
	}
	return sorted[0], true
}

// Len returns the number of dated rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// parseDate accepts the plain day format of the export, plus the full
// timestamp form some exports produce.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d.UTC().Truncate(24 * time.Hour), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
