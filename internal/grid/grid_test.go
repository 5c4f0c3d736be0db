package grid

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadGrid(t *testing.T, csvData string) *Grid {
	t.Helper()
	g, err := Load(strings.NewReader(csvData), testLogger())
	require.NoError(t, err)
	return g
}

const validCSV = `cluster,new_cluster_id,coordinates
0,3,"[[[-10,35],[-5,35],[-5,40],[-10,40],[-10,35]]]"
1,7,"[[[-5,35],[0,35],[0,40],[-5,40],[-5,35]]]"
2,,"[[[0,35],[5,35],[5,40],[0,40],[0,35]]]"
`

func TestLoad_ValidRows(t *testing.T) {
	g := loadGrid(t, validCSV)
	assert.Equal(t, 3, g.Len())
}

func TestLoad_SkipsMalformedRows(t *testing.T) {
	csvData := `new_cluster_id,coordinates
1,"not json"
2,
3,"[]"
4,"[[[-10,35],[-5,35],[-5,40]]]"
5,"[[[-10,35],[-5,35],[-5,40],[-10,40],[-10,35]]]"
`
	g := loadGrid(t, csvData)
	// Only the last row has a parsable rectangle with enough points.
	assert.Equal(t, 1, g.Len())

	cell, ok := g.Locate(37, -7)
	require.True(t, ok)
	require.NotNil(t, cell.ClusterID)
	assert.Equal(t, 5, *cell.ClusterID)
}

func TestLoad_MissingBoundaryColumn(t *testing.T) {
	_, err := Load(strings.NewReader("a,b\n1,2\n"), testLogger())
	assert.Error(t, err)
}

func TestLocate_Containment(t *testing.T) {
	g := loadGrid(t, validCSV)

	cell, ok := g.Locate(37.5, -7.2)
	require.True(t, ok)
	require.NotNil(t, cell.ClusterID)
	assert.Equal(t, 3, *cell.ClusterID)

	cell, ok = g.Locate(36.0, -2.0)
	require.True(t, ok)
	require.NotNil(t, cell.ClusterID)
	assert.Equal(t, 7, *cell.ClusterID)
}

func TestLocate_BoundaryInclusive(t *testing.T) {
	g := loadGrid(t, validCSV)

	cell, ok := g.Locate(35, -10)
	require.True(t, ok)
	assert.Equal(t, 3, *cell.ClusterID)
}

func TestLocate_NoMatch(t *testing.T) {
	g := loadGrid(t, validCSV)

	_, ok := g.Locate(50, 50)
	assert.False(t, ok)
}

func TestLocate_NullCluster(t *testing.T) {
	g := loadGrid(t, validCSV)

	cell, ok := g.Locate(37, 2.5)
	require.True(t, ok)
	assert.Nil(t, cell.ClusterID)
}

func TestLocate_FirstMatchWins(t *testing.T) {
	// Two overlapping cells; the earlier row must win.
	csvData := `new_cluster_id,coordinates
1,"[[[-10,30],[10,30],[10,50],[-10,50],[-10,30]]]"
2,"[[[-10,30],[10,30],[10,50],[-10,50],[-10,30]]]"
`
	g := loadGrid(t, csvData)

	cell, ok := g.Locate(40, 0)
	require.True(t, ok)
	assert.Equal(t, 1, *cell.ClusterID)
}

func TestParseClusterID(t *testing.T) {
	assert.Nil(t, parseClusterID(""))
	assert.Nil(t, parseClusterID("abc"))
	assert.Nil(t, parseClusterID("3.5"))

	id := parseClusterID("12")
	require.NotNil(t, id)
	assert.Equal(t, 12, *id)

	id = parseClusterID("3.0")
	require.NotNil(t, id)
	assert.Equal(t, 3, *id)
}
