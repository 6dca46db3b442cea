package zipcatalog

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

// --- Archive fetch ---

func TestFetchShapefile_HTTP(t *testing.T) {
	zipContent := createTestZIP(t, map[string]string{
		"tl_2024_us_zcta520.shp": "fake shapefile data",
		"tl_2024_us_zcta520.dbf": "fake dbf data",
	})

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(zipContent)
	}))
	defer srv.Close()

	workDir := t.TempDir()
	shpPath, err := fetchShapefile(context.Background(), srv.URL+"/tl_2024_us_zcta520.zip", workDir)
	require.NoError(t, err)
	assert.Contains(t, shpPath, ".shp")
	assert.FileExists(t, shpPath)

	// Second fetch reuses the downloaded archive.
	_, err = fetchShapefile(context.Background(), srv.URL+"/tl_2024_us_zcta520.zip", workDir)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestFetchShapefile_DownloadFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fetchShapefile(context.Background(), srv.URL+"/bad.zip", t.TempDir())
	assert.Error(t, err)
}

func TestFetchShapefile_UnsupportedScheme(t *testing.T) {
	_, err := fetchShapefile(context.Background(), "gopher://example.com/file.zip", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestFetchShapefile_NoShpInArchive(t *testing.T) {
	zipContent := createTestZIP(t, map[string]string{
		"readme.txt": "no shapes here",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(zipContent)
	}))
	defer srv.Close()

	_, err := fetchShapefile(context.Background(), srv.URL+"/empty.zip", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .shp file")
}

// --- Geometry ---

func TestPolygonToMultiPolygon(t *testing.T) {
	t.Parallel()
	poly := &shp.Polygon{
		Box:       shp.Box{MinX: -84.6, MinY: 39.0, MaxX: -84.4, MaxY: 39.2},
		NumParts:  1,
		NumPoints: 5,
		Parts:     []int32{0},
		Points: []shp.Point{
			{X: -84.6, Y: 39.0},
			{X: -84.4, Y: 39.0},
			{X: -84.4, Y: 39.2},
			{X: -84.6, Y: 39.2},
			{X: -84.6, Y: 39.0},
		},
	}

	g := polygonToMultiPolygon(poly)
	require.NotNil(t, g)

	b := g.Bounds()
	assert.InDelta(t, 39.1, (b.Min(1)+b.Max(1))/2, 1e-9)
	assert.InDelta(t, -84.5, (b.Min(0)+b.Max(0))/2, 1e-9)
}

func TestPolygonToMultiPolygon_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, polygonToMultiPolygon(nil))
	assert.Nil(t, polygonToMultiPolygon(&shp.Polygon{}))
}

// --- Crosswalk ---

func TestReadCrosswalk(t *testing.T) {
	path := writeCrosswalkXLSX(t, [][]string{
		{"ZIP_CODE", "PO_NAME", "STATE", "POPULATION"},
		{"45202", "CINCINNATI", "oh", "18000"},
		{"2108", "BOSTON", "MA", "4,100"},
		{"45203", "CINCINNATI", "OH", ""},
	})

	rows, err := readCrosswalk(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	cin := rows["45202"]
	assert.Equal(t, "Cincinnati", cin.city)
	assert.Equal(t, "OH", cin.state)
	assert.Equal(t, 18000, cin.population)

	// Excel strips leading zeros; the reader restores them.
	bos, ok := rows["02108"]
	require.True(t, ok)
	assert.Equal(t, "Boston", bos.city)
	assert.Equal(t, 4100, bos.population)

	// Missing population parses as zero.
	assert.Zero(t, rows["45203"].population)
}

func TestReadCrosswalk_HeaderSynonyms(t *testing.T) {
	path := writeCrosswalkXLSX(t, [][]string{
		{"zcta", "usps_zip_pref_city", "usps_zip_pref_state", "tot_pop"},
		{"45202", "Cincinnati", "OH", "18000"},
	})

	rows, err := readCrosswalk(path)
	require.NoError(t, err)
	assert.Equal(t, 18000, rows["45202"].population)
}

func TestReadCrosswalk_NoZipColumn(t *testing.T) {
	path := writeCrosswalkXLSX(t, [][]string{
		{"city", "state"},
		{"Cincinnati", "OH"},
	})

	_, err := readCrosswalk(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no zip column")
}

// --- helpers ---

func createTestZIP(t *testing.T, files map[string]string) []byte {
	t.Helper()

	tmpFile := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(tmpFile)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, createErr := w.Create(name)
		require.NoError(t, createErr)
		_, writeErr := fw.Write([]byte(content))
		require.NoError(t, writeErr)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(tmpFile)
	require.NoError(t, err)
	return data
}

func writeCrosswalkXLSX(t *testing.T, rows [][]string) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Crosswalk")
	require.NoError(t, err)

	for _, row := range rows {
		r := sheet.AddRow()
		for _, val := range row {
			r.AddCell().SetString(val)
		}
	}

	path := filepath.Join(t.TempDir(), "crosswalk.xlsx")
	require.NoError(t, f.Save(path))
	return path
}
