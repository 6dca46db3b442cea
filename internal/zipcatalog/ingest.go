package zipcatalog

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/leadgen-cli/internal/fetcher"
)

// DefaultShapefileURL is the Census TIGER/Line ZCTA520 national shapefile.
const DefaultShapefileURL = "ftp://ftp2.census.gov/geo/tiger/TIGER2024/ZCTA520/tl_2024_us_zcta520.zip"

const sqMetersPerSqMile = 2_589_988.110336

// IngestOptions configures a catalog build.
type IngestOptions struct {
	// ShapefileURL is the ZCTA shapefile archive, ftp:// or http(s)://.
	ShapefileURL string
	// CrosswalkPath is a local XLSX mapping ZIP codes to city, state and
	// population. Optional; without it rows carry geometry only.
	CrosswalkPath string
	// WorkDir holds downloaded and extracted files between runs.
	WorkDir string
}

// Ingest builds the catalog from Census data: download the ZCTA shapefile,
// read centroids and land area, join the city crosswalk, and write every
// row in one transaction. Returns the number of ZIP codes written.
func Ingest(ctx context.Context, cat *Catalog, opts IngestOptions) (int, error) {
	log := zap.L().With(zap.String("component", "zipcatalog.ingest"))

	if opts.ShapefileURL == "" {
		opts.ShapefileURL = DefaultShapefileURL
	}
	if opts.WorkDir == "" {
		opts.WorkDir = filepath.Join(os.TempDir(), "leadgen-zcta")
	}

	if err := cat.Migrate(ctx); err != nil {
		return 0, err
	}

	shpPath, err := fetchShapefile(ctx, opts.ShapefileURL, opts.WorkDir)
	if err != nil {
		return 0, err
	}

	shapes, err := parseShapes(shpPath)
	if err != nil {
		return 0, err
	}
	log.Info("parsed ZCTA shapefile", zap.Int("zips", len(shapes)))

	var names map[string]crosswalkRow
	if opts.CrosswalkPath != "" {
		names, err = readCrosswalk(opts.CrosswalkPath)
		if err != nil {
			return 0, err
		}
		log.Info("read city crosswalk", zap.Int("rows", len(names)))
	}

	rows := make([]ZipInfo, 0, len(shapes))
	for zip5, s := range shapes {
		z := ZipInfo{
			Zip:      zip5,
			Lat:      s.lat,
			Lng:      s.lng,
			LandSqMi: s.landSqMi,
		}
		if cw, ok := names[zip5]; ok {
			z.City = cw.city
			z.State = cw.state
			z.Population = cw.population
		}
		if z.LandSqMi > 0 {
			z.Density = float64(z.Population) / z.LandSqMi
		}
		rows = append(rows, z)
	}

	if err := cat.UpsertBatch(ctx, rows); err != nil {
		return 0, err
	}

	log.Info("catalog ingest complete", zap.Int("zips", len(rows)))
	return len(rows), nil
}

// fetchShapefile downloads the archive when missing, extracts it, and
// returns the path of the .shp file inside.
func fetchShapefile(ctx context.Context, rawURL, workDir string) (string, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", eris.Wrap(err, "zipcatalog: create work dir")
	}

	parts := strings.Split(rawURL, "/")
	zipName := parts[len(parts)-1]
	zipPath := filepath.Join(workDir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		zap.L().Debug("archive already present, skipping download", zap.String("path", zipPath))
	} else {
		src, err := fetcher.ForURL(rawURL)
		if err != nil {
			return "", err
		}
		zap.L().Info("downloading ZCTA shapefile", zap.String("url", rawURL))
		if _, err := src.DownloadToFile(ctx, rawURL, zipPath); err != nil {
			return "", eris.Wrap(err, "zipcatalog: download shapefile")
		}
	}

	extractDir := filepath.Join(workDir, strings.TrimSuffix(zipName, ".zip"))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "zipcatalog: create extract dir")
	}
	files, err := fetcher.ExtractZIP(zipPath, extractDir)
	if err != nil {
		return "", eris.Wrap(err, "zipcatalog: extract archive")
	}

	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f), ".shp") {
			return f, nil
		}
	}
	return "", eris.Errorf("zipcatalog: no .shp file in %s", zipPath)
}

type shapeRec struct {
	lat      float64
	lng      float64
	landSqMi float64
}

// parseShapes reads the ZCTA shapefile into per-ZIP geometry records. The
// interior point attributes give the centroid; records without them fall
// back to the polygon bounds center.
func parseShapes(shpPath string) (map[string]shapeRec, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zipcatalog: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// TIGER field names carry a vintage suffix (ZCTA5CE20, ALAND20),
	// so match on the prefix.
	fields := reader.Fields()
	fieldIdx := func(prefix string) int {
		for i, f := range fields {
			name := strings.ToLower(strings.TrimRight(f.String(), "\x00"))
			if strings.HasPrefix(name, prefix) {
				return i
			}
		}
		return -1
	}
	zipIdx := fieldIdx("zcta5ce")
	landIdx := fieldIdx("aland")
	latIdx := fieldIdx("intptlat")
	lngIdx := fieldIdx("intptlon")
	if zipIdx < 0 {
		return nil, eris.New("zipcatalog: shapefile has no ZCTA5CE field")
	}

	attr := func(idx int) string {
		if idx < 0 {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	out := make(map[string]shapeRec)
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		zip5 := attr(zipIdx)
		if zip5 == "" {
			skipped++
			continue
		}

		var rec shapeRec
		if land, err := strconv.ParseFloat(attr(landIdx), 64); err == nil {
			rec.landSqMi = land / sqMetersPerSqMile
		}

		lat, latErr := strconv.ParseFloat(strings.TrimPrefix(attr(latIdx), "+"), 64)
		lng, lngErr := strconv.ParseFloat(strings.TrimPrefix(attr(lngIdx), "+"), 64)
		if latErr == nil && lngErr == nil {
			rec.lat, rec.lng = lat, lng
		} else if poly, ok := shape.(*shp.Polygon); ok {
			g := polygonToMultiPolygon(poly)
			if g == nil {
				skipped++
				continue
			}
			b := g.Bounds()
			rec.lat = (b.Min(1) + b.Max(1)) / 2
			rec.lng = (b.Min(0) + b.Max(0)) / 2
		} else {
			skipped++
			continue
		}

		out[zip5] = rec
	}

	if skipped > 0 {
		zap.L().Debug("skipped shapefile records", zap.Int("skipped", skipped))
	}

	return out, nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

type crosswalkRow struct {
	city       string
	state      string
	population int
}

// readCrosswalk reads a ZIP-to-city XLSX. Columns are located by header
// name so the various published vintages all work.
func readCrosswalk(path string) (map[string]crosswalkRow, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "zipcatalog: read crosswalk")
	}
	if len(rows) < 2 {
		return nil, eris.New("zipcatalog: crosswalk has no data rows")
	}

	colIdx := func(header []string, names ...string) int {
		for i, h := range header {
			h = strings.ToLower(strings.TrimSpace(h))
			for _, n := range names {
				if h == n {
					return i
				}
			}
		}
		return -1
	}

	header := rows[0]
	zipCol := colIdx(header, "zip", "zip_code", "zcta", "zcta5")
	cityCol := colIdx(header, "city", "po_name", "usps_zip_pref_city")
	stateCol := colIdx(header, "state", "usps_zip_pref_state", "state_abbr")
	popCol := colIdx(header, "population", "pop", "tot_pop", "zpop")
	if zipCol < 0 {
		return nil, eris.New("zipcatalog: crosswalk has no zip column")
	}

	cell := func(row []string, idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
	title := cases.Title(language.AmericanEnglish)

	out := make(map[string]crosswalkRow, len(rows)-1)
	for _, row := range rows[1:] {
		zip5 := cell(row, zipCol)
		if zip5 == "" {
			continue
		}
		// Excel strips leading zeros from Northeast ZIPs.
		for len(zip5) < 5 {
			zip5 = "0" + zip5
		}

		cw := crosswalkRow{
			city:  title.String(strings.ToLower(cell(row, cityCol))),
			state: strings.ToUpper(cell(row, stateCol)),
		}
		if pop, err := strconv.Atoi(strings.ReplaceAll(cell(row, popCol), ",", "")); err == nil {
			cw.population = pop
		}
		out[zip5] = cw
	}

	return out, nil
}
