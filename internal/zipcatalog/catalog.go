// Package zipcatalog maintains the local ZIP code reference database:
// centroids, city and state assignment, population and density. Coverage
// analysis reads it; the zips command builds it from Census data.
package zipcatalog

import (
	"context"
	"database/sql"
	"math"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// ZipInfo is one ZIP code row in the catalog.
type ZipInfo struct {
	Zip        string  `json:"zip"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Population int     `json:"population"`
	LandSqMi   float64 `json:"land_sqmi"`
	Density    float64 `json:"density"` // population per square mile
}

// CityStat aggregates the catalog by city for state fan-out ranking.
type CityStat struct {
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCount   int    `json:"zip_count"`
	Population int    `json:"population"`
}

// Catalog is a read/write handle on the ZIP reference database.
type Catalog struct {
	db *sql.DB
}

// Open opens the catalog database at the given path and configures WAL mode.
func Open(dsn string) (*Catalog, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "zipcatalog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "zipcatalog: exec %s", pragma)
		}
	}
	return &Catalog{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS zips (
	zip        TEXT PRIMARY KEY,
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	lat        REAL NOT NULL,
	lng        REAL NOT NULL,
	population INTEGER NOT NULL DEFAULT 0,
	land_sqmi  REAL NOT NULL DEFAULT 0,
	density    REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_zips_city_state ON zips(city, state);
CREATE INDEX IF NOT EXISTS idx_zips_state ON zips(state);
CREATE INDEX IF NOT EXISTS idx_zips_lat_lng ON zips(lat, lng);
`

func (c *Catalog) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "zipcatalog: migrate")
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Count returns the number of ZIP codes in the catalog.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM zips`).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "zipcatalog: count")
	}
	return n, nil
}

// Lookup returns the catalog row for a ZIP code, or nil when unknown.
func (c *Catalog) Lookup(ctx context.Context, zip string) (*ZipInfo, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT zip, city, state, lat, lng, population, land_sqmi, density
		 FROM zips WHERE zip = ?`,
		zip,
	)
	var z ZipInfo
	err := row.Scan(&z.Zip, &z.City, &z.State, &z.Lat, &z.Lng, &z.Population, &z.LandSqMi, &z.Density)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "zipcatalog: lookup %s", zip)
	}
	return &z, nil
}

// ZipsForCity returns all ZIP codes assigned to a city, densest first.
// Matching is case-insensitive.
func (c *Catalog) ZipsForCity(ctx context.Context, city, state string) ([]ZipInfo, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT zip, city, state, lat, lng, population, land_sqmi, density
		 FROM zips
		 WHERE city = ? COLLATE NOCASE AND state = ? COLLATE NOCASE
		 ORDER BY density DESC`,
		city, state,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "zipcatalog: zips for %s, %s", city, state)
	}
	defer rows.Close()
	return scanZips(rows)
}

// CitiesForState aggregates the catalog by city for one state, most
// populous first.
func (c *Catalog) CitiesForState(ctx context.Context, state string) ([]CityStat, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT city, state, COUNT(*), SUM(population)
		 FROM zips
		 WHERE state = ? COLLATE NOCASE AND city != ''
		 GROUP BY city, state
		 ORDER BY SUM(population) DESC`,
		state,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "zipcatalog: cities for %s", state)
	}
	defer rows.Close()

	var stats []CityStat
	for rows.Next() {
		var s CityStat
		if err := rows.Scan(&s.City, &s.State, &s.ZipCount, &s.Population); err != nil {
			return nil, eris.Wrap(err, "zipcatalog: scan city stat")
		}
		stats = append(stats, s)
	}
	return stats, eris.Wrap(rows.Err(), "zipcatalog: cities iterate")
}

// Nearby returns ZIP codes within radiusMiles of a point, nearest first.
// A bounding-box prefilter runs in SQL; the exact great-circle cut runs
// here.
func (c *Catalog) Nearby(ctx context.Context, lat, lng, radiusMiles float64) ([]ZipInfo, error) {
	latDelta := radiusMiles / milesPerDegreeLat
	lngDelta := radiusMiles / (milesPerDegreeLat * math.Cos(lat*math.Pi/180))
	if lngDelta < 0 {
		lngDelta = -lngDelta
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT zip, city, state, lat, lng, population, land_sqmi, density
		 FROM zips
		 WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`,
		lat-latDelta, lat+latDelta, lng-lngDelta, lng+lngDelta,
	)
	if err != nil {
		return nil, eris.Wrap(err, "zipcatalog: nearby query")
	}
	defer rows.Close()

	candidates, err := scanZips(rows)
	if err != nil {
		return nil, err
	}

	var out []ZipInfo
	for _, z := range candidates {
		if DistanceMiles(lat, lng, z.Lat, z.Lng) <= radiusMiles {
			out = append(out, z)
		}
	}
	sortByDistance(out, lat, lng)
	return out, nil
}

// UpsertBatch writes ZIP rows in one transaction, replacing existing rows.
func (c *Catalog) UpsertBatch(ctx context.Context, zips []ZipInfo) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "zipcatalog: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO zips (zip, city, state, lat, lng, population, land_sqmi, density)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(zip) DO UPDATE SET
			city = excluded.city,
			state = excluded.state,
			lat = excluded.lat,
			lng = excluded.lng,
			population = excluded.population,
			land_sqmi = excluded.land_sqmi,
			density = excluded.density`,
	)
	if err != nil {
		return eris.Wrap(err, "zipcatalog: prepare upsert")
	}
	defer stmt.Close()

	for _, z := range zips {
		if _, err := stmt.ExecContext(ctx,
			z.Zip, z.City, z.State, z.Lat, z.Lng, z.Population, z.LandSqMi, z.Density,
		); err != nil {
			return eris.Wrapf(err, "zipcatalog: upsert %s", z.Zip)
		}
	}

	return eris.Wrap(tx.Commit(), "zipcatalog: commit")
}

func scanZips(rows *sql.Rows) ([]ZipInfo, error) {
	var zips []ZipInfo
	for rows.Next() {
		var z ZipInfo
		if err := rows.Scan(&z.Zip, &z.City, &z.State, &z.Lat, &z.Lng, &z.Population, &z.LandSqMi, &z.Density); err != nil {
			return nil, eris.Wrap(err, "zipcatalog: scan zip")
		}
		zips = append(zips, z)
	}
	return zips, eris.Wrap(rows.Err(), "zipcatalog: iterate")
}
