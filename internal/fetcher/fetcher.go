// Package fetcher downloads and unpacks the external source files the
// gazetteer ingest consumes: Census TIGER shapefile archives served over
// FTP or HTTP, and the HUD ZIP-county crosswalk workbook.
package fetcher

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// Source downloads remote data over a single transport.
type Source interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// ForURL returns the Source matching the URL scheme. Census publishes
// TIGER archives on both ftp2.census.gov and www2.census.gov, so ftp,
// http, and https are all accepted.
func ForURL(rawURL string) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	switch u.Scheme {
	case "ftp":
		return NewFTPFetcher(0), nil
	case "http", "https":
		return NewHTTPFetcher(HTTPOptions{}), nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}
