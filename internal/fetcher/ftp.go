package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPFetcher downloads files over anonymous FTP. The Census Bureau
// still serves TIGER archives this way on ftp2.census.gov.
type FTPFetcher struct {
	dialTimeout time.Duration
}

// NewFTPFetcher returns an FTP fetcher. A zero dialTimeout means 30 seconds.
// The timeout covers the control connection only, not the transfer.
func NewFTPFetcher(dialTimeout time.Duration) *FTPFetcher {
	if dialTimeout == 0 {
		dialTimeout = 30 * time.Second
	}
	return &FTPFetcher{dialTimeout: dialTimeout}
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "fetcher: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("fetcher: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" {
		return "", "", eris.New("fetcher: empty path in ftp url")
	}

	return host, path, nil
}

// ftpConnReader ties the data stream to its control connection so that
// closing the reader also disconnects from the server.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "fetcher: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "fetcher: quit ftp connection")
	}
	return nil
}

// Download logs in anonymously, retrieves the file, and returns a reader.
// The caller must close the returned ReadCloser to release the connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	host, path, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp download starting", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.dialTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: ftp dial")
	}

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		conn.Quit()
		return nil, eris.Wrap(err, "fetcher: ftp login")
	}

	resp, err := conn.Retr(path)
	if err != nil {
		conn.Quit()
		return nil, eris.Wrap(err, "fetcher: ftp retrieve")
	}

	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// DownloadToFile downloads the FTP URL to a local file. Returns bytes written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	rc, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, rc)
	if err != nil {
		return n, eris.Wrap(err, "fetcher: write file")
	}

	return n, nil
}
