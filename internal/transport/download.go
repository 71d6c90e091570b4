package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const chunkSize = 8 * 1024

// ProgressFunc receives the bytes written so far and the expected total.
// total is 0 when the server did not send a content length.
type ProgressFunc func(downloaded, total int64)

// DownloadToFile streams url into a new file at dest. dest must not exist;
// missing parent directories are created. The file is synced before
// returning and removed again if the download fails part way.
func (c *Client) DownloadToFile(ctx context.Context, url, dest string, progress ProgressFunc) (err error) {
	if strings.TrimSpace(url) == "" {
		return &Error{Kind: KindInvalidResponse, Err: errors.New("URL cannot be empty")}
	}
	if dest == "" {
		return &Error{Kind: KindFileSystem, URL: url, Err: errors.New("output file path cannot be empty")}
	}
	if _, statErr := os.Lstat(dest); statErr == nil {
		return &Error{Kind: KindFileSystem, Path: dest, Err: fmt.Errorf("file or directory already exists: %w", fs.ErrExist)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Kind: KindNetwork, URL: url, Err: err}
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &Error{Kind: KindFileSystem, Path: dest, Err: err}
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return &Error{Kind: KindFileSystem, Path: dest, Err: err}
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = &Error{Kind: KindFileSystem, Path: dest, Err: closeErr}
		}
		if err != nil {
			_ = os.Remove(dest)
		}
	}()

	if err := copyWithProgress(out, resp.Body, total, progress); err != nil {
		var te *Error
		if errors.As(err, &te) {
			te.URL, te.Path = url, dest
		}
		return err
	}
	if err := out.Sync(); err != nil {
		return &Error{Kind: KindFileSystem, Path: dest, Err: err}
	}
	return nil
}

func copyWithProgress(w io.Writer, r io.Reader, total int64, progress ProgressFunc) error {
	buf := make([]byte, chunkSize)
	var downloaded int64
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return &Error{Kind: KindFileSystem, Err: fmt.Errorf("write error: %w", err)}
			}
			downloaded += int64(n)
			if progress != nil {
				progress(downloaded, total)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return &Error{Kind: KindNetwork, Err: fmt.Errorf("read error: %w", readErr)}
		}
	}
}
