// Package blob uploads finished artifacts to a filebin-style HTTP store and
// returns stable public URLs.
package blob

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Client uploads files by POSTing them under a random bin id, so filenames
// from different jobs never collide.
type Client struct {
	endpoint string
	fs       afero.Fs
	http     *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		fs:       afero.NewOsFs(),
		http:     &http.Client{Timeout: 5 * time.Minute},
	}
}

// SetFs swaps the backing filesystem. Used by tests.
func (c *Client) SetFs(fs afero.Fs) { c.fs = fs }

// Put uploads one local file and returns its public URL.
func (c *Client) Put(ctx context.Context, localPath string) (string, error) {
	f, err := c.fs.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("blob: open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("blob: stat %s: %w", localPath, err)
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("blob: detect type of %s: %w", localPath, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("blob: rewind %s: %w", localPath, err)
	}

	name := url.PathEscape(filepath.Base(localPath))
	target := fmt.Sprintf("%s/%s/%s", c.endpoint, uuid.NewString(), name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, f)
	if err != nil {
		return "", fmt.Errorf("blob: build request: %w", err)
	}
	req.Header.Set("Content-Type", mtype.String())
	req.ContentLength = info.Size()

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("blob: upload %s: %w", localPath, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("blob: upload %s: unexpected status %d", localPath, resp.StatusCode)
	}

	log.Printf("[blob] uploaded %s (%d bytes, %s)", filepath.Base(localPath), info.Size(), mtype.String())
	return target, nil
}
