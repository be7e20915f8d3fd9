// Package fetch is the retrying HTTP byte fetcher used by every service
// adapter. Segment downloads append to an existing file so ordered HLS
// segments concatenate into one asset.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/afero"
)

const (
	maxAttempts    = 10
	backoffUnit    = time.Second
	defaultTimeout = 2 * time.Minute
)

// NetworkError marks a download that failed after the whole retry budget.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch: %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProxyConfig describes the optional outbound proxy used for geo-blocked
// services. Selected per call, never globally.
type ProxyConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Protocol string // http or https
}

func (p ProxyConfig) enabled() bool { return p.Host != "" && p.Port > 0 }

func (p ProxyConfig) url() *url.URL {
	scheme := p.Protocol
	if scheme == "" {
		scheme = "http"
	}
	u := &url.URL{Scheme: scheme, Host: fmt.Sprintf("%s:%d", p.Host, p.Port)}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// Options tune a single Fetch call.
type Options struct {
	Append   bool
	Timeout  time.Duration
	UseProxy bool
}

// Client downloads URLs to disk with a 10-attempt linear-backoff retry
// budget. The filesystem is abstracted so tests can run in memory.
type Client struct {
	fs      afero.Fs
	direct  *http.Client
	proxied *http.Client
}

// NewClient builds a fetcher. proxy may be zero-valued; UseProxy calls then
// fall back to the direct client.
func NewClient(proxy ProxyConfig) *Client {
	c := &Client{
		fs:     afero.NewOsFs(),
		direct: &http.Client{},
	}
	if proxy.enabled() {
		proxyURL := proxy.url()
		c.proxied = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	}
	return c
}

// SetFs swaps the backing filesystem. Used by tests.
func (c *Client) SetFs(fs afero.Fs) { c.fs = fs }

func (c *Client) pick(useProxy bool) *http.Client {
	if useProxy && c.proxied != nil {
		return c.proxied
	}
	return c.direct
}

// Fetch downloads url into dest. With Append set the destination is opened
// in append mode so ordered segment writes concatenate into one file.
func (c *Client) Fetch(ctx context.Context, rawURL, dest string, opts Options) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	err := retry.Do(
		func() error {
			reqCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			body, err := c.open(reqCtx, rawURL, opts.UseProxy)
			if err != nil {
				return err
			}
			defer body.Close()

			// The whole body is buffered before touching dest. A truncated
			// read then leaves the file untouched, so the retried attempt
			// appends exactly one copy of the payload.
			payload, err := io.ReadAll(body)
			if err != nil {
				return err
			}

			flags := os.O_CREATE | os.O_WRONLY
			if opts.Append {
				flags |= os.O_APPEND
			} else {
				flags |= os.O_TRUNC
			}
			f, err := c.fs.OpenFile(dest, flags, 0o644)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if _, err := f.Write(payload); err != nil {
				f.Close()
				return retry.Unrecoverable(err)
			}
			return f.Close()
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.DelayType(linearBackoff),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[fetch] retrying %s (attempt %d): %v", rawURL, n+1, err)
		}),
	)
	if err != nil {
		return &NetworkError{URL: rawURL, Err: err}
	}
	return nil
}

// Text fetches a URL body as a string with the same retry policy, for
// manifests and pages.
func (c *Client) Text(ctx context.Context, rawURL string) (string, error) {
	body, _, err := c.Page(ctx, rawURL, nil)
	return body, err
}

// Page fetches an HTML/text document and returns the body together with the
// response headers (Netflix needs the Set-Cookie values for its follow-up
// manifest request). Extra headers are applied on top of the browser set.
func (c *Client) Page(ctx context.Context, rawURL string, headers map[string]string) (string, http.Header, error) {
	var (
		payload    []byte
		respHeader http.Header
	)
	err := retry.Do(
		func() error {
			reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
			defer cancel()

			req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			addBrowserHeaders(req)
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			resp, err := c.direct.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return fmt.Errorf("status %d", resp.StatusCode)
			}
			payload, err = io.ReadAll(resp.Body)
			respHeader = resp.Header
			return err
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.DelayType(linearBackoff),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", nil, &NetworkError{URL: rawURL, Err: err}
	}
	return string(payload), respHeader, nil
}

// PostJSON sends a JSON body and decodes a JSON response, without retries:
// callers use it for stateful endpoints where replays are not safe.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, headers map[string]string, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	addBrowserHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.direct.Do(req)
	if err != nil {
		return &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &NetworkError{URL: rawURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) open(ctx context.Context, rawURL string, useProxy bool) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	addBrowserHeaders(req)
	resp, err := c.pick(useProxy).Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// linearBackoff waits attempt x 1s: 1s after the first failure, 2s after the
// second, and so on.
func linearBackoff(n uint, _ error, _ *retry.Config) time.Duration {
	return time.Duration(n+1) * backoffUnit
}

// ResolveURL resolves ref against the directory of base, mirroring how
// playlist entries reference their segments.
func ResolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func addBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}
