// Package transfer performs resumable, progress-reporting HTTP downloads.
// It understands share-link hosts that hide the binary payload behind a
// rewritten direct URL and an HTML confirmation interstitial.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/nguyentruongduy1410/VoiceUpdate/internal/validate"
)

const (
	maxRedirects        = 10
	maxInterstitialSize = 2 * 1024 * 1024 // HTML confirmation pages are small
	copyChunkSize       = 256 * 1024
	progressByteStride  = 1024 * 1024
	progressMinInterval = 500 * time.Millisecond
	defaultUserAgent    = "VoiceUpdate-Transfer/1.0"
)

// Progress is a snapshot of a running transfer. Percent is -1 when the total
// size is unknown.
type Progress struct {
	Bytes   int64
	Total   int64
	Percent int
}

// ProgressFunc receives periodic transfer progress. It is called from the
// download goroutine and must not block.
type ProgressFunc func(Progress)

// Downloader streams remote artifacts to disk.
type Downloader struct {
	http              *http.Client
	userAgent         string
	progress          ProgressFunc
	allowPrivateHosts bool
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.http = c }
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Downloader) { d.progress = fn }
}

// WithAllowPrivateHosts disables the private-address guard. Tests download
// from loopback servers; production callers keep the guard on.
func WithAllowPrivateHosts() Option {
	return func(d *Downloader) { d.allowPrivateHosts = true }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) { d.userAgent = ua }
}

// NewDownloader builds a Downloader with a redirect-capped, scheme-checked
// HTTP client.
func NewDownloader(opts ...Option) *Downloader {
	d := &Downloader{
		http: &http.Client{
			Timeout: 30 * time.Minute,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.New("too many redirects")
				}
				if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
					return fmt.Errorf("redirect to disallowed scheme: %s", req.URL.Scheme)
				}
				return nil
			},
		},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var (
	drivePathRe    = regexp.MustCompile(`/file/d/([^/]+)`)
	confirmHrefRe  = regexp.MustCompile(`href="(/uc\?export=download[^"]*)"`)
	errNoConfirmed = errors.New("interstitial page carries no confirmation link")
)

// ResolveShareLink rewrites a Google-Drive style sharing URL to the direct
// download endpoint. URLs without a recognisable file identifier, and URLs
// for any other host, pass through unchanged.
func ResolveShareLink(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.HasSuffix(u.Hostname(), "drive.google.com") {
		return rawURL
	}

	var fileID string
	if m := drivePathRe.FindStringSubmatch(u.Path); m != nil {
		fileID = m[1]
	} else if id := u.Query().Get("id"); id != "" {
		fileID = id
	}
	if fileID == "" {
		return rawURL
	}
	return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(fileID)
}

// Download fetches url into localPath. When resume is set and a partial file
// exists it continues from the current offset with a byte-range request.
// Transport failures leave the partial file in place so the next attempt can
// pick it up.
func (d *Downloader) Download(ctx context.Context, rawURL, localPath string, resume bool) error {
	if err := validate.HTTPURL(rawURL); err != nil {
		return err
	}
	if !d.allowPrivateHosts {
		if err := validate.RejectPrivateURL(rawURL); err != nil {
			return err
		}
	}

	directURL := ResolveShareLink(rawURL)
	total := d.probeSize(ctx, directURL)

	var offset int64
	if resume {
		if info, err := os.Stat(localPath); err == nil && !info.IsDir() {
			offset = info.Size()
		}
	}
	if total > 0 && offset >= total {
		// Partial file already covers the whole artifact. Treat as complete
		// and let the integrity check decide whether it is usable.
		d.report(offset, total)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	resp, err := d.get(ctx, directURL, offset)
	if err != nil {
		return err
	}

	// Share hosts gate large files behind an HTML confirmation page.
	if isHTML(resp.Header.Get("Content-Type")) {
		confirmURL, cerr := extractConfirmURL(resp)
		resp.Body.Close()
		if cerr != nil {
			return fmt.Errorf("download %s: %w", rawURL, cerr)
		}
		resp, err = d.get(ctx, confirmURL, offset)
		if err != nil {
			return err
		}
		if isHTML(resp.Header.Get("Content-Type")) {
			resp.Body.Close()
			return fmt.Errorf("download %s: confirmed URL still returned HTML", rawURL)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	if offset > 0 && rangeIgnored(resp, total, offset) {
		log.Printf("[Transfer] WARNING: server ignored range request for %s, restarting from zero", rawURL)
		offset = 0
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(localPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}

	written, copyErr := d.copyBody(ctx, f, resp.Body, offset, total)
	if closeErr := f.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		// The partial file stays on disk for a later resume.
		return fmt.Errorf("transfer %s after %d bytes: %w", rawURL, written, copyErr)
	}

	d.report(offset+written, total)
	return nil
}

// rangeIgnored reports whether a response to a ranged request actually
// carries the full artifact. A plain 200, or a 206 whose declared length
// equals the full total instead of total minus the offset, means appending
// would corrupt the partial file.
func rangeIgnored(resp *http.Response, total, offset int64) bool {
	if resp.StatusCode == http.StatusOK {
		return true
	}
	if total > 0 && resp.ContentLength > 0 && resp.ContentLength == total && offset > 0 {
		return true
	}
	return false
}

func (d *Downloader) get(ctx context.Context, rawURL string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", rawURL, err)
	}
	return resp, nil
}

// probeSize asks the server for the artifact size. Zero means unknown and
// only disables percentage-based progress.
func (d *Downloader) probeSize(ctx context.Context, rawURL string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.http.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || resp.ContentLength < 0 {
		return 0
	}
	return resp.ContentLength
}

func (d *Downloader) copyBody(ctx context.Context, dst io.Writer, src io.Reader, offset, total int64) (int64, error) {
	buf := make([]byte, copyChunkSize)
	var written int64
	lastReport := time.Now()
	var lastBytes int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)

			done := offset + written
			if done-lastBytes >= progressByteStride || time.Since(lastReport) >= progressMinInterval {
				d.report(done, total)
				lastBytes = done
				lastReport = time.Now()
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

func (d *Downloader) report(bytes, total int64) {
	if d.progress == nil {
		return
	}
	p := Progress{Bytes: bytes, Total: total, Percent: -1}
	if total > 0 {
		p.Percent = int(bytes * 100 / total)
	}
	d.progress(p)
}

func isHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

// extractConfirmURL pulls the embedded confirmation href out of an HTML
// interstitial body.
func extractConfirmURL(resp *http.Response) (string, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInterstitialSize))
	if err != nil {
		return "", fmt.Errorf("read interstitial page: %w", err)
	}

	m := confirmHrefRe.FindSubmatch(body)
	if m == nil {
		return "", errNoConfirmed
	}
	href := html.UnescapeString(string(m[1]))

	base := *resp.Request.URL
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return base.String() + href, nil
}
