// Package release queries the remote release source for the latest
// application build.
package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.github.com"
	maxBodySize    = 10 * 1024 * 1024 // 10 MB
)

// ErrNoRelease is returned when the repository has no published release.
var ErrNoRelease = errors.New("no published release")

// Asset is one downloadable artifact attached to a release.
type Asset struct {
	Name      string `json:"name"`
	URL       string `json:"browser_download_url"`
	SizeBytes int64  `json:"size"`
}

// Release describes the latest published release. Immutable once fetched.
type Release struct {
	TagName  string  `json:"tag_name"`
	Notes    string  `json:"body"`
	NotesURL string  `json:"html_url"`
	Assets   []Asset `json:"assets"`
}

// Version returns the release tag without a leading v marker.
func (r *Release) Version() string {
	return strings.TrimPrefix(strings.TrimPrefix(r.TagName, "v"), "V")
}

// installableExtensions, in selection order. The first matching asset wins.
var installableExtensions = []string{".exe", ".zip", ".tar.gz"}

// SelectAsset picks the first asset that looks like an installable build.
func (r *Release) SelectAsset() (Asset, bool) {
	for _, a := range r.Assets {
		name := strings.ToLower(a.Name)
		for _, ext := range installableExtensions {
			if strings.HasSuffix(name, ext) {
				return a, true
			}
		}
	}
	return Asset{}, false
}

// Client fetches release metadata for a single owner/repo pair.
type Client struct {
	owner   string
	repo    string
	baseURL string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient creates a release client for owner/repo.
func NewClient(owner, repo string, opts ...ClientOption) *Client {
	c := &Client{
		owner:   owner,
		repo:    repo,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
					return fmt.Errorf("redirect to disallowed scheme: %s", req.URL.Scheme)
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RepoSlug returns the owner/repo identifier this client queries.
func (c *Client) RepoSlug() string {
	return c.owner + "/" + c.repo
}

// Latest fetches the most recent published release.
func (c *Client) Latest(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "VoiceUpdate-Updater/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query release source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoRelease
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read release response: %w", err)
	}
	if int64(len(data)) > maxBodySize {
		return nil, fmt.Errorf("release response exceeds maximum size (%d bytes)", maxBodySize)
	}

	var rel Release
	if err := json.Unmarshal(data, &rel); err != nil {
		return nil, fmt.Errorf("parse release response: %w", err)
	}
	if rel.TagName == "" {
		return nil, fmt.Errorf("release response missing tag name")
	}
	return &rel, nil
}
