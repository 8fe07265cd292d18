// Package install fetches and unpacks CmdStan releases so a model can
// be compiled and sampled locally without a manual toolchain setup.
package install

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sfarHD14/cmdstanpy/internal/backoff"
)

const (
	defaultReleasesURL = "https://api.github.com/repos/stan-dev/cmdstan/releases"

	defaultTimeout = 30 * time.Second
)

// RetrieveError is returned when a requested CmdStan version cannot be
// fetched.
type RetrieveError struct {
	Version string
	Err     error
}

func (e *RetrieveError) Error() string {
	return fmt.Sprintf("version %s not available from github.com: %v", e.Version, e.Err)
}

func (e *RetrieveError) Unwrap() error { return e.Err }

// Release represents a GitHub release.
type Release struct {
	TagName    string  `json:"tag_name"`
	Name       string  `json:"name"`
	Draft      bool    `json:"draft"`
	Prerelease bool    `json:"prerelease"`
	Assets     []Asset `json:"assets"`
}

// Asset represents a GitHub release asset.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
	ContentType        string `json:"content_type"`
}

// Client is an HTTP client for the CmdStan releases API.
type Client struct {
	client      *resty.Client
	releasesURL string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithReleasesURL overrides the releases endpoint. Used in tests.
func WithReleasesURL(u string) ClientOption {
	return func(c *Client) {
		c.releasesURL = u
	}
}

// NewClient creates a new releases API client.
func NewClient(opts ...ClientOption) *Client {
	client := resty.New().
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("User-Agent", "cmdstan-install-client")
	c := &Client{client: client, releasesURL: defaultReleasesURL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestVersion returns the newest non-draft, non-prerelease CmdStan
// version, without the tag prefix.
func (c *Client) LatestVersion(ctx context.Context) (string, error) {
	policy := newRetryPolicy()

	var release Release
	err := backoff.Retry(ctx, func(ctx context.Context) error {
		resp, err := c.client.R().SetContext(ctx).SetResult(&release).
			Get(c.releasesURL + "/latest")
		if err != nil {
			return err
		}
		return classifyResponse(resp)
	}, policy, isRetriableError)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest release: %w", err)
	}
	return VersionFromTag(release.TagName), nil
}

// GetRelease fetches a specific release by version.
func (c *Client) GetRelease(ctx context.Context, version string) (*Release, error) {
	tag := NormalizeVersionTag(version)
	if err := ValidateVersionTag(tag); err != nil {
		return nil, &RetrieveError{Version: version, Err: err}
	}
	policy := newRetryPolicy()

	var release Release
	err := backoff.Retry(ctx, func(ctx context.Context) error {
		resp, err := c.client.R().SetContext(ctx).SetResult(&release).
			Get(fmt.Sprintf("%s/tags/%s", c.releasesURL, url.PathEscape(tag)))
		if err != nil {
			return err
		}
		return classifyResponse(resp)
	}, policy, isRetriableError)
	if err != nil {
		return nil, &RetrieveError{Version: version, Err: err}
	}
	return &release, nil
}

// IsVersionAvailable reports whether the given version exists as a
// release. A malformed version or a missing release both report false;
// transport failures are returned as errors.
func (c *Client) IsVersionAvailable(ctx context.Context, version string) (bool, error) {
	if err := ValidateVersionTag(NormalizeVersionTag(version)); err != nil {
		return false, nil
	}
	_, err := c.GetRelease(ctx, version)
	if err == nil {
		return true, nil
	}
	var he *httpError
	if errors.As(err, &he) && he.statusCode == 404 {
		return false, nil
	}
	return false, err
}

// FindArchive locates the source tarball asset in a release.
func FindArchive(release *Release) (*Asset, error) {
	expected := fmt.Sprintf("cmdstan-%s.tar.gz", VersionFromTag(release.TagName))
	for i := range release.Assets {
		if release.Assets[i].Name == expected {
			return &release.Assets[i], nil
		}
	}
	return nil, fmt.Errorf("asset %s not found in release %s", expected, release.TagName)
}
