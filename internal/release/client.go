package release

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sieforeagent/internal/config"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/retry"
)

// Release is the subset of a GitHub release the pipeline reads and writes.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
}

type createRequest struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// Client talks to the GitHub releases API of one repository.
type Client struct {
	apiURL     string
	owner      string
	repo       string
	token      string
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
}

// NewClient creates a client from configuration.
func NewClient(cfg config.ReleaseConfig, policy retry.Policy, logger *slog.Logger) (*Client, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, apperrors.NewConfigError("release owner and repo are required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if policy.Description == "" {
		policy.Description = "github releases"
	}
	return &Client{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		owner:      cfg.Owner,
		repo:       cfg.Repo,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		policy:     policy,
		logger:     logger.With(slog.String("component", "release")),
	}, nil
}

func (c *Client) releasesURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/releases", c.apiURL, c.owner, c.repo)
}

// Latest returns the most recent release.
func (c *Client) Latest(ctx context.Context) (*Release, error) {
	releases, err := retry.Value(ctx, c.policy, func(ctx context.Context) ([]Release, error) {
		var page []Release
		err := c.do(ctx, http.MethodGet, c.releasesURL()+"?per_page=1", nil, &page)
		return page, err
	})
	if err != nil {
		return nil, err
	}
	if len(releases) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("releases of %s/%s", c.owner, c.repo))
	}
	return &releases[0], nil
}

// LatestReleaseDate returns the publication day of the most recent
// release.
func (c *Client) LatestReleaseDate(ctx context.Context) (time.Time, error) {
	r, err := c.Latest(ctx)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := r.PublishedAt.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// Create publishes r. It is not retried: a timed-out request may already
// have created the release.
func (c *Client) Create(ctx context.Context, r Release) (*Release, error) {
	if c.token == "" {
		return nil, apperrors.NewConfigError("a token is required to create releases", nil)
	}
	req := createRequest{TagName: r.TagName, Name: r.Name, Body: r.Body, Draft: r.Draft, Prerelease: r.Prerelease}
	var created Release
	if err := c.do(ctx, http.MethodPost, c.releasesURL(), req, &created); err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "release created",
		slog.String("tag", created.TagName),
		slog.String("url", created.HTMLURL))
	return &created, nil
}

func (c *Client) do(ctx context.Context, method, url string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewNetworkError("github request failed", err).WithContext("url", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := fmt.Sprintf("github returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return retry.Permanent(apperrors.NewConfigError(msg, nil))
		case http.StatusNotFound:
			return retry.Permanent(apperrors.NewNotFoundError(fmt.Sprintf("repository %s/%s", c.owner, c.repo)))
		case http.StatusUnprocessableEntity:
			// tag already released
			return retry.Permanent(apperrors.NewPreconditionError(msg, nil))
		}
		return apperrors.NewNetworkError(msg, nil).WithContext("url", url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewNetworkError("failed to decode github response", err)
	}
	return nil
}
