// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package github fetches repository metadata from the GitHub REST API.
//
// It is the data source for the repository digest. Callers are expected to
// degrade gracefully on any error returned here.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultAPIURL is the GitHub REST API root.
	DefaultAPIURL = "https://api.github.com"

	// DefaultCommitsPerRepo is how many commits are fetched for each repository.
	DefaultCommitsPerRepo = 3

	// maxResponseSize limits response bodies.
	maxResponseSize = 10 * 1024 * 1024

	// commitFetchConcurrency bounds parallel commit requests in ContributionSummary.
	commitFetchConcurrency = 4

	shortSHALength = 7
)

// ErrInvalidPayload is returned when GitHub answers 2xx with an unexpected body.
var ErrInvalidPayload = errors.New("invalid data format received from GitHub API")

// APIError is GitHub's error envelope for non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("GitHub API error (HTTP %d): %s", e.Status, e.Message)
}

// =============================================================================
// TYPES
// =============================================================================

// Repository is the subset of repository metadata the digest uses.
type Repository struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Stars       int       `json:"stars"`
	Forks       int       `json:"forks"`
	UpdatedAt   time.Time `json:"updated_at"`
	URL         string    `json:"url"`
}

// Commit is a shortened commit record.
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
}

// RepoSummary is a repository together with its most recent commits.
type RepoSummary struct {
	Repository
	RecentCommits []Commit `json:"recent_commits"`
}

// ContributionSummary aggregates a user's recent repositories.
type ContributionSummary struct {
	Username          string        `json:"username"`
	TotalRepositories int           `json:"total_repositories"`
	Repositories      []RepoSummary `json:"contribution_summary"`
}

// Provider is the read-only view of GitHub used by the digest builder.
type Provider interface {
	Repositories(ctx context.Context, user string, count int) ([]Repository, error)
	RecentCommits(ctx context.Context, user, repo string, count int) ([]Commit, error)
	ContributionSummary(ctx context.Context, user string, repoLimit int) (*ContributionSummary, error)
}

// raw API shapes
type apiRepo struct {
	Name            *string   `json:"name"`
	Description     *string   `json:"description"`
	Language        *string   `json:"language"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	UpdatedAt       time.Time `json:"updated_at"`
	HTMLURL         string    `json:"html_url"`
}

type apiCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

type apiErrorBody struct {
	Message string `json:"message"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a Provider backed by the GitHub REST API.
type Client struct {
	baseURL        string
	token          string
	commitsPerRepo int
	httpClient     *http.Client
	limiter        *rate.Limiter
	log            logrus.FieldLogger
}

// NewClient creates a client for the public GitHub API. token may be empty.
func NewClient(token string) *Client {
	return &Client{
		baseURL:        DefaultAPIURL,
		token:          strings.TrimSpace(token),
		commitsPerRepo: DefaultCommitsPerRepo,
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		limiter:        rate.NewLimiter(rate.Limit(5), 5),
		log:            logrus.StandardLogger(),
	}
}

// WithBaseURL overrides the API root (used by tests and GitHub Enterprise).
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimSuffix(u, "/")
	return c
}

// WithRateLimit sets the request throttle. A non-positive rps disables it.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithCommitsPerRepo sets how many commits ContributionSummary fetches per repository.
func (c *Client) WithCommitsPerRepo(n int) *Client {
	if n > 0 {
		c.commitsPerRepo = n
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(log logrus.FieldLogger) *Client {
	c.log = log
	return c
}

// Repositories lists up to count repositories of user, most recently updated first.
func (c *Client) Repositories(ctx context.Context, user string, count int) ([]Repository, error) {
	endpoint := fmt.Sprintf("%s/users/%s/repos?per_page=%d&sort=updated",
		c.baseURL, url.PathEscape(user), count)

	var raw []apiRepo
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("list repositories for %s: %w", user, err)
	}

	repos := make([]Repository, 0, len(raw))
	for _, r := range raw {
		if r.Name == nil || *r.Name == "" {
			c.log.Debug("skipping repository without a name")
			continue
		}
		repos = append(repos, Repository{
			Name:        *r.Name,
			Description: deref(r.Description),
			Language:    deref(r.Language),
			Stars:       r.StargazersCount,
			Forks:       r.ForksCount,
			UpdatedAt:   r.UpdatedAt,
			URL:         r.HTMLURL,
		})
	}
	return repos, nil
}

// RecentCommits returns up to count commits of user/repo, newest first.
// Messages are cut to their first line and SHAs shortened to seven characters.
func (c *Client) RecentCommits(ctx context.Context, user, repo string, count int) ([]Commit, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=%d",
		c.baseURL, url.PathEscape(user), url.PathEscape(repo), count)

	var raw []apiCommit
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("list commits for %s/%s: %w", user, repo, err)
	}

	commits := make([]Commit, 0, len(raw))
	for _, rc := range raw {
		sha := rc.SHA
		if len(sha) > shortSHALength {
			sha = sha[:shortSHALength]
		}
		msg, _, _ := strings.Cut(rc.Commit.Message, "\n")
		commits = append(commits, Commit{
			SHA:     sha,
			Message: msg,
			Author:  rc.Commit.Author.Name,
			Date:    rc.Commit.Author.Date,
			URL:     rc.HTMLURL,
		})
	}
	return commits, nil
}

// ContributionSummary lists up to repoLimit repositories and attaches recent
// commits to each. A failed commit fetch leaves that repository without
// commits instead of failing the summary.
func (c *Client) ContributionSummary(ctx context.Context, user string, repoLimit int) (*ContributionSummary, error) {
	repos, err := c.Repositories(ctx, user, repoLimit)
	if err != nil {
		return nil, err
	}

	summaries := make([]RepoSummary, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(commitFetchConcurrency)
	for i, repo := range repos {
		g.Go(func() error {
			summary := RepoSummary{Repository: withDefaults(repo, user)}
			commits, err := c.RecentCommits(gctx, user, repo.Name, c.commitsPerRepo)
			if err != nil {
				c.log.WithError(err).WithField("repo", repo.Name).Warn("could not fetch commits")
			} else {
				summary.RecentCommits = commits
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"user":         user,
		"repositories": len(summaries),
	}).Debug("generated contribution summary")

	return &ContributionSummary{
		Username:          user,
		TotalRepositories: len(repos),
		Repositories:      summaries,
	}, nil
}

// getJSON performs a throttled GET and decodes a JSON array into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
		var eb apiErrorBody
		if json.Unmarshal(body, &eb) == nil && eb.Message != "" {
			apiErr.Message = eb.Message
		} else if text := strings.TrimSpace(string(body)); text != "" {
			apiErr.Message = text
		}
		return apiErr
	}

	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "[") {
		return ErrInvalidPayload
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// setHeaders sets common headers for GitHub API requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "foliochat/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// withDefaults fills in placeholders for fields GitHub leaves empty.
func withDefaults(r Repository, user string) Repository {
	if r.Description == "" {
		r.Description = "No description"
	}
	if r.Language == "" {
		r.Language = "Not specified"
	}
	if r.URL == "" {
		r.URL = fmt.Sprintf("https://github.com/%s/%s", user, r.Name)
	}
	return r
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
