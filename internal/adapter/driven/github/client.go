// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
	"github.com/ericfisherdev/prreaper/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh  *gh.Client
	now func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithClock overrides the time source used to compute inactivity.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string, opts ...Option) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return newClient(client, opts)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string, opts ...Option) (*Client, error) {
	client := gh.NewClient(httpClient).WithAuthToken(token)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return newClient(client, opts), nil
}

func newClient(client *gh.Client, opts []Option) *Client {
	c := &Client{gh: client, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthenticatedUser returns the login the token belongs to. It doubles as a
// token check before a token is stored.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	logRateLimit(resp, "user", 0, 1)
	return user.GetLogin(), nil
}

// ListInactivePullRequests returns the open pull requests across repos whose
// inactivity is at least thresholdDays. An empty repos slice means every
// repository the token can access. Results are grouped by repository and
// ordered least-recently-updated first within each.
func (c *Client) ListInactivePullRequests(ctx context.Context, repos []string, thresholdDays int) ([]model.PullRequest, error) {
	if len(repos) == 0 {
		accessible, err := c.listAccessibleRepos(ctx)
		if err != nil {
			return nil, err
		}
		repos = accessible
	}

	result := []model.PullRequest{}
	for _, repoFullName := range repos {
		prs, err := c.listInactive(ctx, repoFullName, thresholdDays)
		if err != nil {
			return nil, err
		}
		result = append(result, prs...)
	}
	return result, nil
}

// listInactive pages through a repository's open pull requests oldest-update
// first and stops at the first one that is still within the threshold.
func (c *Client) listInactive(ctx context.Context, repoFullName string, thresholdDays int) ([]model.PullRequest, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListOptions{
		State:     "open",
		Sort:      "updated",
		Direction: "asc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	now := c.now()
	var inactive []model.PullRequest

	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests for %s (page %d): %w", repoFullName, opts.Page, err)
		}

		logRateLimit(resp, repoFullName, opts.Page, len(prs))

		for _, pr := range prs {
			mapped := mapPullRequest(pr, repoFullName, now)
			if mapped.InactivityDays < thresholdDays {
				return inactive, nil
			}
			inactive = append(inactive, mapped)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return inactive, nil
}

// listAccessibleRepos returns the full names of every non-archived repository
// the authenticated user can see.
func (c *Client) listAccessibleRepos(ctx context.Context) ([]string, error) {
	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Visibility: "all",
		Sort:       "updated",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	var names []string

	for {
		repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("listing repositories (page %d): %w", opts.Page, err)
		}

		logRateLimit(resp, "user/repos", opts.Page, len(repos))

		for _, r := range repos {
			// Archived repositories are read-only; commenting would fail.
			if r.GetArchived() {
				continue
			}
			names = append(names, r.GetFullName())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}

// GetPullRequest fetches the current state of a single pull request.
func (c *Client) GetPullRequest(ctx context.Context, repoFullName string, number int) (*model.PullRequest, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	pr, resp, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetching pull request %s#%d: %w", repoFullName, number, err)
	}

	logRateLimit(resp, repoFullName+"/pull", 0, 1)

	mapped := mapPullRequest(pr, repoFullName, c.now())
	return &mapped, nil
}

// PostComment adds a general comment to a pull request's conversation.
func (c *Client) PostComment(ctx context.Context, repoFullName string, number int, body string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, resp, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("posting comment on %s#%d: %w", repoFullName, number, err)
	}

	logRateLimit(resp, repoFullName+"/comment", 0, 1)
	return nil
}

// ClosePullRequest closes a pull request without merging it.
func (c *Client) ClosePullRequest(ctx context.Context, repoFullName string, number int) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, resp, err := c.gh.PullRequests.Edit(ctx, owner, repo, number, &gh.PullRequest{
		State: gh.Ptr("closed"),
	})
	if err != nil {
		return fmt.Errorf("closing pull request %s#%d: %w", repoFullName, number, err)
	}

	logRateLimit(resp, repoFullName+"/close", 0, 1)
	return nil
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// mapPullRequest converts a go-github PullRequest to a domain model PullRequest.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapPullRequest(pr *gh.PullRequest, repoFullName string, now time.Time) model.PullRequest {
	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	updatedAt := pr.GetUpdatedAt().Time

	return model.PullRequest{
		ID:             pr.GetID(),
		Number:         pr.GetNumber(),
		RepoFullName:   repoFullName,
		Title:          pr.GetTitle(),
		URL:            pr.GetHTMLURL(),
		Author:         pr.GetUser().GetLogin(),
		Labels:         labels,
		CreatedAt:      pr.GetCreatedAt().Time,
		UpdatedAt:      updatedAt,
		InactivityDays: model.InactivityDays(updatedAt, now),
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
