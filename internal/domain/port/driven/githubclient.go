// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
)

// GitHubClient defines the driven port for reading and mutating pull requests
// on the code-hosting service. Implementations do not retry; every method may
// fail with a transport or API error.
type GitHubClient interface {
	// ListInactivePullRequests returns the open pull requests whose inactivity
	// is at least thresholdDays. An empty repos slice means every repository
	// the credential can see.
	ListInactivePullRequests(ctx context.Context, repos []string, thresholdDays int) ([]model.PullRequest, error)

	// GetPullRequest fetches a single pull request, bypassing any cache.
	GetPullRequest(ctx context.Context, repoFullName string, number int) (*model.PullRequest, error)

	// PostComment adds a PR-level comment.
	PostComment(ctx context.Context, repoFullName string, number int, body string) error

	// ClosePullRequest closes the pull request without merging.
	ClosePullRequest(ctx context.Context, repoFullName string, number int) error
}
