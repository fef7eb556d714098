package model

import (
	"fmt"
	"time"
)

// day is the unit every inactivity and grace-period measurement is floored to.
const day = 24 * time.Hour

// PullRequest is a live snapshot of an open GitHub pull request. It is
// rebuilt on every fetch and never persisted.
type PullRequest struct {
	ID           int64
	Number       int
	RepoFullName string
	Title        string
	URL          string
	Author       string
	Labels       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// InactivityDays is computed by the adapter at fetch time from UpdatedAt.
	InactivityDays int
}

// Key returns the record key ("owner/repo#number") this pull request is tracked under.
func (pr PullRequest) Key() string {
	return RecordKey(pr.RepoFullName, pr.Number)
}

// RecordKey builds the unique store key for a pull request.
func RecordKey(repoFullName string, number int) string {
	return fmt.Sprintf("%s#%d", repoFullName, number)
}

// InactivityDays returns the whole days elapsed between updatedAt and now.
// Timestamps in the future yield 0.
func InactivityDays(updatedAt, now time.Time) int {
	return WholeDaysBetween(updatedAt, now)
}

// WholeDaysBetween returns floor((to - from) / 24h), clamped at 0.
func WholeDaysBetween(from, to time.Time) int {
	elapsed := to.Sub(from)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / day)
}
