package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
)

func TestWholeDaysBetween(t *testing.T) {
	from := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		to   time.Time
		want int
	}{
		{"same instant", from, 0},
		{"just under a day", from.Add(24*time.Hour - time.Second), 0},
		{"exactly one day", from.Add(24 * time.Hour), 1},
		{"floors partial days", from.Add(14*24*time.Hour + 23*time.Hour), 14},
		{"future clamps to zero", from.Add(-48 * time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.WholeDaysBetween(from, tt.to))
		})
	}
}

func TestInactivityDays_IgnoresTimeZones(t *testing.T) {
	now := time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 1, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))

	assert.Equal(t, 19, model.InactivityDays(updated, now))
}

func TestRecordKey(t *testing.T) {
	pr := model.PullRequest{RepoFullName: "octo/hello", Number: 42}
	rec := model.Record{RepoFullName: "octo/hello", Number: 42}

	assert.Equal(t, "octo/hello#42", pr.Key())
	assert.Equal(t, pr.Key(), rec.Key())
}

func TestParseRecordStatus(t *testing.T) {
	for _, s := range []string{"ACTIVE", "WARNED", "EXECUTED", "IMMUNE"} {
		status, err := model.ParseRecordStatus(s)
		assert.NoError(t, err)
		assert.Equal(t, model.RecordStatus(s), status)
	}

	_, err := model.ParseRecordStatus("warned")
	assert.Error(t, err)
	_, err = model.ParseRecordStatus("")
	assert.Error(t, err)
}

func TestLabelSet(t *testing.T) {
	set := model.NewLabelSet("do-not-close", "", "work-in-progress")

	assert.Len(t, set, 2)
	assert.True(t, set.Contains("do-not-close"))
	assert.False(t, set.Contains("Do-Not-Close"))
	assert.False(t, set.Contains(""))

	assert.True(t, set.MatchesAny([]string{"bug", "work-in-progress"}))
	assert.False(t, set.MatchesAny([]string{"bug"}))
	assert.False(t, set.MatchesAny(nil))
	assert.False(t, model.NewLabelSet().MatchesAny([]string{"do-not-close"}))

	assert.ElementsMatch(t, []string{"do-not-close", "work-in-progress"}, set.Names())
}

func TestParseOperation(t *testing.T) {
	op, err := model.ParseOperation("warn")
	assert.NoError(t, err)
	assert.Equal(t, model.OperationWarn, op)

	op, err = model.ParseOperation("execute")
	assert.NoError(t, err)
	assert.Equal(t, model.OperationExecute, op)

	_, err = model.ParseOperation("reap")
	assert.Error(t, err)
}
