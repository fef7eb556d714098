// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
	"github.com/ericfisherdev/prreaper/internal/domain/port/driven"
)

// Policy is the validated configuration the reaper acts on.
type Policy struct {
	Repositories           []string // Empty means every accessible repository.
	WarningThresholdDays   int
	ExecutionThresholdDays int
	ImmunityLabels         model.LabelSet
	Messages               Messages
}

// ReaperService computes the next lifecycle transition for each stale pull
// request and performs its side effects. Both operations are sequential and
// stop at the first client or store error.
type ReaperService struct {
	ghClient driven.GitHubClient
	records  driven.RecordStore
	policy   Policy
	logger   *slog.Logger
	now      func() time.Time
}

// ReaperOption customizes a ReaperService.
type ReaperOption func(*ReaperService)

// WithClock overrides the time source. Tests use it to move time forward
// between operations.
func WithClock(now func() time.Time) ReaperOption {
	return func(s *ReaperService) {
		s.now = now
	}
}

// NewReaperService creates a ReaperService with all required dependencies.
func NewReaperService(
	ghClient driven.GitHubClient,
	records driven.RecordStore,
	policy Policy,
	logger *slog.Logger,
	opts ...ReaperOption,
) *ReaperService {
	if policy.ImmunityLabels == nil {
		policy.ImmunityLabels = model.NewLabelSet()
	}

	s := &ReaperService{
		ghClient: ghClient,
		records:  records,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the policy the service was built with.
func (s *ReaperService) Policy() Policy {
	return s.policy
}

// ScanAndWarn warns every stale pull request that is not yet tracked and
// records immunity for those carrying an immunity label.
func (s *ReaperService) ScanAndWarn(ctx context.Context) (model.RunSummary, error) {
	var summary model.RunSummary

	prs, err := s.ghClient.ListInactivePullRequests(ctx, s.policy.Repositories, s.policy.WarningThresholdDays)
	if err != nil {
		return summary, fmt.Errorf("list inactive pull requests: %w", err)
	}
	summary.Candidates = len(prs)

	s.logger.Info("inactive pull requests found",
		"count", len(prs),
		"threshold_days", s.policy.WarningThresholdDays,
	)

	for _, pr := range prs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if s.hasImmunityLabel(pr) {
			if err := s.grantImmunity(ctx, pr, &summary); err != nil {
				return summary, s.fail("grant immunity", pr.RepoFullName, pr.Number, err)
			}
			continue
		}

		record, err := s.records.FindByKey(ctx, pr.RepoFullName, pr.Number)
		if err != nil {
			return summary, s.fail("find record", pr.RepoFullName, pr.Number, err)
		}

		if record != nil && record.Status != model.RecordStatusActive {
			summary.Skipped++
			s.logger.Debug("pull request already tracked",
				"repo", pr.RepoFullName,
				"pr", pr.Number,
				"status", string(record.Status),
			)
			continue
		}

		if err := s.warn(ctx, pr); err != nil {
			return summary, s.fail("warn", pr.RepoFullName, pr.Number, err)
		}
		summary.Warned++
	}

	return summary, nil
}

// ReviewAndExecute re-examines every WARNED record against fresh pull request
// data and reactivates, immunizes or closes it.
func (s *ReaperService) ReviewAndExecute(ctx context.Context) (model.RunSummary, error) {
	var summary model.RunSummary

	records, err := s.records.FindByStatus(ctx, model.RecordStatusWarned)
	if err != nil {
		return summary, fmt.Errorf("find warned records: %w", err)
	}
	summary.Candidates = len(records)

	s.logger.Info("warned records to review", "count", len(records))

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		pr, err := s.ghClient.GetPullRequest(ctx, record.RepoFullName, record.Number)
		if err != nil {
			return summary, s.fail("fetch pull request", record.RepoFullName, record.Number, err)
		}

		if record.WarningPostedAt == nil {
			summary.Skipped++
			s.logger.Warn("warned record has no warning timestamp, skipping",
				"repo", record.RepoFullName,
				"pr", record.Number,
			)
			continue
		}

		switch {
		case pr.UpdatedAt.After(*record.WarningPostedAt):
			if err := s.reactivate(ctx, record); err != nil {
				return summary, s.fail("reactivate", record.RepoFullName, record.Number, err)
			}
			summary.Reactivated++

		case s.hasImmunityLabel(*pr):
			if err := s.grantImmunity(ctx, *pr, &summary); err != nil {
				return summary, s.fail("grant immunity", record.RepoFullName, record.Number, err)
			}

		case model.WholeDaysBetween(*record.WarningPostedAt, s.now()) >= s.policy.ExecutionThresholdDays:
			if err := s.execute(ctx, *pr, record); err != nil {
				return summary, s.fail("execute", record.RepoFullName, record.Number, err)
			}
			summary.Executed++

		default:
			summary.Skipped++
		}
	}

	return summary, nil
}

// hasImmunityLabel reports whether pr carries any configured immunity label.
func (s *ReaperService) hasImmunityLabel(pr model.PullRequest) bool {
	return s.policy.ImmunityLabels.MatchesAny(pr.Labels)
}

// warn posts the warning comment and records the WARNED state.
func (s *ReaperService) warn(ctx context.Context, pr model.PullRequest) error {
	body := RenderMessage(s.policy.Messages.Warning, pr.InactivityDays)
	if err := s.ghClient.PostComment(ctx, pr.RepoFullName, pr.Number, body); err != nil {
		return err
	}

	now := s.now()
	record := model.Record{
		RepoFullName:    pr.RepoFullName,
		Number:          pr.Number,
		Status:          model.RecordStatusWarned,
		WarningPostedAt: &now,
		LastCheckedAt:   now,
	}
	if err := s.records.Upsert(ctx, record); err != nil {
		return err
	}

	s.logger.Info("posted warning",
		"repo", pr.RepoFullName,
		"pr", pr.Number,
		"title", pr.Title,
		"inactivity_days", pr.InactivityDays,
	)
	return nil
}

// reactivate moves a WARNED record back to ACTIVE after new activity.
func (s *ReaperService) reactivate(ctx context.Context, record model.Record) error {
	record.Status = model.RecordStatusActive
	record.WarningPostedAt = nil
	record.LastCheckedAt = s.now()
	if err := s.records.Upsert(ctx, record); err != nil {
		return err
	}

	s.logger.Info("pull request active again", "repo", record.RepoFullName, "pr", record.Number)
	return nil
}

// execute posts the closing comment, closes the pull request and records
// the terminal EXECUTED state.
func (s *ReaperService) execute(ctx context.Context, pr model.PullRequest, record model.Record) error {
	body := RenderMessage(s.policy.Messages.Closing, pr.InactivityDays)
	if err := s.ghClient.PostComment(ctx, pr.RepoFullName, pr.Number, body); err != nil {
		return err
	}

	if err := s.ghClient.ClosePullRequest(ctx, pr.RepoFullName, pr.Number); err != nil {
		return err
	}

	now := s.now()
	record.Status = model.RecordStatusExecuted
	record.ExecutedAt = &now
	record.LastCheckedAt = now
	if err := s.records.Upsert(ctx, record); err != nil {
		return err
	}

	s.logger.Info("closed pull request",
		"repo", pr.RepoFullName,
		"pr", pr.Number,
		"title", pr.Title,
		"inactivity_days", pr.InactivityDays,
	)
	return nil
}

// grantImmunity records IMMUNE for a labelled pull request. A reprieve comment
// is posted only when an existing non-immune record is transitioned; a first
// sighting is recorded silently and an IMMUNE record is left alone.
func (s *ReaperService) grantImmunity(ctx context.Context, pr model.PullRequest, summary *model.RunSummary) error {
	record, err := s.records.FindByKey(ctx, pr.RepoFullName, pr.Number)
	if err != nil {
		return err
	}

	if record == nil {
		if err := s.records.Upsert(ctx, model.Record{
			RepoFullName:  pr.RepoFullName,
			Number:        pr.Number,
			Status:        model.RecordStatusImmune,
			LastCheckedAt: s.now(),
		}); err != nil {
			return err
		}
		summary.Immunized++
		s.logger.Info("registered immune pull request", "repo", pr.RepoFullName, "pr", pr.Number)
		return nil
	}

	switch record.Status {
	case model.RecordStatusImmune:
		summary.Skipped++
		return nil
	case model.RecordStatusExecuted:
		// Terminal. Only reachable if someone reopened the pull request by hand.
		summary.Skipped++
		s.logger.Debug("executed record is terminal, not granting immunity", "repo", pr.RepoFullName, "pr", pr.Number)
		return nil
	case model.RecordStatusActive, model.RecordStatusWarned:
		// Transition below.
	}

	if err := s.ghClient.PostComment(ctx, pr.RepoFullName, pr.Number, s.policy.Messages.Reprieve); err != nil {
		return err
	}

	record.Status = model.RecordStatusImmune
	record.LastCheckedAt = s.now()
	if err := s.records.Upsert(ctx, *record); err != nil {
		return err
	}

	summary.Immunized++
	s.logger.Info("granted immunity", "repo", pr.RepoFullName, "pr", pr.Number)
	return nil
}

// fail logs a per-item failure and wraps err with the pull request key.
func (s *ReaperService) fail(step, repoFullName string, number int, err error) error {
	s.logger.Error(step+" failed", "repo", repoFullName, "pr", number, "error", err)
	return fmt.Errorf("%s %s: %w", step, model.RecordKey(repoFullName, number), err)
}
