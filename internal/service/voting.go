package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/skatehubba/skate-core/internal/domain"
	"github.com/skatehubba/skate-core/internal/metrics"
	"github.com/skatehubba/skate-core/internal/redis"
)

// VotingService accepts submissions and resolves them from concurrent judge votes
type VotingService struct {
	store   *redis.Store
	audit   VoteAudit
	tx      *TxRunner
	metrics *metrics.Manager
	logger  *slog.Logger
	now     func() time.Time
}

// NewVotingService creates a new voting service
func NewVotingService(
	store *redis.Store,
	audit VoteAudit,
	tx *TxRunner,
	m *metrics.Manager,
	logger *slog.Logger,
) *VotingService {
	return &VotingService{
		store:   store,
		audit:   audit,
		tx:      tx,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the service clock
func (s *VotingService) WithClock(now func() time.Time) *VotingService {
	s.now = now
	return s
}

// CreateSubmission queues a recorded attempt for judging. It fails with
// domain.ErrCooldownActive while the user is on cooldown.
func (s *VotingService) CreateSubmission(ctx context.Context, userID string, req domain.CreateSubmissionRequest) (*domain.Submission, error) {
	sub, err := domain.NewSubmission(uuid.NewString(), userID, req, s.now().UTC())
	if err != nil {
		return nil, err
	}

	err = s.tx.Run(ctx, "create_submission", func(ctx context.Context) error {
		return s.store.CreateSubmission(ctx, sub, s.now().UTC())
	})
	if err != nil {
		if errors.Is(err, domain.ErrCooldownActive) {
			s.metrics.RecordCooldownRejection()
		}
		return nil, err
	}

	s.logger.Info("submission created",
		"submission_id", sub.ID,
		"user_id", userID,
		"challenge_id", sub.ChallengeID,
	)
	return sub, nil
}

// GetSubmission returns a submission by ID
func (s *VotingService) GetSubmission(ctx context.Context, submissionID string) (*domain.Submission, error) {
	return s.store.GetSubmission(ctx, submissionID)
}

// SubmitVote records one judge's vote. The caller must hold the judge role.
// The vote, the counters and any resolution commit together; concurrent
// votes retry on conflict.
func (s *VotingService) SubmitVote(ctx context.Context, submissionID string, judge domain.Caller, vote domain.Vote) (*domain.Submission, error) {
	if judge.ID == "" {
		return nil, domain.ErrMissingIdentity
	}
	if !judge.HasRole(domain.RoleJudge) {
		return nil, domain.ErrNotAJudge
	}
	judgeID := judge.ID

	var resolved bool
	var sub *domain.Submission
	err := s.tx.Run(ctx, "submit_vote", func(ctx context.Context) error {
		updated, err := s.store.UpdateSubmission(ctx, submissionID, func(sub *domain.Submission) error {
			wasResolved := sub.IsResolved()
			if err := sub.ApplyVote(judgeID, vote, s.now().UTC()); err != nil {
				return err
			}
			resolved = !wasResolved && sub.IsResolved()
			return nil
		})
		if err != nil {
			return err
		}
		sub = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVote(string(vote))
	if resolved {
		s.metrics.RecordResolution(string(*sub.ResolvedOutcome))
		s.logger.Info("submission resolved",
			"submission_id", submissionID,
			"outcome", *sub.ResolvedOutcome,
		)
	} else if sub.FlaggedForReview && vote == domain.VoteDispute {
		s.logger.Warn("submission flagged for review", "submission_id", submissionID)
	}

	if s.audit != nil {
		event := domain.VoteEvent{
			SubmissionID: submissionID,
			JudgeID:      judgeID,
			Vote:         string(vote),
			Timestamp:    s.now().UTC(),
		}
		if err := s.audit.RecordVoteEvent(ctx, event); err != nil {
			s.logger.Warn("failed to record vote event", "submission_id", submissionID, "error", err)
		}
	}
	return sub, nil
}

// HandleVoteEvent applies a vote delivered asynchronously. The event's roles
// are subject to the same judge check as an HTTP vote.
func (s *VotingService) HandleVoteEvent(ctx context.Context, event domain.VoteEvent) error {
	if event.SubmissionID == "" {
		return fmt.Errorf("vote event without submission: %w", domain.ErrInvalidRequest)
	}
	vote, err := domain.ParseVote(event.Vote)
	if err != nil {
		return err
	}
	_, err = s.SubmitVote(ctx, event.SubmissionID, domain.Caller{ID: event.JudgeID, Roles: event.Roles}, vote)
	return err
}
