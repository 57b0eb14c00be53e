package domain

import (
	"slices"
	"strings"
	"time"
)

// ResolutionThreshold is the number of matching judge votes that resolves a submission
const ResolutionThreshold = 3

// MaxRecordingDuration bounds the length of a submitted clip
const MaxRecordingDuration = 15 * time.Second

// SubmissionStatus represents the judging state of a submission
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "PENDING"
	SubmissionResolved SubmissionStatus = "RESOLVED"
	// SubmissionDispute is accepted on the wire but never assigned here.
	SubmissionDispute SubmissionStatus = "DISPUTE"
)

// Vote is a judge's verdict on a submission
type Vote string

const (
	VoteLanded  Vote = "LANDED"
	VoteLetter  Vote = "LETTER"
	VoteDispute Vote = "DISPUTE"
)

// ParseVote validates a vote string.
func ParseVote(s string) (Vote, error) {
	switch Vote(strings.ToUpper(strings.TrimSpace(s))) {
	case VoteLanded:
		return VoteLanded, nil
	case VoteLetter:
		return VoteLetter, nil
	case VoteDispute:
		return VoteDispute, nil
	default:
		return "", ErrInvalidVote
	}
}

// Outcome is the resolved result of a submission
type Outcome string

const (
	OutcomeLanded Outcome = "LANDED"
	OutcomeLetter Outcome = "LETTER"
)

// Judging tracks judge votes on a submission
type Judging struct {
	LandedVotes  int      `json:"landed_votes"`
	LetterVotes  int      `json:"letter_votes"`
	DisputeVotes int      `json:"dispute_votes"`
	JudgesVoted  []string `json:"judges_voted"`
}

// HasVoted reports whether judgeID already cast a vote.
func (j *Judging) HasVoted(judgeID string) bool {
	return slices.Contains(j.JudgesVoted, judgeID)
}

// Submission is a recorded attempt awaiting judgement
type Submission struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	ChallengeID      string           `json:"challenge_id"`
	GameLength       GameLength       `json:"game_length"`
	VideoURL         string           `json:"video_url"`
	Status           SubmissionStatus `json:"status"`
	Judging          Judging          `json:"judging"`
	ResolvedOutcome  *Outcome         `json:"resolved_outcome"`
	FlaggedForReview bool             `json:"flagged_for_review"`
	SubmittedAt      time.Time        `json:"submitted_at"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`
	Duration         float64          `json:"duration"`
}

// NewSubmission validates the payload and returns a pending submission.
func NewSubmission(id, userID string, req CreateSubmissionRequest, now time.Time) (*Submission, error) {
	if userID == "" {
		return nil, ErrMissingIdentity
	}
	if strings.TrimSpace(req.ChallengeID) == "" {
		return nil, ErrInvalidRequest
	}
	if strings.TrimSpace(req.VideoURL) == "" {
		return nil, ErrMissingVideo
	}
	length, err := ParseGameLength(req.GameLength)
	if err != nil {
		return nil, err
	}
	if req.Duration <= 0 || req.Duration > MaxRecordingDuration.Seconds() {
		return nil, ErrInvalidDuration
	}

	return &Submission{
		ID:          id,
		UserID:      userID,
		ChallengeID: req.ChallengeID,
		GameLength:  length,
		VideoURL:    req.VideoURL,
		Status:      SubmissionPending,
		Judging:     Judging{JudgesVoted: []string{}},
		SubmittedAt: now,
		Duration:    req.Duration,
	}, nil
}

// ApplyVote counts one judge's vote and resolves the submission once a
// counter reaches the threshold. LANDED is checked before LETTER; only one
// vote lands per call so at most one counter can cross the threshold.
func (s *Submission) ApplyVote(judgeID string, vote Vote, now time.Time) error {
	if judgeID == "" {
		return ErrMissingIdentity
	}
	if judgeID == s.UserID {
		return ErrSelfJudging
	}
	if s.Judging.HasVoted(judgeID) {
		return ErrAlreadyVoted
	}
	if s.Status != SubmissionPending {
		return ErrAlreadyResolved
	}

	switch vote {
	case VoteLanded:
		s.Judging.LandedVotes++
	case VoteLetter:
		s.Judging.LetterVotes++
	case VoteDispute:
		s.Judging.DisputeVotes++
	default:
		return ErrInvalidVote
	}
	s.Judging.JudgesVoted = append(s.Judging.JudgesVoted, judgeID)

	switch {
	case s.Judging.LandedVotes >= ResolutionThreshold:
		s.resolve(OutcomeLanded, now)
	case s.Judging.LetterVotes >= ResolutionThreshold:
		s.resolve(OutcomeLetter, now)
	case s.Judging.DisputeVotes >= ResolutionThreshold:
		// Stays pending until someone reviews it by hand.
		s.FlaggedForReview = true
	}
	return nil
}

// IsResolved reports whether judging is finished.
func (s *Submission) IsResolved() bool {
	return s.Status == SubmissionResolved
}

func (s *Submission) resolve(outcome Outcome, now time.Time) {
	s.Status = SubmissionResolved
	s.ResolvedOutcome = &outcome
	s.ResolvedAt = &now
}

// CreateSubmissionRequest represents a request to submit a recorded attempt
type CreateSubmissionRequest struct {
	ChallengeID string  `json:"challenge_id"`
	GameLength  string  `json:"game_length"`
	VideoURL    string  `json:"video_url"`
	Duration    float64 `json:"duration"`
}

// VoteRequest represents a judge's vote submission
type VoteRequest struct {
	Vote string `json:"vote"`
}

// VoteEvent is a judge vote delivered asynchronously
type VoteEvent struct {
	SubmissionID string    `json:"submission_id"`
	JudgeID      string    `json:"judge_id"`
	Vote         string    `json:"vote"`
	Roles        []string  `json:"roles,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
}
