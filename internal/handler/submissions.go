package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skatehubba/skate-core/internal/domain"
)

// CreateSubmission queues the caller's recorded attempt for judging
func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSubmissionRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	sub, err := h.voting.CreateSubmission(r.Context(), caller(r), req)
	if err != nil {
		h.handleError(w, r, err, "create_submission")
		return
	}

	h.writeCreated(w, sub)
}

// GetSubmission returns a submission by ID
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.voting.GetSubmission(r.Context(), chi.URLParam(r, "submissionID"))
	if err != nil {
		h.handleError(w, r, err, "get_submission")
		return
	}

	h.writeSuccess(w, sub)
}

// SubmitVote records the calling judge's vote
func (h *Handler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	var req domain.VoteRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	vote, err := domain.ParseVote(req.Vote)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	judge, _ := IdentityFromContext(r.Context())
	sub, err := h.voting.SubmitVote(r.Context(), chi.URLParam(r, "submissionID"), judge, vote)
	if err != nil {
		h.handleError(w, r, err, "submit_vote")
		return
	}

	h.writeSuccess(w, sub)
}

// GetQueue returns pending submissions, oldest first
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	subs, err := h.queue.FetchQueue(r.Context(), queryInt(r, "limit"))
	if err != nil {
		h.handleError(w, r, err, "fetch_queue")
		return
	}

	h.writeSuccess(w, subs)
}

// GetJudgeQueue returns pending submissions the caller can still vote on
func (h *Handler) GetJudgeQueue(w http.ResponseWriter, r *http.Request) {
	after, err := parseCursor(r.URL.Query().Get("after"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	subs, err := h.queue.FetchQueueForJudge(r.Context(), caller(r), queryInt(r, "limit"), after)
	if err != nil {
		h.handleError(w, r, err, "fetch_judge_queue")
		return
	}

	h.writeSuccess(w, subs)
}

// parseCursor accepts an RFC 3339 timestamp or unix milliseconds
func parseCursor(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
