package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/eapache/go-resiliency/retrier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skatehubba/skate-core/internal/config"
	"github.com/skatehubba/skate-core/internal/domain"
)

type fakeVoteHandler struct {
	mu     sync.Mutex
	events []domain.VoteEvent
	errs   []error
}

func (f *fakeVoteHandler) HandleVoteEvent(_ context.Context, event domain.VoteEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeVoteHandler) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func newTestConsumer(handler VoteHandler) *Consumer {
	cfg := &config.KafkaConfig{
		Topic:         "skate-judge-votes",
		BatchSize:     10,
		BatchTimeout:  10 * time.Millisecond,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
	return newConsumer(cfg, handler, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func judgeVote(submissionID, judgeID, vote string) domain.VoteEvent {
	return domain.VoteEvent{SubmissionID: submissionID, JudgeID: judgeID, Vote: vote, Roles: []string{domain.RoleJudge}}
}

func voteMessage(t *testing.T, event domain.VoteEvent) *sarama.ConsumerMessage {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "skate-judge-votes", Key: []byte(event.SubmissionID), Value: data}
}

func TestProcess_AppliesVote(t *testing.T) {
	h := &fakeVoteHandler{}
	c := newTestConsumer(h)

	err := c.process(context.Background(), voteMessage(t, judgeVote("s1", "j1", "LANDED")))
	require.NoError(t, err)
	require.Equal(t, 1, h.calls())
	assert.Equal(t, "s1", h.events[0].SubmissionID)
	assert.Equal(t, "LANDED", h.events[0].Vote)
}

func TestProcess_DropsMalformedMessages(t *testing.T) {
	h := &fakeVoteHandler{}
	c := newTestConsumer(h)

	require.NoError(t, c.process(context.Background(), &sarama.ConsumerMessage{Value: []byte("{not json")}))
	require.NoError(t, c.process(context.Background(), voteMessage(t, domain.VoteEvent{JudgeID: "j1", Vote: "LANDED"})))
	require.NoError(t, c.process(context.Background(), voteMessage(t, domain.VoteEvent{SubmissionID: "s1", Vote: "LANDED"})))
	require.NoError(t, c.process(context.Background(), voteMessage(t, domain.VoteEvent{SubmissionID: "s1", JudgeID: "j1", Vote: "LANDED"})))
	assert.Zero(t, h.calls())
}

func TestProcess_RetriesTransientFailures(t *testing.T) {
	transient := errors.New("connection reset")
	h := &fakeVoteHandler{errs: []error{transient, transient}}
	c := newTestConsumer(h)

	err := c.process(context.Background(), voteMessage(t, judgeVote("s1", "j1", "LETTER")))
	require.NoError(t, err)
	assert.Equal(t, 3, h.calls())
}

func TestProcess_GivesUpAfterRetries(t *testing.T) {
	transient := errors.New("connection reset")
	h := &fakeVoteHandler{errs: []error{transient, transient, transient, transient, transient}}
	c := newTestConsumer(h)

	err := c.process(context.Background(), voteMessage(t, judgeVote("s1", "j1", "LETTER")))
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 4, h.calls())
}

func TestProcess_TerminalRejectionIsNotRetried(t *testing.T) {
	for _, rejection := range []error{domain.ErrAlreadyVoted, domain.ErrAlreadyResolved, domain.ErrInvalidVote, domain.ErrSubmissionNotFound} {
		t.Run(rejection.Error(), func(t *testing.T) {
			h := &fakeVoteHandler{errs: []error{rejection}}
			c := newTestConsumer(h)

			err := c.process(context.Background(), voteMessage(t, judgeVote("s1", "j1", "LANDED")))
			require.NoError(t, err)
			assert.Equal(t, 1, h.calls())
		})
	}
}

func TestTransientClassifier(t *testing.T) {
	var c transientClassifier
	assert.Equal(t, retrier.Succeed, c.Classify(nil))
	assert.Equal(t, retrier.Fail, c.Classify(domain.ErrConflict))
	assert.Equal(t, retrier.Fail, c.Classify(context.Canceled))
	assert.Equal(t, retrier.Fail, c.Classify(domain.ErrTransient))
	assert.Equal(t, retrier.Retry, c.Classify(errors.New("broken pipe")))
}

func TestProcess_RequiresProducerToken(t *testing.T) {
	h := &fakeVoteHandler{}
	c := newTestConsumer(h)
	c.config.ProducerToken = "s3cret"

	withHeader := func(value string) *sarama.ConsumerMessage {
		msg := voteMessage(t, judgeVote("s1", "j1", "LANDED"))
		msg.Headers = []*sarama.RecordHeader{{Key: []byte("Authorization"), Value: []byte(value)}}
		return msg
	}

	require.NoError(t, c.process(context.Background(), voteMessage(t, judgeVote("s1", "j1", "LANDED"))))
	require.NoError(t, c.process(context.Background(), withHeader("Bearer wrong")))
	require.NoError(t, c.process(context.Background(), withHeader("s3cret")))
	assert.Zero(t, h.calls())

	require.NoError(t, c.process(context.Background(), withHeader("Bearer s3cret")))
	assert.Equal(t, 1, h.calls())
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func claimOf(msgs ...*sarama.ConsumerMessage) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return &fakeClaim{messages: ch}
}

func offsetMessage(t *testing.T, offset int64, event domain.VoteEvent) *sarama.ConsumerMessage {
	t.Helper()
	msg := voteMessage(t, event)
	msg.Offset = offset
	return msg
}

func TestConsumeClaim_MarksAppliedAndDroppedMessages(t *testing.T) {
	h := &fakeVoteHandler{errs: []error{nil, domain.ErrAlreadyVoted}}
	c := newTestConsumer(h)
	session := &fakeSession{ctx: context.Background()}

	malformed := &sarama.ConsumerMessage{Offset: 5, Value: []byte("{")}
	claim := claimOf(
		offsetMessage(t, 3, judgeVote("s1", "j1", "LANDED")),
		offsetMessage(t, 4, judgeVote("s1", "j1", "LANDED")),
		malformed,
	)

	err := (&consumerGroupHandler{consumer: c}).ConsumeClaim(session, claim)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4, 5}, session.marked)
	assert.Equal(t, 2, h.calls())
}

func TestConsumeClaim_StopsAtFirstFailure(t *testing.T) {
	down := errors.New("redis: connection refused")
	h := &fakeVoteHandler{errs: []error{nil, down, down, down, down}}
	c := newTestConsumer(h)
	session := &fakeSession{ctx: context.Background()}

	claim := claimOf(
		offsetMessage(t, 7, judgeVote("s1", "j1", "LANDED")),
		offsetMessage(t, 8, judgeVote("s2", "j1", "LETTER")),
		offsetMessage(t, 9, judgeVote("s3", "j1", "LANDED")),
	)

	err := (&consumerGroupHandler{consumer: c}).ConsumeClaim(session, claim)
	assert.ErrorIs(t, err, down)
	assert.Equal(t, []int64{7}, session.marked)

	assert.Equal(t, 5, h.calls())
	for _, event := range h.events {
		assert.NotEqual(t, "s3", event.SubmissionID)
	}
}

type fakeGroup struct {
	sarama.ConsumerGroup
	mu       sync.Mutex
	consumes int
	failures int
	closed   bool
	errs     chan error
}

func newFakeGroup(failures int) *fakeGroup {
	return &fakeGroup{failures: failures, errs: make(chan error)}
}

// Consume fails the first failures joins, then holds a session open until
// the consumer is stopped.
func (g *fakeGroup) Consume(ctx context.Context, _ []string, handler sarama.ConsumerGroupHandler) error {
	g.mu.Lock()
	g.consumes++
	n := g.consumes
	g.mu.Unlock()

	if g.failures < 0 || n <= g.failures {
		return fmt.Errorf("kafka: client has run out of available brokers (join %d)", n)
	}
	if err := handler.Setup(nil); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (g *fakeGroup) Errors() <-chan error { return g.errs }

func (g *fakeGroup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

func (g *fakeGroup) stats() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.consumes, g.closed
}

func TestStart_BacksOffAndRecovers(t *testing.T) {
	c := newTestConsumer(&fakeVoteHandler{})
	c.config.RetryDelay = 5 * time.Millisecond
	c.config.StartTimeout = 2 * time.Second
	group := newFakeGroup(2)
	c.consumerGroup = group

	require.NoError(t, c.Start())
	consumes, _ := group.stats()
	assert.Equal(t, 3, consumes)

	require.NoError(t, c.Stop())
	_, closed := group.stats()
	assert.True(t, closed)
}

func TestStart_TimesOutWhenNoSession(t *testing.T) {
	c := newTestConsumer(&fakeVoteHandler{})
	c.config.RetryDelay = 20 * time.Millisecond
	c.config.StartTimeout = 100 * time.Millisecond
	group := newFakeGroup(-1)
	c.consumerGroup = group

	start := time.Now()
	err := c.Start()
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	consumes, closed := group.stats()
	assert.True(t, closed)
	assert.GreaterOrEqual(t, consumes, 1)
	assert.LessOrEqual(t, consumes, 10)
}
