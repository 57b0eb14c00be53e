package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/skatehubba/skate-core/internal/config"
	"github.com/skatehubba/skate-core/internal/domain"
	"github.com/skatehubba/skate-core/internal/metrics"
	"github.com/skatehubba/skate-core/internal/redis"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeDirectory struct {
	players map[string]domain.Player
}

func (d *fakeDirectory) ResolveHandle(_ context.Context, handle string) (*domain.Player, error) {
	p, ok := d.players[handle]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return &p, nil
}

func (d *fakeDirectory) GetHandles(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, p := range d.players {
		for _, id := range ids {
			if p.ID == id {
				out[id] = p.Handle
			}
		}
	}
	return out, nil
}

type fakeArchive struct {
	mu       sync.Mutex
	games    []*domain.Game
	events   []domain.GameEvent
	votes    []domain.VoteEvent
	failWith error
}

func (a *fakeArchive) ArchiveGame(_ context.Context, g *domain.Game) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failWith != nil {
		return a.failWith
	}
	a.games = append(a.games, g)
	return nil
}

func (a *fakeArchive) RecordGameEvent(_ context.Context, e domain.GameEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *fakeArchive) RecordVoteEvent(_ context.Context, e domain.VoteEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.votes = append(a.votes, e)
	return nil
}

func (a *fakeArchive) eventTypes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	types := make([]string, len(a.events))
	for i, e := range a.events {
		types[i] = e.EventType
	}
	return types
}

type testEnv struct {
	store       *redis.Store
	clock       *fakeClock
	archive     *fakeArchive
	directory   *fakeDirectory
	cfg         *config.Config
	games       *GameService
	voting      *VotingService
	queue       *QueueService
	cooldowns   *CooldownService
	leaderboard *LeaderboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	cfg.Voting.MaxAttempts = 50
	cfg.Voting.BaseBackoff = time.Millisecond
	cfg.Voting.MaxBackoff = 5 * time.Millisecond

	store := redis.NewStoreWithClient(client, logger)
	clock := &fakeClock{now: t0}
	archive := &fakeArchive{}
	directory := &fakeDirectory{players: map[string]domain.Player{
		"bobby":  {ID: "bob", Handle: "bobby"},
		"alicia": {ID: "alice", Handle: "alicia"},
	}}
	m := metrics.NewManager()
	tx := NewTxRunner(&cfg.Voting, m, logger)

	return &testEnv{
		store:       store,
		clock:       clock,
		archive:     archive,
		directory:   directory,
		cfg:         cfg,
		games:       NewGameService(store, directory, archive, tx, &cfg.Game, m, logger).WithClock(clock.Now),
		voting:      NewVotingService(store, archive, tx, m, logger).WithClock(clock.Now),
		queue:       NewQueueService(store, &cfg.Voting, m, logger),
		cooldowns:   NewCooldownService(store, logger).WithClock(clock.Now),
		leaderboard: NewLeaderboardService(store, directory, &cfg.Game, logger),
	}
}

func (e *testEnv) submit(t *testing.T, userID string) *domain.Submission {
	t.Helper()
	sub, err := e.voting.CreateSubmission(context.Background(), userID, domain.CreateSubmissionRequest{
		ChallengeID: "c1",
		VideoURL:    userID + ".mp4",
		Duration:    10,
	})
	require.NoError(t, err)
	return sub
}

func asJudge(id string) domain.Caller {
	return domain.Caller{ID: id, Roles: []string{domain.RoleJudge}}
}
