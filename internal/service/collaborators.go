package service

import (
	"context"

	"github.com/skatehubba/skate-core/internal/domain"
)

// PlayerDirectory resolves handles to player ids
type PlayerDirectory interface {
	ResolveHandle(ctx context.Context, handle string) (*domain.Player, error)
	GetHandles(ctx context.Context, playerIDs []string) (map[string]string, error)
}

// GameArchive keeps the durable history of games. Writes are best effort.
type GameArchive interface {
	ArchiveGame(ctx context.Context, g *domain.Game) error
	RecordGameEvent(ctx context.Context, event domain.GameEvent) error
}

// VoteAudit keeps the durable history of judge votes. Writes are best effort.
type VoteAudit interface {
	RecordVoteEvent(ctx context.Context, event domain.VoteEvent) error
}

// PlayerRegistry stores directory entries
type PlayerRegistry interface {
	UpsertPlayer(ctx context.Context, player domain.Player) error
}
