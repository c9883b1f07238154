package snapshot

import "context"

type Repository interface {
	Load(ctx context.Context, teamID string) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	ListTeamIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, teamID string) error
}
