package repositoryimpl

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/snapshot"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/cerr"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/storage"
)

const teamsPrefix = "teams"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(teamID string) string {
	return fmt.Sprintf("%s/%s/snapshot.yaml", teamsPrefix, teamID)
}

func (r *YAMLRepository) Load(ctx context.Context, teamID string) (*snapshot.Snapshot, error) {
	data, err := r.storage.Read(ctx, path(teamID))
	if err != nil {
		return nil, cerr.WrapStorageReadError("snapshot", err)
	}
	var snap snapshot.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal snapshot: %w", err))
	}
	return &snap, nil
}

func (r *YAMLRepository) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap.TeamID == "" {
		return cerr.NewError(cerr.InvalidArgument, "snapshot team id is required", nil)
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal snapshot: %w", err))
	}
	if err := r.storage.Write(ctx, path(snap.TeamID), data); err != nil {
		return cerr.WrapStorageWriteError("snapshot", err)
	}
	return nil
}

func (r *YAMLRepository) ListTeamIDs(ctx context.Context) ([]string, error) {
	paths, err := r.storage.List(ctx, teamsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("snapshots", err)
	}

	var ids []string
	for _, p := range paths {
		parts := strings.Split(p, "/")
		if len(parts) != 3 || parts[0] != teamsPrefix || parts[2] != "snapshot.yaml" {
			continue
		}
		ids = append(ids, parts[1])
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *YAMLRepository) Delete(ctx context.Context, teamID string) error {
	if err := r.storage.Delete(ctx, path(teamID)); err != nil {
		return cerr.WrapStorageDeleteError("snapshot", err)
	}
	return nil
}
