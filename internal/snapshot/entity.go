package snapshot

import (
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/activity"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/message"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/task"
)

// KnowledgeEntry is a persisted note accumulated by a team over its run.
// Knowledge has no live event kind; it is only ever read from snapshots.
type KnowledgeEntry struct {
	ID        string   `json:"id" yaml:"id"`
	Title     string   `json:"title" yaml:"title"`
	Content   string   `json:"content" yaml:"content"`
	Tags      []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt string   `json:"createdAt" yaml:"created_at"`
	UpdatedAt string   `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

// Snapshot is the persisted state collected for one team, fetched once when
// a client attaches and merged with whatever live envelopes arrived first.
type Snapshot struct {
	TeamID    string            `json:"teamId" yaml:"team_id"`
	Messages  []message.Message `json:"messages,omitempty" yaml:"messages,omitempty"`
	Tasks     []task.Task       `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Activity  []activity.Event  `json:"activity,omitempty" yaml:"activity,omitempty"`
	Knowledge []KnowledgeEntry  `json:"knowledge,omitempty" yaml:"knowledge,omitempty"`
}
