package coordinator

import (
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/dashboard"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/health"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/qualitygate"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/snapshot"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/yolo"
)

// IntegrationStatus tracks the most recent integration check. Running is
// true between the started and result events.
type IntegrationStatus struct {
	Running   bool   `json:"running"`
	Passed    bool   `json:"passed"`
	Detail    string `json:"detail,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// StateView is one consistent read of everything a session tracks. Views
// are built inside the session loop, so readers never see a half-applied
// fold; the contained slices and maps are copies the loop will not touch
// again.
type StateView struct {
	TeamID      string                           `json:"teamId"`
	Dashboard   dashboard.State                  `json:"dashboard"`
	Run         yolo.State                       `json:"run"`
	Gates       map[string]qualitygate.TaskGates `json:"gates,omitempty"`
	Health      health.Summary                   `json:"health"`
	Knowledge   []snapshot.KnowledgeEntry        `json:"knowledge,omitempty"`
	Integration IntegrationStatus                `json:"integration"`
}

func (s *Session) buildView() StateView {
	tracked := s.gates.All()
	gates := make(map[string]qualitygate.TaskGates, len(tracked))
	for id, tg := range tracked {
		cp := *tg
		cp.History = append([]qualitygate.Result(nil), tg.History...)
		if len(cp.History) > 0 {
			cp.Latest = &cp.History[len(cp.History)-1]
		} else {
			cp.Latest = nil
		}
		gates[id] = cp
	}

	return StateView{
		TeamID:      s.teamID,
		Dashboard:   s.dash,
		Run:         s.machine.State(),
		Gates:       gates,
		Health:      s.monitor.Summarize(healthRecentLimit),
		Knowledge:   s.reconciler.Knowledge(),
		Integration: s.integration,
	}
}
