package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/activity"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/config"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/envelope"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/eventbus"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/health"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/message"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/qualitygate"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/snapshot"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/task"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/team"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/yolo"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/cerr"
)

type fakeSnapshots struct {
	mu    sync.Mutex
	snaps map[string]*snapshot.Snapshot
	err   error
	gate  chan struct{}
}

func (f *fakeSnapshots) Load(ctx context.Context, teamID string) (*snapshot.Snapshot, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	snap, ok := f.snaps[teamID]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "snapshot not found", nil)
	}
	return snap, nil
}

func (f *fakeSnapshots) Save(ctx context.Context, snap *snapshot.Snapshot) error { return nil }

func (f *fakeSnapshots) ListTeamIDs(ctx context.Context) ([]string, error) { return nil, nil }

func (f *fakeSnapshots) Delete(ctx context.Context, teamID string) error { return nil }

func (f *fakeSnapshots) set(teamID string, snap *snapshot.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snaps == nil {
		f.snaps = map[string]*snapshot.Snapshot{}
	}
	f.snaps[teamID] = snap
}

func testEngineEnv() *config.EngineEnv {
	return &config.EngineEnv{
		MessageCap:               10,
		ActivityCap:              50,
		HealthIssueCap:           3,
		GateMaxCycles:            3,
		GatePassThreshold:        80,
		YoloMode:                 string(yolo.ModeSmart),
		YoloMaxConcurrent:        4,
		YoloMaxRemediationRounds: 2,
		YoloRequireApproval:      true,
	}
}

func startTestCoordinator(t *testing.T, repo snapshot.Repository) (*Coordinator, *eventbus.Bus, context.CancelFunc) {
	t.Helper()
	bus := eventbus.New()
	c := New(bus, repo, testEngineEnv())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("coordinator did not stop")
		}
	})
	return c, bus, cancel
}

func eventually(t *testing.T, c *Coordinator, teamID string, cond func(StateView) bool) StateView {
	t.Helper()
	var view StateView
	require.Eventually(t, func() bool {
		v, err := c.View(teamID, false)
		if err != nil {
			return false
		}
		view = v
		return cond(v)
	}, 2*time.Second, 10*time.Millisecond)
	return view
}

func TestFoldsLiveEvents(t *testing.T) {
	c, bus, _ := startTestCoordinator(t, &fakeSnapshots{})

	_, err := bus.PublishNew(envelope.KindTeammateSpawned, "team-1", &team.Teammate{
		ID: "mate-1", Name: "researcher", Status: team.TeammateWorking,
	})
	require.NoError(t, err)
	_, err = bus.PublishNew(envelope.KindTaskCreated, "team-1", &task.Task{
		ID: "task-1", Title: "collect sources", Status: task.StatusInProgress, AssigneeID: "mate-1",
	})
	require.NoError(t, err)
	_, err = bus.PublishNew(envelope.KindMessagePosted, "team-1", &message.Message{
		ID: "msg-1", From: "mate-1", To: "lead", Content: "starting", Kind: message.KindMessage,
	})
	require.NoError(t, err)
	_, err = bus.PublishNew(envelope.KindCostUsage, "team-1", &envelope.CostUsagePayload{
		TeammateID: "mate-1", InputTokens: 100, OutputTokens: 50, CostUSD: 0.25, ContextPct: 10,
	})
	require.NoError(t, err)

	view := eventually(t, c, "team-1", func(v StateView) bool {
		return len(v.Dashboard.Tasks) == 1 &&
			len(v.Dashboard.Messages) == 1 &&
			v.Dashboard.CostSummary.CostUSD > 0
	})

	require.Len(t, view.Dashboard.Teammates, 1)
	assert.Equal(t, "researcher", view.Dashboard.Teammates[0].Name)
	assert.Equal(t, 100, view.Dashboard.Teammates[0].Usage.InputTokens)
	assert.Equal(t, "collect sources", view.Dashboard.Tasks[0].Title)
	assert.Contains(t, view.Dashboard.Threads, message.ThreadKey("mate-1", "lead"))
	assert.InDelta(t, 0.25, view.Dashboard.CostSummary.CostUSD, 1e-9)
	assert.Greater(t, view.Dashboard.PendingUpdates, 0)
	assert.NotEmpty(t, view.Dashboard.Activity)

	acked, err := c.View("team-1", true)
	require.NoError(t, err)
	assert.Equal(t, 0, acked.Dashboard.PendingUpdates)
	assert.NotEmpty(t, acked.Dashboard.LastUpdate)
}

func TestRedeliveredEnvelopeIsIdempotent(t *testing.T) {
	c, bus, _ := startTestCoordinator(t, &fakeSnapshots{})

	env, err := envelope.New(envelope.KindTaskCreated, "team-1", &task.Task{
		ID: "task-1", Title: "one", Status: task.StatusPending,
	})
	require.NoError(t, err)
	bus.Publish(env)
	bus.Publish(env)

	// A trailing marker proves both deliveries have been folded.
	_, err = bus.PublishNew(envelope.KindMessagePosted, "team-1", &message.Message{
		ID: "marker", From: "a", To: "b", Content: "done",
	})
	require.NoError(t, err)

	view := eventually(t, c, "team-1", func(v StateView) bool {
		return len(v.Dashboard.Messages) == 1
	})
	assert.Len(t, view.Dashboard.Tasks, 1)
}

func TestStaleSequenceDropped(t *testing.T) {
	c, bus, _ := startTestCoordinator(t, &fakeSnapshots{})

	first, err := envelope.New(envelope.KindTaskCreated, "team-1", &task.Task{ID: "task-a", Title: "a"})
	require.NoError(t, err)
	first.Seq = 5
	bus.Publish(first)

	stale, err := envelope.New(envelope.KindTaskCreated, "team-1", &task.Task{ID: "task-b", Title: "b"})
	require.NoError(t, err)
	stale.Seq = 3
	bus.Publish(stale)

	_, err = bus.PublishNew(envelope.KindMessagePosted, "team-1", &message.Message{
		ID: "marker", From: "a", To: "b", Content: "done",
	})
	require.NoError(t, err)

	view := eventually(t, c, "team-1", func(v StateView) bool {
		return len(v.Dashboard.Messages) == 1
	})
	require.Len(t, view.Dashboard.Tasks, 1)
	assert.Equal(t, "task-a", view.Dashboard.Tasks[0].ID)
}

func TestSnapshotMergesBehindLive(t *testing.T) {
	repo := &fakeSnapshots{gate: make(chan struct{})}
	repo.set("team-1", &snapshot.Snapshot{
		TeamID: "team-1",
		Messages: []message.Message{
			{ID: "old", From: "a", To: "b", Content: "earlier", Timestamp: "2026-01-01T00:00:01.000Z"},
		},
		Tasks: []task.Task{{ID: "task-old", Title: "restored", Status: task.StatusCompleted}},
		Knowledge: []snapshot.KnowledgeEntry{
			{ID: "k1", Title: "conventions", Content: "use the shared style guide"},
		},
	})
	c, bus, _ := startTestCoordinator(t, repo)

	_, err := bus.PublishNew(envelope.KindMessagePosted, "team-1", &message.Message{
		ID: "live", From: "a", To: "b", Content: "later", Timestamp: "2026-01-01T00:00:02.000Z",
	})
	require.NoError(t, err)

	eventually(t, c, "team-1", func(v StateView) bool {
		return len(v.Dashboard.Messages) == 1
	})

	close(repo.gate)

	view := eventually(t, c, "team-1", func(v StateView) bool {
		return len(v.Dashboard.Messages) == 2 && !v.Dashboard.Loading
	})
	assert.Equal(t, "old", view.Dashboard.Messages[0].ID)
	assert.Equal(t, "live", view.Dashboard.Messages[1].ID)
	require.Len(t, view.Dashboard.Tasks, 1)
	assert.Equal(t, "task-old", view.Dashboard.Tasks[0].ID)
	require.Len(t, view.Knowledge, 1)
	assert.Equal(t, "conventions", view.Knowledge[0].Title)
}

func TestFetchErrorTreatedAsFirstRun(t *testing.T) {
	repo := &fakeSnapshots{err: cerr.NewError(cerr.Internal, "storage down", nil)}
	c, _, _ := startTestCoordinator(t, repo)

	view := eventually(t, c, "team-1", func(v StateView) bool {
		return !v.Dashboard.Loading
	})
	assert.Empty(t, view.Dashboard.Err)
}

func TestGateResultFoldsIntoViewAndActivity(t *testing.T) {
	c, bus, _ := startTestCoordinator(t, &fakeSnapshots{})

	_, err := bus.PublishNew(envelope.KindQualityGateResult, "team-1", &qualitygate.Result{
		TaskID: "task-1",
		Stages: []qualitygate.StageResult{
			{Name: qualitygate.StageSyntax, Binary: true, Passed: true},
			{Name: qualitygate.StageTests, Binary: true, Passed: true},
			{Name: qualitygate.StageArchitecture, Score: 60},
			{Name: qualitygate.StageSimplicity, Score: 90},
			{Name: qualitygate.StageErrors, Score: 95},
			{Name: qualitygate.StageCompleteness, Score: 85},
		},
	})
	require.NoError(t, err)

	view := eventually(t, c, "team-1", func(v StateView) bool {
		_, ok := v.Gates["task-1"]
		return ok
	})
	gate := view.Gates["task-1"]
	require.NotNil(t, gate.Latest)
	assert.True(t, gate.Latest.Passed)
	assert.InDelta(t, 82.5, gate.Latest.Score, 0.01)
	assert.Equal(t, qualitygate.DispositionPassed, gate.Disposition)

	var found bool
	for _, ev := range view.Dashboard.Activity {
		if ev.Type == activity.TypeQualityGatePassed {
			found = true
		}
	}
	assert.True(t, found, "expected a quality-gate-passed activity entry")
}

func TestRunPauseAndResume(t *testing.T) {
	c, bus, _ := startTestCoordinator(t, &fakeSnapshots{})

	_, err := bus.PublishNew(envelope.KindYoloPhaseChanged, "team-1", &envelope.YoloPhasePayload{
		Phase: yolo.PhaseSpecGeneration,
	})
	require.NoError(t, err)
	_, err = bus.PublishNew(envelope.KindYoloPaused, "team-1", &envelope.YoloPausedPayload{
		Reason: yolo.PauseUserRequest,
	})
	require.NoError(t, err)

	eventually(t, c, "team-1", func(v StateView) bool {
		return v.Run.Phase == yolo.PhasePaused
	})

	_, err = bus.PublishNew(envelope.KindYoloResumed, "team-1", nil)
	require.NoError(t, err)

	view := eventually(t, c, "team-1", func(v StateView) bool {
		return v.Run.Phase == yolo.PhaseSpecGeneration
	})
	assert.Empty(t, view.Run.PauseReason)
}

func TestHeartbeatFeedsHealth(t *testing.T) {
	c, bus, _ := startTestCoordinator(t, &fakeSnapshots{})

	_, err := bus.PublishNew(envelope.KindTeammateSpawned, "team-1", &team.Teammate{
		ID: "mate-1", Name: "coder", Status: team.TeammateWorking,
	})
	require.NoError(t, err)
	_, err = bus.PublishNew(envelope.KindHeartbeatBatch, "team-1", &envelope.HeartbeatBatchPayload{
		Heartbeats: []health.HeartbeatSnapshot{
			{TeammateID: "mate-1", Stalled: true, ContextPct: 95, Timestamp: envelope.Now()},
		},
	})
	require.NoError(t, err)

	view := eventually(t, c, "team-1", func(v StateView) bool {
		return v.Health.Stalls == 1
	})
	assert.Contains(t, view.Health.ContextExhausted, "mate-1")
	require.Len(t, view.Dashboard.Teammates, 1)
	assert.Equal(t, 95, view.Dashboard.Teammates[0].Usage.ContextPct)
}

func TestRefreshSnapshotReloadsKnowledge(t *testing.T) {
	repo := &fakeSnapshots{}
	repo.set("team-1", &snapshot.Snapshot{
		TeamID:    "team-1",
		Knowledge: []snapshot.KnowledgeEntry{{ID: "k1", Title: "v1"}},
	})
	c, _, _ := startTestCoordinator(t, repo)

	eventually(t, c, "team-1", func(v StateView) bool {
		return len(v.Knowledge) == 1 && v.Knowledge[0].Title == "v1"
	})

	repo.set("team-1", &snapshot.Snapshot{
		TeamID:    "team-1",
		Knowledge: []snapshot.KnowledgeEntry{{ID: "k1", Title: "v2"}, {ID: "k2", Title: "extra"}},
	})
	require.NoError(t, c.RefreshSnapshot("team-1"))

	view := eventually(t, c, "team-1", func(v StateView) bool {
		return len(v.Knowledge) == 2
	})
	assert.Equal(t, "v2", view.Knowledge[0].Title)
}

func TestEventsBeforeRunLoopAreNotLost(t *testing.T) {
	bus := eventbus.New()
	c := New(bus, &fakeSnapshots{}, testEngineEnv())

	// Published before Start: the subscription is taken in New, so this
	// queues in the subscriber buffer instead of vanishing.
	_, err := bus.PublishNew(envelope.KindMessagePosted, "team-1", &message.Message{
		ID: "msg-1", From: "mate-1", To: "lead", Content: "early",
	})
	require.NoError(t, err)

	// Sessions do not depend on the run loop being up either.
	require.NoError(t, c.EnsureSession("team-1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("coordinator did not stop")
		}
	})

	view := eventually(t, c, "team-1", func(v StateView) bool {
		return len(v.Dashboard.Messages) == 1
	})
	assert.Equal(t, "early", view.Dashboard.Messages[0].Content)
}

func TestViewAfterShutdownFails(t *testing.T) {
	c, _, cancel := startTestCoordinator(t, &fakeSnapshots{})

	require.NoError(t, c.EnsureSession("team-1"))
	cancel()

	require.Eventually(t, func() bool {
		_, err := c.View("team-1", false)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}
