package pushnotify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/envelope"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/eventbus"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/yolo"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*NotificationPayload
}

func (r *recordingNotifier) SendToAll(_ context.Context, payload *NotificationPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, payload)
}

func (r *recordingNotifier) snapshot() []*NotificationPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*NotificationPayload, len(r.sent))
	copy(out, r.sent)
	return out
}

func TestBuildNotificationApprovalPause(t *testing.T) {
	env, err := envelope.New(envelope.KindYoloPaused, "team-1", &envelope.YoloPausedPayload{
		Reason: yolo.PauseApprovalRequired,
		Detail: "quality gate exhausted on task-3",
	})
	require.NoError(t, err)

	payload := buildNotification(env)
	require.NotNil(t, payload)
	assert.Equal(t, "Approval required", payload.Title)
	assert.Equal(t, "quality gate exhausted on task-3", payload.Body)
	assert.Equal(t, "/teams/team-1", payload.URL)
	assert.Equal(t, env.ID, payload.Tag)
}

func TestBuildNotificationAllErrorsPause(t *testing.T) {
	env, err := envelope.New(envelope.KindYoloPaused, "team-1", &envelope.YoloPausedPayload{
		Reason: yolo.PauseAllTeammatesInError,
	})
	require.NoError(t, err)

	payload := buildNotification(env)
	require.NotNil(t, payload)
	assert.Equal(t, "Run paused", payload.Title)
	assert.NotEmpty(t, payload.Body)
}

func TestBuildNotificationSkipsRoutinePauses(t *testing.T) {
	for _, reason := range []yolo.PauseReason{
		yolo.PauseCostCap,
		yolo.PauseTimeout,
		yolo.PauseUserRequest,
		yolo.PauseRemediationExhausted,
	} {
		env, err := envelope.New(envelope.KindYoloPaused, "team-1", &envelope.YoloPausedPayload{
			Reason: reason,
		})
		require.NoError(t, err)
		assert.Nil(t, buildNotification(env), "reason %s should not notify", reason)
	}
}

func TestBuildNotificationProposal(t *testing.T) {
	env, err := envelope.New(envelope.KindYoloProposalCreated, "team-2", &yolo.Proposal{
		ID:    "prop-1",
		Title: "Split the importer into two tasks",
	})
	require.NoError(t, err)

	payload := buildNotification(env)
	require.NotNil(t, payload)
	assert.Equal(t, "Spec change proposed", payload.Title)
	assert.Equal(t, "Split the importer into two tasks", payload.Body)
	assert.Equal(t, "/teams/team-2", payload.URL)
}

func TestBuildNotificationIgnoresOtherKinds(t *testing.T) {
	env, err := envelope.New(envelope.KindTeamError, "team-1", &envelope.TeamErrorPayload{Message: "boom"})
	require.NoError(t, err)
	assert.Nil(t, buildNotification(env))

	env, err = envelope.New(envelope.KindYoloResumed, "team-1", nil)
	require.NoError(t, err)
	assert.Nil(t, buildNotification(env))
}

func TestDispatcherForwardsFromBus(t *testing.T) {
	bus := eventbus.New()
	rec := &recordingNotifier{}
	d := &Dispatcher{bus: bus, sender: rec}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Start(ctx)
	}()

	// Let the subscription register before publishing.
	time.Sleep(10 * time.Millisecond)

	_, err := bus.PublishNew(envelope.KindYoloPaused, "team-1", &envelope.YoloPausedPayload{
		Reason: yolo.PauseApprovalRequired,
	})
	require.NoError(t, err)
	_, err = bus.PublishNew(envelope.KindYoloResumed, "team-1", nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	sent := rec.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, "Approval required", sent[0].Title)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}
