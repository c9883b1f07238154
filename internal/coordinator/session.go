package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/sourcegraph/conc"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/config"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/dashboard"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/envelope"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/health"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/qualitygate"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/reconcile"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/snapshot"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/yolo"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/cerr"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/ring"
)

const (
	inboxSize         = 256
	healthRecentLimit = 10
	seenEnvelopeCap   = 4096
)

type fetchResult struct {
	snap *snapshot.Snapshot
	err  error
}

type viewRequest struct {
	ack     bool
	ackTime string
	reply   chan StateView
}

// Session owns all state for one team. The run loop is the single writer:
// envelope folds, snapshot merges, and view acknowledgements all happen
// inside it, so the components need no locks of their own.
type Session struct {
	teamID string
	repo   snapshot.Repository

	reconciler  *reconcile.Reconciler
	dash        dashboard.State
	gates       *qualitygate.Tracker
	machine     *yolo.Machine
	monitor     *health.Monitor
	integration IntegrationStatus

	// seen holds recently folded envelope ids. Redelivered envelopes are
	// dropped here before any component sees them; ids past the horizon
	// are retired so the set stays bounded for long-lived teams.
	seen *ring.Set

	inbox   chan *envelope.Envelope
	fetches chan fetchResult
	views   chan viewRequest
	refresh chan struct{}

	closed    atomic.Bool
	fetchBusy atomic.Bool
	done      chan struct{}
	cancel    context.CancelFunc
	waitGroup *conc.WaitGroup
}

func newSession(teamID string, cfg *config.EngineEnv, repo snapshot.Repository, cancel context.CancelFunc) *Session {
	return &Session{
		teamID:     teamID,
		repo:       repo,
		reconciler: reconcile.New(cfg.MessageCap, cfg.ActivityCap),
		dash:       dashboard.NewState(cfg.MessageCap, cfg.ActivityCap),
		gates: qualitygate.NewTracker(qualitygate.Config{
			MaxCycles:       cfg.GateMaxCycles,
			PassThreshold:   cfg.GatePassThreshold,
			EscalationModel: cfg.GateEscalationModel,
		}),
		machine: yolo.NewMachine("", yolo.Config{
			Mode:                          yolo.Mode(cfg.YoloMode),
			CostCapUSD:                    cfg.YoloCostCapUSD,
			TimeoutSeconds:                cfg.YoloTimeoutSeconds,
			MaxConcurrent:                 cfg.YoloMaxConcurrent,
			MaxRemediationRounds:          cfg.YoloMaxRemediationRounds,
			RequireApprovalForSpecChanges: cfg.YoloRequireApproval,
		}),
		monitor:   health.NewMonitor(cfg.HealthIssueCap),
		seen:      ring.NewSet(seenEnvelopeCap),
		inbox:     make(chan *envelope.Envelope, inboxSize),
		fetches:   make(chan fetchResult, 1),
		views:     make(chan viewRequest),
		refresh:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		cancel:    cancel,
		waitGroup: conc.NewWaitGroup(),
	}
}

// run is the session's event loop. All folding is synchronous here; the
// only suspension points are waiting for the next envelope, the snapshot
// fetch result, or a view request.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.waitGroup.Wait()

	s.dash = dashboard.Reduce(s.dash, dashboard.SetConnectionStatus{Status: dashboard.ConnectionConnected})
	s.startFetch(ctx)

	for {
		select {
		case <-ctx.Done():
			s.closed.Store(true)
			slog.Info("session stopped", "team_id", s.teamID)
			return
		case env := <-s.inbox:
			s.fold(env)
		case res := <-s.fetches:
			s.applyFetch(res)
		case <-s.refresh:
			s.startFetch(ctx)
		case req := <-s.views:
			if req.ack {
				s.dash = dashboard.Reduce(s.dash, dashboard.MarkUpdateReceived{Timestamp: req.ackTime})
			}
			req.reply <- s.buildView()
		}
	}
}

func (s *Session) deliver(env *envelope.Envelope) {
	select {
	case s.inbox <- env:
	default:
		slog.Warn("session inbox full, dropping envelope",
			"team_id", s.teamID, "kind", string(env.Kind), "id", env.ID)
	}
}

func (s *Session) view(ack bool, ackTime string) (StateView, error) {
	req := viewRequest{ack: ack, ackTime: ackTime, reply: make(chan StateView, 1)}
	select {
	case s.views <- req:
	case <-s.done:
		return StateView{}, cerr.NewError(cerr.Unavailable, "team session closed", nil)
	}
	select {
	case v := <-req.reply:
		return v, nil
	case <-s.done:
		return StateView{}, cerr.NewError(cerr.Unavailable, "team session closed", nil)
	}
}

func (s *Session) requestRefresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

func (s *Session) close() {
	s.closed.Store(true)
	s.cancel()
}

// startFetch launches the persisted-snapshot fetch unless one is already in
// flight. The result is handed back to the run loop; it is never applied
// from the fetch goroutine.
func (s *Session) startFetch(ctx context.Context) {
	if !s.fetchBusy.CompareAndSwap(false, true) {
		return
	}
	s.waitGroup.Go(func() {
		snap, err := s.repo.Load(ctx, s.teamID)
		select {
		case s.fetches <- fetchResult{snap: snap, err: err}:
		case <-ctx.Done():
		}
	})
}

// applyFetch merges a resolved snapshot fetch. A fetch failure is treated
// as "no persisted state yet", never surfaced as a user-facing error. The
// closed flag is consulted before every mutation so a fetch resolving
// during shutdown is discarded rather than half-applied.
func (s *Session) applyFetch(res fetchResult) {
	s.fetchBusy.Store(false)

	if res.err != nil {
		var ce *cerr.Error
		if errors.As(res.err, &ce) && ce.Code == cerr.NotFound {
			slog.Debug("no persisted snapshot", "team_id", s.teamID)
		} else {
			slog.Warn("snapshot fetch failed, treating as first run",
				"team_id", s.teamID, "error", res.err)
		}
		if !s.closed.Load() {
			s.dash = dashboard.Reduce(s.dash, dashboard.SetLoading{Loading: false})
		}
		return
	}

	s.reconciler.MergeSnapshot(res.snap, s.closed.Load)

	if s.closed.Load() {
		return
	}
	s.dash = dashboard.Reduce(s.dash, dashboard.SetMessages{Messages: s.reconciler.Messages()})
	if s.closed.Load() {
		return
	}
	s.dash = dashboard.Reduce(s.dash, dashboard.SetTasks{Tasks: s.reconciler.Tasks()})
	if s.closed.Load() {
		return
	}
	s.dash = dashboard.Reduce(s.dash, dashboard.SetActivity{Events: s.reconciler.Activity()})
	if s.closed.Load() {
		return
	}
	s.dash = dashboard.Reduce(s.dash, dashboard.SetLoading{Loading: false})
}
