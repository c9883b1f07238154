// Package coordinator owns the per-team state sessions. It routes envelopes
// from the event source to the session that folds them, serves consistent
// state views to the HTTP layer, and triggers persisted-snapshot fetches.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/config"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/envelope"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/snapshot"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/cerr"
)

const sourceBufSize = 1024

// EventSource is the subscribe surface the coordinator consumes. The
// production implementation is *eventbus.Bus; tests inject their own bus
// instance instead of sharing process-wide state.
type EventSource interface {
	Subscribe(bufSize int) (string, <-chan *envelope.Envelope)
	Unsubscribe(id string)
}

type Coordinator struct {
	source    EventSource
	snapshots snapshot.Repository
	cfg       *config.EngineEnv

	subID string
	inbox <-chan *envelope.Envelope

	runCtx  context.Context
	stop    context.CancelFunc
	started atomic.Bool

	mutex     sync.RWMutex
	sessions  map[string]*Session
	waitGroup *conc.WaitGroup
}

// New wires the coordinator to its event source. The subscription is taken
// here, not in Start, so envelopes published before the run loop spins up
// queue in the subscriber buffer instead of being lost.
func New(source EventSource, snapshots snapshot.Repository, cfg *config.EngineEnv) *Coordinator {
	runCtx, stop := context.WithCancel(context.Background())
	c := &Coordinator{
		source:    source,
		snapshots: snapshots,
		cfg:       cfg,
		runCtx:    runCtx,
		stop:      stop,
		sessions:  make(map[string]*Session),
		waitGroup: conc.NewWaitGroup(),
	}
	c.subID, c.inbox = source.Subscribe(sourceBufSize)
	return c
}

// Start routes envelopes to per-team sessions until ctx is cancelled. It
// blocks until every session has drained.
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("coordinator is already running")
	}
	defer c.source.Unsubscribe(c.subID)

	slog.Info("coordinator started")

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case env, ok := <-c.inbox:
			if !ok {
				c.shutdown()
				return nil
			}
			c.route(env)
		}
	}
}

func (c *Coordinator) shutdown() {
	c.stop()
	c.closeSessions()
	c.waitGroup.Wait()
	slog.Info("coordinator stopped")
}

func (c *Coordinator) route(env *envelope.Envelope) {
	if env.TeamID == "" {
		slog.Warn("dropping envelope without team id", "kind", string(env.Kind))
		return
	}
	s, err := c.ensureSession(env.TeamID)
	if err != nil {
		slog.Error("failed to create session", "team_id", env.TeamID, "error", err)
		return
	}
	s.deliver(env)
}

// EnsureSession creates the session for the team if it does not exist yet,
// kicking off its initial snapshot fetch.
func (c *Coordinator) EnsureSession(teamID string) error {
	_, err := c.ensureSession(teamID)
	return err
}

func (c *Coordinator) ensureSession(teamID string) (*Session, error) {
	c.mutex.RLock()
	s, ok := c.sessions[teamID]
	c.mutex.RUnlock()
	if ok {
		return s, nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if s, ok := c.sessions[teamID]; ok {
		return s, nil
	}
	if err := c.runCtx.Err(); err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "coordinator is shutting down", err)
	}

	sctx, cancel := context.WithCancel(c.runCtx)
	s = newSession(teamID, c.cfg, c.snapshots, cancel)
	c.sessions[teamID] = s
	c.waitGroup.Go(func() {
		s.run(sctx)
	})
	slog.Info("session started", "team_id", teamID)
	return s, nil
}

// View returns a consistent snapshot of the team's state, creating the
// session on first access. With ack set, the pending-update counter is
// reset and LastUpdate stamped before the view is built.
func (c *Coordinator) View(teamID string, ack bool) (StateView, error) {
	s, err := c.ensureSession(teamID)
	if err != nil {
		return StateView{}, err
	}
	return s.view(ack, envelope.Now())
}

// RefreshSnapshot asks the team's session to fetch the persisted snapshot
// again. Used while a knowledge view is open, since knowledge has no live
// event source.
func (c *Coordinator) RefreshSnapshot(teamID string) error {
	s, err := c.ensureSession(teamID)
	if err != nil {
		return err
	}
	s.requestRefresh()
	return nil
}

// ActiveTeams lists the teams with a live session, sorted.
func (c *Coordinator) ActiveTeams() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	teams := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		teams = append(teams, id)
	}
	sort.Strings(teams)
	return teams
}

func (c *Coordinator) closeSessions() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, s := range c.sessions {
		s.close()
	}
}
