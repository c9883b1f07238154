package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/envelope"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/pushsubscription"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/cerr"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/clog"
)

// TeamSummary is one row of the team listing. Live is true when the team
// has an in-memory session; persisted-only teams come from snapshots.
type TeamSummary struct {
	ID   string `json:"id"`
	Live bool   `json:"live"`
}

type listTeamsResponse struct {
	Teams []TeamSummary `json:"teams"`
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	persisted, err := s.snapshots.ListTeamIDs(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	live := make(map[string]bool)
	for _, id := range s.coordinator.ActiveTeams() {
		live[id] = true
	}

	ids := make(map[string]struct{}, len(persisted)+len(live))
	for _, id := range persisted {
		ids[id] = struct{}{}
	}
	for id := range live {
		ids[id] = struct{}{}
	}

	teams := make([]TeamSummary, 0, len(ids))
	for id := range ids {
		teams = append(teams, TeamSummary{ID: id, Live: live[id]})
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })

	cerr.SetJSONResponse(ctx, &listTeamsResponse{Teams: teams})
}

// handlePublishEvent ingests one envelope for the team in the path. The
// body carries {kind, payload, timestamp?, sequence?, id?}; missing id and
// timestamp are stamped here. The stamped envelope is echoed back.
func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teamID := chi.URLParam(r, "teamID")
	clog.AddAttribute(ctx, "team_id", teamID)

	var env envelope.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "malformed envelope", err)
		return
	}
	if !env.Kind.Known() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "unknown envelope kind", envelope.ErrUnknownKind)
		return
	}
	if env.TeamID != "" && env.TeamID != teamID {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "envelope team id does not match path", nil)
		return
	}
	env.TeamID = teamID
	if env.ID == "" {
		env.ID = envelope.NewID()
	}
	if env.Timestamp == "" {
		env.Timestamp = envelope.Now()
	}
	clog.AddAttribute(ctx, "kind", string(env.Kind))

	if err := s.coordinator.EnsureSession(teamID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.bus.Publish(&env)

	cerr.SetJSONResponse(ctx, &env)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teamID := chi.URLParam(r, "teamID")
	clog.AddAttribute(ctx, "team_id", teamID)

	ack, _ := strconv.ParseBool(r.URL.Query().Get("ack"))
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	if refresh {
		if err := s.coordinator.RefreshSnapshot(teamID); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}

	view, err := s.coordinator.View(teamID, ack)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &view)
}

type vapidPublicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

func (s *Server) handleVAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.vapidEnv.VAPIDPublicKey == "" {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition, "VAPID keys not configured", nil)
		return
	}
	cerr.SetJSONResponse(ctx, &vapidPublicKeyResponse{PublicKey: s.vapidEnv.VAPIDPublicKey})
}

type pushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (s *Server) handleRegisterPush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req pushSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "malformed subscription", err)
		return
	}
	if req.Endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint is required", nil)
		return
	}
	if req.Keys.P256dh == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "p256dh key is required", nil)
		return
	}
	if req.Keys.Auth == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "auth key is required", nil)
		return
	}

	// Idempotent: re-registering an endpoint replaces its keys in one
	// repository write, keeping the stored id.
	stored, err := s.pushRepo.Upsert(ctx, &pushsubscription.Subscription{
		ID:        envelope.NewID(),
		Endpoint:  req.Endpoint,
		P256dhKey: req.Keys.P256dh,
		AuthKey:   req.Keys.Auth,
		CreatedAt: envelope.Now(),
	})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, stored)
}

func (s *Server) handleUnregisterPush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint is required", nil)
		return
	}
	if err := s.pushRepo.DeleteByEndpoint(ctx, endpoint); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, struct{}{})
}
