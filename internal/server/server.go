// Package server exposes the coordination engine over HTTP: JSON endpoints
// for event ingestion, state views and push subscriptions, plus a per-team
// SSE stream of live envelopes.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/config"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/coordinator"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/eventbus"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/pushsubscription"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/snapshot"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/cerr"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/clog"
)

type Server struct {
	server      *http.Server
	env         *config.Env
	coordinator *coordinator.Coordinator
	bus         *eventbus.Bus
	snapshots   snapshot.Repository
	pushRepo    pushsubscription.Repository
	vapidEnv    *config.VAPIDEnv
}

func NewServer(
	env *config.Env,
	coord *coordinator.Coordinator,
	bus *eventbus.Bus,
	snapshots snapshot.Repository,
	pushRepo pushsubscription.Repository,
) *Server {
	return &Server{
		env:         env,
		coordinator: coord,
		bus:         bus,
		snapshots:   snapshots,
		pushRepo:    pushRepo,
		vapidEnv:    config.VAPIDEnvFromEnv(env),
	}
}

// ListenAndServe starts the HTTP server. The provided context is the base
// context for all incoming requests, so cancelling it also cancels every
// open SSE stream and lets Shutdown finish without waiting on them.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

// Handler builds the full route tree. Exposed separately so tests can mount
// it on httptest servers.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(),
			s.apiKeyMiddleware,
		)

		// The SSE stream writes directly to the connection, so it sits
		// outside the JSON response middleware.
		r.Get("/teams/{teamID}/events/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(cerr.NewJSONResponseChiMiddleware())
			r.Get("/teams", s.handleListTeams)
			r.Post("/teams/{teamID}/events", s.handlePublishEvent)
			r.Get("/teams/{teamID}/state", s.handleState)
			r.Get("/push/vapid-public-key", s.handleVAPIDPublicKey)
			r.Post("/push/subscriptions", s.handleRegisterPush)
			r.Delete("/push/subscriptions", s.handleUnregisterPush)
			r.NotFound(func(w http.ResponseWriter, r *http.Request) {
				cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
			})
		})
	})

	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(r)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.Header.Get("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}
		if apiKey != s.env.APIKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
