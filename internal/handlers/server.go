// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/avalon/internal/events"
	"github.com/jason-s-yu/avalon/internal/session"
)

// SessionServer holds the process-wide coordinator wiring: one event
// registry, one server-side broker, and the in-memory session store.
type SessionServer struct {
	Registry *events.Registry
	Broker   *events.Broker[*session.Session]
	Store    *session.Store
	Config   session.Config
	Logger   *logrus.Logger

	stats session.Recorder
}

// NewSessionServer builds the registry, store and broker and derives the
// session config from the environment.
func NewSessionServer(logger *logrus.Logger, stats session.Recorder) *SessionServer {
	registry := events.NewRegistry()
	store := session.NewStore()
	return &SessionServer{
		Registry: registry,
		Broker:   session.NewServerBroker(registry, store),
		Store:    store,
		Config:   configFromEnv(),
		Logger:   logger,
		stats:    stats,
	}
}

// configFromEnv starts from the production defaults and applies the
// development overrides: a one-player minimum and the always_<role>
// assignment hook, both for local testing only. The input-window durations
// are tunable as Go duration strings (VOTE_TIME, MISSION_TIME,
// ASSASSINATION_TIME).
func configFromEnv() session.Config {
	cfg := session.DefaultConfig()
	if env := os.Getenv("AVALON_ENV"); env == "dev" || env == "development" {
		cfg.MinPlayers = 1
		cfg.AllowRoleOverride = true
	}
	if v := os.Getenv("MIN_PLAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MinPlayers = n
		}
	}
	envDuration("VOTE_TIME", &cfg.VoteTime)
	envDuration("MISSION_TIME", &cfg.MissionTime)
	envDuration("ASSASSINATION_TIME", &cfg.AssassinationTime)
	return cfg
}

func envDuration(key string, out *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return
	}
	*out = d
}

// CreateSessionHandler creates a fresh session and returns its id. The first
// player to connect over the websocket becomes host.
func (srv *SessionServer) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s := session.New(srv.Config, srv.Broker, srv.stats)
	srv.Store.Add(s)
	srv.Logger.Infof("created session %s", s.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"session_id": s.ID.String()})
}
