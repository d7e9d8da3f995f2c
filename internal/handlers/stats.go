// internal/handlers/stats.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/jason-s-yu/avalon/internal/database"
	"github.com/jason-s-yu/avalon/internal/stats"
)

// defaultLeaderboardSize bounds /stats/top when no limit is given.
const defaultLeaderboardSize = 10

// UserStatsHandler serves one player's stat block:
// GET /stats/user/{username}.
func UserStatsHandler(w http.ResponseWriter, r *http.Request) {
	if database.DB == nil {
		http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
		return
	}
	username := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/stats/user/"), "/")
	if username == "" {
		http.Error(w, "missing username in path (/stats/user/{username})", http.StatusBadRequest)
		return
	}

	us, err := stats.FetchUserStats(r.Context(), username)
	if err != nil {
		log.Errorf("failed to read stats for %s: %v", username, err)
		http.Error(w, "error reading stats", http.StatusInternalServerError)
		return
	}
	if us == nil {
		http.Error(w, "no recorded games", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(us)
}

// LeaderboardHandler serves the players ranked by games won:
// GET /stats/top?limit=N.
func LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	if database.DB == nil {
		http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
		return
	}

	limit := defaultLeaderboardSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	top, err := stats.FetchTopPlayers(r.Context(), limit)
	if err != nil {
		log.Errorf("failed to read leaderboard: %v", err)
		http.Error(w, "error reading stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(top)
}
