// internal/stats/stats.go
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"github.com/jason-s-yu/avalon/internal/cache"
	"github.com/jason-s-yu/avalon/internal/database"
	"github.com/jason-s-yu/avalon/internal/game"
)

// Recorder persists per-player game results. The coordinator calls it
// fire-and-forget: a failed write is the recorder's problem, never the
// session's. Either sink may be absent (nil pool/client) and is skipped.
type Recorder struct{}

// RecordResult upserts the player's aggregate stat block and queues the raw
// record for the historian.
func (Recorder) RecordResult(ctx context.Context, sessionID uuid.UUID, username, roleName string, alignment game.Alignment, won bool) error {
	var firstErr error

	if database.DB != nil {
		if err := upsertStats(ctx, username, roleName, alignment, won); err != nil {
			firstErr = err
		}
	}

	if cache.Rdb != nil {
		record := cache.GameResultRecord{
			SessionID: sessionID,
			Username:  username,
			Role:      roleName,
			Alignment: string(alignment),
			Won:       won,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := cache.PublishGameResult(ctx, record); err != nil {
			log.Warnf("failed to queue result record for %s: %v", username, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// RoleStats is one role's slice of a player's record.
type RoleStats struct {
	Role        string `json:"role"`
	GamesPlayed int    `json:"games_played"`
	GamesWon    int    `json:"games_won"`
}

// UserStats is a player's aggregate record with its per-role breakdown.
type UserStats struct {
	Username    string      `json:"username"`
	GamesPlayed int         `json:"games_played"`
	GamesWon    int         `json:"games_won"`
	GamesAsGood int         `json:"games_as_good"`
	GamesAsEvil int         `json:"games_as_evil"`
	Roles       []RoleStats `json:"roles,omitempty"`
}

// FetchUserStats reads one player's stat block. A player with no recorded
// games returns nil with no error.
func FetchUserStats(ctx context.Context, username string) (*UserStats, error) {
	q := `
		SELECT role, games_played, games_won, games_as_good, games_as_evil
		FROM player_stats
		WHERE username = $1
		ORDER BY games_played DESC, role
	`
	rows, err := database.DB.Query(ctx, q, username)
	if err != nil {
		return nil, fmt.Errorf("query player stats: %w", err)
	}
	defer rows.Close()

	us := &UserStats{Username: username}
	for rows.Next() {
		var rs RoleStats
		var good, evil int
		if err := rows.Scan(&rs.Role, &rs.GamesPlayed, &rs.GamesWon, &good, &evil); err != nil {
			return nil, fmt.Errorf("scan player stats: %w", err)
		}
		us.GamesPlayed += rs.GamesPlayed
		us.GamesWon += rs.GamesWon
		us.GamesAsGood += good
		us.GamesAsEvil += evil
		us.Roles = append(us.Roles, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read player stats: %w", err)
	}
	if len(us.Roles) == 0 {
		return nil, nil
	}
	return us, nil
}

// FetchTopPlayers reads the leaderboard: players ranked by games won.
func FetchTopPlayers(ctx context.Context, limit int) ([]UserStats, error) {
	q := `
		SELECT username,
		       SUM(games_played), SUM(games_won),
		       SUM(games_as_good), SUM(games_as_evil)
		FROM player_stats
		GROUP BY username
		ORDER BY SUM(games_won) DESC, SUM(games_played) DESC, username
		LIMIT $1
	`
	rows, err := database.DB.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var top []UserStats
	for rows.Next() {
		var us UserStats
		if err := rows.Scan(&us.Username, &us.GamesPlayed, &us.GamesWon, &us.GamesAsGood, &us.GamesAsEvil); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		top = append(top, us)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	return top, nil
}

// upsertStats increments the per-player aggregate counters in one statement.
func upsertStats(ctx context.Context, username, roleName string, alignment game.Alignment, won bool) error {
	wonInt := 0
	if won {
		wonInt = 1
	}
	goodInt, evilInt := 0, 0
	if alignment == game.AlignmentGood {
		goodInt = 1
	} else {
		evilInt = 1
	}

	q := `
		INSERT INTO player_stats (username, role, games_played, games_won,
		                          games_as_good, games_as_evil)
		VALUES ($1, $2, 1, $3, $4, $5)
		ON CONFLICT (username, role) DO UPDATE SET
			games_played  = player_stats.games_played + 1,
			games_won     = player_stats.games_won + $3,
			games_as_good = player_stats.games_as_good + $4,
			games_as_evil = player_stats.games_as_evil + $5
	`
	err := pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, username, roleName, wonInt, goodInt, evilInt)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("upsert player stats: %w", err)
	}
	return nil
}
