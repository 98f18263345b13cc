package rankdb

import (
	"context"
	"database/sql"
)

type ResultRow struct {
	ID           int64   `json:"id"`
	Playlist     string  `json:"playlist"`
	TotalElapsed float64 `json:"total_elapsed"`
	TotalKicks   int     `json:"total_kicks"`
	RecordedAt   string  `json:"recorded_at"`
}

type AttemptRow struct {
	ID            int64   `json:"id"`
	Playlist      string  `json:"playlist"`
	Scenario      string  `json:"scenario"`
	ScenarioIndex int     `json:"scenario_index"`
	Generation    uint64  `json:"generation"`
	Outcome       string  `json:"outcome"`
	Reason        string  `json:"reason,omitempty"`
	Elapsed       float64 `json:"elapsed"`
	Kicks         int     `json:"kicks"`
	RecordedAt    string  `json:"recorded_at"`
}

type ScenarioStat struct {
	ScenarioIndex int     `json:"scenario_index"`
	Scenario      string  `json:"scenario"`
	Attempts      int     `json:"attempts"`
	Completed     int     `json:"completed"`
	Failed        int     `json:"failed"`
	Abandoned     int     `json:"abandoned"`
	BestElapsed   float64 `json:"best_elapsed,omitempty"`
}

// DB exposes the handle for read queries in-process.
func (s *SQLiteRanking) DB() *sql.DB { return s.db }

// TopResults ranks finished runs of a playlist: fastest first, fewer kicks
// breaking ties.
func TopResults(ctx context.Context, db *sql.DB, playlist string, limit int) ([]ResultRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.QueryContext(ctx, `SELECT id,playlist,total_elapsed,total_kicks,recorded_at FROM playlist_results
		WHERE playlist=? ORDER BY total_elapsed ASC, total_kicks ASC, id ASC LIMIT ?`, playlist, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ResultRow
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.ID, &r.Playlist, &r.TotalElapsed, &r.TotalKicks, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentAttempts lists the newest attempts of a playlist. An empty playlist
// matches every playlist.
func RecentAttempts(ctx context.Context, db *sql.DB, playlist string, limit int) ([]AttemptRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT id,playlist,scenario,scenario_index,generation,outcome,COALESCE(reason,''),elapsed,kicks,recorded_at
		FROM attempts WHERE (?='' OR playlist=?) ORDER BY id DESC LIMIT ?`, playlist, playlist, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AttemptRow
	for rows.Next() {
		var (
			r   AttemptRow
			gen int64
		)
		if err := rows.Scan(&r.ID, &r.Playlist, &r.Scenario, &r.ScenarioIndex, &gen, &r.Outcome, &r.Reason, &r.Elapsed, &r.Kicks, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.Generation = uint64(gen)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ScenarioStats aggregates attempts per scenario of one playlist.
func ScenarioStats(ctx context.Context, db *sql.DB, playlist string) ([]ScenarioStat, error) {
	rows, err := db.QueryContext(ctx, `SELECT scenario_index, MAX(scenario), COUNT(*),
			SUM(outcome='completed'), SUM(outcome='failed'), SUM(outcome='abandoned'),
			COALESCE(MIN(CASE WHEN outcome='completed' THEN elapsed END), 0)
		FROM attempts WHERE playlist=? GROUP BY scenario_index ORDER BY scenario_index`, playlist)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScenarioStat
	for rows.Next() {
		var r ScenarioStat
		if err := rows.Scan(&r.ScenarioIndex, &r.Scenario, &r.Attempts, &r.Completed, &r.Failed, &r.Abandoned, &r.BestElapsed); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
