package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/dungeonlog/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// SQLiteStore keeps done runs in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the SQLite database and applies migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			hash TEXT PRIMARY KEY,
			guid_list TEXT NOT NULL,
			map_index TEXT NOT NULL,
			status TEXT NOT NULL,
			faction TEXT NOT NULL,
			mode TEXT NOT NULL,
			city_faction TEXT NOT NULL,
			enter_time TEXT NOT NULL,
			end_time TEXT,
			elapsed_seconds REAL NOT NULL,
			fame REAL NOT NULL,
			silver REAL NOT NULL,
			respec REAL NOT NULL,
			faction_flags REAL NOT NULL,
			faction_coins REAL NOT NULL,
			died_name TEXT,
			killed_by TEXT,
			died_in_dungeon INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_event_objects (
			run_hash TEXT NOT NULL,
			position INTEGER NOT NULL,
			id INTEGER NOT NULL,
			unique_name TEXT NOT NULL,
			is_boss_chest INTEGER NOT NULL,
			rarity TEXT NOT NULL,
			is_open INTEGER NOT NULL,
			opened_at TEXT,
			PRIMARY KEY (run_hash, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_enter_time ON runs(enter_time);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save replaces the stored runs with the done runs, in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, runs []model.DungeonRun) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM run_event_objects`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return err
	}

	runStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO runs (hash, guid_list, map_index, status, faction, mode, city_faction, enter_time, end_time,
			elapsed_seconds, fame, silver, respec, faction_flags, faction_coins, died_name, killed_by, died_in_dungeon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := runStmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	objStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_event_objects (run_hash, position, id, unique_name, is_boss_chest, rarity, is_open, opened_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := objStmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()

	for _, run := range doneRuns(runs) {
		guids, merr := json.Marshal(run.GuidList)
		if merr != nil {
			err = merr
			return err
		}
		var diedName, killedBy any
		if run.Death != nil {
			diedName = run.Death.DiedName
			killedBy = run.Death.KilledBy
		}
		if _, err = runStmt.ExecContext(ctx,
			run.Hash,
			string(guids),
			run.MapIndex,
			string(run.Status),
			string(run.Faction),
			string(run.Mode),
			string(run.CityFaction),
			formatTime(run.EnterTime),
			formatTimePtr(run.EndTime),
			run.Timer.Elapsed(time.Time{}).Seconds(),
			run.Rewards.Fame,
			run.Rewards.Silver,
			run.Rewards.ReSpec,
			run.Rewards.FactionFlags,
			run.Rewards.FactionCoins,
			diedName,
			killedBy,
			boolInt(run.DiedInDungeon),
		); err != nil {
			return fmt.Errorf("insert run %s: %w", run.Hash, err)
		}
		for pos, obj := range run.EventObjects {
			if _, err = objStmt.ExecContext(ctx,
				run.Hash,
				pos,
				obj.ID,
				obj.UniqueName,
				boolInt(obj.IsBossChest),
				string(obj.Rarity),
				boolInt(obj.IsOpen),
				formatTimePtr(obj.OpenedAt),
			); err != nil {
				return fmt.Errorf("insert event object %d of run %s: %w", obj.ID, run.Hash, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// Load returns the stored runs, newest first.
func (s *SQLiteStore) Load(ctx context.Context) ([]model.DungeonRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, guid_list, map_index, status, faction, mode, city_faction, enter_time, end_time,
			elapsed_seconds, fame, silver, respec, faction_flags, faction_coins, died_name, killed_by, died_in_dungeon
		 FROM runs
		 ORDER BY enter_time DESC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.DungeonRun
	index := map[string]int{}
	for rows.Next() {
		var (
			run                model.DungeonRun
			guids, enter       string
			status, faction    string
			mode, city         string
			endTime            sql.NullString
			elapsed            float64
			diedName, killedBy sql.NullString
			died               int
		)
		if err := rows.Scan(&run.Hash, &guids, &run.MapIndex, &status, &faction, &mode, &city, &enter, &endTime,
			&elapsed, &run.Rewards.Fame, &run.Rewards.Silver, &run.Rewards.ReSpec,
			&run.Rewards.FactionFlags, &run.Rewards.FactionCoins, &diedName, &killedBy, &died); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(guids), &run.GuidList); err != nil {
			return nil, fmt.Errorf("%w: guid list of run %s: %v", ErrCorrupt, run.Hash, err)
		}
		run.Status = model.RunStatus(status)
		run.Faction = model.Faction(faction)
		run.Mode = model.Mode(mode)
		run.CityFaction = model.CityFaction(city)
		if run.EnterTime, err = parseTime(enter); err != nil {
			return nil, err
		}
		if run.EndTime, err = parseTimePtr(endTime); err != nil {
			return nil, err
		}
		run.Timer = model.RestoreTimer(elapsed)
		if diedName.Valid {
			run.Death = &model.DeathInfo{DiedName: diedName.String, KilledBy: killedBy.String}
		}
		run.DiedInDungeon = died != 0
		run.EventObjects = []model.EventObject{}
		index[run.Hash] = len(runs)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadEventObjects(ctx, runs, index); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *SQLiteStore) loadEventObjects(ctx context.Context, runs []model.DungeonRun, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_hash, id, unique_name, is_boss_chest, rarity, is_open, opened_at
		 FROM run_event_objects
		 ORDER BY run_hash, position`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	for rows.Next() {
		var (
			hash, rarity string
			obj          model.EventObject
			boss, open   int
			openedAt     sql.NullString
		)
		if err := rows.Scan(&hash, &obj.ID, &obj.UniqueName, &boss, &rarity, &open, &openedAt); err != nil {
			return err
		}
		i, ok := index[hash]
		if !ok {
			continue
		}
		obj.IsBossChest = boss != 0
		obj.IsOpen = open != 0
		obj.Rarity = model.ChestRarity(rarity)
		if obj.OpenedAt, err = parseTimePtr(openedAt); err != nil {
			return err
		}
		runs[i].EventObjects = append(runs[i].EventObjects, obj)
	}
	return rows.Err()
}

// timeLayout is fixed width so text order in the database is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime also reads the variable-width RFC 3339 values of older databases.
func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return t, nil
}

func parseTimePtr(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
