package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/krelborne/wowloot/pkg/loot"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS loot_entries (
  id            INTEGER PRIMARY KEY,
  kind          TEXT NOT NULL,
  target_id     INTEGER NOT NULL,
  target_name   TEXT NOT NULL,
  item_id       INTEGER NOT NULL,
  name          TEXT NOT NULL,
  quality       TEXT NOT NULL,
  chance        REAL NOT NULL,
  quest         INTEGER NOT NULL CHECK (quest IN (0,1)),
  professions   TEXT,
  run_id        INTEGER NOT NULL DEFAULT 0,
  first_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  last_seen_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(kind, target_id, item_id)
);
CREATE INDEX IF NOT EXISTS idx_loot_target ON loot_entries(kind, target_id);
CREATE TABLE IF NOT EXISTS loot_changes (
  id          INTEGER PRIMARY KEY,
  occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  kind        TEXT NOT NULL,
  target_id   INTEGER NOT NULL,
  item_id     INTEGER NOT NULL,
  name        TEXT NOT NULL,
  change_type TEXT NOT NULL CHECK (change_type IN ('added','changed','removed')),
  old_chance  REAL,
  new_chance  REAL
);
CREATE INDEX IF NOT EXISTS idx_loot_changes_time ON loot_changes(occurred_at);
CREATE INDEX IF NOT EXISTS idx_loot_changes_target ON loot_changes(kind, target_id, occurred_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// RecordRun reconciles one extraction run against the ledger: new items
// are inserted, items whose listing data moved are updated, untouched
// items get their last_seen_at refreshed, and items absent from this run
// are swept out. Every insert, update and sweep produces a Change row.
func (d *DB) RecordRun(ctx context.Context, kind loot.Kind, targetID int, targetName string, entries []loot.Entry) ([]Change, error) {
	now := time.Now().UTC()
	runID := time.Now().UnixNano()

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	// No-op after Commit; releases the write lock on every error path.
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT item_id, name, quality, chance, quest, professions FROM loot_entries WHERE kind = ? AND target_id = ?", string(kind), targetID)
	if err != nil {
		return nil, err
	}

	type existing struct {
		Name, Quality, Professions string
		Chance                     float64
		Quest                      int
	}
	existingMap := make(map[int]existing)
	for rows.Next() {
		var (
			itemID int
			ex     existing
			profs  sql.NullString
		)
		if err = rows.Scan(&itemID, &ex.Name, &ex.Quality, &ex.Chance, &ex.Quest, &profs); err != nil {
			rows.Close()
			return nil, err
		}
		ex.Professions = profs.String
		existingMap[itemID] = ex
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}

	var changes []Change
	for _, e := range entries {
		profs := strings.Join(e.Professions, ",")
		questInt := boolToInt(e.QuestItem)

		ex, existed := existingMap[e.ItemID]
		if !existed {
			_, err = tx.ExecContext(ctx, `INSERT INTO loot_entries(kind, target_id, target_name, item_id, name, quality, chance, quest, professions, run_id, first_seen_at, last_seen_at) VALUES(?,?,?,?,?,?,?,?,?,?,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)`,
				string(kind), targetID, targetName, e.ItemID, e.Name, e.Quality.String(), e.Chance, questInt, nullIfEmpty(profs), runID)
			if err != nil {
				return nil, err
			}
			changes = append(changes, Change{OccurredAt: now, Kind: string(kind), TargetID: targetID, ItemID: e.ItemID, Name: e.Name, ChangeType: "added", NewChance: e.Chance})
			existingMap[e.ItemID] = existing{Name: e.Name, Quality: e.Quality.String(), Professions: profs, Chance: e.Chance, Quest: questInt}
		} else {
			if ex.Chance != e.Chance || ex.Quest != questInt || ex.Name != e.Name || ex.Quality != e.Quality.String() || ex.Professions != profs {
				_, err = tx.ExecContext(ctx, `UPDATE loot_entries SET target_name = ?, name = ?, quality = ?, chance = ?, quest = ?, professions = ?, run_id = ?, last_seen_at = CURRENT_TIMESTAMP WHERE kind = ? AND target_id = ? AND item_id = ?`,
					targetName, e.Name, e.Quality.String(), e.Chance, questInt, nullIfEmpty(profs), runID, string(kind), targetID, e.ItemID)
				if err != nil {
					return nil, err
				}
				changes = append(changes, Change{OccurredAt: now, Kind: string(kind), TargetID: targetID, ItemID: e.ItemID, Name: e.Name, ChangeType: "changed", OldChance: ex.Chance, NewChance: e.Chance})
			} else {
				_, err = tx.ExecContext(ctx, `UPDATE loot_entries SET run_id = ?, last_seen_at = CURRENT_TIMESTAMP WHERE kind = ? AND target_id = ? AND item_id = ?`,
					runID, string(kind), targetID, e.ItemID)
				if err != nil {
					return nil, err
				}
			}
		}
	}

	// Sweep: find and delete entries not touched in this run, log removals
	staleRows, err := tx.QueryContext(ctx, "SELECT item_id, name, chance FROM loot_entries WHERE kind = ? AND target_id = ? AND run_id != ?", string(kind), targetID, runID)
	if err != nil {
		return nil, err
	}

	type staleEntry struct {
		ItemID int
		Name   string
		Chance float64
	}
	var toRemove []staleEntry
	for staleRows.Next() {
		var s staleEntry
		if err = staleRows.Scan(&s.ItemID, &s.Name, &s.Chance); err != nil {
			staleRows.Close()
			return nil, err
		}
		toRemove = append(toRemove, s)
	}
	if err = staleRows.Close(); err != nil {
		return nil, err
	}

	if len(toRemove) > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM loot_entries WHERE kind = ? AND target_id = ? AND run_id != ?`, string(kind), targetID, runID)
		if err != nil {
			return nil, err
		}
		for _, s := range toRemove {
			_, ierr := tx.ExecContext(ctx, `INSERT INTO loot_changes(occurred_at, kind, target_id, item_id, name, change_type, old_chance) VALUES(CURRENT_TIMESTAMP, ?, ?, ?, ?, 'removed', ?)`,
				string(kind), targetID, s.ItemID, s.Name, s.Chance)
			if ierr != nil {
				return nil, ierr
			}
			changes = append(changes, Change{OccurredAt: now, Kind: string(kind), TargetID: targetID, ItemID: s.ItemID, Name: s.Name, ChangeType: "removed", OldChance: s.Chance})
		}
	}

	// Record the add/change events gathered above in the same transaction.
	for _, c := range changes {
		if c.ChangeType == "removed" {
			continue
		}
		_, ierr := tx.ExecContext(ctx, `INSERT INTO loot_changes(occurred_at, kind, target_id, item_id, name, change_type, old_chance, new_chance) VALUES(CURRENT_TIMESTAMP, ?, ?, ?, ?, ?, ?, ?)`,
			c.Kind, c.TargetID, c.ItemID, c.Name, c.ChangeType, nullableChance(c.ChangeType == "changed", c.OldChance), c.NewChance)
		if ierr != nil {
			return nil, ierr
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return changes, nil
}

// ListOptions controls selection when listing ledger rows.
type ListOptions struct {
	Kind       string
	TargetID   int
	Quality    string
	Profession string
}

// ListItems returns current ledger rows matching filters.
func (d *DB) ListItems(ctx context.Context, opts ListOptions) ([]Row, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if opts.Kind != "" && opts.Kind != "all" {
		where += " AND kind = ?"
		args = append(args, opts.Kind)
	}
	if opts.TargetID > 0 {
		where += " AND target_id = ?"
		args = append(args, opts.TargetID)
	}
	if opts.Quality != "" {
		where += " AND quality = ?"
		args = append(args, opts.Quality)
	}
	if opts.Profession != "" {
		// professions is a comma-joined list; wrap both sides so the match
		// is on whole names only.
		where += " AND (',' || professions || ',') LIKE ?"
		args = append(args, "%,"+strings.ToLower(opts.Profession)+",%")
	}

	q := "SELECT kind, target_id, target_name, item_id, name, quality, chance, quest, professions, first_seen_at, last_seen_at FROM loot_entries " + where + " ORDER BY kind, target_id, item_id"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var r Row
		var questInt int
		var profsNS sql.NullString
		var firstStr, lastStr string
		if err := rows.Scan(&r.Kind, &r.TargetID, &r.TargetName, &r.ItemID, &r.Name, &r.Quality, &r.Chance, &questInt, &profsNS, &firstStr, &lastStr); err != nil {
			return nil, err
		}
		r.Quest = questInt == 1
		if profsNS.Valid && profsNS.String != "" {
			r.Professions = strings.Split(profsNS.String, ",")
		}
		r.FirstSeenAt = parseTimestamp(firstStr)
		r.LastSeenAt = parseTimestamp(lastStr)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RecentChanges returns the most recent N changes across all targets.
func (d *DB) RecentChanges(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT occurred_at, kind, target_id, item_id, name, change_type, old_chance, new_chance FROM loot_changes ORDER BY occurred_at DESC, id DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		var occurredAtStr string
		var oldNF, newNF sql.NullFloat64
		if err := rows.Scan(&occurredAtStr, &c.Kind, &c.TargetID, &c.ItemID, &c.Name, &c.ChangeType, &oldNF, &newNF); err != nil {
			return nil, err
		}
		c.OccurredAt = parseTimestamp(occurredAtStr)
		c.OldChance = oldNF.Float64
		c.NewChance = newNF.Float64
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}

func (d *DB) GetStats(ctx context.Context) ([]KindStats, error) {
	query := `
		SELECT
			kind,
			COUNT(DISTINCT target_id),
			COUNT(item_id)
		FROM
			loot_entries
		GROUP BY
			kind
		ORDER BY
			kind;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []KindStats
	for rows.Next() {
		var s KindStats
		if err := rows.Scan(&s.Kind, &s.TargetCount, &s.ItemCount); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// parseTimestamp handles SQLite CURRENT_TIMESTAMP output, trying the
// "2006-01-02 15:04:05" layout first and RFC3339 as a fallback.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableChance(set bool, f float64) interface{} {
	if !set {
		return nil
	}
	return f
}
