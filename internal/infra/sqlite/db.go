// Package sqlite provides durable storage for the trading node: a small
// key/value table for device state (current offer, trust notes) and the
// append-only trade history. Uses modernc.org/sqlite (pure Go, no cgo).
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/boomtrade/boomtrade/internal/domain"
)

// DB wraps the SQLite handle.
type DB struct {
	db *sql.DB
}

// Migrations returns the schema statements, one per string (SQLite executes
// one statement at a time).
func Migrations() []string {
	return []string{
		// Device-local key/value state
		`CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)`,

		// Settled trades, append-only; tags/notes editable after the fact
		`CREATE TABLE IF NOT EXISTS history_entries (
			id                   TEXT PRIMARY KEY,
			counterparty_peer_id TEXT NOT NULL,
			counterparty_alias   TEXT NOT NULL,
			my_offer             TEXT NOT NULL,
			their_offer          TEXT NOT NULL,
			settled_at           TEXT NOT NULL,
			tags                 TEXT NOT NULL DEFAULT '[]',
			notes                TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_settled ON history_entries(settled_at)`,
	}
}

// Open opens (creating if needed) the database at path and applies migrations.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc.org/sqlite supports one writer; serialize at the pool level.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	for _, stmt := range Migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &DB{db: db}, nil
}

// Close closes the database handle.
func (d *DB) Close() error { return d.db.Close() }

// ─── KV Store ───────────────────────────────────────────────────────────────

// Get returns the value for key, or (nil, nil) when absent.
func (d *DB) Get(key string) ([]byte, error) {
	var value []byte
	err := d.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any prior value.
func (d *DB) Set(key string, value []byte) error {
	_, err := d.db.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (d *DB) Delete(key string) error {
	if _, err := d.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}

// ─── History Store ──────────────────────────────────────────────────────────

// AppendEntry inserts a settled trade record.
func (d *DB) AppendEntry(entry domain.HistoryEntry) error {
	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = d.db.Exec(`
		INSERT INTO history_entries
			(id, counterparty_peer_id, counterparty_alias, my_offer, their_offer, settled_at, tags, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CounterpartyPeerID, entry.CounterpartyAlias,
		entry.MyOfferSummary, entry.TheirOfferSummary,
		entry.SettledAt.UTC().Format(time.RFC3339Nano), string(tags), entry.Notes)
	if err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// ListEntries returns all settled trades, most recent first.
func (d *DB) ListEntries() ([]domain.HistoryEntry, error) {
	rows, err := d.db.Query(`
		SELECT id, counterparty_peer_id, counterparty_alias, my_offer, their_offer, settled_at, tags, notes
		FROM history_entries
		ORDER BY settled_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var settledAt, tags string
		if err := rows.Scan(&e.ID, &e.CounterpartyPeerID, &e.CounterpartyAlias,
			&e.MyOfferSummary, &e.TheirOfferSummary, &settledAt, &tags, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if e.SettledAt, err = time.Parse(time.RFC3339Nano, settledAt); err != nil {
			return nil, fmt.Errorf("parse settled_at: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateEntryMeta replaces an entry's tags and notes. The trade facts
// themselves are immutable.
func (d *DB) UpdateEntryMeta(id string, tags []string, notes string) error {
	encoded, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	res, err := d.db.Exec(`UPDATE history_entries SET tags = ?, notes = ? WHERE id = ?`,
		string(encoded), notes, id)
	if err != nil {
		return fmt.Errorf("update history entry %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("history entry %s not found", id)
	}
	return nil
}
