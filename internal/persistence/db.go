// Package persistence provides SQLite-based match save storage.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SaveType labels why a record was written.
type SaveType string

const (
	SaveAuto       SaveType = "auto"
	SaveManual     SaveType = "manual"
	SaveCheckpoint SaveType = "checkpoint"
)

// Valid reports whether t is a known save type.
func (t SaveType) Valid() bool {
	return t == SaveAuto || t == SaveManual || t == SaveCheckpoint
}

// SaveRecord is one serialized match snapshot. State and grid are stored as
// separate JSON documents.
type SaveRecord struct {
	ID         string    `db:"id" json:"id"`
	GameID     string    `db:"game_id" json:"gameId"`
	SaveName   string    `db:"save_name" json:"saveName"`
	TurnNumber int       `db:"turn_number" json:"turnNumber"`
	SaveType   SaveType  `db:"save_type" json:"saveType"`
	StateJSON  []byte    `db:"state_json" json:"-"`
	GridJSON   []byte    `db:"grid_json" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// ErrNotFound is returned when no save matches.
var ErrNotFound = errors.New("save not found")

// DB wraps a SQLite connection for save storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL,
		save_name TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		save_type TEXT NOT NULL,
		state_json BLOB NOT NULL,
		grid_json BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS server_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_saves_game ON saves(game_id, created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Save writes a record, assigning an id and timestamp when missing.
func (db *DB) Save(ctx context.Context, rec *SaveRecord) error {
	if rec.GameID == "" {
		return fmt.Errorf("save: game id required")
	}
	if !rec.SaveType.Valid() {
		return fmt.Errorf("save: unknown save type %q", rec.SaveType)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.NamedExecContext(ctx, `INSERT INTO saves
		(id, game_id, save_name, turn_number, save_type, state_json, grid_json, created_at)
		VALUES (:id, :game_id, :save_name, :turn_number, :save_type, :state_json, :grid_json, :created_at)`,
		rec)
	if err != nil {
		return fmt.Errorf("insert save %s: %w", rec.ID, err)
	}
	slog.Debug("save written", "game", rec.GameID, "save", rec.ID, "type", rec.SaveType, "turn", rec.TurnNumber)
	return nil
}

// Load returns the save with the given id.
func (db *DB) Load(ctx context.Context, id string) (*SaveRecord, error) {
	var rec SaveRecord
	err := db.conn.GetContext(ctx, &rec, "SELECT * FROM saves WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load save %s: %w", id, err)
	}
	return &rec, nil
}

// Latest returns the most recent save of a game.
func (db *DB) Latest(ctx context.Context, gameID string) (*SaveRecord, error) {
	var rec SaveRecord
	err := db.conn.GetContext(ctx, &rec,
		"SELECT * FROM saves WHERE game_id = ? ORDER BY created_at DESC, turn_number DESC LIMIT 1",
		gameID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest save for %s: %w", gameID, err)
	}
	return &rec, nil
}

// List returns a game's saves newest first, without their payloads.
func (db *DB) List(ctx context.Context, gameID string) ([]SaveRecord, error) {
	var recs []SaveRecord
	err := db.conn.SelectContext(ctx, &recs,
		`SELECT id, game_id, save_name, turn_number, save_type, x'' AS state_json, x'' AS grid_json, created_at
		 FROM saves WHERE game_id = ? ORDER BY created_at DESC, turn_number DESC`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list saves for %s: %w", gameID, err)
	}
	return recs, nil
}

// PruneAuto deletes all but the newest keep automatic saves of a game.
func (db *DB) PruneAuto(ctx context.Context, gameID string, keep int) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM saves
		WHERE game_id = ? AND save_type = ? AND id NOT IN (
			SELECT id FROM saves WHERE game_id = ? AND save_type = ?
			ORDER BY created_at DESC LIMIT ?
		)`, gameID, SaveAuto, gameID, SaveAuto, keep)
	if err != nil {
		return 0, fmt.Errorf("prune saves for %s: %w", gameID, err)
	}
	return res.RowsAffected()
}

// SaveMeta stores a key-value pair in server metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO server_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM server_meta WHERE key = ?", key)
	return value, err
}
