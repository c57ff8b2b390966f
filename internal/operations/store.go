package operations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"clipforge/internal/config"
	"clipforge/internal/moments"
	"clipforge/internal/transcript"
)

// Store manages registry persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the registry database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.WorkspaceDir, "registry.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// CreateSession stores a new session carrying an optional voice reference.
func (s *Store) CreateSession(ctx context.Context, voiceReference string) (*Session, error) {
	session := &Session{
		ID:             uuid.NewString(),
		VoiceReference: strings.TrimSpace(voiceReference),
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, voice_reference, created_at) VALUES (?, ?, ?)`,
		session.ID,
		nullableString(session.VoiceReference),
		session.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

// GetSession fetches a session by identifier.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, voice_reference, created_at FROM sessions WHERE id = ?`, id)

	var (
		session    Session
		voiceRef   sql.NullString
		createdRaw string
	)
	if err := row.Scan(&session.ID, &voiceRef, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	session.VoiceReference = voiceRef.String
	if created, err := parseTimeString(createdRaw); err == nil {
		session.CreatedAt = created
	}
	return &session, nil
}

// CreateDiscovery persists one discovery result: the source, its transcript,
// and the ranked moment list submit will reference by index.
func (s *Store) CreateDiscovery(ctx context.Context, sourcePath string, durationSec float64, tr transcript.Transcript, ranked []moments.Moment) (*Discovery, error) {
	transcriptJSON, err := json.Marshal(tr)
	if err != nil {
		return nil, fmt.Errorf("marshal transcript: %w", err)
	}

	discovery := &Discovery{
		ID:          uuid.NewString(),
		SourcePath:  sourcePath,
		DurationSec: durationSec,
		Transcript:  tr,
		Moments:     ranked,
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin discovery tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO discoveries (id, source_path, duration_sec, transcript_json, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		discovery.ID,
		discovery.SourcePath,
		discovery.DurationSec,
		string(transcriptJSON),
		discovery.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert discovery: %w", err)
	}

	for _, moment := range ranked {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO discovery_moments (discovery_id, moment_index, start_ms, end_ms, score, hook, caption)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			discovery.ID,
			moment.Index,
			moment.Start.Milliseconds(),
			moment.End.Milliseconds(),
			moment.Score,
			moment.Hook,
			moment.Caption,
		)
		if err != nil {
			return nil, fmt.Errorf("insert moment %d: %w", moment.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit discovery: %w", err)
	}
	return discovery, nil
}

// GetDiscovery fetches a discovery with its moment list and transcript.
func (s *Store) GetDiscovery(ctx context.Context, id string) (*Discovery, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_path, duration_sec, transcript_json, created_at
         FROM discoveries WHERE id = ?`, id)

	var (
		discovery      Discovery
		transcriptJSON string
		createdRaw     string
	)
	if err := row.Scan(&discovery.ID, &discovery.SourcePath, &discovery.DurationSec, &transcriptJSON, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("discovery %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get discovery: %w", err)
	}
	if err := json.Unmarshal([]byte(transcriptJSON), &discovery.Transcript); err != nil {
		return nil, fmt.Errorf("parse stored transcript: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		discovery.CreatedAt = created
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT moment_index, start_ms, end_ms, score, hook, caption
         FROM discovery_moments WHERE discovery_id = ? ORDER BY moment_index`, id)
	if err != nil {
		return nil, fmt.Errorf("query moments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			moment           moments.Moment
			startMS, endMS   int64
		)
		if err := rows.Scan(&moment.Index, &startMS, &endMS, &moment.Score, &moment.Hook, &moment.Caption); err != nil {
			return nil, fmt.Errorf("scan moment: %w", err)
		}
		moment.Start = time.Duration(startMS) * time.Millisecond
		moment.End = time.Duration(endMS) * time.Millisecond
		discovery.Moments = append(discovery.Moments, moment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &discovery, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
