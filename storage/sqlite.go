package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"cine-match/logging"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "cine_match.db"

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	dataPath string
}

// StorageInterface is the run store seen by the serve binary.
type StorageInterface interface {
	Initialize() error
	SaveRun(run *Run) error
	GetRun(id string) (*Run, error)
	GetRecentRuns(limit int) ([]Run, error)
	HasFingerprint(fingerprint string) (bool, error)
	GetStats() (map[string]int, error)
	Close() error
}

var _ StorageInterface = (*SQLiteStorage)(nil)

func NewSQLiteStorage(dataPath string) *SQLiteStorage {
	return &SQLiteStorage{
		dbPath:   filepath.Join(dataPath, DBFileName),
		dataPath: dataPath,
	}
}

// Initialize opens the database and applies pending migrations.
func (s *SQLiteStorage) Initialize() error {
	if err := s.Open(); err != nil {
		return err
	}

	migrationManager := NewMigrationManager(s.db)
	if err := migrationManager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := migrationManager.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logging.Info().Str("path", s.dbPath).Msg("SQLite database initialized")
	return nil
}

// Open connects without touching the schema, for migration tooling.
func (s *SQLiteStorage) Open() error {
	if err := os.MkdirAll(s.dataPath, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *SQLiteStorage) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", s.dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// SaveRun stores run and its items in one transaction. A missing id or
// timestamp is filled in.
func (s *SQLiteStorage) SaveRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	prefs, err := json.Marshal(run.Preferences)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
	INSERT INTO runs (id, strategy, preferences, fingerprint, item_count, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Strategy, string(prefs), run.Fingerprint, len(run.Items), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO run_items (run_id, rank, title, type, runtime, genres, production_countries,
		imdb_score, age_certification, score)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range run.Items {
		genres, err := encodeList(item.Genres)
		if err != nil {
			return err
		}
		countries, err := encodeList(item.ProductionCountries)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(run.ID, item.Rank, item.Title, item.Type, item.Runtime, genres, countries,
			item.IMDBScore, item.AgeCertification, item.Score); err != nil {
			return fmt.Errorf("failed to insert item %q: %w", item.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`
	SELECT id, strategy, preferences, fingerprint, created_at
	FROM runs
	WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if run.Items, err = s.getItems(run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRecentRuns returns up to limit runs, newest first, with their items.
func (s *SQLiteStorage) GetRecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
	SELECT id, strategy, preferences, fingerprint, created_at
	FROM runs
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	for i := range runs {
		if runs[i].Items, err = s.getItems(runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// HasFingerprint reports whether an answer set with fingerprint was served.
func (s *SQLiteStorage) HasFingerprint(fingerprint string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM runs WHERE fingerprint = ?)`, fingerprint).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStorage) getItems(runID string) ([]RunItem, error) {
	rows, err := s.db.Query(`
	SELECT rank, title, type, runtime, genres, production_countries, imdb_score, age_certification, score
	FROM run_items
	WHERE run_id = ?
	ORDER BY rank
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run items: %w", err)
	}
	defer rows.Close()

	var items []RunItem
	for rows.Next() {
		var item RunItem
		var genres, countries string
		if err := rows.Scan(&item.Rank, &item.Title, &item.Type, &item.Runtime, &genres, &countries,
			&item.IMDBScore, &item.AgeCertification, &item.Score); err != nil {
			return nil, fmt.Errorf("failed to scan run item: %w", err)
		}
		if err := json.Unmarshal([]byte(genres), &item.Genres); err != nil {
			return nil, fmt.Errorf("failed to decode genres: %w", err)
		}
		if err := json.Unmarshal([]byte(countries), &item.ProductionCountries); err != nil {
			return nil, fmt.Errorf("failed to decode production countries: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var prefs string
	if err := row.Scan(&run.ID, &run.Strategy, &prefs, &run.Fingerprint, &run.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(prefs), &run.Preferences); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return &run, nil
}

func encodeList(xs []string) (string, error) {
	if xs == nil {
		xs = []string{}
	}
	data, err := json.Marshal(xs)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStorage) GetDB() (*sql.DB, error) {
	if s.db == nil {
		db, err := s.open()
		if err != nil {
			return nil, err
		}
		s.db = db
	}
	return s.db, nil
}

// GetStats counts served runs overall and per strategy, plus served items.
func (s *SQLiteStorage) GetStats() (map[string]int, error) {
	stats := make(map[string]int)

	queries := []struct {
		key   string
		query string
	}{
		{"total", "SELECT COUNT(*) FROM runs"},
		{"similarity", "SELECT COUNT(*) FROM runs WHERE strategy = 'similarity'"},
		{"model", "SELECT COUNT(*) FROM runs WHERE strategy = 'model'"},
		{"items", "SELECT COUNT(*) FROM run_items"},
	}
	for _, q := range queries {
		var n int
		if err := s.db.QueryRow(q.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to get %s count: %w", q.key, err)
		}
		stats[q.key] = n
	}
	return stats, nil
}

// Migration management methods
func (s *SQLiteStorage) GetMigrationManager() *MigrationManager {
	return NewMigrationManager(s.db)
}

func (s *SQLiteStorage) GetDatabaseVersion() (int64, error) {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return 0, err
	}
	return migrationManager.Version()
}

func (s *SQLiteStorage) RunMigrations() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Up()
}

// MigrateTo applies migrations up to and including version.
func (s *SQLiteStorage) MigrateTo(version int64) error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.UpTo(version)
}

func (s *SQLiteStorage) RollbackMigration() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Down()
}

func (s *SQLiteStorage) ResetDatabase() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Reset()
}
