package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pfrederiksen/telefication/internal/config"
	"github.com/pfrederiksen/telefication/internal/crypto"
)

const (
	// DBFile is the database file name inside the data directory
	DBFile = "telefication.db"
	// SettingsOption is the option name the settings record is stored under
	SettingsOption = "telefication"
)

// ErrNotFound means the option does not exist
var ErrNotFound = errors.New("option not found")

const schema = `
CREATE TABLE IF NOT EXISTS options (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// Storage is a name/value option table in SQLite
type Storage struct {
	db  *sql.DB
	enc *crypto.Encryptor
}

// New opens (creating if needed) the database in dataDir. enc may be nil, in which
// case secrets are stored as plaintext.
func New(dataDir string, enc *crypto.Encryptor) (*Storage, error) {
	dir, err := ExpandPath(dataDir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Storage{db: db, enc: enc}, nil
}

// ExpandPath expands a leading ~/ to the home directory
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, p[2:]), nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetOption returns the raw value of an option
func (s *Storage) GetOption(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM options WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading option %s: %w", name, err)
	}
	return value, nil
}

// SetOption inserts or replaces an option
func (s *Storage) SetOption(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO options(name, value, updated_at) VALUES(?,?,?)
		 ON CONFLICT(name) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		name, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing option %s: %w", name, err)
	}
	return nil
}

// DeleteOption removes an option; deleting a missing option is not an error
func (s *Storage) DeleteOption(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM options WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting option %s: %w", name, err)
	}
	return nil
}

// Reset deletes the stored settings, so Load returns the defaults again
func (s *Storage) Reset(ctx context.Context) error {
	return s.DeleteOption(ctx, SettingsOption)
}

// Load returns the stored settings, or the defaults when none have been saved.
// It implements config.Source.
func (s *Storage) Load() (*config.Config, error) {
	return s.LoadContext(context.Background())
}

// LoadContext is Load with a context
func (s *Storage) LoadContext(ctx context.Context) (*config.Config, error) {
	raw, err := s.GetOption(ctx, SettingsOption)
	if errors.Is(err, ErrNotFound) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg, err := config.ParseBytes(SettingsOption+".json", []byte(raw))
	if err != nil {
		return nil, fmt.Errorf("stored settings: %w", err)
	}

	token, err := s.enc.Open(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("decrypting bot token: %w", err)
	}
	cfg.BotToken = token

	key, err := s.enc.Open(cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("decrypting api key: %w", err)
	}
	cfg.APIKey = key
	return cfg, nil
}

// Save sanitises, validates and stores cfg. The bot token and API key are sealed when
// an encryptor is configured; cfg itself is not modified.
func (s *Storage) Save(ctx context.Context, cfg *config.Config) error {
	rec := cfg.Clone()
	rec.Sanitize()
	if err := rec.Validate(); err != nil {
		return err
	}

	token, err := s.enc.Seal(rec.BotToken)
	if err != nil {
		return fmt.Errorf("encrypting bot token: %w", err)
	}
	rec.BotToken = token

	key, err := s.enc.Seal(rec.APIKey)
	if err != nil {
		return fmt.Errorf("encrypting api key: %w", err)
	}
	rec.APIKey = key

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return s.SetOption(ctx, SettingsOption, string(data))
}
