package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailbadge/internal/model"
)

// settingsKeyInterval is the settings-table row holding the update
// interval in minutes.
const settingsKeyInterval = "update_interval_minutes"

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// accountRow is the database shape of a stored account; history details
// travel as a JSON blob.
type accountRow struct {
	Email       string         `db:"email"`
	ProviderID  string         `db:"provider_id"`
	UnreadCount int            `db:"unread_count"`
	LastUpdated int64          `db:"last_updated"`
	History     sql.NullString `db:"history"`
}

func (r accountRow) toAccount() (model.Account, error) {
	account := model.Account{
		ProviderID:  r.ProviderID,
		Email:       r.Email,
		UnreadCount: r.UnreadCount,
		LastUpdated: r.LastUpdated,
	}
	if r.History.Valid && r.History.String != "" {
		var h model.HistoryDetails
		if err := json.Unmarshal([]byte(r.History.String), &h); err != nil {
			return model.Account{}, fmt.Errorf("decoding history for %s: %w", r.Email, err)
		}
		account.History = &h
	}
	return account, nil
}

// ListAccounts returns all stored accounts in list order.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var rows []accountRow
	err := s.db.SelectContext(ctx, &rows, "SELECT email, provider_id, unread_count, last_updated, history FROM accounts ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	accounts := make([]model.Account, 0, len(rows))
	for _, r := range rows {
		account, err := r.toAccount()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

const upsertAccountSQL = `
	INSERT INTO accounts (email, provider_id, unread_count, last_updated, history)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(email) DO UPDATE SET
		provider_id  = excluded.provider_id,
		unread_count = excluded.unread_count,
		last_updated = excluded.last_updated,
		history      = excluded.history`

// UpsertAccount inserts or replaces one account, keyed by email.
func (s *SQLiteStore) UpsertAccount(ctx context.Context, account model.Account) error {
	history, err := marshalHistory(account.History)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, upsertAccountSQL,
		account.Email, account.ProviderID, account.UnreadCount, account.LastUpdated, history,
	)
	if err != nil {
		return fmt.Errorf("upserting account %s: %w", account.Email, err)
	}
	return nil
}

// ReplaceAccounts atomically replaces the stored list. The write is a
// single transaction so a concurrent reader never observes a half-merged
// list.
func (s *SQLiteStore) ReplaceAccounts(ctx context.Context, accounts []model.Account) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM accounts"); err != nil {
		return fmt.Errorf("clearing accounts: %w", err)
	}

	for _, account := range accounts {
		history, err := marshalHistory(account.History)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO accounts (email, provider_id, unread_count, last_updated, history) VALUES (?, ?, ?, ?, ?)",
			account.Email, account.ProviderID, account.UnreadCount, account.LastUpdated, history,
		)
		if err != nil {
			return fmt.Errorf("inserting account %s: %w", account.Email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing account replacement: %w", err)
	}
	return nil
}

// DeleteAccount removes the account with the given email.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, email string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE email = ?", email)
	if err != nil {
		return false, fmt.Errorf("deleting account %s: %w", email, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting account %s: %w", email, err)
	}
	return n > 0, nil
}

// GetSettings returns the saved settings, or defaults when none exist.
func (s *SQLiteStore) GetSettings(ctx context.Context) (model.Settings, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, "SELECT value FROM settings WHERE key = ?", settingsKeyInterval)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("reading settings: %w", err)
	}

	interval, err := strconv.Atoi(raw)
	if err != nil || interval <= 0 {
		return model.DefaultSettings(), nil
	}
	return model.Settings{UpdateIntervalMinutes: interval}, nil
}

// SaveSettings durably stores the settings.
func (s *SQLiteStore) SaveSettings(ctx context.Context, settings model.Settings) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		settingsKeyInterval, strconv.Itoa(settings.UpdateIntervalMinutes),
	)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// GetState returns the provider state under key, or "" when absent.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM provider_state WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading state %s: %w", key, err)
	}
	return value, nil
}

// SetState durably stores a provider state string.
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO provider_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing state %s: %w", key, err)
	}
	return nil
}

func marshalHistory(h *model.HistoryDetails) (sql.NullString, error) {
	if h == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding history: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

var _ Store = (*SQLiteStore)(nil)
