// Package store persists the account list, user settings, and small
// provider state strings.
package store

import (
	"context"

	"github.com/nhle/mailbadge/internal/model"
)

// Store defines the persistence interface for accounts, settings, and
// provider state.
type Store interface {
	// === Accounts ===

	// ListAccounts returns all stored accounts in list order.
	ListAccounts(ctx context.Context) ([]model.Account, error)

	// UpsertAccount inserts or replaces one account. The identity key is
	// the email alone: the same address authorized under a different
	// provider replaces the prior entry.
	UpsertAccount(ctx context.Context, account model.Account) error

	// ReplaceAccounts atomically replaces the whole stored list with the
	// merged result of an update cycle.
	ReplaceAccounts(ctx context.Context, accounts []model.Account) error

	// DeleteAccount removes the account with the given email, reporting
	// whether a row existed.
	DeleteAccount(ctx context.Context, email string) (bool, error)

	// === Settings ===

	GetSettings(ctx context.Context) (model.Settings, error)
	SaveSettings(ctx context.Context, settings model.Settings) error

	// === Provider state ===

	// GetState returns the value stored under key, or "" when absent.
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	// Close releases the underlying storage.
	Close() error
}
