// Package sync orchestrates update cycles across all stored accounts and
// schedules the recurring refresh.
package sync

import (
	"context"
	"fmt"
	gosync "sync"

	"go.uber.org/zap"

	"github.com/nhle/mailbadge/internal/badge"
	"github.com/nhle/mailbadge/internal/model"
	"github.com/nhle/mailbadge/internal/provider"
	"github.com/nhle/mailbadge/internal/store"
)

// Orchestrator runs update cycles: it iterates the stored accounts,
// resolves each one's provider, merges fresh snapshots with prior state,
// persists the result, and paints the badge. One failing account never
// aborts a batch.
type Orchestrator struct {
	store    store.Store
	registry *provider.Registry
	badge    badge.Badge
	log      *zap.SugaredLogger

	// mu serializes every operation that writes the account list: update
	// cycles, authorization, and logout. The control server handles user
	// actions on connection goroutines concurrent with the scheduler, and
	// an unserialized write would be undone by an in-flight cycle's
	// read-modify-write of the whole list.
	mu gosync.Mutex
}

// NewOrchestrator wires an orchestrator over the given collaborators.
func NewOrchestrator(s store.Store, r *provider.Registry, b badge.Badge, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{store: s, registry: r, badge: b, log: log}
}

// UpdateAll refreshes every stored account and returns the merged list.
// Accounts whose provider is unknown or whose authorization lapsed keep
// their previous snapshot, as do accounts whose fetch fails; the badge is
// set to the aggregate unread count of the returned list.
func (o *Orchestrator) UpdateAll(ctx context.Context) ([]model.Account, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	accounts, err := o.store.ListAccounts(ctx)
	if err != nil {
		o.badge.SetError()
		return nil, fmt.Errorf("loading accounts: %w", err)
	}

	if len(accounts) == 0 {
		o.badge.Clear()
		return []model.Account{}, nil
	}

	updated := make([]model.Account, 0, len(accounts))
	for _, account := range accounts {
		updated = append(updated, o.updateOne(ctx, account))
	}

	if err := o.store.ReplaceAccounts(ctx, updated); err != nil {
		o.badge.SetError()
		return nil, fmt.Errorf("persisting accounts: %w", err)
	}

	o.badge.SetCount(TotalUnread(updated))
	return updated, nil
}

// updateOne fetches a fresh snapshot for a single account, falling back
// to the prior snapshot on any failure.
func (o *Orchestrator) updateOne(ctx context.Context, prior model.Account) model.Account {
	p, err := o.registry.Get(prior.ProviderID)
	if err != nil {
		o.log.Warnw("keeping previous data, provider unknown",
			"email", prior.Email, "provider", prior.ProviderID)
		return prior
	}

	if !p.IsAuthorized() {
		o.log.Infow("keeping previous data, not authorized",
			"email", prior.Email, "provider", prior.ProviderID)
		return prior
	}

	fresh, err := p.FetchSnapshot(ctx)
	if err != nil {
		o.log.Warnw("keeping previous data, snapshot failed",
			"email", prior.Email, "provider", prior.ProviderID, "error", err)
		return prior
	}
	return fresh
}

// AuthorizeAccount runs the interactive consent flow for the given
// provider, fetches a first snapshot, and upserts it into the stored list
// keyed by email. It holds the cycle lock for the whole action, consent
// wait included, so an in-flight update cannot rewrite the list around
// the upsert.
func (o *Orchestrator) AuthorizeAccount(ctx context.Context, providerID string) (model.Account, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, err := o.registry.Get(providerID)
	if err != nil {
		return model.Account{}, err
	}

	if err := p.Authorize(ctx); err != nil {
		return model.Account{}, err
	}

	account, err := p.FetchSnapshot(ctx)
	if err != nil {
		return model.Account{}, fmt.Errorf("fetching snapshot after authorization: %w", err)
	}

	if err := o.store.UpsertAccount(ctx, account); err != nil {
		return model.Account{}, fmt.Errorf("storing account %s: %w", account.Email, err)
	}

	o.log.Infow("account authorized", "email", account.Email, "provider", providerID)
	return account, nil
}

// LogoutAccount removes the provider token and the stored account for the
// given email. An unknown email fails with ErrAccountNotFound and leaves
// the stored list unmodified. Runs under the cycle lock: a removal that
// interleaved with an update's merge-and-persist would be undone when the
// cycle rewrote the pre-logout list.
func (o *Orchestrator) LogoutAccount(ctx context.Context, email string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	account, err := o.findAccount(ctx, email)
	if err != nil {
		return err
	}

	p, err := o.registry.Get(account.ProviderID)
	if err != nil {
		return err
	}

	if err := p.Logout(); err != nil {
		return fmt.Errorf("logging out %s: %w", email, err)
	}

	if _, err := o.store.DeleteAccount(ctx, email); err != nil {
		return fmt.Errorf("removing account %s: %w", email, err)
	}

	o.log.Infow("account logged out", "email", email)
	return nil
}

// MailURL resolves the mailbox URL for the stored account with the given
// email.
func (o *Orchestrator) MailURL(ctx context.Context, email string) (string, error) {
	account, err := o.findAccount(ctx, email)
	if err != nil {
		return "", err
	}

	p, err := o.registry.Get(account.ProviderID)
	if err != nil {
		return "", err
	}
	return p.MailURL(email), nil
}

// Accounts returns the currently stored account list without updating it.
func (o *Orchestrator) Accounts(ctx context.Context) ([]model.Account, error) {
	return o.store.ListAccounts(ctx)
}

// Settings returns the stored runtime settings.
func (o *Orchestrator) Settings(ctx context.Context) (model.Settings, error) {
	return o.store.GetSettings(ctx)
}

// SaveSettings validates and persists runtime settings. The scheduler
// picks a changed interval up at the end of its next cycle.
func (o *Orchestrator) SaveSettings(ctx context.Context, settings model.Settings) error {
	if settings.UpdateIntervalMinutes <= 0 {
		return fmt.Errorf("update interval must be positive, got %d", settings.UpdateIntervalMinutes)
	}
	return o.store.SaveSettings(ctx, settings)
}

func (o *Orchestrator) findAccount(ctx context.Context, email string) (model.Account, error) {
	accounts, err := o.store.ListAccounts(ctx)
	if err != nil {
		return model.Account{}, fmt.Errorf("loading accounts: %w", err)
	}
	for _, account := range accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return model.Account{}, fmt.Errorf("%w: %q", provider.ErrAccountNotFound, email)
}

// TotalUnread sums the unread counts across accounts.
func TotalUnread(accounts []model.Account) int {
	total := 0
	for _, account := range accounts {
		total += account.UnreadCount
	}
	return total
}
