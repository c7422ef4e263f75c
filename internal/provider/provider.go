// Package provider defines the capability set every mail service exposes
// to the update orchestrator, the static service descriptors, and the
// registry that maps provider ids to instances.
package provider

import (
	"context"

	"github.com/nhle/mailbadge/internal/model"
)

// Profile is the provider-reported identity of the authorized user.
// HistoryID is populated only by history-capable providers and serves as
// a fallback starting checkpoint for incremental sync.
type Profile struct {
	Email     string
	HistoryID string
}

// Provider is the contract between the orchestrator and one mail service.
// Implementations delegate token lifecycle to a shared auth engine and add
// service-specific API calls on top.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the display name.
	Name() string

	// MailURL returns the URL that opens the provider's mailbox,
	// substituting email into the template when given.
	MailURL(email string) string

	// Authorize runs the interactive consent flow and persists the
	// resulting token.
	Authorize(ctx context.Context) error

	// IsAuthorized reports whether a non-expired token is stored.
	// It never fails; errors collapse to false.
	IsAuthorized() bool

	// Logout removes the stored token.
	Logout() error

	// Profile fetches the authorized user's identity.
	Profile(ctx context.Context) (Profile, error)

	// UnreadCount fetches the total unread-message count. A well-formed
	// response with no count field yields 0; a failed request returns a
	// non-nil error (callers decide how to degrade).
	UnreadCount(ctx context.Context) (int, error)

	// FetchSnapshot produces the account state for one update cycle:
	// profile, unread count, and, for history-capable providers, the
	// incremental message history.
	FetchSnapshot(ctx context.Context) (model.Account, error)
}

// Snapshot is the default FetchSnapshot implementation: profile, unread
// count, and a LastUpdated stamp. Count-only providers use it directly.
func Snapshot(ctx context.Context, p Provider) (model.Account, error) {
	profile, err := p.Profile(ctx)
	if err != nil {
		return model.Account{}, err
	}

	unread, err := p.UnreadCount(ctx)
	if err != nil {
		return model.Account{}, err
	}

	return model.Account{
		ProviderID:  p.ID(),
		Email:       profile.Email,
		UnreadCount: unread,
		LastUpdated: model.Now(),
	}, nil
}
