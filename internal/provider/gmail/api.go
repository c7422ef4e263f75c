// Package gmail implements the history-capable Gmail provider over the
// Gmail REST API.
package gmail

import (
	"context"

	"github.com/nhle/mailbadge/internal/model"
	"github.com/nhle/mailbadge/internal/provider"
)

// API is the narrow Gmail surface this provider needs. The production
// implementation wraps the generated google.golang.org/api client; tests
// substitute a fake.
type API interface {
	// Profile returns the authorized user's address and the service's
	// current history id.
	Profile(ctx context.Context) (provider.Profile, error)

	// UnreadCount returns the total unread-message count from the UNREAD
	// label. A label with no count reported yields 0.
	UnreadCount(ctx context.Context) (int, error)

	// History lists changes since startHistoryID filtered to the UNREAD
	// label and returns the new high-water-mark history id plus the ids
	// of messages added.
	History(ctx context.Context, startHistoryID string) (historyID string, messageIDs []string, err error)

	// Message fetches one message's snippet, labels and MIME skeleton.
	Message(ctx context.Context, id string) (model.MessageDetail, error)
}

// StateStore persists small provider-scoped state strings, such as the
// last processed history id.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
}
