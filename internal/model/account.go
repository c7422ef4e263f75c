package model

import "time"

// AuthToken is the credential obtained from an OAuth implicit-grant
// authorization. ExpiresAt is an absolute instant in epoch milliseconds.
// RefreshToken is never populated by the implicit flow but is kept so a
// stored token from a different grant type round-trips intact.
type AuthToken struct {
	AccessToken  string `json:"accessToken"`
	ExpiresAt    int64  `json:"expiresAt"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Account is the persisted state of one authorized webmail account.
// The identity key within the stored account list is Email alone:
// re-authorizing the same address under a different provider replaces
// the existing entry.
type Account struct {
	// ProviderID identifies the provider that owns this account
	// (e.g. "gmail", "yandex").
	ProviderID string `json:"providerId" db:"provider_id"`

	// Email is the account address and the identity key.
	Email string `json:"email" db:"email"`

	// UnreadCount is the total number of unread messages in the mailbox
	// at the time of the last update.
	UnreadCount int `json:"unreadCount" db:"unread_count"`

	// LastUpdated is the time of the last successful update, in epoch
	// milliseconds.
	LastUpdated int64 `json:"lastUpdated" db:"last_updated"`

	// History holds incremental message-history state for providers that
	// support it (Gmail). Nil for count-only providers.
	History *HistoryDetails `json:"historyDetails,omitempty"`
}

// HistoryDetails carries a provider's incremental-sync checkpoint and the
// message details fetched during the most recent update cycle. Messages is
// a bounded recent window, not an archive.
type HistoryDetails struct {
	LastHistoryID string          `json:"lastHistoryId"`
	Messages      []MessageDetail `json:"messages"`
}

// MessageDetail is a single fetched message: identifiers, snippet, labels
// and the MIME payload skeleton. Read-only; never persisted beyond the
// recent window inside an Account.
type MessageDetail struct {
	ID       string         `json:"id"`
	ThreadID string         `json:"threadId"`
	Snippet  string         `json:"snippet"`
	LabelIDs []string       `json:"labelIds,omitempty"`
	Payload  MessagePayload `json:"payload"`
}

// MessagePayload is the top-level MIME structure of a message.
type MessagePayload struct {
	MimeType string        `json:"mimeType,omitempty"`
	Headers  []Header      `json:"headers,omitempty"`
	Parts    []MessagePart `json:"parts,omitempty"`
}

// MessagePart is one node of a multipart MIME tree.
type MessagePart struct {
	PartID   string        `json:"partId,omitempty"`
	MimeType string        `json:"mimeType,omitempty"`
	Filename string        `json:"filename,omitempty"`
	Headers  []Header      `json:"headers,omitempty"`
	Parts    []MessagePart `json:"parts,omitempty"`
}

// Header is a single MIME header name/value pair.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Now returns the current time in epoch milliseconds, the unit used for
// AuthToken.ExpiresAt and Account.LastUpdated.
func Now() int64 {
	return time.Now().UnixMilli()
}
