// Package control exposes the daemon to an external UI process over a
// unix domain socket carrying newline-delimited JSON messages.
package control

import (
	"encoding/json"

	"github.com/nhle/mailbadge/internal/model"
)

// MessageType discriminates control-channel messages. The daemon consumes
// the four request types and produces the complete/error types.
type MessageType string

const (
	TypeRequestUpdate        MessageType = "REQUEST_UPDATE"
	TypeUpdateComplete       MessageType = "UPDATE_COMPLETE"
	TypeAuthRequest          MessageType = "AUTH_REQUEST"
	TypeAuthComplete         MessageType = "AUTH_COMPLETE"
	TypeLogoutRequest        MessageType = "LOGOUT_REQUEST"
	TypeLogoutComplete       MessageType = "LOGOUT_COMPLETE"
	TypeOpenMailRequest      MessageType = "OPEN_MAIL_REQUEST"
	TypeSaveSettingsRequest  MessageType = "SAVE_SETTINGS_REQUEST"
	TypeSaveSettingsComplete MessageType = "SAVE_SETTINGS_COMPLETE"
	TypeError                MessageType = "ERROR"
)

// Message is the wire envelope.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthRequestPayload names the provider to authorize.
type AuthRequestPayload struct {
	ProviderID string `json:"providerId"`
}

// EmailPayload carries the target email for logout and open-mail
// requests.
type EmailPayload struct {
	Email string `json:"email"`
}

// UpdateCompletePayload carries the refreshed account list.
type UpdateCompletePayload struct {
	Accounts []model.Account `json:"accounts"`
}

// AuthCompletePayload carries the newly authorized account.
type AuthCompletePayload struct {
	Account model.Account `json:"account"`
}

// ErrorPayload carries a human-readable failure description.
type ErrorPayload struct {
	Message string `json:"message"`
}

// newMessage marshals payload into a Message envelope. Marshaling of the
// payload types above cannot fail; errors would indicate a programming
// bug, so they panic.
func newMessage(t MessageType, payload interface{}) Message {
	if payload == nil {
		return Message{Type: t}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return Message{Type: t, Payload: raw}
}
