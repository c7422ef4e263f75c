package provider

// Config is the static descriptor for one supported mail service. Configs
// are built once at process start and never mutated.
type Config struct {
	// ID is the unique provider identifier (e.g. "gmail", "yandex").
	ID string

	// Name is the display name (e.g. "Gmail", "Yandex Mail").
	Name string

	// ClientID is the OAuth client id.
	ClientID string

	// AuthURL is the OAuth authorization endpoint.
	AuthURL string

	// APIURL is the base URL of the provider's REST API.
	APIURL string

	// Scopes are the requested OAuth scopes; order carries no meaning.
	Scopes []string

	// TokenStorageKey is the token store slot owned by this provider.
	TokenStorageKey string

	// MailURL is the mailbox URL template; the account email is appended
	// when the provider supports per-account mailbox addressing.
	MailURL string

	// ExtraAuthParams are provider-specific query parameters added to the
	// authorization URL.
	ExtraAuthParams map[string]string
}

// MailboxURL resolves the mail-open URL for an account, appending the
// email to the template when one is given.
func (c Config) MailboxURL(email string) string {
	if email == "" {
		return c.MailURL
	}
	return c.MailURL + email
}

// GmailConfig returns the Gmail service descriptor. An empty clientID
// keeps the built-in default.
func GmailConfig(clientID string) Config {
	if clientID == "" {
		clientID = "407408718192.apps.googleusercontent.com"
	}
	return Config{
		ID:              "gmail",
		Name:            "Gmail",
		ClientID:        clientID,
		AuthURL:         "https://accounts.google.com/o/oauth2/auth",
		APIURL:          "https://gmail.googleapis.com/gmail/v1",
		Scopes:          []string{"https://www.googleapis.com/auth/gmail.readonly"},
		TokenStorageKey: "gmail_auth_token",
		MailURL:         "https://mail.google.com/mail/u/",
		ExtraAuthParams: map[string]string{
			"prompt":                 "consent",
			"include_granted_scopes": "true",
		},
	}
}

// YandexConfig returns the Yandex Mail service descriptor.
func YandexConfig(clientID string) Config {
	if clientID == "" {
		clientID = "mailbadge-yandex-client"
	}
	return Config{
		ID:              "yandex",
		Name:            "Yandex Mail",
		ClientID:        clientID,
		AuthURL:         "https://oauth.yandex.ru/authorize",
		APIURL:          "https://mail.yandex.ru/api/v1",
		Scopes:          []string{"mail:read"},
		TokenStorageKey: "yandex_auth_token",
		MailURL:         "https://mail.yandex.ru/",
	}
}
