// Package auth implements the OAuth 2.0 implicit-grant lifecycle for one
// provider: building authorization URLs, driving the interactive consent
// flow, parsing the redirect fragment, and persisting the token. The
// implicit grant has no refresh token, so "refreshing" an expired token is
// always a new, user-visible consent prompt.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/nhle/mailbadge/internal/model"
	"github.com/nhle/mailbadge/internal/provider"
	"github.com/nhle/mailbadge/internal/token"
)

// expiryMargin is the safety window before the recorded expiry at which a
// token is no longer served to API callers.
const expiryMargin = 60 * time.Second

// defaultExpiresIn is assumed when the redirect omits expires_in.
const defaultExpiresIn = 3600

// Engine obtains and keeps fresh an access token for one provider. State
// machine per provider: no token -> (authorize) -> valid -> (expiry margin
// passes) -> needs reauthorization -> (authorize) -> valid; logout returns
// to no token from anywhere.
type Engine struct {
	cfg    provider.Config
	tokens token.Store
	flow   ConsentFlow
	log    *zap.SugaredLogger
	now    func() time.Time
}

// NewEngine returns an engine for the given provider config, backed by
// the token store and consent flow.
func NewEngine(cfg provider.Config, tokens token.Store, flow ConsentFlow, log *zap.SugaredLogger) *Engine {
	return &Engine{
		cfg:    cfg,
		tokens: tokens,
		flow:   flow,
		log:    log,
		now:    time.Now,
	}
}

// AuthorizationURL builds the implicit-grant authorization URL. The result
// is deterministic given the config and the flow's redirect URI.
func (e *Engine) AuthorizationURL() string {
	q := url.Values{}
	q.Set("client_id", e.cfg.ClientID)
	q.Set("response_type", "token")
	q.Set("redirect_uri", e.flow.RedirectURI())
	q.Set("scope", strings.Join(e.cfg.Scopes, " "))
	for k, v := range e.cfg.ExtraAuthParams {
		q.Set(k, v)
	}
	return e.cfg.AuthURL + "?" + q.Encode()
}

// Authorize runs the interactive consent flow, parses the redirect
// fragment, persists the resulting token and returns it. A redirect that
// carries an error, or no access token at all (the shape a cancelled
// consent window produces), fails with *provider.AuthorizationError.
func (e *Engine) Authorize(ctx context.Context) (*model.AuthToken, error) {
	e.log.Infow("starting authorization", "provider", e.cfg.ID)

	redirectURL, err := e.flow.Authorize(ctx, e.AuthorizationURL())
	if err != nil {
		return nil, fmt.Errorf("consent flow (%s): %w", e.cfg.ID, err)
	}

	tok, err := e.parseRedirect(redirectURL)
	if err != nil {
		return nil, err
	}

	if err := e.tokens.Set(e.cfg.TokenStorageKey, tok); err != nil {
		return nil, fmt.Errorf("persisting token (%s): %w", e.cfg.ID, err)
	}
	e.log.Infow("token stored", "provider", e.cfg.ID, "expiresAt", tok.ExpiresAt)
	return tok, nil
}

// parseRedirect extracts the token from the fragment (not the query
// string) of the redirect URL.
func (e *Engine) parseRedirect(redirectURL string) (*model.AuthToken, error) {
	frag := ""
	if i := strings.Index(redirectURL, "#"); i >= 0 {
		frag = redirectURL[i+1:]
	}
	params, err := url.ParseQuery(frag)
	if err != nil {
		return nil, fmt.Errorf("parsing redirect fragment (%s): %w", e.cfg.ID, err)
	}

	if errCode := params.Get("error"); errCode != "" {
		return nil, &provider.AuthorizationError{ProviderID: e.cfg.ID, Reason: errCode}
	}
	accessToken := params.Get("access_token")
	if accessToken == "" {
		return nil, &provider.AuthorizationError{ProviderID: e.cfg.ID, Reason: "no access token received"}
	}

	expiresIn, err := strconv.Atoi(params.Get("expires_in"))
	if err != nil || expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	return &model.AuthToken{
		AccessToken: accessToken,
		ExpiresAt:   e.now().UnixMilli() + int64(expiresIn)*1000,
	}, nil
}

// AccessToken returns a currently valid access token, re-running the
// interactive authorization when none is stored or the stored one is
// within the expiry margin. The re-prompt is deliberate and user-visible;
// no silent refresh exists for this grant.
func (e *Engine) AccessToken(ctx context.Context) (string, error) {
	tok, err := e.tokens.Get(e.cfg.TokenStorageKey)
	if err != nil && !errors.Is(err, token.ErrNotFound) {
		return "", fmt.Errorf("reading token (%s): %w", e.cfg.ID, err)
	}

	if tok == nil {
		e.log.Infow("no stored token, authorizing", "provider", e.cfg.ID)
		fresh, err := e.Authorize(ctx)
		if err != nil {
			return "", err
		}
		return fresh.AccessToken, nil
	}

	if tok.ExpiresAt <= e.now().UnixMilli()+expiryMargin.Milliseconds() {
		e.log.Infow("token expired or expiring, re-authorizing", "provider", e.cfg.ID)
		fresh, err := e.Authorize(ctx)
		if err != nil {
			return "", err
		}
		return fresh.AccessToken, nil
	}

	return tok.AccessToken, nil
}

// IsAuthorized reports whether a stored token exists with its expiry
// strictly in the future. No margin is applied: this gates whether an
// account participates in updates, it does not serve tokens. Failures
// collapse to false.
func (e *Engine) IsAuthorized() bool {
	tok, err := e.tokens.Get(e.cfg.TokenStorageKey)
	if err != nil || tok == nil {
		return false
	}
	return tok.ExpiresAt > e.now().UnixMilli()
}

// Logout removes the stored token unconditionally. No revocation endpoint
// is called.
func (e *Engine) Logout() error {
	e.log.Infow("logging out", "provider", e.cfg.ID)
	return e.tokens.Remove(e.cfg.TokenStorageKey)
}

// TokenSource adapts the engine to oauth2.TokenSource so generated API
// clients can consume it. Each Token call may trigger an interactive
// re-authorization.
func (e *Engine) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &engineTokenSource{ctx: ctx, engine: e}
}

type engineTokenSource struct {
	ctx    context.Context
	engine *Engine
}

func (s *engineTokenSource) Token() (*oauth2.Token, error) {
	access, err := s.engine.AccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	tok, err := s.engine.tokens.Get(s.engine.cfg.TokenStorageKey)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
		Expiry:      time.UnixMilli(tok.ExpiresAt),
	}, nil
}
