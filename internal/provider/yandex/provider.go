package yandex

import (
	"context"

	"go.uber.org/zap"

	"github.com/nhle/mailbadge/internal/auth"
	"github.com/nhle/mailbadge/internal/model"
	"github.com/nhle/mailbadge/internal/provider"
)

// Provider is the count-only Yandex Mail provider. It has no incremental
// history capability, so snapshots are profile + unread count.
type Provider struct {
	cfg    provider.Config
	engine *auth.Engine
	client *Client
	log    *zap.SugaredLogger
}

// New builds the Yandex provider on top of the shared auth engine.
func New(cfg provider.Config, engine *auth.Engine, log *zap.SugaredLogger) *Provider {
	return &Provider{
		cfg:    cfg,
		engine: engine,
		client: NewClient(cfg.APIURL, engine),
		log:    log,
	}
}

func (p *Provider) ID() string   { return p.cfg.ID }
func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) MailURL(email string) string { return p.cfg.MailboxURL(email) }

func (p *Provider) Authorize(ctx context.Context) error {
	_, err := p.engine.Authorize(ctx)
	return err
}

func (p *Provider) IsAuthorized() bool { return p.engine.IsAuthorized() }

func (p *Provider) Logout() error { return p.engine.Logout() }

func (p *Provider) Profile(ctx context.Context) (provider.Profile, error) {
	return p.client.Profile(ctx)
}

func (p *Provider) UnreadCount(ctx context.Context) (int, error) {
	return p.client.UnreadCount(ctx)
}

func (p *Provider) FetchSnapshot(ctx context.Context) (model.Account, error) {
	return provider.Snapshot(ctx, p)
}

var _ provider.Provider = (*Provider)(nil)
