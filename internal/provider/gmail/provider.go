package gmail

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/nhle/mailbadge/internal/auth"
	"github.com/nhle/mailbadge/internal/model"
	"github.com/nhle/mailbadge/internal/provider"
)

// historyStateKey is the state-store slot holding the last processed
// history id.
const historyStateKey = "gmail_last_history_id"

// maxHistoryMessages bounds the per-cycle fan-out of message-detail
// fetches from one history query.
const maxHistoryMessages = 10

// Provider is the history-capable Gmail provider.
type Provider struct {
	cfg    provider.Config
	engine *auth.Engine
	api    API
	state  StateStore
	log    *zap.SugaredLogger
}

// New builds the Gmail provider, constructing the generated API client on
// top of the engine's token source.
func New(ctx context.Context, cfg provider.Config, engine *auth.Engine, state StateStore, log *zap.SugaredLogger) (*Provider, error) {
	svc, err := gmailv1.NewService(ctx, option.WithTokenSource(engine.TokenSource(ctx)))
	if err != nil {
		return nil, err
	}
	return newWithAPI(cfg, engine, NewGoogleAPI(svc), state, log), nil
}

func newWithAPI(cfg provider.Config, engine *auth.Engine, api API, state StateStore, log *zap.SugaredLogger) *Provider {
	return &Provider{cfg: cfg, engine: engine, api: api, state: state, log: log}
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
	return p.api.Profile(ctx)
}

func (p *Provider) UnreadCount(ctx context.Context) (int, error) {
	return p.api.UnreadCount(ctx)
}

// FetchSnapshot extends the default snapshot with incremental history:
// changes since the last processed history id (falling back to the id the
// profile reports) are folded into the account's recent-message window,
// and the high-water mark is persisted when it moves.
func (p *Provider) FetchSnapshot(ctx context.Context) (model.Account, error) {
	profile, err := p.api.Profile(ctx)
	if err != nil {
		return model.Account{}, err
	}

	unread, err := p.api.UnreadCount(ctx)
	if err != nil {
		return model.Account{}, err
	}

	last, err := p.state.GetState(ctx, historyStateKey)
	if err != nil {
		return model.Account{}, err
	}

	history, err := p.syncHistory(ctx, last, profile.HistoryID)
	if err != nil {
		return model.Account{}, err
	}

	return model.Account{
		ProviderID:  p.cfg.ID,
		Email:       profile.Email,
		UnreadCount: unread,
		LastUpdated: model.Now(),
		History:     history,
	}, nil
}

// syncHistory picks the starting checkpoint (last persisted id, else the
// profile-supplied one), queries history from it, and persists the new id
// when it differs. With no checkpoint at all the history call is skipped
// entirely and the previous id is carried forward unchanged.
func (p *Provider) syncHistory(ctx context.Context, last, fallback string) (*model.HistoryDetails, error) {
	start := last
	if start == "" {
		start = fallback
	}
	if start == "" {
		return &model.HistoryDetails{LastHistoryID: last}, nil
	}

	historyID, ids, err := p.api.History(ctx, start)
	if err != nil {
		// Gmail rejects history ids that have aged out with a 404. Restart
		// the checkpoint from the profile's current id so the next cycle
		// syncs again instead of failing forever.
		var apiErr *provider.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound && fallback != "" && start != fallback {
			p.log.Infow("history checkpoint expired, restarting", "from", start, "to", fallback)
			if err := p.state.SetState(ctx, historyStateKey, fallback); err != nil {
				return nil, err
			}
			return &model.HistoryDetails{LastHistoryID: fallback}, nil
		}
		return nil, err
	}

	if len(ids) > maxHistoryMessages {
		p.log.Debugw("capping history fetch", "total", len(ids), "cap", maxHistoryMessages)
		ids = ids[:maxHistoryMessages]
	}

	messages := make([]model.MessageDetail, 0, len(ids))
	for _, id := range ids {
		detail, err := p.api.Message(ctx, id)
		if err != nil {
			return nil, err
		}
		messages = append(messages, detail)
	}

	if historyID != last {
		if err := p.state.SetState(ctx, historyStateKey, historyID); err != nil {
			return nil, err
		}
	}

	return &model.HistoryDetails{LastHistoryID: historyID, Messages: messages}, nil
}

var _ provider.Provider = (*Provider)(nil)
