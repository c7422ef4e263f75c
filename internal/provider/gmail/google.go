package gmail

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/nhle/mailbadge/internal/model"
	"github.com/nhle/mailbadge/internal/provider"
)

const me = "me"

// googleAPI adapts *gmailv1.Service to the API interface.
type googleAPI struct {
	svc *gmailv1.Service
}

// NewGoogleAPI wraps a generated Gmail service.
func NewGoogleAPI(svc *gmailv1.Service) API {
	return &googleAPI{svc: svc}
}

func (g *googleAPI) Profile(ctx context.Context) (provider.Profile, error) {
	p, err := g.svc.Users.GetProfile(me).Context(ctx).Do()
	if err != nil {
		return provider.Profile{}, wrapAPIError("get profile", err)
	}
	return provider.Profile{
		Email:     p.EmailAddress,
		HistoryID: strconv.FormatUint(p.HistoryId, 10),
	}, nil
}

func (g *googleAPI) UnreadCount(ctx context.Context) (int, error) {
	label, err := g.svc.Users.Labels.Get(me, "UNREAD").Context(ctx).Do()
	if err != nil {
		return 0, wrapAPIError("get unread label", err)
	}
	return int(label.MessagesUnread), nil
}

func (g *googleAPI) History(ctx context.Context, startHistoryID string) (string, []string, error) {
	start, err := strconv.ParseUint(startHistoryID, 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid history id %q: %w", startHistoryID, err)
	}

	res, err := g.svc.Users.History.List(me).
		StartHistoryId(start).
		LabelId("UNREAD").
		HistoryTypes("messageAdded").
		Context(ctx).Do()
	if err != nil {
		return "", nil, wrapAPIError("list history", err)
	}

	var ids []string
	for _, h := range res.History {
		for _, added := range h.MessagesAdded {
			if added.Message != nil {
				ids = append(ids, added.Message.Id)
			}
		}
	}
	return strconv.FormatUint(res.HistoryId, 10), ids, nil
}

func (g *googleAPI) Message(ctx context.Context, id string) (model.MessageDetail, error) {
	msg, err := g.svc.Users.Messages.Get(me, id).Format("full").Context(ctx).Do()
	if err != nil {
		return model.MessageDetail{}, wrapAPIError(fmt.Sprintf("get message %s", id), err)
	}

	detail := model.MessageDetail{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		LabelIDs: msg.LabelIds,
	}
	if msg.Payload != nil {
		detail.Payload = model.MessagePayload{
			MimeType: msg.Payload.MimeType,
			Headers:  toHeaders(msg.Payload.Headers),
			Parts:    toParts(msg.Payload.Parts),
		}
	}
	return detail, nil
}

func toHeaders(hs []*gmailv1.MessagePartHeader) []model.Header {
	out := make([]model.Header, 0, len(hs))
	for _, h := range hs {
		out = append(out, model.Header{Name: h.Name, Value: h.Value})
	}
	return out
}

func toParts(ps []*gmailv1.MessagePart) []model.MessagePart {
	var out []model.MessagePart
	for _, p := range ps {
		out = append(out, model.MessagePart{
			PartID:   p.PartId,
			MimeType: p.MimeType,
			Filename: p.Filename,
			Headers:  toHeaders(p.Headers),
			Parts:    toParts(p.Parts),
		})
	}
	return out
}

// wrapAPIError converts a googleapi error into the shared APIError type,
// preserving the HTTP status for callers that branch on it.
func wrapAPIError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &provider.APIError{
			ProviderID: "gmail",
			StatusCode: gerr.Code,
			Status:     fmt.Sprintf("%s: %s", op, gerr.Message),
		}
	}
	return fmt.Errorf("gmail %s: %w", op, err)
}
