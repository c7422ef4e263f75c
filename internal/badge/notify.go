package badge

import (
	"fmt"
	"sync"

	"github.com/TheCreeper/go-notify"
	"go.uber.org/zap"
)

const appName = "mailbadge"

// Notify implements Badge with freedesktop desktop notifications. The
// previous notification's id is replaced on every paint so at most one
// badge notification exists at a time.
type Notify struct {
	log *zap.SugaredLogger

	mu     sync.Mutex
	lastID uint32
	show   func(ntf notify.Notification) (uint32, error)
}

// NewNotify returns a desktop-notification badge.
func NewNotify(log *zap.SugaredLogger) *Notify {
	return &Notify{
		log: log,
		show: func(ntf notify.Notification) (uint32, error) {
			return ntf.Show()
		},
	}
}

func (n *Notify) SetCount(count int) {
	if count <= 0 {
		n.Clear()
		return
	}
	n.paint("Unread mail", fmt.Sprintf("%d unread message(s)", count), "mail-unread")
}

func (n *Notify) SetError() {
	n.paint("Mail check failed", "Could not update unread counts", "dialog-error")
}

func (n *Notify) Clear() {
	n.paint("Mail", "No unread messages", "mail-read")
}

func (n *Notify) paint(summary, body, icon string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ntf := notify.NewNotification(summary, body)
	ntf.AppName = appName
	ntf.AppIcon = icon
	ntf.ReplacesID = n.lastID
	ntf.Timeout = notify.ExpiresDefault

	id, err := n.show(ntf)
	if err != nil {
		n.log.Warnw("badge paint failed", "error", err)
		return
	}
	n.lastID = id
}

var _ Badge = (*Notify)(nil)
