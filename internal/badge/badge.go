// Package badge paints the aggregate unread indicator. The daemon has no
// toolbar icon of its own, so the badge is a single replaceable desktop
// notification.
package badge

// Badge is the outward-facing unread indicator. Implementations must be
// safe for sequential use from the orchestrator; they are never called
// concurrently.
type Badge interface {
	// SetCount paints the aggregate unread count. Zero clears back to
	// the default state.
	SetCount(count int)

	// SetError paints a distinct error indicator, used when an update
	// fails before producing any account data.
	SetError()

	// Clear resets to the default (no accounts) state.
	Clear()
}

// Nop is a Badge that does nothing, for tests and headless runs.
type Nop struct{}

func (Nop) SetCount(int) {}
func (Nop) SetError()    {}
func (Nop) Clear()       {}

var _ Badge = Nop{}
