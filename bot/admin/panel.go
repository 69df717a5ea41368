// Package admin implements the /admin panel: broadcasting to every
// registered user and registry statistics.
package admin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/promokod/promobot/bot/flow"
	"github.com/promokod/promobot/bot/users"
)

// Panel callback actions.
const (
	ActionBroadcast        = "admin_broadcast"
	ActionStats            = "admin_stats"
	ActionClose            = "admin_close"
	ActionConfirmBroadcast = "admin_confirm"
	ActionCancelBroadcast  = "admin_cancel"
)

// pendingStage tracks where an admin is in the broadcast dialogue.
type pendingStage int

const (
	stageAwaitingText pendingStage = iota + 1
	stageConfirming
)

type pending struct {
	stage pendingStage
	text  string
}

// Registry is the user-registry surface the panel reads.
type Registry interface {
	Recipients(ctx context.Context) ([]int64, error)
	Stats(ctx context.Context) (users.Stats, error)
}

// Panel drives the admin dialogue. Broadcast input is tracked per
// admin, separately from user flow sessions.
type Panel struct {
	registry    Registry
	broadcaster *Broadcaster

	mu      sync.Mutex
	pending map[int64]pending
}

// NewPanel builds the panel.
func NewPanel(registry Registry, broadcaster *Broadcaster) *Panel {
	return &Panel{
		registry:    registry,
		broadcaster: broadcaster,
		pending:     make(map[int64]pending),
	}
}

// Open renders the panel menu and drops any half-finished dialogue.
func (p *Panel) Open(adminID int64) flow.Response {
	p.clear(adminID)
	return flow.Response{
		Text: "Admin panel",
		Rows: 1,
		Controls: []flow.Control{
			{Label: "📣 Broadcast", Action: ActionBroadcast},
			{Label: "📊 Statistics", Action: ActionStats},
			{Label: "✖ Close", Action: ActionClose},
		},
	}
}

// Close ends the dialogue.
func (p *Panel) Close(adminID int64) flow.Response {
	p.clear(adminID)
	return flow.Response{Text: "Panel closed"}
}

// InProgress reports whether the admin's next text message belongs to
// the broadcast dialogue.
func (p *Panel) InProgress(adminID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[adminID].stage == stageAwaitingText
}

// StartBroadcast asks the admin for the message text.
func (p *Panel) StartBroadcast(adminID int64) flow.Response {
	p.mu.Lock()
	p.pending[adminID] = pending{stage: stageAwaitingText}
	p.mu.Unlock()
	return flow.Response{
		Text: "Send the message to broadcast",
		Rows: 1,
		Controls: []flow.Control{
			{Label: "Cancel", Action: ActionCancelBroadcast},
		},
	}
}

// HandleText captures the broadcast text and asks for confirmation.
func (p *Panel) HandleText(adminID int64, text string) flow.Response {
	text = strings.TrimSpace(text)
	if text == "" {
		return flow.Response{Text: "Message is empty, send it again"}
	}

	p.mu.Lock()
	st, ok := p.pending[adminID]
	if !ok || st.stage != stageAwaitingText {
		p.mu.Unlock()
		return flow.Response{}
	}
	p.pending[adminID] = pending{stage: stageConfirming, text: text}
	p.mu.Unlock()

	return flow.Response{
		Text: fmt.Sprintf("Send this to all users?\n\n%s", text),
		Rows: 2,
		Controls: []flow.Control{
			{Label: "✅ Send", Action: ActionConfirmBroadcast},
			{Label: "Cancel", Action: ActionCancelBroadcast},
		},
	}
}

// Confirm launches the broadcast in the background and reports the
// result to the admin when the fan-out finishes.
func (p *Panel) Confirm(ctx context.Context, adminID int64) flow.Response {
	p.mu.Lock()
	st, ok := p.pending[adminID]
	delete(p.pending, adminID)
	p.mu.Unlock()

	if !ok || st.stage != stageConfirming || st.text == "" {
		return flow.Response{Text: "Nothing to send, open the panel again"}
	}

	recipients, err := p.registry.Recipients(ctx)
	if err != nil {
		return flow.Response{Text: fmt.Sprintf("Could not load recipients: %v", err)}
	}
	if len(recipients) == 0 {
		return flow.Response{Text: "No registered users yet"}
	}

	p.broadcaster.Run(adminID, recipients, st.text)
	return flow.Response{Text: fmt.Sprintf("Broadcast to %d users started", len(recipients))}
}

// Cancel drops the broadcast dialogue.
func (p *Panel) Cancel(adminID int64) flow.Response {
	p.clear(adminID)
	return flow.Response{Text: "Broadcast cancelled"}
}

// StatsText renders the registry statistics.
func (p *Panel) StatsText(ctx context.Context) flow.Response {
	stats, err := p.registry.Stats(ctx)
	if err != nil {
		return flow.Response{Text: fmt.Sprintf("Could not load statistics: %v", err)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Users: %d\n", stats.Total)
	fmt.Fprintf(&b, "Joined today: %d\n", stats.Today)
	fmt.Fprintf(&b, "Joined this week: %d\n", stats.ThisWeek)

	if len(stats.ByStatus) > 0 {
		b.WriteString("\nBy status:\n")
		keys := make([]string, 0, len(stats.ByStatus))
		for s := range stats.ByStatus {
			keys = append(keys, string(s))
		}
		sort.Strings(keys)
		for _, s := range keys {
			fmt.Fprintf(&b, "  %s: %d\n", s, stats.ByStatus[users.Status(s)])
		}
	}

	return flow.Response{
		Text: b.String(),
		Rows: 1,
		Controls: []flow.Control{
			{Label: "✖ Close", Action: ActionClose},
		},
	}
}

func (p *Panel) clear(adminID int64) {
	p.mu.Lock()
	delete(p.pending, adminID)
	p.mu.Unlock()
}
