package admin

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/promokod/promobot/bot/users"
	"github.com/promokod/promobot/core/telegram/sender"
)

type fakeRegistry struct {
	recipients []int64
	stats      users.Stats
}

func (f *fakeRegistry) Recipients(ctx context.Context) ([]int64, error) {
	return f.recipients, nil
}

func (f *fakeRegistry) Stats(ctx context.Context) (users.Stats, error) {
	return f.stats, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []int64
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := to.(*tele.User); ok {
		f.sent = append(f.sent, u.ID)
	}
	return &tele.Message{}, nil
}

func (f *fakeSender) ids() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.sent...)
}

func newTestPanel(reg *fakeRegistry, snd *fakeSender) (*Panel, *sender.Dispatcher) {
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	bc := NewBroadcaster(snd, d, time.Millisecond)
	return NewPanel(reg, bc), d
}

func TestBroadcastDialogue(t *testing.T) {
	reg := &fakeRegistry{recipients: []int64{10, 11, 12}}
	snd := &fakeSender{}
	panel, d := newTestPanel(reg, snd)
	defer d.Close()

	const adminID = int64(1)

	resp := panel.Open(adminID)
	if len(resp.Controls) != 3 {
		t.Fatalf("panel controls = %d", len(resp.Controls))
	}
	if panel.InProgress(adminID) {
		t.Fatal("fresh panel must not capture text")
	}

	panel.StartBroadcast(adminID)
	if !panel.InProgress(adminID) {
		t.Fatal("broadcast dialogue must capture text")
	}

	resp = panel.HandleText(adminID, "  hello everyone  ")
	if !strings.Contains(resp.Text, "hello everyone") {
		t.Fatalf("confirmation text = %q", resp.Text)
	}
	if panel.InProgress(adminID) {
		t.Fatal("confirmation stage must not capture more text")
	}

	resp = panel.Confirm(context.Background(), adminID)
	if !strings.Contains(resp.Text, "3 users") {
		t.Fatalf("confirm response = %q", resp.Text)
	}

	// Fan-out runs in the background; wait for the three sends plus
	// the completion report to the admin.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(snd.ids()) == 4 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	got := snd.ids()
	if len(got) != 4 {
		t.Fatalf("sends = %v, want 3 recipients and the admin report", got)
	}
	if got[3] != adminID {
		t.Fatalf("last send should report to admin, went to %d", got[3])
	}
}

func TestEmptyBroadcastTextReprompts(t *testing.T) {
	panel, d := newTestPanel(&fakeRegistry{}, &fakeSender{})
	defer d.Close()

	panel.StartBroadcast(1)
	resp := panel.HandleText(1, "   ")
	if !strings.Contains(resp.Text, "again") {
		t.Fatalf("response = %q", resp.Text)
	}
	if !panel.InProgress(1) {
		t.Fatal("dialogue must stay open after empty input")
	}
}

func TestCancelDropsDialogue(t *testing.T) {
	panel, d := newTestPanel(&fakeRegistry{recipients: []int64{10}}, &fakeSender{})
	defer d.Close()

	panel.StartBroadcast(1)
	panel.HandleText(1, "draft")
	panel.Cancel(1)

	resp := panel.Confirm(context.Background(), 1)
	if !strings.Contains(resp.Text, "Nothing to send") {
		t.Fatalf("response = %q", resp.Text)
	}
}

func TestConfirmWithoutRecipients(t *testing.T) {
	panel, d := newTestPanel(&fakeRegistry{}, &fakeSender{})
	defer d.Close()

	panel.StartBroadcast(1)
	panel.HandleText(1, "text")
	resp := panel.Confirm(context.Background(), 1)
	if !strings.Contains(resp.Text, "No registered users") {
		t.Fatalf("response = %q", resp.Text)
	}
}

func TestStatsText(t *testing.T) {
	reg := &fakeRegistry{stats: users.Stats{
		Total:    42,
		Today:    3,
		ThisWeek: 9,
		ByStatus: map[users.Status]int{
			users.StatusActive:     30,
			users.StatusIDVerified: 12,
		},
	}}
	panel, d := newTestPanel(reg, &fakeSender{})
	defer d.Close()

	resp := panel.StatsText(context.Background())
	for _, want := range []string{"Users: 42", "today: 3", "week: 9", "active: 30", "id_verified: 12"} {
		if !strings.Contains(resp.Text, want) {
			t.Fatalf("stats text missing %q:\n%s", want, resp.Text)
		}
	}
}
