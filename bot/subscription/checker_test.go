package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type fakeAPI struct {
	role tele.MemberStatus
	err  error
	wait time.Duration
	chat string
}

func (f *fakeAPI) ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error) {
	f.chat = chat.Recipient()
	if f.wait > 0 {
		time.Sleep(f.wait)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &tele.ChatMember{Role: f.role}, nil
}

func TestMemberRoles(t *testing.T) {
	cases := []struct {
		role tele.MemberStatus
		want bool
	}{
		{tele.Member, true},
		{tele.Administrator, true},
		{tele.Creator, true},
		{tele.Restricted, true},
		{tele.Left, false},
		{tele.Kicked, false},
	}
	for _, tc := range cases {
		api := &fakeAPI{role: tc.role}
		got, err := New(api).Member(context.Background(), 10, "@promo")
		if err != nil {
			t.Fatalf("role %s: %v", tc.role, err)
		}
		if got != tc.want {
			t.Errorf("role %s: got %v, want %v", tc.role, got, tc.want)
		}
		if api.chat != "@promo" {
			t.Errorf("role %s: recipient %q", tc.role, api.chat)
		}
	}
}

func TestMemberAPIError(t *testing.T) {
	wantErr := errors.New("forbidden")
	got, err := New(&fakeAPI{err: wantErr}).Member(context.Background(), 10, "@promo")
	if got {
		t.Fatal("error must not count as member")
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
}

func TestMemberContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	got, err := New(&fakeAPI{role: tele.Member, wait: 500 * time.Millisecond}).Member(ctx, 10, "@promo")
	if got {
		t.Fatal("timed-out check must not count as member")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
