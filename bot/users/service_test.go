package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/promokod/promobot/bot/flow"
)

type fakeRegistry struct {
	statuses map[int64]Status
	setErr   error
	ids      []int64
	total    int
	byStatus map[Status]int
	since    []time.Time
}

func (f *fakeRegistry) Upsert(ctx context.Context, id int64, name string) (User, error) {
	return User{TelegramID: id, FullName: name, Status: StatusActive}, nil
}

func (f *fakeRegistry) SetStatus(ctx context.Context, id int64, status Status) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.statuses == nil {
		f.statuses = make(map[int64]Status)
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeRegistry) AllTelegramIDs(ctx context.Context) ([]int64, error) { return f.ids, nil }
func (f *fakeRegistry) Count(ctx context.Context) (int, error)             { return f.total, nil }
func (f *fakeRegistry) CountByStatus(ctx context.Context) (map[Status]int, error) {
	return f.byStatus, nil
}
func (f *fakeRegistry) CountCreatedSince(ctx context.Context, t time.Time) (int, error) {
	f.since = append(f.since, t)
	return len(f.since), nil
}

func TestFlowHookStatuses(t *testing.T) {
	reg := &fakeRegistry{}
	hook := NewService(reg).FlowHook()
	ctx := context.Background()

	hook(ctx, 1, flow.StateChannelCheck, flow.StateMainMenu)
	if reg.statuses[1] != StatusChannelJoined {
		t.Fatalf("status after gate = %q", reg.statuses[1])
	}

	hook(ctx, 1, flow.StateAwaitingUserID, flow.StateCongratulation)
	if reg.statuses[1] != StatusIDVerified {
		t.Fatalf("status after id = %q", reg.statuses[1])
	}

	// Navigation transitions leave the status alone.
	hook(ctx, 2, flow.StateAppInfo, flow.StateMainMenu)
	if _, ok := reg.statuses[2]; ok {
		t.Fatal("back navigation must not set a status")
	}
}

func TestFlowHookSwallowsErrors(t *testing.T) {
	reg := &fakeRegistry{setErr: errors.New("db down")}
	hook := NewService(reg).FlowHook()
	// Must not panic or propagate.
	hook(context.Background(), 1, flow.StateChannelCheck, flow.StateMainMenu)
}

func TestStats(t *testing.T) {
	reg := &fakeRegistry{
		total:    12,
		byStatus: map[Status]int{StatusActive: 5, StatusIDVerified: 7},
	}
	stats, err := NewService(reg).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 12 {
		t.Fatalf("total = %d", stats.Total)
	}
	if stats.ByStatus[StatusIDVerified] != 7 {
		t.Fatalf("by status = %+v", stats.ByStatus)
	}
	if len(reg.since) != 2 {
		t.Fatalf("expected day and week cutoffs, got %d", len(reg.since))
	}
	if !reg.since[0].After(reg.since[1]) {
		t.Fatal("day cutoff should be later than week cutoff")
	}
}
