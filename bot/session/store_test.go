package session

import (
	"sync"
	"testing"
	"time"

	"github.com/promokod/promobot/bot/flow"
)

func TestGetAbsent(t *testing.T) {
	m := NewMemory()
	_, ok, err := m.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected absent session")
	}
}

func TestPutGet(t *testing.T) {
	m := NewMemory()
	want := flow.Session{State: flow.StateAppInfo, SelectedApp: "app_2"}
	if err := m.Put(7, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := m.Get(7)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestResetCreatesInitial(t *testing.T) {
	m := NewMemory()
	if err := m.Put(3, flow.Session{State: flow.StateCodeGenerated, GeneratedCode: 5}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Reset(3); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	got, ok, _ := m.Get(3)
	if !ok {
		t.Fatal("session missing after reset")
	}
	if got.State != flow.StateChannelCheck || got.GeneratedCode != 0 {
		t.Fatalf("unexpected session after reset: %+v", got)
	}
}

func TestUpdateErrorLeavesSession(t *testing.T) {
	m := NewMemory()
	if err := m.Put(9, flow.Session{State: flow.StateMainMenu}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, err := m.Update(9, func(s flow.Session) (flow.Session, error) {
		s.State = flow.StateCodeGenerated
		return s, errBoom
	})
	if err != errBoom {
		t.Fatalf("expected errBoom, got %v", err)
	}
	got, _, _ := m.Get(9)
	if got.State != flow.StateMainMenu {
		t.Fatalf("session mutated despite error: %+v", got)
	}
}

// Concurrent updates for one user must not lose increments.
func TestUpdateSerializesPerUser(t *testing.T) {
	m := NewMemory()
	const workers = 32
	const rounds = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				_, err := m.Update(42, func(s flow.Session) (flow.Session, error) {
					s.GeneratedCode++
					return s, nil
				})
				if err != nil {
					t.Errorf("Update: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, _, _ := m.Get(42)
	if got.GeneratedCode != workers*rounds {
		t.Fatalf("lost updates: got %d, want %d", got.GeneratedCode, workers*rounds)
	}
}

func TestUpdateIndependentAcrossUsers(t *testing.T) {
	m := NewMemory()
	release := make(chan struct{})
	entered := make(chan struct{})

	go func() {
		m.Update(1, func(s flow.Session) (flow.Session, error) {
			close(entered)
			<-release
			return s, nil
		})
	}()

	<-entered
	done := make(chan struct{})
	go func() {
		m.Update(2, func(s flow.Session) (flow.Session, error) {
			s.State = flow.StateMainMenu
			return s, nil
		})
		close(done)
	}()

	// User 2 must complete while user 1's update is still held.
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("update for user 2 blocked behind user 1")
	}
	close(release)
}

var errBoom = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }
