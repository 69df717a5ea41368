package flow_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/promokod/promobot/bot/flow"
	"github.com/promokod/promobot/bot/session"
)

type fakeChecker struct {
	member map[string]bool
	err    error
	calls  int
}

func (f *fakeChecker) Member(ctx context.Context, userID int64, channelID string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.member[channelID], nil
}

func testConfig() flow.Config {
	return flow.Config{
		Channels: []flow.Channel{
			{Name: "News", JoinURL: "https://t.me/promonews", ChatID: "@promonews"},
			{Name: "Chat", JoinURL: "https://t.me/promochat", ChatID: "@promochat"},
		},
		Apps: []flow.App{
			{ID: "app_1", Name: "Alpha", Info: "Alpha info"},
			{ID: "app_2", Name: "Beta", Info: "Beta info"},
			{ID: "app_3", Name: "Gamma", Info: "Gamma info"},
			{ID: "app_4", Name: "Delta", Info: "Delta info"},
		},
		Texts: flow.Texts{
			ChannelPrompt:  "Join the channels",
			NotSubscribed:  "Not subscribed yet",
			MainMenu:       "Pick an app",
			Help:           "Help text",
			AskUserID:      "Send your ID",
			Congratulation: "Well done",
			CodeResult:     "Your code: %d",
			CheckButton:    "Check",
			NextButton:     "Next",
			GenerateButton: "Generate",
			BackButton:     "Back",
			HelpButton:     "Help",
		},
		CheckTimeout: time.Second,
	}
}

func newEngine(t *testing.T, checker flow.Checker, opts ...flow.Option) (*flow.Engine, *session.Memory) {
	t.Helper()
	store := session.NewMemory()
	eng, err := flow.NewEngine(testConfig(), store, checker, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng, store
}

func mustState(t *testing.T, store *session.Memory, userID int64, want flow.State) flow.Session {
	t.Helper()
	s, ok, err := store.Get(userID)
	if err != nil || !ok {
		t.Fatalf("session missing: ok=%v err=%v", ok, err)
	}
	if s.State != want {
		t.Fatalf("state = %s, want %s", s.State, want)
	}
	return s
}

func handle(t *testing.T, eng *flow.Engine, ev flow.Event) flow.Response {
	t.Helper()
	resp, err := eng.HandleEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	return resp
}

func start(t *testing.T, eng *flow.Engine, userID int64) flow.Response {
	t.Helper()
	return handle(t, eng, flow.Event{UserID: userID, Kind: flow.KindCommand, Action: flow.CommandStart})
}

func press(t *testing.T, eng *flow.Engine, userID int64, action, payload string) flow.Response {
	t.Helper()
	return handle(t, eng, flow.Event{UserID: userID, Kind: flow.KindButton, Action: action, Payload: payload})
}

// toMenu walks a fresh user through the gate into the main menu.
func toMenu(t *testing.T, eng *flow.Engine, userID int64) {
	t.Helper()
	start(t, eng, userID)
	press(t, eng, userID, flow.ActionCheckSubscription, "")
}

func allMemberChecker() *fakeChecker {
	return &fakeChecker{member: map[string]bool{"@promonews": true, "@promochat": true}}
}

func TestStartCreatesChannelCheck(t *testing.T) {
	eng, store := newEngine(t, allMemberChecker())

	resp := start(t, eng, 1)

	mustState(t, store, 1, flow.StateChannelCheck)
	if resp.Text != "Join the channels" {
		t.Fatalf("text = %q", resp.Text)
	}
	// Two join links plus the shared Check control.
	if len(resp.Controls) != 3 {
		t.Fatalf("controls = %d, want 3", len(resp.Controls))
	}
	if resp.Controls[0].URL == "" || resp.Controls[1].URL == "" {
		t.Fatal("channel controls must carry join links")
	}
	last := resp.Controls[2]
	if last.Action != flow.ActionCheckSubscription || last.Label != "Check" {
		t.Fatalf("check control = %+v", last)
	}
}

func TestCheckAllSubscribed(t *testing.T) {
	checker := allMemberChecker()
	eng, store := newEngine(t, checker)
	start(t, eng, 1)

	resp := press(t, eng, 1, flow.ActionCheckSubscription, "")

	mustState(t, store, 1, flow.StateMainMenu)
	if checker.calls != 2 {
		t.Fatalf("checker calls = %d, want one per channel", checker.calls)
	}
	// Four app controls plus Help.
	if len(resp.Controls) != 5 {
		t.Fatalf("controls = %d, want 5", len(resp.Controls))
	}
	for i := 0; i < 4; i++ {
		if resp.Controls[i].Action != flow.ActionSelectApp {
			t.Fatalf("control %d = %+v", i, resp.Controls[i])
		}
	}
	if resp.Controls[4].Action != flow.ActionHelp {
		t.Fatalf("last control = %+v", resp.Controls[4])
	}
}

func TestCheckMissingChannel(t *testing.T) {
	checker := &fakeChecker{member: map[string]bool{"@promonews": true}}
	eng, store := newEngine(t, checker)
	start(t, eng, 1)

	resp := press(t, eng, 1, flow.ActionCheckSubscription, "")

	mustState(t, store, 1, flow.StateChannelCheck)
	if resp.Notice != "Not subscribed yet" {
		t.Fatalf("notice = %q", resp.Notice)
	}
	if len(resp.Controls) != 3 {
		t.Fatalf("controls = %d, want channel list again", len(resp.Controls))
	}
}

func TestCheckerErrorTreatedAsNotSubscribed(t *testing.T) {
	checker := &fakeChecker{err: errors.New("api down")}
	eng, store := newEngine(t, checker)
	start(t, eng, 1)

	resp := press(t, eng, 1, flow.ActionCheckSubscription, "")

	mustState(t, store, 1, flow.StateChannelCheck)
	if resp.Notice == "" {
		t.Fatal("expected not-subscribed notice")
	}
}

func TestSelectApp(t *testing.T) {
	eng, store := newEngine(t, allMemberChecker())
	toMenu(t, eng, 1)

	resp := press(t, eng, 1, flow.ActionSelectApp, "app_2")

	s := mustState(t, store, 1, flow.StateAppInfo)
	if s.SelectedApp != "app_2" {
		t.Fatalf("selected app = %q", s.SelectedApp)
	}
	if resp.Text != "Beta info" {
		t.Fatalf("text = %q", resp.Text)
	}
	if len(resp.Controls) != 2 ||
		resp.Controls[0].Action != flow.ActionNextStep ||
		resp.Controls[1].Action != flow.ActionBackToMain {
		t.Fatalf("controls = %+v", resp.Controls)
	}
}

func TestUnknownAppIgnored(t *testing.T) {
	eng, store := newEngine(t, allMemberChecker())
	toMenu(t, eng, 1)

	resp := press(t, eng, 1, flow.ActionSelectApp, "app_99")

	mustState(t, store, 1, flow.StateMainMenu)
	if resp.Text != "Pick an app" {
		t.Fatalf("text = %q, want menu re-emitted", resp.Text)
	}
}

func TestHelpDoesNotChangeState(t *testing.T) {
	eng, store := newEngine(t, allMemberChecker())
	toMenu(t, eng, 1)

	resp := press(t, eng, 1, flow.ActionHelp, "")

	mustState(t, store, 1, flow.StateMainMenu)
	if resp.Text != "Help text" {
		t.Fatalf("text = %q", resp.Text)
	}
}

func TestWhitespaceIDReprompts(t *testing.T) {
	eng, store := newEngine(t, allMemberChecker())
	toMenu(t, eng, 1)
	press(t, eng, 1, flow.ActionSelectApp, "app_1")
	press(t, eng, 1, flow.ActionNextStep, "")

	resp := handle(t, eng, flow.Event{UserID: 1, Kind: flow.KindText, Text: "   "})

	s := mustState(t, store, 1, flow.StateAwaitingUserID)
	if s.EnteredUserID != "" {
		t.Fatalf("entered id = %q, want unset", s.EnteredUserID)
	}
	if resp.Text != "Send your ID" {
		t.Fatalf("text = %q, want prompt re-emitted", resp.Text)
	}
}

func TestIDAccepted(t *testing.T) {
	eng, store := newEngine(t, allMemberChecker())
	toMenu(t, eng, 1)
	press(t, eng, 1, flow.ActionSelectApp, "app_1")
	press(t, eng, 1, flow.ActionNextStep, "")

	resp := handle(t, eng, flow.Event{UserID: 1, Kind: flow.KindText, Text: "  48291  "})

	s := mustState(t, store, 1, flow.StateCongratulation)
	if s.EnteredUserID != "48291" {
		t.Fatalf("entered id = %q", s.EnteredUserID)
	}
	if resp.Text != "Well done" {
		t.Fatalf("text = %q", resp.Text)
	}
}

func TestGenerateTwice(t *testing.T) {
	eng, store := newEngine(t, allMemberChecker())
	toMenu(t, eng, 1)
	press(t, eng, 1, flow.ActionSelectApp, "app_3")
	press(t, eng, 1, flow.ActionNextStep, "")
	handle(t, eng, flow.Event{UserID: 1, Kind: flow.KindText, Text: "777"})

	for i := 0; i < 2; i++ {
		resp := press(t, eng, 1, flow.ActionGenerateCode, "")
		s := mustState(t, store, 1, flow.StateCodeGenerated)
		if s.GeneratedCode < 1 || s.GeneratedCode > 10 {
			t.Fatalf("code = %d, want in [1,10]", s.GeneratedCode)
		}
		if !strings.Contains(resp.Text, "Your code:") {
			t.Fatalf("text = %q", resp.Text)
		}
	}
}

func TestCodeRange(t *testing.T) {
	draws := 0
	eng, store := newEngine(t, allMemberChecker(), flow.WithRand(func(n int) int {
		if n != 10 {
			panic("unexpected draw bound")
		}
		draws++
		return draws % n
	}))
	toMenu(t, eng, 1)
	press(t, eng, 1, flow.ActionSelectApp, "app_1")
	press(t, eng, 1, flow.ActionNextStep, "")
	handle(t, eng, flow.Event{UserID: 1, Kind: flow.KindText, Text: "1"})

	seen := make(map[int]bool)
	for i := 0; i < 20; i++ {
		press(t, eng, 1, flow.ActionGenerateCode, "")
		s, _, _ := store.Get(1)
		if s.GeneratedCode < 1 || s.GeneratedCode > 10 {
			t.Fatalf("code = %d out of range", s.GeneratedCode)
		}
		seen[s.GeneratedCode] = true
	}
	if len(seen) != 10 {
		t.Fatalf("cycling draw should cover all 10 values, saw %d", len(seen))
	}
}

func TestBackClearsTransientsFromEveryState(t *testing.T) {
	eng, store := newEngine(t, allMemberChecker())

	advance := map[string]func(userID int64){
		"app_info": func(id int64) {
			press(t, eng, id, flow.ActionSelectApp, "app_1")
		},
		"awaiting_user_id": func(id int64) {
			press(t, eng, id, flow.ActionSelectApp, "app_1")
			press(t, eng, id, flow.ActionNextStep, "")
		},
		"congratulation": func(id int64) {
			press(t, eng, id, flow.ActionSelectApp, "app_1")
			press(t, eng, id, flow.ActionNextStep, "")
			handle(t, eng, flow.Event{UserID: id, Kind: flow.KindText, Text: "5"})
		},
		"code_generated": func(id int64) {
			press(t, eng, id, flow.ActionSelectApp, "app_1")
			press(t, eng, id, flow.ActionNextStep, "")
			handle(t, eng, flow.Event{UserID: id, Kind: flow.KindText, Text: "5"})
			press(t, eng, id, flow.ActionGenerateCode, "")
		},
	}

	userID := int64(100)
	for name, setup := range advance {
		userID++
		toMenu(t, eng, userID)
		setup(userID)

		// Repeated presses stay idempotent.
		for i := 0; i < 3; i++ {
			press(t, eng, userID, flow.ActionBackToMain, "")
			s := mustState(t, store, userID, flow.StateMainMenu)
			if s.SelectedApp != "" || s.EnteredUserID != "" || s.GeneratedCode != 0 {
				t.Fatalf("%s: transient fields survived back: %+v", name, s)
			}
		}
	}
}

func TestBackCannotSkipGate(t *testing.T) {
	eng, store := newEngine(t, allMemberChecker())
	start(t, eng, 1)

	resp := press(t, eng, 1, flow.ActionBackToMain, "")

	mustState(t, store, 1, flow.StateChannelCheck)
	if resp.Text != "Join the channels" {
		t.Fatalf("text = %q", resp.Text)
	}
}

func TestRestartRerunsGate(t *testing.T) {
	checker := allMemberChecker()
	eng, store := newEngine(t, checker)
	toMenu(t, eng, 1)
	press(t, eng, 1, flow.ActionSelectApp, "app_4")

	start(t, eng, 1)

	s := mustState(t, store, 1, flow.StateChannelCheck)
	if s.SelectedApp != "" {
		t.Fatalf("restart kept selected app %q", s.SelectedApp)
	}
}

func TestInvalidTransitionIgnored(t *testing.T) {
	eng, store := newEngine(t, allMemberChecker())
	toMenu(t, eng, 1)

	// Generate is not a menu action.
	resp := press(t, eng, 1, flow.ActionGenerateCode, "")

	mustState(t, store, 1, flow.StateMainMenu)
	if resp.Text != "Pick an app" {
		t.Fatalf("text = %q, want menu re-emitted", resp.Text)
	}
}

func TestInProgress(t *testing.T) {
	eng, _ := newEngine(t, allMemberChecker())
	if eng.InProgress(1) {
		t.Fatal("unknown user must not be in progress")
	}
	toMenu(t, eng, 1)
	if eng.InProgress(1) {
		t.Fatal("menu state is not a text step")
	}
	press(t, eng, 1, flow.ActionSelectApp, "app_1")
	press(t, eng, 1, flow.ActionNextStep, "")
	if !eng.InProgress(1) {
		t.Fatal("awaiting id must capture text")
	}
}

func TestTransitionHook(t *testing.T) {
	type hop struct{ from, to flow.State }
	var hops []hop
	eng, _ := newEngine(t, allMemberChecker(), flow.WithTransitionHook(
		func(ctx context.Context, userID int64, from, to flow.State) {
			hops = append(hops, hop{from, to})
		}))

	toMenu(t, eng, 1)
	press(t, eng, 1, flow.ActionHelp, "")

	want := []hop{{flow.StateChannelCheck, flow.StateMainMenu}}
	if len(hops) != len(want) || hops[0] != want[0] {
		t.Fatalf("hops = %+v, want %+v", hops, want)
	}
}

func TestNewEngineValidation(t *testing.T) {
	store := session.NewMemory()

	cfg := testConfig()
	cfg.Channels = nil
	if _, err := flow.NewEngine(cfg, store, allMemberChecker()); err == nil {
		t.Fatal("expected error for zero channels")
	}

	cfg = testConfig()
	cfg.Apps = cfg.Apps[:3]
	if _, err := flow.NewEngine(cfg, store, allMemberChecker()); err == nil {
		t.Fatal("expected error for short app list")
	}

	cfg = testConfig()
	cfg.Apps[1].ID = cfg.Apps[0].ID
	if _, err := flow.NewEngine(cfg, store, allMemberChecker()); err == nil {
		t.Fatal("expected error for duplicate app id")
	}
}
