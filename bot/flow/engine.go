package flow

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/promokod/promobot/core/logger"
)

// Store keeps one session per user. Operations for a given user are
// linearizable with respect to each other; operations for different
// users are independent. Update calls fn with the current session (the
// zero value when the user is unknown) and persists the returned one.
type Store interface {
	Get(userID int64) (Session, bool, error)
	Put(userID int64, s Session) error
	Reset(userID int64) error
	Update(userID int64, fn func(Session) (Session, error)) (Session, error)
}

// Checker answers whether a user is currently a member of a channel.
// Errors and timeouts are treated by the engine as "not a member".
type Checker interface {
	Member(ctx context.Context, userID int64, channelID string) (bool, error)
}

// Channel is one gated channel the user must join.
type Channel struct {
	Name    string
	JoinURL string
	ChatID  string
}

// App is one promoted application shown in the main menu.
type App struct {
	ID   string
	Name string
	Info string
}

// Texts holds every message and button label the engine emits.
type Texts struct {
	ChannelPrompt  string
	NotSubscribed  string
	MainMenu       string
	Help           string
	AskUserID      string
	Congratulation string
	CodeResult     string

	CheckButton    string
	NextButton     string
	GenerateButton string
	BackButton     string
	HelpButton     string
}

// Config is the immutable configuration the engine runs against.
type Config struct {
	Channels     []Channel
	Apps         []App
	Texts        Texts
	CheckTimeout time.Duration
}

const (
	appCount            = 4
	defaultCheckTimeout = 5 * time.Second
)

// TransitionHook is called after every committed state change.
type TransitionHook func(ctx context.Context, userID int64, from, to State)

// Option configures optional engine behaviour.
type Option func(*Engine)

// WithRand replaces the code draw source. fn must return a uniform
// value in [0, n).
func WithRand(fn func(n int) int) Option {
	return func(e *Engine) { e.intN = fn }
}

// WithTransitionHook registers fn to observe committed transitions.
func WithTransitionHook(fn TransitionHook) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, fn) }
}

// Engine computes state transitions from incoming events. It is
// stateless between invocations; all per-user state lives in the Store.
type Engine struct {
	cfg     Config
	store   Store
	checker Checker
	intN    func(n int) int
	hooks   []TransitionHook
	apps    map[string]App
}

// NewEngine validates the configuration and builds the engine. Zero
// channels or an app list of the wrong size is a startup failure.
func NewEngine(cfg Config, store Store, checker Checker, opts ...Option) (*Engine, error) {
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("flow: no channels configured")
	}
	if len(cfg.Apps) != appCount {
		return nil, fmt.Errorf("flow: expected %d apps, got %d", appCount, len(cfg.Apps))
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = defaultCheckTimeout
	}
	apps := make(map[string]App, len(cfg.Apps))
	for _, a := range cfg.Apps {
		if a.ID == "" {
			return nil, fmt.Errorf("flow: app %q has empty id", a.Name)
		}
		if _, dup := apps[a.ID]; dup {
			return nil, fmt.Errorf("flow: duplicate app id %q", a.ID)
		}
		apps[a.ID] = a
	}
	e := &Engine{
		cfg:     cfg,
		store:   store,
		checker: checker,
		intN:    rand.IntN,
		apps:    apps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// InProgress reports whether the user's next free-text message belongs
// to the flow rather than to command routing.
func (e *Engine) InProgress(userID int64) bool {
	s, ok, err := e.store.Get(userID)
	return err == nil && ok && s.State == StateAwaitingUserID
}

// HandleEvent runs one event through the transition table and returns
// the response to render. The session write and the response are
// computed together under the store's per-user serialization.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) (Response, error) {
	var resp Response
	_, err := e.store.Update(ev.UserID, func(s Session) (Session, error) {
		if s.State == "" {
			s = NewSession()
		}
		from := s.State
		next, r := e.dispatch(ctx, s, ev)
		resp = r
		if next.State != from {
			logger.Debug(ctx, "flow", "flow.transition",
				slog.Int64("user_id", ev.UserID),
				slog.String("from", string(from)),
				slog.String("to", string(next.State)))
			for _, hook := range e.hooks {
				hook(ctx, ev.UserID, from, next.State)
			}
		}
		return next, nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("flow: update session: %w", err)
	}
	return resp, nil
}

// dispatch is the transition table. Events that match no row leave the
// session untouched and re-emit the current state's prompt.
func (e *Engine) dispatch(ctx context.Context, s Session, ev Event) (Session, Response) {
	switch ev.Kind {
	case KindCommand:
		return e.onCommand(s, ev)
	case KindButton:
		return e.onButton(ctx, s, ev)
	case KindText:
		return e.onText(s, ev)
	}
	return s, e.prompt(s)
}

func (e *Engine) onCommand(s Session, ev Event) (Session, Response) {
	switch ev.Action {
	case CommandStart:
		// Explicit restart re-runs the subscription gate.
		fresh := NewSession()
		return fresh, e.channelPrompt(false)
	case CommandHelp:
		return s, e.helpOverlay()
	}
	return s, e.prompt(s)
}

func (e *Engine) onButton(ctx context.Context, s Session, ev Event) (Session, Response) {
	// A stale Back press must not skip the subscription gate.
	if ev.Action == ActionBackToMain && s.State != StateChannelCheck {
		return s.resetToMenu(), e.menuPrompt()
	}

	switch s.State {
	case StateChannelCheck:
		if ev.Action == ActionCheckSubscription {
			if e.allMember(ctx, ev.UserID) {
				return s.resetToMenu(), e.menuPrompt()
			}
			return s, e.channelPrompt(true)
		}

	case StateMainMenu:
		switch ev.Action {
		case ActionSelectApp:
			app, ok := e.apps[ev.Payload]
			if !ok {
				return s, e.prompt(s)
			}
			s.SelectedApp = app.ID
			s.State = StateAppInfo
			return s, e.appInfoPrompt(app)
		case ActionHelp:
			return s, e.helpOverlay()
		}

	case StateAppInfo:
		if ev.Action == ActionNextStep {
			s.State = StateAwaitingUserID
			return s, e.idPrompt()
		}

	case StateCongratulation:
		if ev.Action == ActionGenerateCode {
			s.State = StateCodeGenerated
			s.GeneratedCode = e.drawCode()
			return s, e.codePrompt(s.GeneratedCode)
		}

	case StateCodeGenerated:
		if ev.Action == ActionGenerateCode {
			s.GeneratedCode = e.drawCode()
			return s, e.codePrompt(s.GeneratedCode)
		}
	}

	return s, e.prompt(s)
}

func (e *Engine) onText(s Session, ev Event) (Session, Response) {
	if s.State != StateAwaitingUserID {
		return s, e.prompt(s)
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return s, e.idPrompt()
	}
	s.EnteredUserID = text
	s.State = StateCongratulation
	return s, e.congratulationPrompt()
}

// allMember checks the user against every configured channel, one
// bounded call per channel. Any error counts as not subscribed.
func (e *Engine) allMember(ctx context.Context, userID int64) bool {
	for _, ch := range e.cfg.Channels {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CheckTimeout)
		member, err := e.checker.Member(callCtx, userID, ch.ChatID)
		cancel()
		if err != nil {
			logger.Warn(ctx, "flow", "flow.check",
				slog.Int64("user_id", userID),
				slog.String("channel", ch.ChatID),
				slog.Any("err", err))
			return false
		}
		if !member {
			logger.Debug(ctx, "flow", "flow.check",
				slog.Int64("user_id", userID),
				slog.String("channel", ch.ChatID),
				slog.Bool("subscribed", false))
			return false
		}
	}
	return true
}

func (e *Engine) drawCode() int {
	return 1 + e.intN(10)
}

// prompt re-emits the message for the session's current state.
func (e *Engine) prompt(s Session) Response {
	switch s.State {
	case StateChannelCheck:
		return e.channelPrompt(false)
	case StateMainMenu:
		return e.menuPrompt()
	case StateAppInfo:
		if app, ok := e.apps[s.SelectedApp]; ok {
			return e.appInfoPrompt(app)
		}
		return e.menuPrompt()
	case StateAwaitingUserID:
		return e.idPrompt()
	case StateCongratulation:
		return e.congratulationPrompt()
	case StateCodeGenerated:
		return e.codePrompt(s.GeneratedCode)
	}
	return e.channelPrompt(false)
}

func (e *Engine) channelPrompt(notSubscribed bool) Response {
	r := Response{Text: e.cfg.Texts.ChannelPrompt, Rows: 1}
	if notSubscribed {
		r.Notice = e.cfg.Texts.NotSubscribed
	}
	for _, ch := range e.cfg.Channels {
		r.Controls = append(r.Controls, Control{Label: ch.Name, URL: ch.JoinURL})
	}
	r.Controls = append(r.Controls, Control{
		Label:  e.cfg.Texts.CheckButton,
		Action: ActionCheckSubscription,
	})
	return r
}

func (e *Engine) menuPrompt() Response {
	r := Response{Text: e.cfg.Texts.MainMenu, Rows: 2}
	for _, app := range e.cfg.Apps {
		r.Controls = append(r.Controls, Control{
			Label:   app.Name,
			Action:  ActionSelectApp,
			Payload: app.ID,
		})
	}
	r.Controls = append(r.Controls, Control{
		Label:  e.cfg.Texts.HelpButton,
		Action: ActionHelp,
	})
	return r
}

func (e *Engine) appInfoPrompt(app App) Response {
	return Response{
		Text: app.Info,
		Rows: 1,
		Controls: []Control{
			{Label: e.cfg.Texts.NextButton, Action: ActionNextStep},
			{Label: e.cfg.Texts.BackButton, Action: ActionBackToMain},
		},
	}
}

func (e *Engine) idPrompt() Response {
	return Response{
		Text: e.cfg.Texts.AskUserID,
		Rows: 1,
		Controls: []Control{
			{Label: e.cfg.Texts.BackButton, Action: ActionBackToMain},
		},
	}
}

func (e *Engine) congratulationPrompt() Response {
	return Response{
		Text: e.cfg.Texts.Congratulation,
		Rows: 1,
		Controls: []Control{
			{Label: e.cfg.Texts.GenerateButton, Action: ActionGenerateCode},
			{Label: e.cfg.Texts.BackButton, Action: ActionBackToMain},
		},
	}
}

func (e *Engine) codePrompt(code int) Response {
	return Response{
		Text: fmt.Sprintf(e.cfg.Texts.CodeResult, code),
		Rows: 1,
		Controls: []Control{
			{Label: e.cfg.Texts.BackButton, Action: ActionBackToMain},
		},
	}
}

func (e *Engine) helpOverlay() Response {
	return Response{
		Text: e.cfg.Texts.Help,
		Rows: 1,
		Controls: []Control{
			{Label: e.cfg.Texts.BackButton, Action: ActionBackToMain},
		},
	}
}
