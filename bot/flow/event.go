package flow

// EventKind classifies an incoming update.
type EventKind string

const (
	KindCommand EventKind = "command"
	KindButton  EventKind = "button"
	KindText    EventKind = "text"
)

// Button actions understood by the engine. Payload-carrying actions
// (app selection) put the payload in Event.Payload.
const (
	ActionCheckSubscription = "check_subscription"
	ActionSelectApp         = "app"
	ActionNextStep          = "next_step"
	ActionGenerateCode      = "generate_code"
	ActionBackToMain        = "back_to_main"
	ActionHelp              = "help"
)

// Commands that reach the engine.
const (
	CommandStart = "start"
	CommandHelp  = "help"
)

// Event is one incoming update from the transport, already reduced to
// the fields the engine dispatches on.
type Event struct {
	UserID  int64
	Kind    EventKind
	Action  string
	Payload string
	Text    string
}

// Control is a clickable affordance in the outbound response. URL
// controls open a link; all others carry a callback action.
type Control struct {
	Label   string
	Action  string
	Payload string
	URL     string
}

// Response is what the engine wants shown to the user. Controls are
// rendered in order, Rows wide per keyboard row (0 means one per row).
// Notice, when set, is prepended to Text by the renderer.
type Response struct {
	Text     string
	Notice   string
	Controls []Control
	Rows     int
}

// Empty reports whether the response carries nothing to send.
func (r Response) Empty() bool {
	return r.Text == "" && r.Notice == "" && len(r.Controls) == 0
}
