package flow

// State is the user's current position in the conversation.
type State string

const (
	StateChannelCheck   State = "channel_check"
	StateMainMenu       State = "main_menu"
	StateAppInfo        State = "app_info"
	StateAwaitingUserID State = "awaiting_user_id"
	StateCongratulation State = "congratulation"
	StateCodeGenerated  State = "code_generated"
)

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateChannelCheck, StateMainMenu, StateAppInfo,
		StateAwaitingUserID, StateCongratulation, StateCodeGenerated:
		return true
	}
	return false
}

// Session is the per-user conversation record. Transient fields are
// cleared every time the user returns to the main menu.
type Session struct {
	State         State
	SelectedApp   string
	EnteredUserID string
	GeneratedCode int
}

// NewSession returns a fresh session at the start of the gate.
func NewSession() Session {
	return Session{State: StateChannelCheck}
}

// resetToMenu clears all transient fields and lands on the main menu.
func (s Session) resetToMenu() Session {
	return Session{State: StateMainMenu}
}
