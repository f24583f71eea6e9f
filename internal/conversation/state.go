package conversation

// State is a step of the conversation.
type State string

const (
	MainMenu         State = "MAIN_MENU"
	ChooseTheme      State = "CHOOSE_THEME"
	WriteToAdmin     State = "WRITE_TO_ADMIN"
	ApproveAppeal    State = "APPROVE_APPEAL"
	SendPhoneToAdmin State = "SEND_PHONE_TO_ADMIN"
	// Description has no transitions into or out of it.
	Description   State = "DESCRIPTION"
	UserChoice    State = "USER_CHOICE"
	AuthorizeUser State = "AUTHORIZE_USER"
)

func (s State) String() string { return string(s) }
