// Package protocol defines the newline-framed text protocol spoken on the
// chat port: the commands a client may send and the replies it receives.
package protocol

// Command is one parsed client line.
type Command interface {
	isCommand()
}

// Login is "LOGIN|user|password".
type Login struct {
	Username string
	Password string
}

// ChangePassword is "CHANGE_PASS|user|old|new".
type ChangePassword struct {
	Username    string
	OldPassword string
	NewPassword string
}

// Private is "PRIVATE|recipient|text".
type Private struct {
	Recipient string
	Text      string
}

type AddFriend struct{ Target string }

type ListPending struct{}

// RespondPending is "yes <n>" or "no <n>"; Index is 1-based.
type RespondPending struct {
	Index  int
	Accept bool
}

type ListFriends struct{}

type Clear struct{ Friend string }

type ClearUnread struct{ Friend string }

// EnableAuto is "/Auto friend [minutes]". Minutes is zero when no usable
// duration was given, which means the session runs until disabled.
type EnableAuto struct {
	Friend   string
	Minutes  int
	Duration string
}

type DisableAuto struct{ Friend string }

type Summarize struct{ Friend string }

type Helper struct {
	Friend string
	Prompt string
}

type Playbook struct{ Friend string }

// FileMania is "/FILEMANIA|action|file_url".
type FileMania struct {
	Action  string
	FileURL string
}

type Help struct{}

// Unknown is any line that matches no command.
type Unknown struct{ Raw string }

// Malformed is a recognised command with bad arguments. Reply is the text to
// send back. Auth marks LOGIN/CHANGE_PASS lines, which are answered before
// the session is active.
type Malformed struct {
	Reply string
	Auth  bool
	// PendingReply marks a yes/no answer, which is only valid right after
	// the pending list was shown.
	PendingReply bool
}

func (Login) isCommand()          {}
func (ChangePassword) isCommand() {}
func (Private) isCommand()        {}
func (AddFriend) isCommand()      {}
func (ListPending) isCommand()    {}
func (RespondPending) isCommand() {}
func (ListFriends) isCommand()    {}
func (Clear) isCommand()          {}
func (ClearUnread) isCommand()    {}
func (EnableAuto) isCommand()     {}
func (DisableAuto) isCommand()    {}
func (Summarize) isCommand()      {}
func (Helper) isCommand()         {}
func (Playbook) isCommand()       {}
func (FileMania) isCommand()      {}
func (Help) isCommand()           {}
func (Unknown) isCommand()        {}
func (Malformed) isCommand()      {}
