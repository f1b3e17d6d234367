package protocol

import (
	"fmt"
	"strings"
)

const (
	LoginOK      = "LOGIN_OK"
	FirstLoginOK = "FIRST_LOGIN|OK"
	ChangeOK     = "CHANGE_OK"

	ReasonInvalidCredentials = "Invalid credentials"
	ReasonError              = "Error"
	ReasonAlreadyLoggedIn    = "Already logged in"
	ReasonIncorrectTemp      = "Incorrect temp password"
	ReasonFormat             = "Format error"

	UnknownCommand   = "Unknown command. Type /help for available commands."
	NoPending        = "No pending friend requests."
	IndexOutOfRange  = "Index out of range."
	HelperProcessing = "Processing helper request, please wait..."
	PlaybookOK       = "Playbook generated successfully! Check your Drive."
)

// HelpText lists the commands available in an active session.
const HelpText = `/addfriend <name>      send friend request
/pending               view pending requests
yes <num> / no <num>   respond to a pending request
/friends               view friends list
/clear <friend>        clear chat history for both sides
/clearunread <friend>  mark messages from friend as read
/summarize <friend>    summarise the recent chat
/helper <f> <prompt>   AI assistance based on chat context
/playbook <friend>     generate a playbook from the chat
/Auto <friend> [15m]   enable AutoAI replies
/noAuto <friend>       disable AutoAI replies
PRIVATE|<friend>|<msg> send a private message`

func LoginFail(reason string) string  { return "LOGIN_FAIL|" + reason }
func ChangeFail(reason string) string { return "CHANGE_FAIL|" + reason }

func Welcome(user string) string {
	return fmt.Sprintf("Welcome %s!\nConnected. Type /help for commands.", user)
}

func NotOnline(user string) string       { return user + " is not online currently." }
func RequestSent(user string) string     { return "Friend request sent to " + user + "." }
func RequestReceived(from string) string { return from + " wants to be your friend." }
func NowFriends(user string) string      { return "You are now friends with " + user + "." }
func RequestAccepted(by string) string   { return by + " accepted your friend request." }
func RequestRejected(user string) string { return "You rejected " + user + "'s friend request." }
func NotFriend(user string) string       { return user + " is not your friend." }
func ChatCleared(user string) string     { return "Chat with " + user + " cleared for both sides." }

// PendingList renders the numbered list shown by /pending.
func PendingList(requesters []string) string {
	if len(requesters) == 0 {
		return NoPending
	}
	var b strings.Builder
	b.WriteString("Pending friend requests:")
	for i, r := range requesters {
		fmt.Fprintf(&b, "\n%d. %s", i+1, r)
	}
	return b.String()
}

// FriendStatus is one row of the friends list.
type FriendStatus struct {
	Name      string
	Online    bool
	HasUnread bool
}

// FriendList renders the reply to /friends. Online friends are marked with a
// flame and friends with unread messages with a speech bubble.
func FriendList(friends []FriendStatus) string {
	var b strings.Builder
	b.WriteString("Your friends:")
	for _, f := range friends {
		b.WriteString("\n")
		b.WriteString(f.Name)
		if f.Online {
			b.WriteString(" 🔥")
		}
		if f.HasUnread {
			b.WriteString(" 🗣️")
		}
	}
	return b.String()
}

func AutoEnabled(friend, duration string) string {
	if duration == "" {
		return "AutoAI enabled for " + friend + " (until turned off)"
	}
	return "AutoAI enabled for " + friend + " for " + duration
}

func AutoDisabled(friend string) string  { return "AutoAI disabled for " + friend + "." }
func NoAutoSession(friend string) string { return "No active AutoAI session with " + friend + "." }

// AutoAIError is the notice sent to the delegating user when a relay fails.
func AutoAIError(err error) string { return fmt.Sprintf("(AutoAI error: %v)", err) }

func NothingToSummarize(friend string) string {
	return "No recent messages with " + friend + " to summarize."
}
func Summary(friend, text string) string { return "Summary of chat with " + friend + ":\n\n" + text }
func SummaryError(err error) string      { return fmt.Sprintf("Error generating summary: %v", err) }

func HelperResult(friend, prompt, text string) string {
	short := prompt
	if r := []rune(prompt); len(r) > 20 {
		short = string(r[:20])
	}
	return fmt.Sprintf("Helper Response for %s on '%s...':\n\n%s", friend, short, text)
}
func HelperError(err error) string { return fmt.Sprintf("Helper Error: %v", err) }

func NothingForPlaybook(friend string) string {
	return "No recent messages with " + friend + " to include in playbook."
}
func PlaybookStatus(code int) string { return fmt.Sprintf("Workflow error (HTTP %d).", code) }
func PlaybookError(err error) string { return fmt.Sprintf("Error calling PlayBook webhook: %v", err) }

func FileManiaResult(text string) string { return "FileMania Result:\n\n" + text }
func FileManiaError(action string, err error) string {
	return fmt.Sprintf("FileMania (%s) Error:\n%v", action, err)
}
