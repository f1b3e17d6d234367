package protocol

import (
	"strconv"
	"strings"
)

// Parse turns one line (without its trailing newline) into a Command.
func Parse(line string) Command {
	line = strings.TrimRight(line, "\r")

	switch {
	case strings.HasPrefix(line, "LOGIN|"):
		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			return Malformed{Reply: LoginFail(ReasonError), Auth: true}
		}
		return Login{Username: parts[1], Password: parts[2]}

	case strings.HasPrefix(line, "CHANGE_PASS|"):
		parts := strings.SplitN(line, "|", 4)
		if len(parts) != 4 {
			return Malformed{Reply: ChangeFail(ReasonFormat), Auth: true}
		}
		return ChangePassword{Username: parts[1], OldPassword: parts[2], NewPassword: parts[3]}

	case strings.HasPrefix(line, "PRIVATE|"):
		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 || parts[1] == "" {
			return Malformed{Reply: "Invalid private message format."}
		}
		return Private{Recipient: parts[1], Text: parts[2]}

	case strings.HasPrefix(line, "/FILEMANIA|"):
		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			return Malformed{Reply: "Invalid FileMania command format."}
		}
		return FileMania{Action: parts[1], FileURL: parts[2]}
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Unknown{Raw: line}
	}

	name := fields[0]
	switch {
	case name == "/Auto":
		return parseAuto(fields)
	case name == "/noAuto":
		if len(fields) < 2 {
			return Malformed{Reply: "Usage: /noAuto <friendName>"}
		}
		return DisableAuto{Friend: fields[1]}
	case name == "/clearunread":
		if len(fields) < 2 {
			return Malformed{}
		}
		return ClearUnread{Friend: fields[1]}
	case name == "/clear":
		if len(fields) < 2 {
			return Malformed{Reply: "Usage: /clear <friendName>"}
		}
		return Clear{Friend: fields[1]}
	case name == "/summarize":
		if len(fields) < 2 {
			return Malformed{Reply: "Usage: /summarize <friend>"}
		}
		return Summarize{Friend: fields[1]}
	case name == "/helper":
		parts := strings.SplitN(strings.TrimSpace(line), " ", 3)
		if len(parts) < 3 || strings.TrimSpace(parts[2]) == "" {
			return Malformed{Reply: "Usage: /helper <friend> <prompt>"}
		}
		return Helper{Friend: strings.TrimSpace(parts[1]), Prompt: strings.TrimSpace(parts[2])}
	case strings.EqualFold(name, "/playbook"):
		if len(fields) < 2 {
			return Malformed{Reply: "Usage: /playbook <friend>"}
		}
		return Playbook{Friend: fields[1]}
	case name == "/addfriend":
		_, target, _ := strings.Cut(strings.TrimSpace(line), " ")
		target = strings.TrimSpace(target)
		if target == "" {
			return Malformed{Reply: "Usage: /addfriend <nickname>"}
		}
		return AddFriend{Target: target}
	case name == "/pending":
		return ListPending{}
	case name == "/friends":
		return ListFriends{}
	case name == "/help":
		return Help{}
	}

	if verb := strings.ToLower(name); verb == "yes" || verb == "no" {
		if len(fields) != 2 {
			return Malformed{Reply: "Usage: yes <num> or no <num>", PendingReply: true}
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return Malformed{Reply: "Invalid index.", PendingReply: true}
		}
		return RespondPending{Index: n, Accept: verb == "yes"}
	}

	return Unknown{Raw: line}
}

func parseAuto(fields []string) Command {
	if len(fields) < 2 {
		return Malformed{Reply: "Usage: /Auto <friendName> [<time_in_minutes>]"}
	}

	cmd := EnableAuto{Friend: fields[1]}
	if len(fields) >= 3 {
		raw := fields[2]
		if n, err := strconv.Atoi(strings.TrimSuffix(raw, "m")); err == nil && n > 0 {
			cmd.Minutes = n
			cmd.Duration = raw
		}
	}
	return cmd
}
