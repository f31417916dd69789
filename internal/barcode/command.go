package barcode

import "strings"

// Turn tokens handed from the scanning state to the turn state.
const (
	TurnLeft  = "LEFT"
	TurnRight = "RIGHT"
)

// Command is an instruction carried by a barcode or a remote message.
type Command int

const (
	CmdUnknown Command = iota
	CmdLeft
	CmdRight
	CmdStop
	CmdForward
)

func (c Command) String() string {
	switch c {
	case CmdLeft:
		return "LEFT"
	case CmdRight:
		return "RIGHT"
	case CmdStop:
		return "STOP"
	case CmdForward:
		return "FORWARD"
	default:
		return "UNKNOWN"
	}
}

// ParseCommand maps a payload to a command. Full words and the short forms
// S, FWD and GO win; otherwise the first letter decides.
func ParseCommand(s string) Command {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "LEFT":
		return CmdLeft
	case "RIGHT":
		return CmdRight
	case "STOP", "S":
		return CmdStop
	case "FORWARD", "FWD", "GO":
		return CmdForward
	case "":
		return CmdUnknown
	}
	switch s[0] {
	case 'L':
		return CmdLeft
	case 'R':
		return CmdRight
	case 'F':
		return CmdForward
	}
	return CmdUnknown
}

// TurnToken picks the junction turn for a decode result, using def for failed
// decodes and payloads that name no direction.
func TurnToken(r Result, def string) string {
	if !r.Valid {
		return def
	}
	switch ParseCommand(r.Payload) {
	case CmdLeft:
		return TurnLeft
	case CmdRight:
		return TurnRight
	}
	return def
}
