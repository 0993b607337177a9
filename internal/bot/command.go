// Package bot maps chat commands onto category tree operations and turns
// their outcome into reply text or an attached workbook.
package bot

import (
	"strings"
)

// Command tokens, case sensitive, slash included
const (
	TokenViewTree      = "/viewTree"
	TokenAddElement    = "/addElement"
	TokenRemoveElement = "/removeElement"
	TokenHelp          = "/help"
	TokenDownload      = "/download"
	TokenUpload        = "/upload"
	TokenStart         = "/start"
)

// CommandKind identifies a parsed command
type CommandKind int

const (
	KindUnknown CommandKind = iota
	KindViewTree
	KindAddRoot
	KindAddChild
	KindRemove
	KindHelp
	KindDownload
	KindUpload
)

func (k CommandKind) String() string {
	switch k {
	case KindViewTree:
		return "viewTree"
	case KindAddRoot:
		return "addRoot"
	case KindAddChild:
		return "addChild"
	case KindRemove:
		return "remove"
	case KindHelp:
		return "help"
	case KindDownload:
		return "download"
	case KindUpload:
		return "upload"
	default:
		return "unknown"
	}
}

// Command is a validated command. Name and Parent are only set for the
// kinds that take them.
type Command struct {
	Kind   CommandKind
	Name   string
	Parent string
}

// UsageError reports a command called with the wrong shape. Its message is
// shown to the user as is.
type UsageError struct {
	Token string
	Usage string
}

func (e *UsageError) Error() string {
	return e.Usage
}

// SplitText separates a message into the command token and its arguments.
// Arguments are split on any run of whitespace. A "@botname" suffix on the
// token, as sent by group chats, is dropped.
func SplitText(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	token := fields[0]
	if strings.HasPrefix(token, "/") {
		if at := strings.IndexByte(token, '@'); at > 0 {
			token = token[:at]
		}
	}
	return token, fields[1:]
}

// Parse validates the argument shape for token. An unrecognised token
// yields KindUnknown and no error.
func Parse(token string, args []string) (Command, error) {
	switch token {
	case TokenViewTree:
		if len(args) != 0 {
			return Command{}, &UsageError{Token: token, Usage: msgViewTreeUsage}
		}
		return Command{Kind: KindViewTree}, nil
	case TokenAddElement:
		switch len(args) {
		case 1:
			return Command{Kind: KindAddRoot, Name: args[0]}, nil
		case 2:
			return Command{Kind: KindAddChild, Parent: args[0], Name: args[1]}, nil
		default:
			return Command{}, &UsageError{Token: token, Usage: msgAddUsage}
		}
	case TokenRemoveElement:
		if len(args) != 1 {
			return Command{}, &UsageError{Token: token, Usage: msgRemoveUsage}
		}
		return Command{Kind: KindRemove, Name: args[0]}, nil
	case TokenHelp, TokenStart:
		if len(args) != 0 {
			return Command{}, &UsageError{Token: token, Usage: msgHelpUsage}
		}
		return Command{Kind: KindHelp}, nil
	case TokenDownload:
		if len(args) != 0 {
			return Command{}, &UsageError{Token: token, Usage: msgDownloadUsage}
		}
		return Command{Kind: KindDownload}, nil
	case TokenUpload:
		if len(args) != 0 {
			return Command{}, &UsageError{Token: token, Usage: msgUploadUsage}
		}
		return Command{Kind: KindUpload}, nil
	default:
		return Command{Kind: KindUnknown}, nil
	}
}
