package ipc

import (
	"errors"
	"fmt"
	"strings"
)

// Action is the verb of a control command.
type Action string

const (
	ActionActivate     Action = "activate"
	ActionActivateOnly Action = "activate-only"
	ActionMinimize     Action = "minimize"
	ActionMaximize     Action = "maximize"
	ActionUnmaximize   Action = "unmaximize"
	ActionClose        Action = "close"
)

// MaxLineLength bounds one command line, terminator included.
const MaxLineLength = 4096

var (
	ErrMalformedCommand = errors.New("malformed command")
	ErrUnknownAction    = errors.New("unknown action")
	ErrEmptyTitle       = errors.New("empty title")
)

// Actions lists every action in the order they are documented.
func Actions() []Action {
	return []Action{ActionActivate, ActionActivateOnly, ActionMinimize, ActionMaximize, ActionUnmaximize, ActionClose}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionActivate, ActionActivateOnly, ActionMinimize, ActionMaximize, ActionUnmaximize, ActionClose:
		return true
	}
	return false
}

// Flag returns the CLI flag that selects a, e.g. "--activate-only".
func (a Action) Flag() string {
	return "--" + string(a)
}

// ActionFromFlag maps a CLI flag back to its action.
func ActionFromFlag(flag string) (Action, bool) {
	if !strings.HasPrefix(flag, "--") {
		return "", false
	}
	a := Action(strings.TrimPrefix(flag, "--"))
	return a, a.Valid()
}

// Command is one request on the control socket:
//
//	command ::= action SP title
type Command struct {
	Action Action
	Title  string
}

// String renders the wire form without a line terminator.
func (c Command) String() string {
	return string(c.Action) + " " + c.Title
}

// ParseCommand parses one line. Surrounding whitespace and the line
// terminator are ignored, the action is matched case-insensitively and the
// title is everything after the first space, trimmed.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	sp := strings.IndexByte(line, ' ')
	if sp <= 0 {
		return Command{}, fmt.Errorf("%w: %q", ErrMalformedCommand, line)
	}

	action := Action(strings.ToLower(line[:sp]))
	if !action.Valid() {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownAction, line[:sp])
	}
	title := strings.TrimSpace(line[sp+1:])
	if title == "" {
		return Command{}, ErrEmptyTitle
	}
	return Command{Action: action, Title: title}, nil
}
