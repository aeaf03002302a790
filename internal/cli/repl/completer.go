package repl

import (
	"sort"
	"strings"
)

var commandHelp = map[string]string{
	"login":   "Log in with e-mail and password",
	"signup":  "Create an account",
	"logout":  "End the current session",
	"status":  "Show the session state",
	"dismiss": "Clear the last error",
	"history": "Show command history",
	"help":    "Show this help",
	"exit":    "Leave interactive mode",
	"quit":    "Leave interactive mode",
}

// Completer suggests commands by prefix.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer over the REPL commands.
func NewCompleter() *Completer {
	cmds := make([]string, 0, len(commandHelp))
	for name := range commandHelp {
		cmds = append(cmds, name)
	}
	sort.Strings(cmds)
	return &Completer{commands: cmds}
}

// Commands returns every command, sorted.
func (c *Completer) Commands() []string {
	return append([]string(nil), c.commands...)
}

// Complete returns the commands starting with prefix, sorted. An empty
// prefix matches nothing.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil
	}
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
