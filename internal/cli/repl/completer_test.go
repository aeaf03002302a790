package repl

import (
	"reflect"
	"sort"
	"testing"
)

func TestCompleter_Complete(t *testing.T) {
	c := NewCompleter()

	tests := []struct {
		prefix string
		want   []string
	}{
		{"lo", []string{"login", "logout"}},
		{"LOGI", []string{"login"}},
		{"s", []string{"signup", "status"}},
		{"h", []string{"help", "history"}},
		{"x", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got := c.Complete(tt.prefix)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Complete(%q) = %v, want %v", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestCompleter_Commands(t *testing.T) {
	cmds := NewCompleter().Commands()
	if !sort.StringsAreSorted(cmds) {
		t.Errorf("commands not sorted: %v", cmds)
	}
	for _, name := range cmds {
		if commandHelp[name] == "" {
			t.Errorf("command %q has no help text", name)
		}
	}
	if len(cmds) != len(commandHelp) {
		t.Errorf("got %d commands, want %d", len(cmds), len(commandHelp))
	}
}
