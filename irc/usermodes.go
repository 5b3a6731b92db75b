package irc

import (
	"fmt"
	"reflect"
	"strings"
)

// UserMode represents the user modes for an IRC client.
type UserMode struct {
	Away       bool `mode:"a" desc:"away"`
	Invisible  bool `mode:"i" desc:"invisible - hidden from /WHO and /NAMES queried from outside the channel"`
	Wallops    bool `mode:"w" desc:"can listen to wallops messages"`
	Registered bool `mode:"r" desc:"registered nick - set by services"`
	Operator   bool `mode:"o" desc:"IRC Operator - set by server"`
	Notice     bool `mode:"s" desc:"server notices for IRCOps"`
	HostHiding bool `mode:"x" desc:"gives you a hidden/cloaked hostname"`
	Bot        bool `mode:"B" desc:"marks you as being a bot"`
	SSL        bool `mode:"z" desc:"indicates you are connected via SSL/TLS - set by server"`
}

// ParseModeString parses an IRC mode string (e.g. "+aw-i") and applies it
// to the UserMode struct. Unknown letters are reported back to the caller
// so MODE handling can offer them to the extended-mode registry.
func (m *UserMode) ParseModeString(modeString string) (unknown []rune) {
	add := true

	for _, ch := range modeString {
		switch ch {
		case '+':
			add = true
		case '-':
			add = false
		default:
			if err := m.setModeByChar(ch, add); err != nil {
				unknown = append(unknown, ch)
			}
		}
	}

	return unknown
}

// ApplyMode applies a single mode change.
func (m *UserMode) ApplyMode(modeChar rune, add bool) error {
	return m.setModeByChar(modeChar, add)
}

// HasMode reports whether a specific mode letter is set.
func (m *UserMode) HasMode(modeChar rune) bool {
	val := reflect.ValueOf(m).Elem()
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		if typ.Field(i).Tag.Get("mode") == string(modeChar) {
			return val.Field(i).Bool()
		}
	}
	return false
}

// setModeByChar sets a mode flag by its tag letter.
func (m *UserMode) setModeByChar(mode rune, value bool) error {
	val := reflect.ValueOf(m).Elem()
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		if typ.Field(i).Tag.Get("mode") == string(mode) {
			field := val.Field(i)
			if field.Kind() == reflect.Bool {
				field.SetBool(value)
				return nil
			}
		}
	}

	return fmt.Errorf("no field found for mode %c", mode)
}

// String returns the compact mode string representation (e.g. "+ow"),
// or the empty string when no mode is set.
func (m *UserMode) String() string {
	var sb strings.Builder
	sb.WriteString("+")

	val := reflect.ValueOf(m).Elem()
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		if !val.Field(i).Bool() {
			continue
		}
		if tag := typ.Field(i).Tag.Get("mode"); tag != "" {
			sb.WriteString(tag)
		}
	}

	if sb.Len() == 1 {
		return ""
	}
	return sb.String()
}
