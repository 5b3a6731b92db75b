package irc

import (
	"strings"
)

// Message represents a parsed IRC protocol line.
type Message struct {
	Prefix  string
	Command string
	Params  []string
}

// ParseMessage parses one raw IRC line into its prefix, command and
// parameters. The trailing parameter keeps its embedded spaces. Returns
// nil for lines with no command.
func ParseMessage(line string) *Message {
	if line == "" {
		return nil
	}

	msg := &Message{Params: make([]string, 0, 4)}

	if line[0] == ':' {
		parts := strings.SplitN(line[1:], " ", 2)
		if len(parts) < 2 {
			return nil
		}
		msg.Prefix = parts[0]
		line = parts[1]
	}

	parts := strings.SplitN(line, " ", 2)
	if parts[0] == "" {
		return nil
	}
	msg.Command = strings.ToUpper(parts[0])

	if len(parts) > 1 {
		rest := parts[1]
		for rest != "" {
			if rest[0] == ':' {
				msg.Params = append(msg.Params, rest[1:])
				break
			}
			next := strings.SplitN(rest, " ", 2)
			if next[0] != "" {
				msg.Params = append(msg.Params, next[0])
			}
			if len(next) < 2 {
				break
			}
			rest = next[1]
		}
	}

	return msg
}

// String renders the message back into wire form, without CRLF.
func (m *Message) String() string {
	var builder strings.Builder

	if m.Prefix != "" {
		builder.WriteString(":")
		builder.WriteString(m.Prefix)
		builder.WriteString(" ")
	}

	builder.WriteString(m.Command)

	for i, param := range m.Params {
		builder.WriteString(" ")
		if i == len(m.Params)-1 && (param == "" || strings.Contains(param, " ") || strings.HasPrefix(param, ":")) {
			builder.WriteString(":")
		}
		builder.WriteString(param)
	}

	return builder.String()
}
