package irc

import (
	"fmt"
	"log"
	"strings"
)

// The methods in this file form the surface modules call into. They
// mirror the send helpers the core command handlers already use, so a
// module-sourced line is indistinguishable from a core-sourced one.

// GetServerName returns the configured server name.
func (s *Server) GetServerName() string {
	return s.Config.ServerName
}

// GetNetworkName returns the configured network name.
func (s *Server) GetNetworkName() string {
	return s.Config.NetworkName
}

// GetAdmin returns the configured administrative contact.
func (s *Server) GetAdmin() Admin {
	return Admin{
		Name:  s.Config.AdminName,
		Email: s.Config.AdminEmail,
		Nick:  s.Config.AdminNick,
	}
}

// Log emits a log line if level meets the configured threshold.
// Levels below LogDebug are clamped up; LogNone lines are dropped.
func (s *Server) Log(level int, text string) {
	if level < LogDebug {
		level = LogDebug
	}
	if level >= LogNone {
		return
	}

	s.logMu.Lock()
	threshold := s.logThreshold
	s.logMu.Unlock()

	if level >= threshold {
		log.Printf("[%s] %s", logLevelName(level), text)
	}
}

func logLevelName(level int) string {
	switch {
	case level < LogVerbose:
		return "DEBUG"
	case level < LogDefault:
		return "VERBOSE"
	case level < LogSparse:
		return "DEFAULT"
	default:
		return "SPARSE"
	}
}

// SendOpers sends a server notice to every user receiving server
// notices (+s).
func (s *Server) SendOpers(text string) {
	s.RLock()
	defer s.RUnlock()

	for _, client := range s.clients {
		if client.Modes.Notice {
			client.sendNotice(s.Config.ServerName, text)
		}
	}
}

// Send writes a raw line to a user.
func (s *Server) Send(target *Client, line string) {
	target.sendRaw(line)
}

// SendServ sends a line to a user with the server as the source.
func (s *Server) SendServ(target *Client, line string) {
	target.sendRaw(fmt.Sprintf(":%s %s", s.Config.ServerName, line))
}

// SendFrom sends a line to a user with another user as the source.
func (s *Server) SendFrom(source, target *Client, line string) {
	target.sendRaw(fmt.Sprintf(":%s %s", source.Prefix(), line))
}

// SendTo is SendFrom under its RFC-facing name: the line reaches target
// carrying source's prefix.
func (s *Server) SendTo(source, target *Client, line string) {
	s.SendFrom(source, target, line)
}

// SendChannel sends a line to every member of a channel, sourced from
// the given user. With includeSender false the sender is skipped, which
// is what PRIVMSG wants.
func (s *Server) SendChannel(source *Client, channel *Channel, line string, includeSender bool) {
	full := fmt.Sprintf(":%s %s", source.Prefix(), line)

	channel.RLock()
	defer channel.RUnlock()

	for _, member := range channel.clients {
		if member == source && !includeSender {
			continue
		}
		member.sendRaw(full)
	}
}

// CommonChannels reports whether two users share at least one channel.
func (s *Server) CommonChannels(u1, u2 *Client) bool {
	u1.RLock()
	names := make([]string, 0, len(u1.channels))
	for name := range u1.channels {
		names = append(names, name)
	}
	u1.RUnlock()

	nick2 := u2.Nickname()
	for _, name := range names {
		if channel := s.FindChannel(name); channel != nil && channel.HasMember(nick2) {
			return true
		}
	}
	return false
}

// SendCommon sends a line to every user sharing a channel with source.
// Each user receives the line once regardless of how many channels they
// share.
func (s *Server) SendCommon(source *Client, line string, includeSender bool) {
	full := fmt.Sprintf(":%s %s", source.Prefix(), line)

	source.RLock()
	names := make([]string, 0, len(source.channels))
	for name := range source.channels {
		names = append(names, name)
	}
	source.RUnlock()

	seen := make(map[string]bool)
	if !includeSender {
		seen[source.Nickname()] = true
	} else {
		source.sendRaw(full)
		seen[source.Nickname()] = true
	}

	for _, name := range names {
		channel := s.FindChannel(name)
		if channel == nil {
			continue
		}
		channel.RLock()
		for nick, member := range channel.clients {
			if seen[nick] {
				continue
			}
			seen[nick] = true
			member.sendRaw(full)
		}
		channel.RUnlock()
	}
}

// SendWallops sends a WALLOPS to every user with the wallops mode set.
func (s *Server) SendWallops(source *Client, text string) {
	line := fmt.Sprintf(":%s WALLOPS :%s", source.Prefix(), text)

	s.RLock()
	defer s.RUnlock()

	for _, client := range s.clients {
		if client.Modes.Wallops {
			client.sendRaw(line)
		}
	}
}

// FindNick returns the client registered under the given nickname,
// or nil.
func (s *Server) FindNick(nick string) *Client {
	s.RLock()
	defer s.RUnlock()
	return s.clients[nick]
}

// FindChannel returns the named channel, or nil.
func (s *Server) FindChannel(name string) *Channel {
	s.RLock()
	defer s.RUnlock()
	return s.channels[name]
}

// ChanMode returns the highest status prefix a user holds on a channel:
// "@" for op, "%" for halfop, "+" for voice, "" for none.
func (s *Server) ChanMode(user *Client, channel *Channel) string {
	nick := user.Nickname()

	channel.RLock()
	defer channel.RUnlock()

	switch {
	case channel.operators[nick]:
		return "@"
	case channel.halfops[nick]:
		return "%"
	case channel.voices[nick]:
		return "+"
	}
	return ""
}

// IsNick reports whether the string is a valid nickname: a letter or
// one of []{}\`^_| first, then letters, digits, - and the same
// specials, within the configured length cap.
func (s *Server) IsNick(nick string) bool {
	max := s.Limits().MaxNick
	if nick == "" || len(nick) > max {
		return false
	}
	for i, r := range nick {
		if isLetter(r) || strings.ContainsRune("[]{}\\`^_|", r) {
			continue
		}
		if i > 0 && (isDigit(r) || r == '-') {
			continue
		}
		return false
	}
	return true
}

// IsIdent reports whether the string is a valid ident: a letter first,
// then letters, digits, - . [ and ], within the configured length cap.
func (s *Server) IsIdent(ident string) bool {
	max := s.Limits().MaxIdent
	if ident == "" || len(ident) > max {
		return false
	}
	for i, r := range ident {
		if isLetter(r) {
			continue
		}
		if i > 0 && (isDigit(r) || r == '-' || r == '.' || r == '[' || r == ']') {
			continue
		}
		return false
	}
	return true
}

func isLetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// AddExtendedMode claims a mode letter on behalf of a module. It
// returns false when the letter is already claimed for that scope or
// the parameter counts are unsupported.
func (s *Server) AddExtendedMode(owner Module, letter byte, scope ModeScope, defaultOn bool, paramsOn, paramsOff int) bool {
	return s.extModes.Claim(letter, scope, defaultOn, paramsOn, paramsOff, owner)
}

// ExtModes exposes the extended-mode registry, for introspection.
func (s *Server) ExtModes() *ExtModeRegistry {
	return s.extModes
}

// Registry exposes the module registry, for introspection.
func (s *Server) Registry() *ModuleRegistry {
	return s.modules
}
