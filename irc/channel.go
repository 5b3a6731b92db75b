package irc

import (
	"fmt"
	"strings"
	"sync"
)

// Core channel mode flags.
const (
	CMODE_PRIVATE    = 'p' // Private channel
	CMODE_SECRET     = 's' // Secret channel
	CMODE_MODERATED  = 'm' // Only voiced users can talk
	CMODE_INVITEONLY = 'i' // Invite-only channel
	CMODE_NOEXTMSG   = 'n' // No external messages
	CMODE_TOPICLIMIT = 't' // Only ops can change topic
	CMODE_KEY        = 'k' // Channel key/password
	CMODE_LIMIT      = 'l' // User limit
)

// Channel represents an IRC channel.
type Channel struct {
	sync.RWMutex
	name      string
	topic     string
	clients   map[string]*Client
	modes     string          // Set flag modes (i, m, n, ...)
	modeArgs  map[rune]string // Arguments for modes that carry them
	operators map[string]bool // Channel operators (@)
	halfops   map[string]bool // Half-operators (%)
	voices    map[string]bool // Voiced users (+)
}

func newChannel(name string) *Channel {
	return &Channel{
		name:      name,
		clients:   make(map[string]*Client),
		modeArgs:  make(map[rune]string),
		operators: make(map[string]bool),
		halfops:   make(map[string]bool),
		voices:    make(map[string]bool),
	}
}

// Name returns the channel name.
func (ch *Channel) Name() string {
	return ch.name
}

// Topic returns the channel topic.
func (ch *Channel) Topic() string {
	ch.RLock()
	defer ch.RUnlock()
	return ch.topic
}

// HasMember reports whether nick is on the channel.
func (ch *Channel) HasMember(nick string) bool {
	ch.RLock()
	defer ch.RUnlock()
	_, ok := ch.clients[nick]
	return ok
}

// MemberCount returns the number of users on the channel.
func (ch *Channel) MemberCount() int {
	ch.RLock()
	defer ch.RUnlock()
	return len(ch.clients)
}

// hasFlag reports whether a flag mode is set on the channel. Callers
// hold at least the read lock.
func (ch *Channel) hasFlag(mode rune) bool {
	return strings.ContainsRune(ch.modes, mode)
}

func (ch *Channel) setFlag(mode rune, on bool) {
	has := ch.hasFlag(mode)
	if on && !has {
		ch.modes += string(mode)
	} else if !on && has {
		ch.modes = strings.ReplaceAll(ch.modes, string(mode), "")
	}
}

// handleJoin handles a JOIN command.
func (c *Client) handleJoin(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "JOIN :Not enough parameters")
		return
	}

	channelNames := strings.Split(params[0], ",")
	var channelKeys []string
	if len(params) > 1 {
		channelKeys = strings.Split(params[1], ",")
	}

	for i, channelName := range channelNames {
		if !isValidChannelName(channelName) {
			c.sendNumeric(ERR_NOSUCHCHANNEL, fmt.Sprintf("%s :No such channel", channelName))
			continue
		}

		var key string
		if i < len(channelKeys) {
			key = channelKeys[i]
		}

		c.server.Lock()
		channel, exists := c.server.channels[channelName]
		if !exists {
			channel = newChannel(channelName)
			c.server.channels[channelName] = channel
		}
		c.server.Unlock()

		if exists {
			channel.RLock()
			needsKey := channel.hasFlag(CMODE_KEY)
			correctKey := channel.modeArgs[CMODE_KEY] == key
			inviteOnly := channel.hasFlag(CMODE_INVITEONLY)
			full := false
			if channel.hasFlag(CMODE_LIMIT) {
				var limit int
				fmt.Sscanf(channel.modeArgs[CMODE_LIMIT], "%d", &limit)
				full = len(channel.clients) >= limit
			}
			alreadyMember := channel.clients[c.nickname] != nil
			channel.RUnlock()

			if alreadyMember {
				continue
			}
			if inviteOnly && !c.Modes.Operator {
				c.sendNumeric(ERR_INVITEONLYCHAN, fmt.Sprintf("%s :Cannot join channel (+i)", channelName))
				continue
			}
			if needsKey && !correctKey && !c.Modes.Operator {
				c.sendNumeric(ERR_BADCHANNELKEY, fmt.Sprintf("%s :Cannot join channel (+k)", channelName))
				continue
			}
			if full && !c.Modes.Operator {
				c.sendNumeric(ERR_CHANNELISFULL, fmt.Sprintf("%s :Cannot join channel (+l)", channelName))
				continue
			}
		}

		// Commit the join
		channel.Lock()
		channel.clients[c.nickname] = c
		if !exists {
			// Channel creator gets ops
			channel.operators[c.nickname] = true
		}
		channel.Unlock()

		c.Lock()
		c.channels[channelName] = true
		c.Unlock()

		joinMsg := fmt.Sprintf(":%s JOIN %s", c.Prefix(), channelName)
		channel.RLock()
		for _, member := range channel.clients {
			member.sendRaw(joinMsg)
		}
		topic := channel.topic
		channel.RUnlock()

		if topic != "" {
			c.sendNumeric(RPL_TOPIC, fmt.Sprintf("%s :%s", channelName, topic))
		}
		c.sendNames(channelName)
		c.sendNumeric(RPL_ENDOFNAMES, fmt.Sprintf("%s :End of NAMES list", channelName))

		c.server.FireUserJoin(c, channel)
	}
}

// handlePart handles a PART command.
func (c *Client) handlePart(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "PART :Not enough parameters")
		return
	}

	reason := ""
	if len(params) > 1 {
		reason = params[1]
	}

	for _, channelName := range strings.Split(params[0], ",") {
		c.server.RLock()
		channel, exists := c.server.channels[channelName]
		c.server.RUnlock()

		if !exists {
			c.sendNumeric(ERR_NOSUCHCHANNEL, fmt.Sprintf("%s :No such channel", channelName))
			continue
		}

		c.Lock()
		if !c.channels[channelName] {
			c.Unlock()
			c.sendNumeric(ERR_NOTONCHANNEL, fmt.Sprintf("%s :You're not on that channel", channelName))
			continue
		}
		delete(c.channels, channelName)
		c.Unlock()

		partMsg := fmt.Sprintf(":%s PART %s :%s", c.Prefix(), channelName, reason)

		channel.Lock()
		for _, member := range channel.clients {
			member.sendRaw(partMsg)
		}
		delete(channel.clients, c.nickname)
		delete(channel.operators, c.nickname)
		delete(channel.halfops, c.nickname)
		delete(channel.voices, c.nickname)
		empty := len(channel.clients) == 0
		channel.Unlock()

		c.server.FireUserPart(c, channel)

		if empty {
			c.server.Lock()
			delete(c.server.channels, channelName)
			c.server.Unlock()
		}
	}
}

// sendNames sends the NAMES reply for one channel.
func (c *Client) sendNames(channelName string) {
	c.server.RLock()
	channel, exists := c.server.channels[channelName]
	c.server.RUnlock()

	if !exists {
		return
	}

	channel.RLock()
	var names strings.Builder
	for nick := range channel.clients {
		if names.Len() > 0 {
			names.WriteString(" ")
		}
		switch {
		case channel.operators[nick]:
			names.WriteString("@")
		case channel.halfops[nick]:
			names.WriteString("%")
		case channel.voices[nick]:
			names.WriteString("+")
		}
		names.WriteString(nick)
	}
	channel.RUnlock()

	c.sendNumeric(RPL_NAMREPLY, fmt.Sprintf("= %s :%s", channelName, names.String()))
}

// isValidChannelName checks if a channel name is valid.
func isValidChannelName(name string) bool {
	if len(name) < 2 {
		return false
	}
	if name[0] != '#' && name[0] != '&' {
		return false
	}
	return !strings.ContainsAny(name, " ,:\x00\x07")
}
