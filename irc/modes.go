package irc

import (
	"fmt"
	"strings"
)

// handleMode handles a MODE command for channel, user, and server targets.
func (c *Client) handleMode(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "MODE :Not enough parameters")
		return
	}

	target := params[0]
	switch {
	case target[0] == '#' || target[0] == '&':
		c.handleChanMode(params)
	case strings.EqualFold(target, c.server.Config.ServerName):
		c.handleServerMode(params)
	default:
		c.handleUserMode(params)
	}
}

// handleChanMode processes channel mode changes, routing letters claimed
// through the extended-mode registry to the modules before falling back
// to the core modes.
func (c *Client) handleChanMode(params []string) {
	target := params[0]

	c.server.RLock()
	channel, exists := c.server.channels[target]
	c.server.RUnlock()

	if !exists {
		c.sendNumeric(ERR_NOSUCHCHANNEL, fmt.Sprintf("%s :No such channel", target))
		return
	}

	if len(params) == 1 {
		channel.RLock()
		response := fmt.Sprintf("%s +%s", target, channel.modes)
		for _, mode := range channel.modes {
			if arg, ok := channel.modeArgs[mode]; ok && mode != CMODE_KEY {
				response += " " + arg
			}
		}
		channel.RUnlock()
		c.sendNumeric(RPL_CHANNELMODEIS, response)
		return
	}

	channel.RLock()
	isOperator := channel.operators[c.nickname] || c.Modes.Operator
	channel.RUnlock()

	if !isOperator {
		c.sendNumeric(ERR_CHANOPRIVSNEEDED, fmt.Sprintf("%s :You're not a channel operator", target))
		return
	}

	modeStr := params[1]
	modeArgs := params[2:]
	argIndex := 0
	adding := true

	var appliedModes string
	var appliedArgs []string
	lastSign := byte(0)

	applied := func(sign byte, mode rune, arg string) {
		if lastSign != sign {
			appliedModes += string(sign)
			lastSign = sign
		}
		appliedModes += string(mode)
		if arg != "" {
			appliedArgs = append(appliedArgs, arg)
		}
	}
	sign := func() byte {
		if adding {
			return '+'
		}
		return '-'
	}

	for _, mode := range modeStr {
		switch mode {
		case '+':
			adding = true
			continue
		case '-':
			adding = false
			continue
		}

		// Letters claimed by a module bypass core handling entirely.
		if claim, ok := c.server.extModes.Lookup(byte(mode), ModeChannel); ok {
			want := claim.ParamsOn
			if !adding {
				want = claim.ParamsOff
			}
			if argIndex+want > len(modeArgs) {
				continue
			}
			extParams := modeArgs[argIndex : argIndex+want]
			argIndex += want

			if c.server.FireExtendedMode(c, channel, byte(mode), ModeChannel, adding, extParams) {
				arg := ""
				if len(extParams) > 0 {
					arg = extParams[0]
				}
				applied(sign(), mode, arg)
			} else {
				c.sendNumeric(ERR_UNKNOWNMODE, fmt.Sprintf("%c :is unknown mode char to me", mode))
			}
			continue
		}

		switch mode {
		case CMODE_INVITEONLY, CMODE_MODERATED, CMODE_NOEXTMSG, CMODE_TOPICLIMIT, CMODE_SECRET, CMODE_PRIVATE:
			channel.Lock()
			channel.setFlag(mode, adding)
			channel.Unlock()
			applied(sign(), mode, "")
		case CMODE_KEY, CMODE_LIMIT:
			if adding {
				if argIndex >= len(modeArgs) {
					continue
				}
				arg := modeArgs[argIndex]
				argIndex++
				channel.Lock()
				channel.setFlag(mode, true)
				channel.modeArgs[mode] = arg
				channel.Unlock()
				applied('+', mode, arg)
			} else {
				channel.Lock()
				channel.setFlag(mode, false)
				delete(channel.modeArgs, mode)
				channel.Unlock()
				applied('-', mode, "")
			}
		case 'o', 'h', 'v':
			if argIndex >= len(modeArgs) {
				continue
			}
			nick := modeArgs[argIndex]
			argIndex++

			channel.Lock()
			if _, member := channel.clients[nick]; member {
				lists := map[rune]map[string]bool{
					'o': channel.operators,
					'h': channel.halfops,
					'v': channel.voices,
				}
				if adding {
					lists[mode][nick] = true
				} else {
					delete(lists[mode], nick)
				}
				channel.Unlock()
				applied(sign(), mode, nick)
			} else {
				channel.Unlock()
			}
		default:
			c.sendNumeric(ERR_UNKNOWNMODE, fmt.Sprintf("%c :is unknown mode char to me", mode))
		}
	}

	if appliedModes != "" {
		line := fmt.Sprintf("MODE %s %s", target, appliedModes)
		if len(appliedArgs) > 0 {
			line += " " + strings.Join(appliedArgs, " ")
		}
		c.server.SendChannel(c, channel, line, true)
	}
}

// handleUserMode processes user mode changes on the client itself.
func (c *Client) handleUserMode(params []string) {
	if params[0] != c.nickname {
		c.sendNumeric(ERR_USERSDONTMATCH, ":Cannot change mode for other users")
		return
	}

	if len(params) == 1 {
		c.sendNumeric(RPL_UMODEIS, c.Modes.String())
		return
	}

	adding := true
	for _, mode := range params[1] {
		switch mode {
		case '+':
			adding = true
			continue
		case '-':
			adding = false
			continue
		}

		// Oper flag can only be removed by the user, never self-granted.
		if mode == 'o' && adding {
			continue
		}

		if _, ok := c.server.extModes.Lookup(byte(mode), ModeClient); ok {
			if !c.server.FireExtendedMode(c, nil, byte(mode), ModeClient, adding, nil) {
				c.sendNumeric(ERR_UMODEUNKNOWNFLAG, fmt.Sprintf(":Unknown MODE flag %c", mode))
			}
			continue
		}

		if err := c.Modes.ApplyMode(mode, adding); err != nil {
			c.sendNumeric(ERR_UMODEUNKNOWNFLAG, fmt.Sprintf(":Unknown MODE flag %c", mode))
		}
	}

	c.sendMessage("MODE", c.nickname, c.Modes.String())
}

// handleServerMode processes oper-applied server-scope extended modes.
// The core defines no server modes of its own.
func (c *Client) handleServerMode(params []string) {
	if !c.Modes.Operator {
		c.sendNumeric(ERR_NOPRIVILEGES, ":Permission Denied - You're not an IRC operator")
		return
	}

	if len(params) < 2 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "MODE :Not enough parameters")
		return
	}

	adding := true
	for _, mode := range params[1] {
		switch mode {
		case '+':
			adding = true
			continue
		case '-':
			adding = false
			continue
		}

		if _, ok := c.server.extModes.Lookup(byte(mode), ModeServer); ok {
			if c.server.FireExtendedMode(c, nil, byte(mode), ModeServer, adding, nil) {
				continue
			}
		}
		c.sendNumeric(ERR_UNKNOWNMODE, fmt.Sprintf("%c :is unknown mode char to me", mode))
	}
}
