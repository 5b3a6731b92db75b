package irc

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// handleOper handles an OPER command. Passwords are checked against
// bcrypt hashes from the environment; privileges come from the matching
// oper block in the config file.
func (c *Client) handleOper(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	if len(params) < 2 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "OPER :Not enough parameters")
		return
	}

	username, password := params[0], params[1]

	var hash string
	for _, cred := range c.server.Config.OperatorCredentials {
		if cred.Username == username {
			hash = cred.Password
			break
		}
	}

	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		c.sendNumeric(ERR_PASSWDMISMATCH, ":Password incorrect")
		log.Printf("Failed OPER attempt for %s by %s", username, c.Prefix())
		return
	}

	c.server.opersMu.RLock()
	privs := c.server.operPrivs[username]
	c.server.opersMu.RUnlock()

	c.Lock()
	c.Modes.Operator = true
	c.Modes.Notice = true
	c.operPrivs = privs
	c.Unlock()

	c.sendNumeric(RPL_YOUREOPER, ":You are now an IRC operator")
	c.sendMessage("MODE", c.nickname, "+os")
	if privs := privsLine(c); privs != "" {
		c.server.links.Broadcast(privs)
	}

	log.Printf("User %s authenticated as operator %s", c.nickname, username)
	c.server.SendOpers(fmt.Sprintf("%s is now an operator (%s)", c.nickname, username))
}

// handleKline handles a KLINE command (operator only)
func (c *Client) handleKline(params []string) {
	c.handleBanAdd("KLINE", params, false)
}

// handleGline handles a GLINE command (operator only)
func (c *Client) handleGline(params []string) {
	c.handleBanAdd("GLINE", params, true)
}

func (c *Client) handleBanAdd(cmd string, params []string, global bool) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}
	if !c.Modes.Operator {
		c.sendNumeric(ERR_NOPRIVILEGES, ":Permission Denied - You're not an IRC operator")
		return
	}
	if len(params) < 2 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, fmt.Sprintf("%s :Not enough parameters", cmd))
		c.sendNotice(cmd, fmt.Sprintf("Usage: /%s <nick!user@host> [duration] :[reason]", cmd))
		return
	}

	maskPattern := params[0]
	if !isValidHostmask(maskPattern) {
		c.sendNumeric(ERR_NEEDMOREPARAMS, fmt.Sprintf("%s :Invalid hostmask format: %s", cmd, maskPattern))
		return
	}

	var duration time.Duration
	var reason string
	var err error

	if len(params) == 2 {
		reason = params[1]
	} else {
		duration, err = parseDuration(params[1])
		if err != nil {
			reason = strings.Join(params[1:], " ")
			duration = 0
		} else {
			reason = strings.Join(params[2:], " ")
		}
	}
	if reason == "" {
		reason = "No reason"
	}

	ban := &BanEntry{
		Hostmask: maskPattern,
		Reason:   reason,
		Setter:   c.nickname,
		SetTime:  time.Now(),
		IsGlobal: global,
	}
	if duration > 0 {
		ban.ExpiryTime = time.Now().Add(duration)
	}

	if err := c.server.banStore.Add(ban); err != nil {
		c.sendNotice(cmd, fmt.Sprintf("Failed to store ban: %v", err))
		return
	}

	kind := "K-Line"
	if global {
		kind = "G-Line"
	}
	c.server.SendOpers(fmt.Sprintf("%s added by %s for %s: %s", kind, c.nickname, maskPattern, reason))

	if global {
		c.server.links.Broadcast(fmt.Sprintf(":%s GLINE %s :%s", c.server.Config.ServerName, maskPattern, reason))
	}

	c.server.disconnectBannedClients(ban)

	var durationStr string
	if duration > 0 {
		durationStr = fmt.Sprintf(" for %s", duration)
	}
	c.sendNotice(cmd, fmt.Sprintf("Added %s for %s%s: %s", kind, maskPattern, durationStr, reason))
}

// handleUnkline handles an UNKLINE command (operator only)
func (c *Client) handleUnkline(params []string) {
	c.handleBanRemove("UNKLINE", params, false)
}

// handleUngline handles an UNGLINE command (operator only)
func (c *Client) handleUngline(params []string) {
	c.handleBanRemove("UNGLINE", params, true)
}

func (c *Client) handleBanRemove(cmd string, params []string, global bool) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}
	if !c.Modes.Operator {
		c.sendNumeric(ERR_NOPRIVILEGES, ":Permission Denied - You're not an IRC operator")
		return
	}
	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, fmt.Sprintf("%s :Not enough parameters", cmd))
		c.sendNotice(cmd, fmt.Sprintf("Usage: /%s <hostmask>", cmd))
		return
	}

	hostmask := params[0]

	kind := "K-Line"
	if global {
		kind = "G-Line"
	}

	removed, err := c.server.banStore.Remove(hostmask, global)
	if err != nil {
		c.sendNotice(cmd, fmt.Sprintf("Failed to remove ban: %v", err))
		return
	}
	if !removed {
		c.sendNotice(cmd, fmt.Sprintf("No %s found for %s", kind, hostmask))
		return
	}

	c.server.SendOpers(fmt.Sprintf("%s for %s removed by %s", kind, hostmask, c.nickname))
	if global {
		c.server.links.Broadcast(fmt.Sprintf(":%s UNGLINE %s", c.server.Config.ServerName, hostmask))
	}
	c.sendNotice(cmd, fmt.Sprintf("Removed %s for %s", kind, hostmask))
}

// disconnectBannedClients disconnects clients matching a ban entry
func (s *Server) disconnectBannedClients(ban *BanEntry) {
	s.RLock()
	matching := make([]*Client, 0)
	for _, client := range s.clients {
		if wildcardMatch(client.Prefix(), ban.Hostmask) {
			matching = append(matching, client)
		}
	}
	s.RUnlock()

	banType := "K-lined"
	if ban.IsGlobal {
		banType = "G-lined"
	}

	for _, client := range matching {
		client.sendError(fmt.Sprintf("Closing Link: %s [%s: %s]",
			client.DisplayedHost(), banType, ban.Reason))
		client.quit(fmt.Sprintf("%s: %s", banType, ban.Reason))
	}
}

// sendError sends an ERROR line to a client
func (c *Client) sendError(message string) {
	c.sendRaw(fmt.Sprintf("ERROR :%s", message))
}

// isValidHostmask checks if a hostmask is valid
func isValidHostmask(hostmask string) bool {
	pattern := `^[a-zA-Z0-9_\*\[\]\\\^\{\}~\|]+![a-zA-Z0-9_\*\[\]\\\^\{\}~\|]+@[a-zA-Z0-9_\*\[\]\\\^\{\}~\|\.-]+$`
	matched, _ := regexp.MatchString(pattern, hostmask)
	return matched
}

// parseDuration parses an IRC-style duration string (1d2h3m)
func parseDuration(s string) (time.Duration, error) {
	re := regexp.MustCompile(`^(\d+[smhdwy])+$`)
	if !re.MatchString(s) {
		return 0, fmt.Errorf("invalid duration format")
	}

	var duration time.Duration
	for _, match := range regexp.MustCompile(`(\d+)([smhdwy])`).FindAllStringSubmatch(s, -1) {
		var n int
		fmt.Sscanf(match[1], "%d", &n)

		var unit time.Duration
		switch match[2] {
		case "s":
			unit = time.Second
		case "m":
			unit = time.Minute
		case "h":
			unit = time.Hour
		case "d":
			unit = 24 * time.Hour
		case "w":
			unit = 7 * 24 * time.Hour
		case "y":
			unit = 365 * 24 * time.Hour
		}
		duration += time.Duration(n) * unit
	}

	return duration, nil
}

// wildcardMatch matches a string against a pattern with * wildcards.
func wildcardMatch(s, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return s == pattern
	}

	parts := strings.Split(pattern, "*")

	if parts[0] != "" && !strings.HasPrefix(s, parts[0]) {
		return false
	}
	if parts[len(parts)-1] != "" && !strings.HasSuffix(s, parts[len(parts)-1]) {
		return false
	}

	pos := 0
	for _, part := range parts {
		if part == "" {
			continue
		}
		newPos := strings.Index(s[pos:], part)
		if newPos == -1 {
			return false
		}
		pos += newPos + len(part)
	}

	return true
}
