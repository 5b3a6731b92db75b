package irc

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client represents a connected IRC user.
type Client struct {
	sync.RWMutex
	id         string
	conn       net.Conn
	server     *Server
	nickname   string
	username   string // ident
	realname   string
	hostname   string // displayed host
	password   string
	channels   map[string]bool
	registered bool
	lastPong   time.Time
	writer     *bufio.Writer
	writeLock  sync.Mutex
	quitting   bool
	operPrivs  []string

	Modes UserMode

	// Set for users introduced over a server link.
	RemoteOrigin bool
	RemoteServer string
}

// handleConnection reads and dispatches lines for one client connection.
func (c *Client) handleConnection() {
	defer func() {
		c.quit("Connection closed")
	}()

	c.hostname = hostPart(c.conn.RemoteAddr().String())
	log.Printf("[%s] *** New client connected", c.hostname)

	textReader := textproto.NewReader(bufio.NewReader(c.conn))

	// Registration deadline
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	for {
		line, err := textReader.ReadLine()
		if err != nil {
			if err != io.EOF {
				log.Printf("[%s] Error reading from client: %v", c.hostname, err)
			} else {
				log.Printf("[%s] Client disconnected", c.hostname)
			}
			break
		}

		if line == "" {
			continue
		}

		c.handleCommand(line)
	}
}

// handleCommand parses and dispatches one command line.
func (c *Client) handleCommand(line string) {
	if c.server.Config.Debug {
		log.Printf("[%s] <= %#v", c.hostname, line)
	}

	msg := ParseMessage(line)
	if msg == nil {
		return
	}
	params := msg.Params

	switch msg.Command {
	case "PASS":
		c.handlePass(params)
	case "PING":
		c.handlePing(params)
	case "PONG":
		c.lastPong = time.Now()
	case "NICK":
		c.handleNick(params)
	case "USER":
		c.handleUser(params)
	case "JOIN":
		c.handleJoin(params)
	case "PART":
		c.handlePart(params)
	case "PRIVMSG":
		c.handlePrivmsg(params)
	case "NOTICE":
		c.handleNotice(params)
	case "MODE":
		c.handleMode(params)
	case "TOPIC":
		c.handleTopic(params)
	case "NAMES":
		c.handleNames(params)
	case "OPER":
		c.handleOper(params)
	case "KLINE":
		c.handleKline(params)
	case "GLINE":
		c.handleGline(params)
	case "UNKLINE":
		c.handleUnkline(params)
	case "UNGLINE":
		c.handleUngline(params)
	case "WALLOPS":
		c.handleWallops(params)
	case "ADMIN":
		c.handleAdmin(params)
	case "REHASH":
		c.handleRehash(params)
	case "QUIT":
		reason := "Quit"
		if len(params) > 0 {
			reason = params[0]
		}
		c.quit(reason)
	default:
		if !c.dispatchModuleCommand(msg) {
			c.sendNumeric(ERR_UNKNOWNCOMMAND, fmt.Sprintf("%s :Unknown command", msg.Command))
		}
	}
}

// dispatchModuleCommand routes a line to a module-registered command. It
// returns false when no command is registered under that name.
func (c *Client) dispatchModuleCommand(msg *Message) bool {
	cmd, ok := c.server.lookupCommand(msg.Command)
	if !ok {
		return false
	}

	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return true
	}
	if cmd.OperOnly && !c.Modes.Operator {
		c.sendNumeric(ERR_NOPRIVILEGES, ":Permission Denied - You're not an IRC operator")
		return true
	}
	if len(msg.Params) < cmd.MinParams || (cmd.MaxParams > 0 && len(msg.Params) > cmd.MaxParams) {
		c.sendNumeric(ERR_NEEDMOREPARAMS, fmt.Sprintf("%s :Not enough parameters", msg.Command))
		return true
	}

	result := cmd.Handle(c, msg.Params)
	commandsRun.WithLabelValues(cmd.Name, result.String()).Inc()

	if result == CmdSuccess && cmd.Route != nil {
		c.server.routeCommand(c, cmd, msg)
	}
	return true
}

// handlePing handles a PING command.
func (c *Client) handlePing(params []string) {
	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "PING :Not enough parameters")
		return
	}
	c.sendMessage("PONG", params[0])
}

// handlePass stores the connection password for registration.
func (c *Client) handlePass(params []string) {
	if c.registered {
		c.sendNumeric(ERR_ALREADYREGISTRED, ":You may not reregister")
		return
	}
	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "PASS :Not enough parameters")
		return
	}
	c.password = params[0]
}

// handleNick handles a NICK command.
func (c *Client) handleNick(params []string) {
	if len(params) < 1 {
		c.sendNumeric(ERR_NONICKNAMEGIVEN, ":No nickname given")
		return
	}

	newNick := params[0]

	if !c.server.IsNick(newNick) {
		c.sendNumeric(ERR_ERRONEUSNICKNAME, fmt.Sprintf("%s :Erroneous nickname", newNick))
		return
	}

	c.server.Lock()
	if _, exists := c.server.clients[newNick]; exists {
		c.server.Unlock()
		c.sendNumeric(ERR_NICKNAMEINUSE, fmt.Sprintf("%s :Nickname is already in use", newNick))
		return
	}

	if c.nickname != "" {
		oldNick := c.nickname
		c.server.renameLocked(c, newNick)
		c.server.Unlock()
		c.server.links.Broadcast(fmt.Sprintf(":%s NICK %s", oldNick, newNick))
		return
	}

	c.nickname = newNick
	c.server.clients[newNick] = c
	c.server.Unlock()

	if !c.registered && c.username != "" {
		c.completeRegistration()
	}
}

// handleUser handles a USER command.
func (c *Client) handleUser(params []string) {
	if c.registered {
		c.sendNumeric(ERR_ALREADYREGISTRED, ":You may not reregister")
		return
	}
	if len(params) < 4 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "USER :Not enough parameters")
		return
	}

	c.username = params[0]
	c.realname = params[3]

	if c.nickname != "" {
		c.completeRegistration()
	}
}

// completeRegistration finishes the NICK/USER/PASS handshake and
// announces the new user to the modules.
func (c *Client) completeRegistration() {
	if c.registered || c.nickname == "" || c.username == "" {
		return
	}

	if pass := c.server.Config.ConnectionPassword; pass != "" && c.password != pass {
		c.sendNumeric(ERR_PASSWDMISMATCH, ":Password incorrect")
		return
	}

	c.registered = true
	c.conn.SetReadDeadline(time.Time{})

	cfg := c.server.Config
	c.sendNumeric(RPL_WELCOME, fmt.Sprintf(":Welcome to the %s IRC Network %s", cfg.NetworkName, c.Prefix()))
	c.sendNumeric(RPL_YOURHOST, fmt.Sprintf(":Your host is %s, running version ircd-1.0", cfg.ServerName))
	c.sendNumeric(RPL_CREATED, fmt.Sprintf(":This server was created %s", c.server.startTime.Format(time.RFC1123)))
	c.sendNumeric(RPL_MYINFO, fmt.Sprintf("%s ircd-1.0 o o", cfg.ServerName))

	c.server.links.Broadcast(introLine(c))
	c.server.FireUserConnect(c)
}

// handlePrivmsg handles a PRIVMSG command.
func (c *Client) handlePrivmsg(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}
	if len(params) < 2 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "PRIVMSG :Not enough parameters")
		return
	}

	target, text := params[0], params[1]
	line := fmt.Sprintf("PRIVMSG %s :%s", target, text)

	if target[0] == '#' || target[0] == '&' {
		channel := c.server.FindChannel(target)
		if channel == nil {
			c.sendNumeric(ERR_NOSUCHNICK, fmt.Sprintf("%s :No such nick/channel", target))
			return
		}
		c.server.SendChannel(c, channel, line, false)
		return
	}

	dst := c.server.FindNick(target)
	if dst == nil {
		c.sendNumeric(ERR_NOSUCHNICK, fmt.Sprintf("%s :No such nick/channel", target))
		return
	}
	c.server.SendTo(c, dst, line)
}

// handleNotice handles a NOTICE command. Notices never generate errors.
func (c *Client) handleNotice(params []string) {
	if !c.registered || len(params) < 2 {
		return
	}

	target, text := params[0], params[1]
	line := fmt.Sprintf("NOTICE %s :%s", target, text)

	if target[0] == '#' || target[0] == '&' {
		if channel := c.server.FindChannel(target); channel != nil {
			c.server.SendChannel(c, channel, line, false)
		}
		return
	}
	if dst := c.server.FindNick(target); dst != nil {
		c.server.SendTo(c, dst, line)
	}
}

// handleTopic handles a TOPIC command.
func (c *Client) handleTopic(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}
	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "TOPIC :Not enough parameters")
		return
	}

	channelName := params[0]
	channel := c.server.FindChannel(channelName)
	if channel == nil {
		c.sendNumeric(ERR_NOSUCHCHANNEL, fmt.Sprintf("%s :No such channel", channelName))
		return
	}
	if !channel.HasMember(c.nickname) {
		c.sendNumeric(ERR_NOTONCHANNEL, fmt.Sprintf("%s :You're not on that channel", channelName))
		return
	}

	if len(params) == 1 {
		if topic := channel.Topic(); topic != "" {
			c.sendNumeric(RPL_TOPIC, fmt.Sprintf("%s :%s", channelName, topic))
		} else {
			c.sendNumeric(RPL_NOTOPIC, fmt.Sprintf("%s :No topic is set", channelName))
		}
		return
	}

	channel.RLock()
	restricted := channel.hasFlag(CMODE_TOPICLIMIT)
	isOperator := channel.operators[c.nickname]
	channel.RUnlock()

	if restricted && !isOperator && !c.Modes.Operator {
		c.sendNumeric(ERR_CHANOPRIVSNEEDED, fmt.Sprintf("%s :You're not a channel operator", channelName))
		return
	}

	channel.Lock()
	channel.topic = params[1]
	channel.Unlock()

	c.server.SendChannel(c, channel, fmt.Sprintf("TOPIC %s :%s", channelName, params[1]), true)
}

// handleNames handles a NAMES command.
func (c *Client) handleNames(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	if len(params) < 1 {
		c.sendNumeric(RPL_ENDOFNAMES, "* :End of NAMES list")
		return
	}

	for _, channelName := range strings.Split(params[0], ",") {
		c.sendNames(channelName)
		c.sendNumeric(RPL_ENDOFNAMES, fmt.Sprintf("%s :End of NAMES list", channelName))
	}
}

// handleWallops handles a WALLOPS command (oper only).
func (c *Client) handleWallops(params []string) {
	if !c.Modes.Operator {
		c.sendNumeric(ERR_NOPRIVILEGES, ":Permission Denied - You're not an IRC operator")
		return
	}
	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "WALLOPS :Not enough parameters")
		return
	}
	c.server.SendWallops(c, params[0])
}

// handleAdmin handles an ADMIN command.
func (c *Client) handleAdmin(_ []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	admin := c.server.GetAdmin()
	c.sendNumeric(RPL_ADMINME, fmt.Sprintf("%s :Administrative info", c.server.Config.ServerName))
	c.sendNumeric(RPL_ADMINLOC1, fmt.Sprintf(":%s", admin.Name))
	c.sendNumeric(RPL_ADMINLOC2, fmt.Sprintf(":%s", admin.Nick))
	c.sendNumeric(RPL_ADMINEMAIL, fmt.Sprintf(":%s", admin.Email))
}

// handleRehash handles a REHASH command (oper only).
func (c *Client) handleRehash(_ []string) {
	if !c.Modes.Operator {
		c.sendNumeric(ERR_NOPRIVILEGES, ":Permission Denied - You're not an IRC operator")
		return
	}

	c.sendNumeric(RPL_REHASHING, fmt.Sprintf("%s :Rehashing", c.server.Config.ConfPath))
	if err := c.server.Rehash(); err != nil {
		c.sendNotice(c.server.Config.ServerName, fmt.Sprintf("Rehash failed: %v", err))
	}
}

// quit handles client disconnection.
func (c *Client) quit(reason string) {
	c.Lock()
	if c.quitting {
		c.Unlock()
		return
	}
	c.quitting = true
	registered := c.registered
	c.Unlock()

	if registered {
		c.server.FireUserQuit(c)

		c.server.SendCommon(c, fmt.Sprintf("QUIT :%s", reason), false)
		c.server.links.Broadcast(fmt.Sprintf(":%s QUIT :%s", c.Nickname(), reason))

		c.RLock()
		channelNames := make([]string, 0, len(c.channels))
		for name := range c.channels {
			channelNames = append(channelNames, name)
		}
		c.RUnlock()

		for _, channelName := range channelNames {
			c.server.RLock()
			channel, exists := c.server.channels[channelName]
			c.server.RUnlock()
			if !exists {
				continue
			}

			channel.Lock()
			delete(channel.clients, c.nickname)
			delete(channel.operators, c.nickname)
			delete(channel.halfops, c.nickname)
			delete(channel.voices, c.nickname)
			empty := len(channel.clients) == 0
			channel.Unlock()

			if empty {
				c.server.Lock()
				delete(c.server.channels, channelName)
				c.server.Unlock()
			}
		}

		c.server.Lock()
		delete(c.server.clients, c.nickname)
		c.server.Unlock()
	}

	c.conn.Close()
}

// Prefix returns the client's nick!ident@host source specifier.
func (c *Client) Prefix() string {
	c.RLock()
	defer c.RUnlock()
	return fmt.Sprintf("%s!%s@%s", c.nickname, c.username, c.hostname)
}

// Nickname returns the client's current nickname.
func (c *Client) Nickname() string {
	c.RLock()
	defer c.RUnlock()
	return c.nickname
}

// Ident returns the client's identity/username.
func (c *Client) Ident() string {
	c.RLock()
	defer c.RUnlock()
	return c.username
}

// Realname returns the client's real (GECOS) name.
func (c *Client) Realname() string {
	c.RLock()
	defer c.RUnlock()
	return c.realname
}

// DisplayedHost returns the client's displayed host.
func (c *Client) DisplayedHost() string {
	c.RLock()
	defer c.RUnlock()
	return c.hostname
}

// IsRegistered reports whether the client completed registration.
func (c *Client) IsRegistered() bool {
	c.RLock()
	defer c.RUnlock()
	return c.registered
}

// IsLocal reports whether the client is attached to this server rather
// than introduced over a link.
func (c *Client) IsLocal() bool {
	c.RLock()
	defer c.RUnlock()
	return !c.RemoteOrigin
}

// ChangeDisplayedHost sets the client's displayed host.
func (c *Client) ChangeDisplayedHost(host string) {
	c.Lock()
	c.hostname = host
	c.Unlock()
}

// ChangeRealName sets the client's real (GECOS) name.
func (c *Client) ChangeRealName(realname string) {
	c.Lock()
	c.realname = realname
	c.Unlock()
}

// ChangeIdent sets the client's identity/username.
func (c *Client) ChangeIdent(ident string) {
	c.Lock()
	c.username = ident
	c.Unlock()
}

// ChangeNick renames the client and announces the change to every user
// sharing a channel with it.
func (c *Client) ChangeNick(newNick string) {
	c.server.Lock()
	if _, exists := c.server.clients[newNick]; exists {
		c.server.Unlock()
		return
	}
	oldNick := c.nickname
	c.server.renameLocked(c, newNick)
	c.server.Unlock()

	if !c.RemoteOrigin {
		c.server.links.Broadcast(fmt.Sprintf(":%s NICK %s", oldNick, newNick))
	}
}

// HasPrivPermission reports whether the client holds the named oper
// privilege. Privileges are granted at OPER time; entries may use
// wildcards ("usermod/*").
func (c *Client) HasPrivPermission(priv string) bool {
	c.RLock()
	defer c.RUnlock()

	if !c.Modes.Operator {
		return false
	}
	for _, held := range c.operPrivs {
		if wildcardMatch(priv, held) {
			return true
		}
	}
	return false
}

// sendRaw writes one line to the client, truncated to the protocol line
// limit and CRLF-terminated.
func (c *Client) sendRaw(message string) {
	if c.server.Config.Debug {
		log.Printf("[%s] => %s", c.nickname, message)
	}

	// Remote users have no socket here; hand the line to their server.
	// Forwarded off the calling goroutine: link sends run the packet
	// hooks, and a hook writing to a remote user must not nest dispatch.
	if c.RemoteOrigin {
		go c.server.links.SendTo(c.RemoteServer, message)
		return
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	_, err := c.writer.WriteString(truncateLine(message) + "\r\n")
	if err == nil {
		c.writer.Flush()
	}
}

// sendMessage sends an IRC message prefixed with the server name.
func (c *Client) sendMessage(command string, params ...string) {
	var sb strings.Builder

	sb.WriteString(":")
	sb.WriteString(c.server.Config.ServerName)
	sb.WriteString(" ")
	sb.WriteString(command)

	for i, param := range params {
		sb.WriteString(" ")
		if i == len(params)-1 && (strings.Contains(param, " ") || param == "") {
			sb.WriteString(":")
		}
		sb.WriteString(param)
	}

	c.sendRaw(sb.String())
}

// sendNumeric sends a numeric reply to the client.
func (c *Client) sendNumeric(numeric int, message string) {
	nick := c.nickname
	if nick == "" {
		nick = "*"
	}
	c.sendRaw(fmt.Sprintf(":%s %03d %s %s", c.server.Config.ServerName, numeric, nick, message))
}

// sendNotice sends a notice to the client from the named sender.
func (c *Client) sendNotice(sender, message string) {
	c.sendRaw(fmt.Sprintf(":%s NOTICE %s :%s", sender, c.nickname, message))
}

// WriteNotice sends a server-sourced notice to the client. Exposed for
// modules reporting command failures.
func (c *Client) WriteNotice(message string) {
	c.sendNotice(c.server.Config.ServerName, message)
}

// WriteNumeric sends a numeric reply to the client. Exposed for modules.
func (c *Client) WriteNumeric(numeric int, message string) {
	c.sendNumeric(numeric, message)
}

// newClientID returns a fresh session identifier.
func newClientID() string {
	return uuid.New().String()
}

// hostPart strips the port from a remote address.
func hostPart(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
