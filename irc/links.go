package irc

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"time"
)

// ServerLink is one authenticated line-based connection to a peer
// server. Every line crossing a link passes through the packet hooks,
// so modules can observe or rewrite server-to-server traffic.
type ServerLink struct {
	name    string
	conn    net.Conn
	writer  *bufio.Writer
	writeMu sync.Mutex
}

// LinkManager owns the set of live server links.
type LinkManager struct {
	server   *Server
	mu       sync.RWMutex
	links    map[string]*ServerLink // remote server name -> link
	listener net.Listener
}

func newLinkManager(s *Server) *LinkManager {
	return &LinkManager{
		server: s,
		links:  make(map[string]*ServerLink),
	}
}

// Listen accepts inbound link connections on the given address.
func (lm *LinkManager) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start link listener: %w", err)
	}
	lm.listener = listener
	log.Printf("Link listener started on %s", listener.Addr().String())

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go lm.handshake(conn, true)
		}
	}()
	return nil
}

// ConnectAll dials every configured peer address.
func (lm *LinkManager) ConnectAll(addresses []string) {
	for _, addr := range addresses {
		if addr == "" {
			continue
		}
		go func(addr string) {
			conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
			if err != nil {
				log.Printf("Warning: failed to connect to peer %s: %v", addr, err)
				return
			}
			lm.handshake(conn, false)
		}(addr)
	}
}

// handshake exchanges SERVER introductions. The initiating side sends
// first; both sides verify the link password.
func (lm *LinkManager) handshake(conn net.Conn, inbound bool) {
	cfg := lm.server.Config
	reader := textproto.NewReader(bufio.NewReader(conn))
	writer := bufio.NewWriter(conn)

	intro := fmt.Sprintf("SERVER %s %s", cfg.ServerName, cfg.LinkPassword)
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	if !inbound {
		writer.WriteString(intro + "\r\n")
		writer.Flush()
	}

	line, err := reader.ReadLine()
	if err != nil {
		conn.Close()
		return
	}
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[0] != "SERVER" || fields[2] != cfg.LinkPassword {
		log.Printf("Rejected link from %s: bad introduction", conn.RemoteAddr())
		fmt.Fprintf(writer, "ERROR :Link denied\r\n")
		writer.Flush()
		conn.Close()
		return
	}
	peerName := fields[1]

	if inbound {
		writer.WriteString(intro + "\r\n")
		writer.Flush()
	}
	conn.SetDeadline(time.Time{})

	link := &ServerLink{name: peerName, conn: conn, writer: writer}

	lm.mu.Lock()
	if _, dup := lm.links[peerName]; dup {
		lm.mu.Unlock()
		log.Printf("Duplicate link from %s, closing", peerName)
		conn.Close()
		return
	}
	lm.links[peerName] = link
	lm.mu.Unlock()

	log.Printf("Server link established with %s", peerName)
	lm.server.SendOpers(fmt.Sprintf("Link established with %s", peerName))

	go lm.readLoop(link, reader)
	lm.burstUsers(link)
}

// burstUsers introduces every local user to a newly linked peer so
// unicast routing can resolve nicks on either side.
func (lm *LinkManager) burstUsers(link *ServerLink) {
	lm.server.RLock()
	locals := make([]*Client, 0, len(lm.server.clients))
	for _, c := range lm.server.clients {
		if !c.RemoteOrigin && c.IsRegistered() {
			locals = append(locals, c)
		}
	}
	lm.server.RUnlock()

	for _, c := range locals {
		link.send(lm.server, introLine(c))
		if privs := privsLine(c); privs != "" {
			link.send(lm.server, privs)
		}
	}
}

// introLine renders a user introduction for the link burst.
func introLine(c *Client) string {
	c.RLock()
	defer c.RUnlock()

	modes := c.Modes.String()
	if modes == "" {
		modes = "+"
	}
	return fmt.Sprintf("NICK %s %s %s %s :%s", c.nickname, c.username, c.hostname, modes, c.realname)
}

// privsLine renders an operator's privilege grant for the link burst,
// or "" for non-opers.
func privsLine(c *Client) string {
	c.RLock()
	defer c.RUnlock()

	if !c.Modes.Operator || len(c.operPrivs) == 0 {
		return ""
	}
	return fmt.Sprintf("OPERPRIVS %s %s", c.nickname, strings.Join(c.operPrivs, " "))
}

// readLoop consumes lines from a link, running them through the
// inbound packet hooks before processing.
func (lm *LinkManager) readLoop(link *ServerLink, reader *textproto.Reader) {
	defer lm.drop(link)

	for {
		line, err := reader.ReadLine()
		if err != nil {
			return
		}
		if line == "" {
			continue
		}

		packet := []byte(line)
		lm.server.FirePacketReceive(&packet)
		raw := lm.server.FireServerRaw(string(packet), true)
		if raw == "" {
			continue
		}

		lm.process(link, raw)
	}
}

// process handles one inbound link line.
func (lm *LinkManager) process(link *ServerLink, raw string) {
	msg := ParseMessage(raw)
	if msg == nil {
		return
	}

	switch msg.Command {
	case "PING":
		if len(msg.Params) > 0 {
			link.send(lm.server, fmt.Sprintf("PONG %s", msg.Params[0]))
		}
	case "PONG":
		// keepalive, nothing to do
	case "NICK":
		if msg.Prefix != "" {
			// rename of a user owned by the peer
			if len(msg.Params) >= 1 {
				lm.server.renameRemoteUser(link.name, prefixNick(msg.Prefix), msg.Params[0])
			}
			return
		}
		if len(msg.Params) >= 4 {
			realname := ""
			if len(msg.Params) > 4 {
				realname = msg.Params[4]
			}
			lm.server.introduceRemoteUser(link.name, msg.Params[0], msg.Params[1], msg.Params[2], msg.Params[3], realname)
		}
	case "OPERPRIVS":
		if len(msg.Params) >= 2 {
			lm.server.grantRemotePrivs(link.name, msg.Params[0], msg.Params[1:])
		}
	case "QUIT":
		if msg.Prefix != "" {
			lm.server.removeRemoteUser(link.name, prefixNick(msg.Prefix))
		}
	case "PRIVMSG", "NOTICE":
		if len(msg.Params) >= 2 {
			if dst := lm.server.FindNick(msg.Params[0]); dst != nil && dst.IsLocal() {
				dst.sendRaw(raw)
			}
		}
	case "GLINE":
		if len(msg.Params) >= 1 {
			reason := "No reason"
			if len(msg.Params) > 1 {
				reason = msg.Params[1]
			}
			ban := &BanEntry{
				Hostmask: msg.Params[0],
				Reason:   reason,
				Setter:   link.name,
				SetTime:  time.Now(),
				IsGlobal: true,
			}
			if err := lm.server.banStore.Add(ban); err == nil {
				lm.server.SendOpers(fmt.Sprintf("G-Line from %s for %s: %s", link.name, ban.Hostmask, reason))
				lm.server.disconnectBannedClients(ban)
			}
		}
	case "UNGLINE":
		if len(msg.Params) >= 1 {
			lm.server.banStore.Remove(msg.Params[0], true)
			lm.server.SendOpers(fmt.Sprintf("G-Line for %s removed by %s", msg.Params[0], link.name))
		}
	default:
		if isNumeric(msg.Command) {
			// numeric reply for a user on this side
			if len(msg.Params) >= 1 {
				if dst := lm.server.FindNick(msg.Params[0]); dst != nil && dst.IsLocal() {
					dst.sendRaw(raw)
				}
			}
			return
		}
		lm.dispatchRemote(link, msg)
	}
}

// isNumeric reports whether a command token is a numeric reply.
func isNumeric(command string) bool {
	if len(command) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if command[i] < '0' || command[i] > '9' {
			return false
		}
	}
	return true
}

// prefixNick extracts the nick from a nick!ident@host prefix.
func prefixNick(prefix string) string {
	if i := strings.IndexByte(prefix, '!'); i >= 0 {
		return prefix[:i]
	}
	return prefix
}

// dispatchRemote applies a prefixed command sourced from a user on the
// remote side, if a module registered a handler under that name.
func (lm *LinkManager) dispatchRemote(link *ServerLink, msg *Message) {
	if msg.Prefix == "" {
		log.Printf("Unhandled link command from %s: %s", link.name, msg.Command)
		return
	}

	source := lm.server.FindNick(prefixNick(msg.Prefix))
	if source == nil {
		return
	}

	cmd, ok := lm.server.lookupCommand(msg.Command)
	if !ok {
		log.Printf("Unhandled link command from %s: %s", link.name, msg.Command)
		return
	}
	result := cmd.Handle(source, msg.Params)
	commandsRun.WithLabelValues(cmd.Name, result.String()).Inc()
}

// send writes one line over the link after the outbound packet hooks.
func (sl *ServerLink) send(s *Server, line string) {
	raw := s.FireServerRaw(line, false)
	if raw == "" {
		return
	}
	packet := []byte(raw)
	s.FirePacketTransmit(&packet)

	sl.writeMu.Lock()
	defer sl.writeMu.Unlock()
	sl.writer.WriteString(truncateLine(string(packet)) + "\r\n")
	sl.writer.Flush()
}

// Broadcast sends a line to every linked server.
func (lm *LinkManager) Broadcast(line string) {
	lm.mu.RLock()
	links := make([]*ServerLink, 0, len(lm.links))
	for _, link := range lm.links {
		links = append(links, link)
	}
	lm.mu.RUnlock()

	for _, link := range links {
		link.send(lm.server, line)
	}
}

// SendTo sends a line to one named peer. Lines for unknown peers are
// dropped with a log, matching how unicast routing degrades when a
// peer has split.
func (lm *LinkManager) SendTo(name, line string) {
	lm.mu.RLock()
	link := lm.links[name]
	lm.mu.RUnlock()

	if link == nil {
		log.Printf("No link to %s, dropping: %s", name, line)
		return
	}
	link.send(lm.server, line)
}

// Names returns the connected peer names.
func (lm *LinkManager) Names() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	names := make([]string, 0, len(lm.links))
	for name := range lm.links {
		names = append(names, name)
	}
	return names
}

func (lm *LinkManager) drop(link *ServerLink) {
	link.conn.Close()

	lm.mu.Lock()
	if lm.links[link.name] == link {
		delete(lm.links, link.name)
	}
	lm.mu.Unlock()

	lm.server.dropRemoteUsers(link.name)

	log.Printf("Server link to %s closed", link.name)
	lm.server.SendOpers(fmt.Sprintf("Link to %s closed", link.name))
}

// Close shuts down the listener and all links.
func (lm *LinkManager) Close() {
	if lm.listener != nil {
		lm.listener.Close()
	}

	lm.mu.Lock()
	links := lm.links
	lm.links = make(map[string]*ServerLink)
	lm.mu.Unlock()

	for _, link := range links {
		link.conn.Close()
	}
}
