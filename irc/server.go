package irc

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/labstack/echo/v4"

	"github.com/presbrey/ircd/irc/config"
)

// Server represents an IRC server instance hosting loadable modules.
type Server struct {
	sync.RWMutex
	Config   *Config
	clients  map[string]*Client // nickname -> client
	channels map[string]*Channel

	modules  *ModuleRegistry
	extModes *ExtModeRegistry

	commandsMu sync.RWMutex
	commands   map[string]*Command // uppercase name -> command

	opersMu   sync.RWMutex
	operPrivs map[string][]string // oper name -> privilege patterns

	limitsMu sync.RWMutex
	limits   Limits

	logMu        sync.Mutex
	logThreshold int

	loadedMu      sync.Mutex
	loadedOrigins map[Module]string

	banStore *BanStore
	links    *LinkManager

	listener  net.Listener
	adminEcho *echo.Echo
	shutdown  chan struct{}
	startTime time.Time
	stats     *ServerStats
}

// Limits holds the per-attribute length caps applied to user fields.
type Limits struct {
	MaxHost  int
	MaxReal  int
	MaxIdent int
	MaxNick  int
}

// DefaultLimits returns the limits used when the config file does not
// override them.
func DefaultLimits() Limits {
	return Limits{MaxHost: 64, MaxReal: 130, MaxIdent: 12, MaxNick: 32}
}

// Config represents server configuration using environment variables
type Config struct {
	ServerName          string               `env:"SERVER_NAME" envDefault:"irc.example.com"`
	ServerDesc          string               `env:"SERVER_DESC" envDefault:"IRC Server"`
	NetworkName         string               `env:"NETWORK_NAME" envDefault:"IRCNet"`
	ConnectionPassword  string               `env:"CONNECTION_PASSWORD" envDefault:""`
	OperatorCredentials []OperatorCredential `env:"OPERATOR_CREDENTIALS" envSeparator:";"`

	AdminName  string `env:"ADMIN_NAME" envDefault:"Unknown Admin"`
	AdminEmail string `env:"ADMIN_EMAIL" envDefault:"admin@example.com"`
	AdminNick  string `env:"ADMIN_NICK" envDefault:"admin"`

	// Path of the tag/attribute config file read on rehash.
	ConfPath string `env:"IRCD_CONF" envDefault:"ircd.yaml"`

	// Modules built against an older major ABI are refused.
	MinModuleMajor int `env:"MIN_MODULE_MAJOR" envDefault:"1"`

	// Shared-object modules loaded at startup.
	ModuleFiles []string `env:"MODULE_FILES" envSeparator:","`
	// Compiled-in modules enabled at startup.
	Modules []string `env:"MODULES" envSeparator:"," envDefault:"usermod"`

	BanDBPath string `env:"BAN_DB" envDefault:"ircd-bans.db"`

	// Server-to-server link configuration.
	LinkPassword  string   `env:"LINK_PASSWORD" envDefault:""`
	LinkAddresses []string `env:"LINK_ADDRESSES" envSeparator:","`

	Debug bool `env:"DEBUG" envDefault:"false"`

	// Bind addresses from CLI flags, not environment
	IRCBindAddr   string
	AdminBindAddr string
	LinkBindAddr  string
}

// OperatorCredential represents an IRC operator's credentials
type OperatorCredential struct {
	Username string
	Password string // bcrypt hash
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
// Format: username:bcrypt-hash
func (o *OperatorCredential) UnmarshalText(text []byte) error {
	parts := strings.SplitN(string(text), ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid operator credential format, expected username:hash")
	}
	o.Username = parts[0]
	o.Password = parts[1]
	return nil
}

// ServerStats holds real-time server statistics
type ServerStats struct {
	sync.RWMutex
	StartTime       time.Time
	ConnectionCount int
	MaxConnections  int
	BanHits         int
}

// NewServer creates a new IRC server with the given bind addresses
func NewServer(ircBindAddr, adminBindAddr, linkBindAddr string) (*Server, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	cfg.IRCBindAddr = ircBindAddr
	cfg.AdminBindAddr = adminBindAddr
	cfg.LinkBindAddr = linkBindAddr

	s := &Server{
		Config:        cfg,
		clients:       make(map[string]*Client),
		channels:      make(map[string]*Channel),
		modules:       NewModuleRegistry(),
		extModes:      NewExtModeRegistry(),
		commands:      make(map[string]*Command),
		loadedOrigins: make(map[Module]string),
		operPrivs:     make(map[string][]string),
		limits:        DefaultLimits(),
		logThreshold:  LogDefault,
		shutdown:      make(chan struct{}),
		startTime:     time.Now(),
		stats:         &ServerStats{StartTime: time.Now()},
	}
	s.links = newLinkManager(s)

	return s, nil
}

// Start starts all components of the IRC server
func (s *Server) Start() error {
	store, err := OpenBanStore(s.Config.BanDBPath)
	if err != nil {
		return err
	}
	s.banStore = store

	if err := s.Rehash(); err != nil {
		log.Printf("Warning: initial config read failed: %v", err)
	}

	if err := s.StartIRCServer(); err != nil {
		return err
	}

	if s.Config.LinkBindAddr != "" {
		if err := s.links.Listen(s.Config.LinkBindAddr); err != nil {
			s.StopIRCServer()
			return err
		}
	}
	s.links.ConnectAll(s.Config.LinkAddresses)

	if s.Config.AdminBindAddr != "" {
		if err := s.StartAdminServer(); err != nil {
			s.StopIRCServer()
			s.links.Close()
			return err
		}
	}

	return s.loadConfiguredModules()
}

// StartIRCServer starts only the IRC listener component
func (s *Server) StartIRCServer() error {
	if s.listener != nil {
		return nil
	}

	var err error
	s.listener, err = net.Listen("tcp", s.Config.IRCBindAddr)
	if err != nil {
		return fmt.Errorf("failed to start IRC listener: %w", err)
	}
	log.Printf("IRC Server started on %s", s.listener.Addr().String())

	go s.acceptConnections()

	return nil
}

// Addr returns the bound address of the IRC listener, or "" before
// Start. Useful when binding to port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// StopIRCServer stops only the IRC listener component
func (s *Server) StopIRCServer() error {
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			return fmt.Errorf("error closing IRC listener: %w", err)
		}
		s.listener = nil
		log.Printf("IRC Server stopped")
	}
	return nil
}

// Stop shuts down all components.
func (s *Server) Stop() {
	close(s.shutdown)
	s.StopIRCServer()
	s.links.Close()
	s.StopAdminServer()
	if s.banStore != nil {
		s.banStore.Close()
	}
}

// loadConfiguredModules loads the modules named in the environment:
// shared objects from MODULE_FILES, compiled-in modules from MODULES.
func (s *Server) loadConfiguredModules() error {
	for _, path := range s.Config.ModuleFiles {
		if _, err := s.LoadModuleFile(path); err != nil {
			return fmt.Errorf("module %s: %w", path, err)
		}
	}
	for _, name := range s.Config.Modules {
		if name == "" {
			continue
		}
		if _, err := s.LoadBuiltinModule(name); err != nil {
			return fmt.Errorf("module %s: %w", name, err)
		}
	}
	return nil
}

// Rehash re-reads the config file, applies oper privileges, limits and
// the log threshold, then notifies the loaded modules.
func (s *Server) Rehash() error {
	reader, err := config.NewReaderFile(s.Config.ConfPath)
	if err != nil {
		return err
	}

	s.opersMu.Lock()
	s.operPrivs = make(map[string][]string)
	for i := 0; i < reader.Enumerate("oper"); i++ {
		name := reader.ReadValue("oper", "name", i)
		privs := reader.ReadValue("oper", "privs", i)
		if name == "" {
			continue
		}
		s.operPrivs[name] = splitPrivs(privs)
	}
	s.opersMu.Unlock()

	limits := DefaultLimits()
	if v, ok := reader.ReadInt("limits", "maxhost", 0); ok {
		limits.MaxHost = v
	}
	if v, ok := reader.ReadInt("limits", "maxreal", 0); ok {
		limits.MaxReal = v
	}
	if v, ok := reader.ReadInt("limits", "identmax", 0); ok {
		limits.MaxIdent = v
	}
	if v, ok := reader.ReadInt("limits", "nickmax", 0); ok {
		limits.MaxNick = v
	}
	s.limitsMu.Lock()
	s.limits = limits
	s.limitsMu.Unlock()

	if v, ok := reader.ReadInt("log", "threshold", 0); ok {
		s.SetLogThreshold(v)
	}

	s.FireRehash()
	log.Printf("Rehashed configuration from %s", s.Config.ConfPath)
	return nil
}

// Limits returns the current per-attribute length caps.
func (s *Server) Limits() Limits {
	s.limitsMu.RLock()
	defer s.limitsMu.RUnlock()
	return s.limits
}

// SetLogThreshold sets the minimum level accepted by Log.
func (s *Server) SetLogThreshold(level int) {
	s.logMu.Lock()
	s.logThreshold = level
	s.logMu.Unlock()
}

// splitPrivs parses a space-separated privilege list.
func splitPrivs(raw string) []string {
	var privs []string
	for _, p := range strings.Fields(raw) {
		privs = append(privs, p)
	}
	return privs
}

// renameLocked renames a client under the server write lock and
// announces the change to every user sharing a channel.
func (s *Server) renameLocked(c *Client, newNick string) {
	oldPrefix := c.Prefix()
	oldNick := c.nickname

	delete(s.clients, oldNick)
	c.Lock()
	c.nickname = newNick
	c.Unlock()
	s.clients[newNick] = c

	for _, channel := range s.channels {
		channel.Lock()
		if channel.clients[oldNick] != nil {
			channel.clients[newNick] = c
			delete(channel.clients, oldNick)
			for _, grants := range []map[string]bool{channel.operators, channel.halfops, channel.voices} {
				if grants[oldNick] {
					delete(grants, oldNick)
					grants[newNick] = true
				}
			}
		}
		channel.Unlock()
	}

	line := fmt.Sprintf(":%s NICK %s", oldPrefix, newNick)
	seen := map[string]bool{newNick: true}
	c.sendRaw(line)
	for _, channel := range s.channels {
		channel.RLock()
		if channel.clients[newNick] == nil {
			channel.RUnlock()
			continue
		}
		for nick, member := range channel.clients {
			if member == c || seen[nick] {
				continue
			}
			seen[nick] = true
			member.sendRaw(line)
		}
		channel.RUnlock()
	}
}

// introduceRemoteUser records a user announced by a peer server. The
// record has no connection; lines addressed to it are forwarded over
// the owning link. Nick collisions keep the existing user.
func (s *Server) introduceRemoteUser(serverName, nick, ident, host, modes, realname string) *Client {
	s.Lock()
	defer s.Unlock()

	if _, exists := s.clients[nick]; exists {
		log.Printf("Nick collision introducing %s from %s, keeping local user", nick, serverName)
		return nil
	}

	c := &Client{
		id:           newClientID(),
		server:       s,
		nickname:     nick,
		username:     ident,
		hostname:     host,
		realname:     realname,
		channels:     make(map[string]bool),
		registered:   true,
		RemoteOrigin: true,
		RemoteServer: serverName,
	}
	c.Modes.ParseModeString(modes)
	s.clients[nick] = c
	return c
}

// grantRemotePrivs marks a remote user as an operator holding the given
// privileges, as bursted by the owning server.
func (s *Server) grantRemotePrivs(serverName, nick string, privs []string) {
	c := s.FindNick(nick)
	if c == nil || !c.RemoteOrigin || c.RemoteServer != serverName {
		return
	}
	c.Lock()
	c.Modes.Operator = true
	c.operPrivs = append([]string(nil), privs...)
	c.Unlock()
}

// renameRemoteUser applies a nick change announced by the owning server.
func (s *Server) renameRemoteUser(serverName, oldNick, newNick string) {
	s.Lock()
	defer s.Unlock()

	c := s.clients[oldNick]
	if c == nil || !c.RemoteOrigin || c.RemoteServer != serverName {
		return
	}
	if _, exists := s.clients[newNick]; exists {
		return
	}
	delete(s.clients, oldNick)
	c.Lock()
	c.nickname = newNick
	c.Unlock()
	s.clients[newNick] = c
}

// removeRemoteUser drops a remote user after its server announced the
// quit.
func (s *Server) removeRemoteUser(serverName, nick string) {
	s.Lock()
	defer s.Unlock()

	c := s.clients[nick]
	if c == nil || !c.RemoteOrigin || c.RemoteServer != serverName {
		return
	}
	delete(s.clients, nick)
}

// dropRemoteUsers removes every user owned by a peer whose link closed.
func (s *Server) dropRemoteUsers(serverName string) {
	s.Lock()
	defer s.Unlock()

	for nick, c := range s.clients {
		if c.RemoteOrigin && c.RemoteServer == serverName {
			delete(s.clients, nick)
		}
	}
}

// acceptConnections accepts incoming client connections
func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				log.Printf("Error accepting connection: %v", err)
				continue
			}
		}

		s.stats.Lock()
		s.stats.ConnectionCount++
		if s.stats.ConnectionCount > s.stats.MaxConnections {
			s.stats.MaxConnections = s.stats.ConnectionCount
		}
		s.stats.Unlock()

		remoteAddr := conn.RemoteAddr().String()
		if banned, reason := s.checkBans(remoteAddr); banned {
			writer := bufio.NewWriter(conn)
			fmt.Fprintf(writer, "ERROR :Closing Link: %s [%s]\r\n", remoteAddr, reason)
			writer.Flush()
			conn.Close()

			s.stats.Lock()
			s.stats.BanHits++
			s.stats.Unlock()

			log.Printf("Rejected connection from %s (banned: %s)", remoteAddr, reason)
			continue
		}

		client := &Client{
			id:       newClientID(),
			conn:     conn,
			server:   s,
			channels: make(map[string]bool),
			lastPong: time.Now(),
			writer:   bufio.NewWriter(conn),
			hostname: remoteAddr,
		}

		go client.handleConnection()
	}
}

// checkBans matches a remote address against the persistent ban list.
func (s *Server) checkBans(remoteAddr string) (bool, string) {
	if s.banStore == nil {
		return false, ""
	}
	host := hostPart(remoteAddr)
	ban, err := s.banStore.Match(host)
	if err != nil {
		log.Printf("Error checking bans for %s: %v", host, err)
		return false, ""
	}
	if ban == nil {
		return false, ""
	}
	return true, ban.Reason
}
