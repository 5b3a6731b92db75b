package irc

// Log levels accepted by Server.Log. A message is emitted when its level
// meets or exceeds the server's configured threshold.
const (
	LogDebug   = 10
	LogVerbose = 20
	LogDefault = 30
	LogSparse  = 40
	LogNone    = 50
)

// ModeScope identifies where a mode letter applies.
type ModeScope int

const (
	ModeChannel ModeScope = iota + 1
	ModeClient
	ModeServer
)

// String returns the scope name used in logs and the admin API.
func (s ModeScope) String() string {
	switch s {
	case ModeChannel:
		return "channel"
	case ModeClient:
		return "client"
	case ModeServer:
		return "server"
	}
	return "unknown"
}

// Version holds a module's version information. All four members are set
// at construction and never change.
type Version struct {
	Major    int
	Minor    int
	Revision int
	Build    int
}

// Admin contains the administrative contact details of the local server,
// as returned by the ADMIN command.
type Admin struct {
	Name  string
	Email string
	Nick  string
}

// Module is the interface implemented by every loaded extension. The
// server invokes the event hooks in module registration order. Hooks run
// on the dispatching goroutine and must return promptly.
//
// Embed BaseModule to get no-op implementations of every hook and
// override only the events the module cares about.
type Module interface {
	// GetVersion reports the module's version quadruple. The server may
	// refuse modules below its configured minimum major version.
	GetVersion() Version

	// OnUserConnect is called after a user completes registration.
	OnUserConnect(user *Client)

	// OnUserQuit is called when a user disconnects.
	OnUserQuit(user *Client)

	// OnUserJoin is called after a join has been committed to the channel.
	OnUserJoin(user *Client, channel *Channel)

	// OnUserPart is called after a part has been committed.
	OnUserPart(user *Client, channel *Channel)

	// OnPacketTransmit is called before an inter-server frame leaves this
	// server. The buffer may be rewritten or resized; modules see the
	// output of every module registered before them.
	OnPacketTransmit(packet *[]byte)

	// OnPacketReceive is called immediately after an inter-server frame
	// arrives, before any core handling.
	OnPacketReceive(packet *[]byte)

	// OnRehash is called when the server reloads its configuration.
	OnRehash()

	// OnServerRaw is called for every raw line passing a local link.
	// After all modules return, the core truncates the line to 510 bytes
	// and terminates it with CRLF.
	OnServerRaw(raw *string, inbound bool)

	// OnExtendedMode is called when a user applies a mode letter that was
	// claimed through Server.AddExtendedMode. chan is nil unless scope is
	// ModeChannel. Returning true marks the mode as handled and stops the
	// fan-out; if no module returns true the core treats the mode as
	// unrecognized.
	OnExtendedMode(user *Client, channel *Channel, letter byte, scope ModeScope, on bool, params []string) bool
}

// ModuleFactory produces a fresh Module bound to a server. A plugin
// artifact exposes exactly one factory.
type ModuleFactory interface {
	CreateModule(srv *Server) Module
}

// ModuleFactoryFunc adapts a function to the ModuleFactory interface.
type ModuleFactoryFunc func(srv *Server) Module

// CreateModule calls f.
func (f ModuleFactoryFunc) CreateModule(srv *Server) Module { return f(srv) }

// BaseModule provides no-op implementations of every Module hook.
type BaseModule struct{}

func (BaseModule) GetVersion() Version                  { return Version{} }
func (BaseModule) OnUserConnect(*Client)                {}
func (BaseModule) OnUserQuit(*Client)                   {}
func (BaseModule) OnUserJoin(*Client, *Channel)         {}
func (BaseModule) OnUserPart(*Client, *Channel)         {}
func (BaseModule) OnPacketTransmit(*[]byte)             {}
func (BaseModule) OnPacketReceive(*[]byte)              {}
func (BaseModule) OnRehash()                            {}
func (BaseModule) OnServerRaw(*string, bool)            {}
func (BaseModule) OnExtendedMode(*Client, *Channel, byte, ModeScope, bool, []string) bool {
	return false
}
