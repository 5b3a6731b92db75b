package irc

// Event fan-out entry points. Each fires a single hook on every
// registered module in registration order; see ModuleRegistry.dispatch
// for the ordering and mutation guarantees.

// FireUserConnect announces a fully registered user to all modules.
func (s *Server) FireUserConnect(user *Client) {
	s.modules.dispatch("OnUserConnect", func(m Module) bool {
		m.OnUserConnect(user)
		return false
	})
}

// FireUserQuit announces a disconnecting user to all modules.
func (s *Server) FireUserQuit(user *Client) {
	s.modules.dispatch("OnUserQuit", func(m Module) bool {
		m.OnUserQuit(user)
		return false
	})
}

// FireUserJoin announces a committed join to all modules.
func (s *Server) FireUserJoin(user *Client, channel *Channel) {
	s.modules.dispatch("OnUserJoin", func(m Module) bool {
		m.OnUserJoin(user, channel)
		return false
	})
}

// FireUserPart announces a committed part to all modules.
func (s *Server) FireUserPart(user *Client, channel *Channel) {
	s.modules.dispatch("OnUserPart", func(m Module) bool {
		m.OnUserPart(user, channel)
		return false
	})
}

// FireRehash tells all modules that the configuration was reloaded.
func (s *Server) FireRehash() {
	s.modules.dispatch("OnRehash", func(m Module) bool {
		m.OnRehash()
		return false
	})
}

// FirePacketTransmit runs an outbound inter-server frame through every
// module. Mutations compose in registration order.
func (s *Server) FirePacketTransmit(packet *[]byte) {
	s.modules.dispatch("OnPacketTransmit", func(m Module) bool {
		m.OnPacketTransmit(packet)
		return false
	})
}

// FirePacketReceive runs an inbound inter-server frame through every
// module before the core handles it.
func (s *Server) FirePacketReceive(packet *[]byte) {
	s.modules.dispatch("OnPacketReceive", func(m Module) bool {
		m.OnPacketReceive(packet)
		return false
	})
}

// FireServerRaw runs a raw link line through every module and then cuts
// the result down to the protocol's 510-byte line limit. The returned
// string does not include the CRLF terminator; writers append it.
func (s *Server) FireServerRaw(raw string, inbound bool) string {
	s.modules.dispatch("OnServerRaw", func(m Module) bool {
		m.OnServerRaw(&raw, inbound)
		return false
	})
	return truncateLine(raw)
}

// FireExtendedMode offers a claimed mode change to the modules in order,
// stopping at the first module that handles it. The channel argument is
// nil unless scope is ModeChannel.
func (s *Server) FireExtendedMode(user *Client, channel *Channel, letter byte, scope ModeScope, on bool, params []string) bool {
	if scope != ModeChannel {
		channel = nil
	}
	return s.modules.dispatch("OnExtendedMode", func(m Module) bool {
		return m.OnExtendedMode(user, channel, letter, scope, on, params)
	})
}

// maxLineLength is the RFC 1459 line limit excluding the CRLF pair.
const maxLineLength = 510

func truncateLine(line string) string {
	if len(line) > maxLineLength {
		return line[:maxLineLength]
	}
	return line
}
