package irc

import (
	"fmt"
	"strings"
)

// CmdResult is the outcome a command handler reports. Only successful
// commands are routed to linked servers.
type CmdResult int

const (
	CmdFailure CmdResult = iota
	CmdSuccess
	CmdInvalid
)

func (r CmdResult) String() string {
	switch r {
	case CmdSuccess:
		return "success"
	case CmdInvalid:
		return "invalid"
	}
	return "failure"
}

// RouteType selects how a successful command propagates over links.
type RouteType int

const (
	RouteNone RouteType = iota
	RouteLocalOnly
	RouteUnicast
	RouteBroadcast
)

// RouteInfo describes the propagation of one command invocation.
// Target is the nickname whose home server receives a unicast.
type RouteInfo struct {
	Type   RouteType
	Target string
}

// Command is a command registered by a module. Name is matched
// case-insensitively against incoming lines after the core dispatch
// table. MaxParams of zero means unbounded.
type Command struct {
	Name      string
	MinParams int
	MaxParams int
	OperOnly  bool
	Handle    func(source *Client, params []string) CmdResult
	Route     func(source *Client, params []string) RouteInfo
}

// AddCommand registers a module command. Registering a name twice
// replaces the earlier handler; a module reloading itself depends on
// that.
func (s *Server) AddCommand(cmd *Command) {
	name := strings.ToUpper(cmd.Name)

	s.commandsMu.Lock()
	s.commands[name] = cmd
	s.commandsMu.Unlock()
}

// RemoveCommand unregisters a module command.
func (s *Server) RemoveCommand(name string) {
	s.commandsMu.Lock()
	delete(s.commands, strings.ToUpper(name))
	s.commandsMu.Unlock()
}

func (s *Server) lookupCommand(name string) (*Command, bool) {
	s.commandsMu.RLock()
	cmd, ok := s.commands[strings.ToUpper(name)]
	s.commandsMu.RUnlock()
	return cmd, ok
}

// routeCommand propagates a successful command per its route function.
func (s *Server) routeCommand(source *Client, cmd *Command, msg *Message) {
	route := cmd.Route(source, msg.Params)
	if route.Type == RouteNone || route.Type == RouteLocalOnly {
		return
	}

	line := fmt.Sprintf(":%s %s", source.Prefix(), msg.String())

	switch route.Type {
	case RouteBroadcast:
		s.links.Broadcast(line)
	case RouteUnicast:
		target := s.FindNick(route.Target)
		if target == nil || !target.RemoteOrigin {
			return
		}
		s.links.SendTo(target.RemoteServer, line)
	}
}
