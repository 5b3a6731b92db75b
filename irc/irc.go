/*
Package irc implements an RFC 1459/2812 IRC server built around a
loadable module system.

# Core

The core carries the connection lifecycle (PASS, NICK, USER
registration, ping/pong), channels with the common mode set, private
and channel messaging, operator authentication with bcrypt credentials
and per-operator privilege lists, persistent K-line/G-line bans, and a
line-based server-to-server link.

# Modules

Everything beyond the core is a module implementing the Module
interface. Modules load from Go plugin artifacts exporting the
IRCDModule symbol, or compile in and register through
RegisterBuiltinModule. The server fires events at modules in load
order:

  - user lifecycle: OnUserConnect, OnUserQuit, OnUserJoin, OnUserPart
  - configuration: OnRehash
  - link traffic: OnPacketTransmit, OnPacketReceive, OnServerRaw
  - modes: OnExtendedMode for mode letters claimed via AddExtendedMode

Modules extend the command table with AddCommand; successful commands
propagate over links per their route descriptor. The rest of the
surface modules use (SendOpers, SendServ, FindNick, IsNick, Log and
friends) lives in facade.go.

# Usage

	server, err := irc.NewServer(":6667", "127.0.0.1:8080", ":6668")
	if err != nil {
	    log.Fatalf("Failed to create server: %v", err)
	}

	if err := server.Start(); err != nil {
	    log.Fatalf("Failed to start server: %v", err)
	}

Configuration comes from environment variables (see Config) plus the
tag/attribute config file read on Rehash.
*/
package irc
