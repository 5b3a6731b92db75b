package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingModule records the order its hooks fire in.
type recordingModule struct {
	BaseModule
	name       string
	log        *[]string
	handleMode bool
	onConnect  func(*recordingModule)
}

func (m *recordingModule) GetVersion() Version { return Version{Major: 1} }

func (m *recordingModule) OnUserConnect(*Client) {
	*m.log = append(*m.log, m.name+":connect")
	if m.onConnect != nil {
		m.onConnect(m)
	}
}

func (m *recordingModule) OnRehash() {
	*m.log = append(*m.log, m.name+":rehash")
}

func (m *recordingModule) OnExtendedMode(*Client, *Channel, byte, ModeScope, bool, []string) bool {
	*m.log = append(*m.log, m.name+":mode")
	return m.handleMode
}

func newTestServer(t *testing.T) *Server {
	s, err := NewServer(":0", "", "")
	assert.NoError(t, err)
	return s
}

func TestRegistryDeliveryOrder(t *testing.T) {
	s := newTestServer(t)
	var log []string

	first := &recordingModule{name: "first", log: &log}
	second := &recordingModule{name: "second", log: &log}
	s.modules.Register(first)
	s.modules.Register(second)

	s.FireUserConnect(nil)
	assert.Equal(t, []string{"first:connect", "second:connect"}, log)

	log = nil
	s.FireRehash()
	assert.Equal(t, []string{"first:rehash", "second:rehash"}, log)
}

func TestRegistryRegisterIdempotent(t *testing.T) {
	s := newTestServer(t)
	var log []string

	m := &recordingModule{name: "m", log: &log}
	s.modules.Register(m)
	s.modules.Register(m)
	assert.Equal(t, 1, s.modules.Count())

	s.modules.Unregister(m)
	s.modules.Unregister(m)
	assert.Equal(t, 0, s.modules.Count())
}

func TestExtendedModeShortCircuit(t *testing.T) {
	s := newTestServer(t)
	var log []string

	s.modules.Register(&recordingModule{name: "first", log: &log, handleMode: true})
	s.modules.Register(&recordingModule{name: "second", log: &log, handleMode: true})

	handled := s.FireExtendedMode(nil, nil, 'X', ModeClient, true, nil)
	assert.True(t, handled)
	assert.Equal(t, []string{"first:mode"}, log, "fan-out should stop at the first handler")
}

func TestExtendedModeUnhandled(t *testing.T) {
	s := newTestServer(t)
	var log []string

	s.modules.Register(&recordingModule{name: "first", log: &log})
	s.modules.Register(&recordingModule{name: "second", log: &log})

	handled := s.FireExtendedMode(nil, nil, 'X', ModeClient, true, nil)
	assert.False(t, handled)
	assert.Equal(t, []string{"first:mode", "second:mode"}, log)
}

func TestExtendedModeNilsChannelForNonChannelScope(t *testing.T) {
	s := newTestServer(t)

	var sawChannel *Channel
	m := &hookModule{onExtendedMode: func(_ *Client, ch *Channel, _ byte, _ ModeScope, _ bool, _ []string) bool {
		sawChannel = ch
		return true
	}}
	s.modules.Register(m)

	s.FireExtendedMode(nil, newChannel("#x"), 'Z', ModeServer, true, nil)
	assert.Nil(t, sawChannel)
}

// hookModule adapts closures to the Module interface for one-off tests.
type hookModule struct {
	BaseModule
	onExtendedMode func(*Client, *Channel, byte, ModeScope, bool, []string) bool
	onServerRaw    func(*string, bool)
	onPacket       func(*[]byte)
}

func (m *hookModule) GetVersion() Version { return Version{Major: 1} }

func (m *hookModule) OnExtendedMode(u *Client, ch *Channel, letter byte, scope ModeScope, on bool, params []string) bool {
	if m.onExtendedMode != nil {
		return m.onExtendedMode(u, ch, letter, scope, on, params)
	}
	return false
}

func (m *hookModule) OnServerRaw(raw *string, inbound bool) {
	if m.onServerRaw != nil {
		m.onServerRaw(raw, inbound)
	}
}

func (m *hookModule) OnPacketReceive(p *[]byte) {
	if m.onPacket != nil {
		m.onPacket(p)
	}
}

func TestRegisterDuringDispatchIsDeferred(t *testing.T) {
	s := newTestServer(t)
	var log []string

	late := &recordingModule{name: "late", log: &log}
	first := &recordingModule{name: "first", log: &log}
	first.onConnect = func(*recordingModule) {
		s.modules.Register(late)
	}
	s.modules.Register(first)

	s.FireUserConnect(nil)
	assert.Equal(t, []string{"first:connect"}, log, "module added mid-dispatch must not see the current event")
	assert.Equal(t, 2, s.modules.Count())

	log = nil
	s.FireUserConnect(nil)
	assert.Equal(t, []string{"first:connect", "late:connect"}, log)
}

func TestUnregisterDuringDispatchIsDeferred(t *testing.T) {
	s := newTestServer(t)
	var log []string

	second := &recordingModule{name: "second", log: &log}
	first := &recordingModule{name: "first", log: &log}
	first.onConnect = func(*recordingModule) {
		s.modules.Unregister(second)
	}
	s.modules.Register(first)
	s.modules.Register(second)

	s.FireUserConnect(nil)
	assert.Equal(t, []string{"first:connect", "second:connect"}, log, "module removed mid-dispatch still sees the current event")
	assert.Equal(t, 1, s.modules.Count())
}

type panickyModule struct {
	BaseModule
}

func (panickyModule) GetVersion() Version   { return Version{Major: 1} }
func (panickyModule) OnUserConnect(*Client) { panic("boom") }

func TestPanicInHookIsRecovered(t *testing.T) {
	s := newTestServer(t)
	var log []string

	s.modules.Register(panickyModule{})
	s.modules.Register(&recordingModule{name: "after", log: &log})

	assert.NotPanics(t, func() { s.FireUserConnect(nil) })
	assert.Equal(t, []string{"after:connect"}, log, "modules after a panicking one still run")
}

func TestServerRawTruncation(t *testing.T) {
	s := newTestServer(t)

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	out := s.FireServerRaw(string(long), false)
	assert.Len(t, out, 510)

	// a module rewriting the line is truncated too
	s.modules.Register(&hookModule{onServerRaw: func(raw *string, _ bool) {
		*raw = *raw + string(long)
	}})
	out = s.FireServerRaw("PING :x", true)
	assert.Len(t, out, 510)
	assert.Equal(t, "PING :x", out[:7])
}

func TestPacketHooksComposeInOrder(t *testing.T) {
	s := newTestServer(t)

	s.modules.Register(&hookModule{onPacket: func(p *[]byte) { *p = append(*p, 'A') }})
	s.modules.Register(&hookModule{onPacket: func(p *[]byte) { *p = append(*p, 'B') }})

	packet := []byte("x")
	s.FirePacketReceive(&packet)
	assert.Equal(t, "xAB", string(packet))
}
