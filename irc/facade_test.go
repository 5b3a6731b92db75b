package irc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// recvLine pulls one delivered line off a test client, failing after a
// timeout.
func recvLine(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case line := <-lines:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a delivered line")
		return ""
	}
}

// assertNoLine asserts nothing was delivered to a test client.
func assertNoLine(t *testing.T, lines <-chan string) {
	t.Helper()
	select {
	case line := <-lines:
		t.Fatalf("unexpected delivery: %q", line)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIsNick(t *testing.T) {
	s := newTestServer(t)

	assert.True(t, s.IsNick("alice"))
	assert.True(t, s.IsNick("[away]bob"))
	assert.True(t, s.IsNick("a1-2"))
	assert.False(t, s.IsNick(""))
	assert.False(t, s.IsNick("1alice"), "nicks cannot start with a digit")
	assert.False(t, s.IsNick("-alice"))
	assert.False(t, s.IsNick("ali ce"))

	long := make([]byte, s.Limits().MaxNick+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, s.IsNick(string(long)))
}

func TestIsIdent(t *testing.T) {
	s := newTestServer(t)

	assert.True(t, s.IsIdent("ident"))
	assert.True(t, s.IsIdent("a.b-c"))
	assert.False(t, s.IsIdent(""))
	assert.False(t, s.IsIdent("1abc"), "idents must start with a letter")
	assert.False(t, s.IsIdent("has space"))

	long := make([]byte, s.Limits().MaxIdent+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, s.IsIdent(string(long)))
}

func TestDefaultLimits(t *testing.T) {
	l := DefaultLimits()
	assert.Equal(t, 64, l.MaxHost)
	assert.Equal(t, 130, l.MaxReal)
	assert.Equal(t, 12, l.MaxIdent)
}

func TestAddCommandLookup(t *testing.T) {
	s := newTestServer(t)

	s.AddCommand(&Command{Name: "usermod", MinParams: 2})
	cmd, ok := s.lookupCommand("USERMOD")
	assert.True(t, ok)
	assert.Equal(t, "usermod", cmd.Name)

	_, ok = s.lookupCommand("NOSUCH")
	assert.False(t, ok)

	s.RemoveCommand("UserMod")
	_, ok = s.lookupCommand("USERMOD")
	assert.False(t, ok)
}

func TestAddExtendedModeFacade(t *testing.T) {
	s := newTestServer(t)
	owner := &recordingModule{name: "owner"}

	assert.True(t, s.AddExtendedMode(owner, 'X', ModeChannel, false, 1, 0))
	assert.False(t, s.AddExtendedMode(owner, 'X', ModeChannel, false, 0, 0))

	claim, ok := s.extModes.Lookup('X', ModeChannel)
	assert.True(t, ok)
	assert.Equal(t, byte('X'), claim.Letter)
}

func TestSendWallopsOnlyReachesWallopsMode(t *testing.T) {
	s := newTestServer(t)

	source, _ := addLocalUser(t, s, "alice")

	listener, listenerLines := addLocalUser(t, s, "bob")
	listener.Modes.Wallops = true

	operNoW, operLines := addLocalUser(t, s, "carol")
	operNoW.Modes.Operator = true

	_, plainLines := addLocalUser(t, s, "dave")

	s.SendWallops(source, "maintenance in five")

	assert.Contains(t, recvLine(t, listenerLines), "WALLOPS :maintenance in five")
	assertNoLine(t, operLines)
	assertNoLine(t, plainLines)
}

func TestSendOpersOnlyReachesNoticeMode(t *testing.T) {
	s := newTestServer(t)

	watcher, watcherLines := addLocalUser(t, s, "alice")
	watcher.Modes.Notice = true

	operNoS, operLines := addLocalUser(t, s, "bob")
	operNoS.Modes.Operator = true

	s.SendOpers("the server is on fire")

	assert.Contains(t, recvLine(t, watcherLines), "the server is on fire")
	assertNoLine(t, operLines)
}

func TestSplitPrivs(t *testing.T) {
	assert.Equal(t, []string{"usermod/host-self", "usermod/*"}, splitPrivs("usermod/host-self  usermod/*"))
	assert.Nil(t, splitPrivs(""))
}
