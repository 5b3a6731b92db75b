package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMessage(t *testing.T) {
	msg := ParseMessage("PRIVMSG #test :hello world")
	assert.NotNil(t, msg)
	assert.Equal(t, "PRIVMSG", msg.Command)
	assert.Equal(t, []string{"#test", "hello world"}, msg.Params)

	msg = ParseMessage(":nick!user@host USERMOD host alice example.com")
	assert.NotNil(t, msg)
	assert.Equal(t, "nick!user@host", msg.Prefix)
	assert.Equal(t, "USERMOD", msg.Command)
	assert.Equal(t, []string{"host", "alice", "example.com"}, msg.Params)

	msg = ParseMessage("quit")
	assert.Equal(t, "QUIT", msg.Command)
	assert.Empty(t, msg.Params)

	assert.Nil(t, ParseMessage(""))
	assert.Nil(t, ParseMessage(":prefixonly"))
}

func TestMessageString(t *testing.T) {
	msg := &Message{Command: "USERMOD", Params: []string{"real", "alice", "The Real Alice"}}
	assert.Equal(t, "USERMOD real alice :The Real Alice", msg.String())

	msg = &Message{Prefix: "server.example.com", Command: "PONG", Params: []string{"token"}}
	assert.Equal(t, ":server.example.com PONG token", msg.String())
}

func TestTruncateLine(t *testing.T) {
	short := "NOTICE alice :hi"
	assert.Equal(t, short, truncateLine(short))

	long := make([]byte, 700)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, truncateLine(string(long)), 510)
}
