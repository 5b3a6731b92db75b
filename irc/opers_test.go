package irc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWildcardMatch(t *testing.T) {
	assert.True(t, wildcardMatch("anything", "*"))
	assert.True(t, wildcardMatch("usermod/host-self", "usermod/host-self"))
	assert.True(t, wildcardMatch("usermod/host-others", "usermod/*"))
	assert.True(t, wildcardMatch("alice!ident@example.com", "*!*@example.com"))
	assert.False(t, wildcardMatch("usermod/host-self", "usermod/nick-*"))
	assert.False(t, wildcardMatch("alice!ident@evil.org", "*!*@example.com"))
}

func TestIsValidHostmask(t *testing.T) {
	assert.True(t, isValidHostmask("nick!user@host.example.com"))
	assert.True(t, isValidHostmask("*!*@10.0.0.1"))
	assert.False(t, isValidHostmask("no-separators"))
	assert.False(t, isValidHostmask("nick!user"))
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("1h30m")
	assert.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	d, err = parseDuration("2d")
	assert.NoError(t, err)
	assert.Equal(t, 48*time.Hour, d)

	_, err = parseDuration("soon")
	assert.Error(t, err)
	_, err = parseDuration("")
	assert.Error(t, err)
}

func TestHasPrivPermission(t *testing.T) {
	c := &Client{}
	c.Modes.Operator = true
	c.operPrivs = []string{"usermod/host-self", "usermod/nick-*"}

	assert.True(t, c.HasPrivPermission("usermod/host-self"))
	assert.True(t, c.HasPrivPermission("usermod/nick-others"))
	assert.False(t, c.HasPrivPermission("usermod/real-self"))

	c.Modes.Operator = false
	assert.False(t, c.HasPrivPermission("usermod/host-self"), "non-opers hold no privileges")
}
