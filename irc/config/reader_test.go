package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const yamlConf = `
server:
  name: irc.example.com
oper:
  - name: alice
    privs: usermod/host-others usermod/nick-self
  - name: bob
    privs: usermod/*
limits:
  maxhost: 96
  identmax: 10
hostname:
  charmap: abc123
flags:
  secure: true
`

func TestReaderYAML(t *testing.T) {
	r, err := NewReaderFile(writeTemp(t, "ircd.yaml", yamlConf))
	assert.NoError(t, err)
	assert.NoError(t, r.Verify())

	assert.Equal(t, "irc.example.com", r.ReadValue("server", "name", 0))
	assert.Equal(t, 2, r.Enumerate("oper"))
	assert.Equal(t, "alice", r.ReadValue("oper", "name", 0))
	assert.Equal(t, "usermod/*", r.ReadValue("oper", "privs", 1))
	assert.Equal(t, "abc123", r.ReadValue("hostname", "charmap", 0))

	n, ok := r.ReadInt("limits", "maxhost", 0)
	assert.True(t, ok)
	assert.Equal(t, 96, n)

	b, ok := r.ReadBool("flags", "secure", 0)
	assert.True(t, ok)
	assert.True(t, b)
}

func TestReaderMissingValues(t *testing.T) {
	r, err := NewReaderFile(writeTemp(t, "ircd.yaml", yamlConf))
	assert.NoError(t, err)

	assert.Equal(t, "", r.ReadValue("nosuchtag", "attr", 0))
	assert.Equal(t, "", r.ReadValue("oper", "name", 5))
	assert.Equal(t, "", r.ReadValue("oper", "name", -1))
	assert.Equal(t, "", r.ReadValue("server", "nosuchattr", 0))
	assert.Equal(t, 0, r.Enumerate("nosuchtag"))

	_, ok := r.ReadInt("server", "name", 0)
	assert.False(t, ok, "non-numeric values read as absent integers")
}

func TestReaderTOML(t *testing.T) {
	conf := `
[server]
name = "irc.example.com"

[[oper]]
name = "alice"
privs = "usermod/host-self"

[[oper]]
name = "bob"
privs = "usermod/*"
`
	r, err := NewReaderFile(writeTemp(t, "ircd.toml", conf))
	assert.NoError(t, err)
	assert.Equal(t, "irc.example.com", r.ReadValue("server", "name", 0))
	assert.Equal(t, 2, r.Enumerate("oper"))
	assert.Equal(t, "usermod/host-self", r.ReadValue("oper", "privs", 0))
	assert.Equal(t, "bob", r.ReadValue("oper", "name", 1))
}

func TestReaderJSON(t *testing.T) {
	conf := `{"server": {"name": "irc.example.com", "port": 6667}}`
	r, err := NewReaderFile(writeTemp(t, "ircd.json", conf))
	assert.NoError(t, err)
	assert.Equal(t, "irc.example.com", r.ReadValue("server", "name", 0))

	port, ok := r.ReadInt("server", "port", 0)
	assert.True(t, ok)
	assert.Equal(t, 6667, port)
}

func TestReaderBadSource(t *testing.T) {
	r, err := NewReaderFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Error(t, r.Verify())
	assert.Equal(t, "", r.ReadValue("server", "name", 0), "a failed reader reads as empty")

	r, err = NewReaderFile(writeTemp(t, "bad.yaml", "server: [unbalanced"))
	assert.Error(t, err)
	assert.Error(t, r.Verify())
}

func TestReaderDefaultPath(t *testing.T) {
	path := writeTemp(t, "ircd.yaml", yamlConf)
	t.Setenv(DefaultPathEnv, path)

	r, err := NewReader()
	assert.NoError(t, err)
	assert.Equal(t, path, r.Source())
	assert.Equal(t, "irc.example.com", r.ReadValue("server", "name", 0))
}
