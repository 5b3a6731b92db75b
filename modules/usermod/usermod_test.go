package usermod_test

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/presbrey/ircd/irc"
	_ "github.com/presbrey/ircd/modules/usermod"
)

const operPassword = "secret"

const testConf = `
oper:
  - name: root
    privs: usermod/*
  - name: limited
    privs: usermod/host-self
`

// testClient is a raw-socket IRC client for black-box tests.
type testClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err, "should connect to the server")
	t.Cleanup(func() { conn.Close() })
	return &testClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) send(t *testing.T, line string) {
	t.Helper()
	_, err := c.conn.Write([]byte(line + "\r\n"))
	assert.NoError(t, err)
}

// expect reads lines until one contains the expected substring.
func (c *testClient) expect(t *testing.T, expected string) string {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			t.Fatalf("waiting for %q: %v", expected, err)
			return ""
		}
		line = strings.TrimSpace(line)
		if strings.Contains(line, expected) {
			return line
		}
	}
}

func register(t *testing.T, c *testClient, nick string) {
	t.Helper()
	c.send(t, "NICK "+nick)
	c.send(t, fmt.Sprintf("USER %s 0 * :%s Realname", nick, nick))
	c.expect(t, " 001 ")
}

func oper(t *testing.T, c *testClient, name string) {
	t.Helper()
	c.send(t, fmt.Sprintf("OPER %s %s", name, operPassword))
	c.expect(t, " 381 ")
}

func startServer(t *testing.T) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(operPassword), bcrypt.MinCost)
	assert.NoError(t, err)

	confPath := filepath.Join(t.TempDir(), "ircd.yaml")
	assert.NoError(t, os.WriteFile(confPath, []byte(testConf), 0644))

	t.Setenv("IRCD_CONF", confPath)
	t.Setenv("BAN_DB", filepath.Join(t.TempDir(), "bans.db"))
	t.Setenv("OPERATOR_CREDENTIALS", fmt.Sprintf("root:%s;limited:%s", hash, hash))

	server, err := irc.NewServer("127.0.0.1:0", "", "")
	assert.NoError(t, err)
	assert.NoError(t, server.Start())
	t.Cleanup(server.Stop)

	return server.Addr()
}

func TestUsermodChangeOwnNick(t *testing.T) {
	addr := startServer(t)

	c := dial(t, addr)
	register(t, c, "alice")
	oper(t, c, "root")

	c.send(t, "USERMOD nick alice2")
	c.expect(t, "NICK alice2")
}

func TestUsermodChangeOtherHost(t *testing.T) {
	addr := startServer(t)

	op := dial(t, addr)
	register(t, op, "root")
	oper(t, op, "root")

	victim := dial(t, addr)
	register(t, victim, "bob")

	// Share a channel so the host change is observable in bob's prefix.
	op.send(t, "JOIN #test")
	op.expect(t, "JOIN #test")
	victim.send(t, "JOIN #test")
	op.expect(t, ":bob!")

	op.send(t, "USERMOD host bob cloak.example.com")
	op.expect(t, "used USERMOD to change the host of bob to 'cloak.example.com'")

	victim.send(t, "PRIVMSG #test :hello")
	line := op.expect(t, "PRIVMSG #test")
	assert.Contains(t, line, "@cloak.example.com")
}

func TestUsermodUnknownAttribute(t *testing.T) {
	addr := startServer(t)

	c := dial(t, addr)
	register(t, c, "alice")
	oper(t, c, "root")

	c.send(t, "USERMOD shoesize 12")
	c.expect(t, "*** USERMOD: shoesize is not a valid user attribute!")
}

func TestUsermodInvalidValueRejected(t *testing.T) {
	addr := startServer(t)

	c := dial(t, addr)
	register(t, c, "alice")
	oper(t, c, "root")

	// '!' is outside the default host charmap
	c.send(t, "USERMOD host bad!host")
	c.expect(t, "*** USERMOD: The host you specified is not valid!")

	// an accepted value draws the oper announcement instead
	c.send(t, "USERMOD host good.example.com")
	c.expect(t, "used USERMOD to change the host of alice to 'good.example.com'")
}

func TestUsermodPrivilegeScopes(t *testing.T) {
	addr := startServer(t)

	c := dial(t, addr)
	register(t, c, "alice")
	oper(t, c, "limited")

	other := dial(t, addr)
	register(t, other, "bob")

	// limited holds usermod/host-self only
	c.send(t, "USERMOD host self.example.com")
	c.expect(t, "used USERMOD to change the host of alice to 'self.example.com'")

	c.send(t, "USERMOD host bob cloak.example.com")
	c.expect(t, "The usermod/host-others oper privilege is required to change bob's host!")

	c.send(t, "USERMOD nick alice2")
	c.expect(t, "The usermod/nick-self oper privilege is required to change alice's nick!")
}

func TestUsermodNoSuchNick(t *testing.T) {
	addr := startServer(t)

	c := dial(t, addr)
	register(t, c, "alice")
	oper(t, c, "root")

	c.send(t, "USERMOD host ghost cloak.example.com")
	c.expect(t, " 401 ")
}

func TestUsermodRequiresOper(t *testing.T) {
	addr := startServer(t)

	c := dial(t, addr)
	register(t, c, "alice")

	c.send(t, "USERMOD host cloak.example.com")
	c.expect(t, " 481 ")
}

func TestUsermodParamBounds(t *testing.T) {
	addr := startServer(t)

	c := dial(t, addr)
	register(t, c, "alice")
	oper(t, c, "root")

	c.send(t, "USERMOD host")
	c.expect(t, " 461 ")
}

func TestUsermodRehashCharmap(t *testing.T) {
	addr := startServer(t)

	c := dial(t, addr)
	register(t, c, "alice")
	oper(t, c, "root")

	// accepted under the default charmap
	c.send(t, "USERMOD host good.example.com")
	c.expect(t, "used USERMOD to change the host of alice to 'good.example.com'")

	// restrict the charmap and rehash; the same host is now rejected
	restricted := testConf + "hostname:\n  charmap: abc\n"
	assert.NoError(t, os.WriteFile(os.Getenv("IRCD_CONF"), []byte(restricted), 0644))
	c.send(t, "REHASH")
	c.expect(t, " 382 ")

	c.send(t, "USERMOD host good.example.com")
	c.expect(t, "*** USERMOD: The host you specified is not valid!")

	c.send(t, "USERMOD host abcabc")
	c.expect(t, "used USERMOD to change the host of alice to 'abcabc'")
}

func TestUsermodChangeRealAndUser(t *testing.T) {
	addr := startServer(t)

	c := dial(t, addr)
	register(t, c, "alice")
	oper(t, c, "root")

	c.send(t, "USERMOD real :A Much Realer Name")
	c.expect(t, "used USERMOD to change the real of alice to 'A Much Realer Name'")

	c.send(t, "USERMOD user newident")
	c.expect(t, "used USERMOD to change the user of alice to 'newident'")

	// idents longer than the cap are rejected
	c.send(t, "USERMOD user thisidentiswaytoolong")
	c.expect(t, "*** USERMOD: The user you specified is not valid!")
}
