// Package usermod provides the USERMOD command: an oper-only way to
// rewrite another user's displayed host, nickname, real name or ident.
//
//	USERMOD <attribute> [<nick>] <value>
//
// Each attribute demands the usermod/<attribute>-self or
// usermod/<attribute>-others oper privilege depending on the target.
package usermod

import (
	"fmt"
	"strings"
	"sync"

	"github.com/presbrey/ircd/irc"
	"github.com/presbrey/ircd/irc/config"
)

// DefaultHostChars is the charmap applied when the hostname tag does
// not override it.
const DefaultHostChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz.-_/0123456789"

// attribute is one mutable user field: a syntax gate and a mutator.
type attribute struct {
	check func(value string) bool
	apply func(target *irc.Client, value string)
}

// Module implements the USERMOD command.
type Module struct {
	irc.BaseModule

	srv   *irc.Server
	attrs map[string]*attribute

	mu             sync.RWMutex
	validHostChars [256]bool
}

func init() {
	irc.RegisterBuiltinModule("usermod", irc.ModuleFactoryFunc(New))
}

// New constructs the module, registers the USERMOD command and loads
// the host charmap.
func New(srv *irc.Server) irc.Module {
	m := &Module{srv: srv}
	m.attrs = map[string]*attribute{
		"host": {check: m.checkHost, apply: func(t *irc.Client, v string) { t.ChangeDisplayedHost(v) }},
		"nick": {check: m.checkNick, apply: func(t *irc.Client, v string) { t.ChangeNick(v) }},
		"real": {check: m.checkReal, apply: func(t *irc.Client, v string) { t.ChangeRealName(v) }},
		"user": {check: m.checkUser, apply: func(t *irc.Client, v string) { t.ChangeIdent(v) }},
	}
	m.readHostChars()

	srv.AddCommand(&irc.Command{
		Name:      "USERMOD",
		MinParams: 2,
		MaxParams: 3,
		OperOnly:  true,
		Handle:    m.handle,
		Route:     m.route,
	})
	return m
}

// GetVersion reports the module version.
func (m *Module) GetVersion() irc.Version {
	return irc.Version{Major: 1, Minor: 0, Revision: 0, Build: 1}
}

// OnRehash rebuilds the valid-host charmap from the hostname tag.
func (m *Module) OnRehash() {
	m.readHostChars()
}

func (m *Module) readHostChars() {
	hostchars := DefaultHostChars

	reader, err := config.NewReaderFile(m.srv.Config.ConfPath)
	if err == nil {
		if v := reader.ReadValue("hostname", "charmap", 0); v != "" {
			hostchars = v
		}
	} else {
		m.srv.Log(irc.LogDebug, fmt.Sprintf("usermod: using default charmap: %v", err))
	}

	var set [256]bool
	for i := 0; i < len(hostchars); i++ {
		set[hostchars[i]] = true
	}

	m.mu.Lock()
	m.validHostChars = set
	m.mu.Unlock()
}

func (m *Module) checkHost(value string) bool {
	if len(value) > m.srv.Limits().MaxHost {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := 0; i < len(value); i++ {
		if !m.validHostChars[value[i]] {
			return false
		}
	}
	return true
}

func (m *Module) checkNick(value string) bool {
	return m.srv.IsNick(value)
}

func (m *Module) checkReal(value string) bool {
	return len(value) <= m.srv.Limits().MaxReal
}

func (m *Module) checkUser(value string) bool {
	if len(value) > m.srv.Limits().MaxIdent {
		return false
	}
	return m.srv.IsIdent(value)
}

// handle dispatches one USERMOD invocation. Two parameters means the
// source is changing their own attribute; three names a target nick.
func (m *Module) handle(source *irc.Client, params []string) irc.CmdResult {
	if len(params) == 2 {
		return m.modifyUser(source, source, params[0], params[1])
	}

	target := m.srv.FindNick(params[1])
	if target == nil || !target.IsRegistered() {
		source.WriteNumeric(irc.ERR_NOSUCHNICK, fmt.Sprintf("%s :No such nick/channel", params[1]))
		return irc.CmdFailure
	}

	return m.modifyUser(source, target, params[0], params[2])
}

func (m *Module) modifyUser(source, target *irc.Client, attrName, value string) irc.CmdResult {
	attr, ok := m.attrs[strings.ToLower(attrName)]
	if !ok {
		source.WriteNotice("*** USERMOD: " + attrName + " is not a valid user attribute!")
		return irc.CmdFailure
	}
	attrName = strings.ToLower(attrName)

	scope := "others"
	if source == target {
		scope = "self"
	}
	priv := fmt.Sprintf("usermod/%s-%s", attrName, scope)
	if !source.HasPrivPermission(priv) {
		source.WriteNotice(fmt.Sprintf("*** USERMOD: The %s oper privilege is required to change %s's %s!",
			priv, target.Nickname(), attrName))
		return irc.CmdFailure
	}

	if !attr.check(value) {
		source.WriteNotice("*** USERMOD: The " + attrName + " you specified is not valid!")
		return irc.CmdFailure
	}

	if target.IsLocal() {
		attr.apply(target, value)
	}

	m.srv.SendOpers(fmt.Sprintf("%s used USERMOD to change the %s of %s to '%s'",
		source.Nickname(), attrName, target.Nickname(), value))
	return irc.CmdSuccess
}

// route propagates a successful USERMOD toward the server owning the
// target: the named nick in the three-parameter form, the source
// otherwise.
func (m *Module) route(source *irc.Client, params []string) irc.RouteInfo {
	target := source.Nickname()
	if len(params) == 3 {
		target = params[1]
	}
	return irc.RouteInfo{Type: irc.RouteUnicast, Target: target}
}
