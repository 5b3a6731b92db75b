package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadBuiltinModule(t *testing.T) {
	s := newTestServer(t)

	RegisterBuiltinModule("loader-test-ok", ModuleFactoryFunc(func(srv *Server) Module {
		assert.Same(t, s, srv)
		return &recordingModule{name: "ok"}
	}))

	mod, err := s.LoadBuiltinModule("loader-test-ok")
	assert.NoError(t, err)
	assert.NotNil(t, mod)
	assert.Equal(t, 1, s.modules.Count())
	assert.Equal(t, "loader-test-ok", s.ModuleOrigin(mod))
}

func TestLoadBuiltinModuleUnknown(t *testing.T) {
	s := newTestServer(t)

	_, err := s.LoadBuiltinModule("loader-test-missing")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
	assert.Equal(t, 0, s.modules.Count())
}

func TestLoadModuleNilFactory(t *testing.T) {
	s := newTestServer(t)

	RegisterBuiltinModule("loader-test-nil-factory", nil)
	_, err := s.LoadBuiltinModule("loader-test-nil-factory")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestLoadModuleNilModule(t *testing.T) {
	s := newTestServer(t)

	RegisterBuiltinModule("loader-test-nil-module", ModuleFactoryFunc(func(*Server) Module {
		return nil
	}))
	_, err := s.LoadBuiltinModule("loader-test-nil-module")
	assert.ErrorIs(t, err, ErrModuleFault)
	assert.Equal(t, 0, s.modules.Count(), "failed loads leave the registry untouched")
}

type ancientModule struct{ BaseModule }

func (ancientModule) GetVersion() Version { return Version{Major: 0, Minor: 9} }

func TestLoadModuleBelowMinimumMajor(t *testing.T) {
	s := newTestServer(t)
	s.Config.MinModuleMajor = 1

	RegisterBuiltinModule("loader-test-ancient", ModuleFactoryFunc(func(*Server) Module {
		return ancientModule{}
	}))
	_, err := s.LoadBuiltinModule("loader-test-ancient")
	assert.ErrorIs(t, err, ErrModuleFault)
	assert.Equal(t, 0, s.modules.Count())
}

func TestLoadModuleFileMissingArtifact(t *testing.T) {
	s := newTestServer(t)

	_, err := s.LoadModuleFile("/nonexistent/path/mod.so")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestUnloadModule(t *testing.T) {
	s := newTestServer(t)

	RegisterBuiltinModule("loader-test-unload", ModuleFactoryFunc(func(*Server) Module {
		return &recordingModule{name: "unload"}
	}))
	mod, err := s.LoadBuiltinModule("loader-test-unload")
	assert.NoError(t, err)

	s.UnloadModule(mod)
	assert.Equal(t, 0, s.modules.Count())
	assert.Equal(t, "", s.ModuleOrigin(mod))
}
