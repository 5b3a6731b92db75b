package irc

import (
	"errors"
	"fmt"
	"log"
	"plugin"
	"sync"
)

// ModuleSymbol is the entry point a plugin artifact must export. Its
// value must be a func() irc.ModuleFactory.
const ModuleSymbol = "IRCDModule"

// Loader failure kinds. Each load error wraps exactly one of these so
// callers can tell a missing artifact from a bad one.
var (
	ErrArtifactNotFound = errors.New("module artifact not found")
	ErrSymbolMissing    = errors.New("module entry symbol missing or wrong type")
	ErrFactoryFault     = errors.New("module factory construction failed")
	ErrModuleFault      = errors.New("module construction failed")
)

var (
	builtinMu        sync.RWMutex
	builtinFactories = make(map[string]ModuleFactory)
)

// RegisterBuiltinModule records a factory for a module compiled into the
// daemon. Builtin modules load by name instead of by artifact path and
// behave identically once the factory is in hand. Typically called from
// a module package's init function.
func RegisterBuiltinModule(name string, factory ModuleFactory) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	builtinFactories[name] = factory
}

// LoadModuleFile loads a plugin artifact from disk, resolves its factory
// and instantiates one module into the registry. The returned module is
// owned by the registry until UnloadModule or shutdown. Failures leave
// the registry untouched and are reported to opers.
func (s *Server) LoadModuleFile(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return s.loadFailed(path, fmt.Errorf("%w: %s: %v", ErrArtifactNotFound, path, err))
	}

	sym, err := p.Lookup(ModuleSymbol)
	if err != nil {
		return s.loadFailed(path, fmt.Errorf("%w: %s has no %s", ErrSymbolMissing, path, ModuleSymbol))
	}

	entry, ok := sym.(func() ModuleFactory)
	if !ok {
		return s.loadFailed(path, fmt.Errorf("%w: %s exports %s with the wrong type", ErrSymbolMissing, path, ModuleSymbol))
	}

	return s.loadFromFactory(path, entry())
}

// LoadBuiltinModule instantiates a builtin module registered under name.
func (s *Server) LoadBuiltinModule(name string) (Module, error) {
	builtinMu.RLock()
	factory := builtinFactories[name]
	builtinMu.RUnlock()

	if factory == nil {
		return s.loadFailed(name, fmt.Errorf("%w: no builtin module %q", ErrArtifactNotFound, name))
	}
	return s.loadFromFactory(name, factory)
}

func (s *Server) loadFromFactory(origin string, factory ModuleFactory) (Module, error) {
	if factory == nil {
		return s.loadFailed(origin, fmt.Errorf("%w: %s yielded a nil factory", ErrFactoryFault, origin))
	}

	mod := factory.CreateModule(s)
	if mod == nil {
		return s.loadFailed(origin, fmt.Errorf("%w: factory for %s produced no module", ErrModuleFault, origin))
	}

	version := mod.GetVersion()
	if version.Major < s.Config.MinModuleMajor {
		return s.loadFailed(origin, fmt.Errorf("%w: %s reports version %d.%d.%d.%d, below minimum major %d",
			ErrModuleFault, origin, version.Major, version.Minor, version.Revision, version.Build, s.Config.MinModuleMajor))
	}

	s.modules.Register(mod)
	s.loadedMu.Lock()
	s.loadedOrigins[mod] = origin
	s.loadedMu.Unlock()
	modulesLoaded.Inc()
	log.Printf("Loaded module %s (version %d.%d.%d.%d)", origin, version.Major, version.Minor, version.Revision, version.Build)
	return mod, nil
}

func (s *Server) loadFailed(origin string, err error) (Module, error) {
	log.Printf("Failed to load module %s: %v", origin, err)
	s.SendOpers(fmt.Sprintf("Failed to load module %s: %v", origin, err))
	return nil, err
}

// UnloadModule removes a module from the registry. Unloading a module
// that is not registered is a no-op.
func (s *Server) UnloadModule(m Module) {
	s.modules.Unregister(m)
	s.loadedMu.Lock()
	delete(s.loadedOrigins, m)
	s.loadedMu.Unlock()
	modulesUnloaded.Inc()
}

// ModuleOrigin returns the artifact path or builtin name a module was
// loaded from.
func (s *Server) ModuleOrigin(m Module) string {
	s.loadedMu.Lock()
	defer s.loadedMu.Unlock()
	return s.loadedOrigins[m]
}
