package irc

import (
	"log"
	"sync"
)

// ModuleRegistry keeps the ordered set of live modules. The order is load
// order and determines event delivery order. Register and Unregister
// requests made from inside a hook are deferred until the current dispatch
// completes, so the module list never changes under an iteration.
type ModuleRegistry struct {
	// dispatchMu serializes event fan-out: one event runs to completion
	// before the next begins, so facade calls from inside a hook can
	// never re-enter dispatch on the same event.
	dispatchMu sync.Mutex

	mu          sync.Mutex
	modules     []Module
	dispatching bool
	pending     []pendingOp
}

type pendingOp struct {
	module Module
	add    bool
}

// NewModuleRegistry creates an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{}
}

// Register appends a module to the delivery order. If called from within
// a hook, the registration takes effect after the current event.
func (r *ModuleRegistry) Register(m Module) {
	if m == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dispatching {
		r.pending = append(r.pending, pendingOp{module: m, add: true})
		return
	}
	r.register(m)
}

// Unregister removes a module. Removing a module that is not registered
// is a no-op. If called from within a hook, the removal takes effect
// after the current event.
func (r *ModuleRegistry) Unregister(m Module) {
	if m == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dispatching {
		r.pending = append(r.pending, pendingOp{module: m, add: false})
		return
	}
	r.unregister(m)
}

func (r *ModuleRegistry) register(m Module) {
	for _, existing := range r.modules {
		if existing == m {
			return
		}
	}
	r.modules = append(r.modules, m)
}

func (r *ModuleRegistry) unregister(m Module) {
	for i, existing := range r.modules {
		if existing == m {
			r.modules = append(r.modules[:i], r.modules[i+1:]...)
			return
		}
	}
}

// Count returns the number of registered modules.
func (r *ModuleRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.modules)
}

// Modules returns a snapshot of the registered modules in delivery order.
func (r *ModuleRegistry) Modules() []Module {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]Module, len(r.modules))
	copy(snapshot, r.modules)
	return snapshot
}

// dispatch invokes fire on every module in registration order. When fire
// returns true the fan-out stops (used by OnExtendedMode; every other
// hook returns false unconditionally). Panics in a hook are recovered so
// a misbehaving module cannot take down the server.
func (r *ModuleRegistry) dispatch(hook string, fire func(Module) bool) bool {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	r.dispatching = true
	mods := r.modules
	r.mu.Unlock()

	handled := false
	for _, m := range mods {
		if r.fireOne(hook, m, fire) {
			handled = true
			break
		}
	}

	r.mu.Lock()
	r.dispatching = false
	for _, op := range r.pending {
		if op.add {
			r.register(op.module)
		} else {
			r.unregister(op.module)
		}
	}
	r.pending = nil
	r.mu.Unlock()

	eventsDispatched.WithLabelValues(hook).Inc()
	return handled
}

func (r *ModuleRegistry) fireOne(hook string, m Module, fire func(Module) bool) (handled bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("PANIC in module hook %s: %v", hook, rec)
		}
	}()
	return fire(m)
}
