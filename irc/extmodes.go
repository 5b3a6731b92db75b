package irc

import (
	"sync"
)

// ExtMode records a mode letter claimed by a module. The metadata is
// frozen at claim time. Parameter counts are only meaningful for channel
// scope; client and server scopes carry none.
type ExtMode struct {
	Letter    byte
	Scope     ModeScope
	DefaultOn bool
	ParamsOn  int // parameters expected when the mode is set
	ParamsOff int // parameters expected when the mode is unset
	Owner     Module
}

type extModeKey struct {
	letter byte
	scope  ModeScope
}

// ExtModeRegistry tracks which (letter, scope) pairs have been claimed by
// modules. A claim is all-or-nothing: the first claim wins and later
// claims for the same pair fail without overwriting. Single ownership
// lets the core route an incoming mode change without asking every
// module.
type ExtModeRegistry struct {
	mu     sync.RWMutex
	claims map[extModeKey]*ExtMode
}

// NewExtModeRegistry creates an empty extended-mode registry.
func NewExtModeRegistry() *ExtModeRegistry {
	return &ExtModeRegistry{claims: make(map[extModeKey]*ExtMode)}
}

// Claim records a (letter, scope) claim. It returns false, leaving the
// registry unchanged, when the pair is already claimed, when a parameter
// count exceeds one, or when a non-channel scope asks for parameters.
func (r *ExtModeRegistry) Claim(letter byte, scope ModeScope, defaultOn bool, paramsOn, paramsOff int, owner Module) bool {
	if paramsOn < 0 || paramsOn > 1 || paramsOff < 0 || paramsOff > 1 {
		return false
	}
	if scope != ModeChannel && (paramsOn != 0 || paramsOff != 0) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := extModeKey{letter: letter, scope: scope}
	if _, taken := r.claims[key]; taken {
		modeClaimCollisions.Inc()
		return false
	}

	r.claims[key] = &ExtMode{
		Letter:    letter,
		Scope:     scope,
		DefaultOn: defaultOn,
		ParamsOn:  paramsOn,
		ParamsOff: paramsOff,
		Owner:     owner,
	}
	return true
}

// Lookup returns the claim for (letter, scope) if one exists.
func (r *ExtModeRegistry) Lookup(letter byte, scope ModeScope) (*ExtMode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claim, ok := r.claims[extModeKey{letter: letter, scope: scope}]
	return claim, ok
}

// Claims returns a snapshot of every recorded claim.
func (r *ExtModeRegistry) Claims() []*ExtMode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ExtMode, 0, len(r.claims))
	for _, claim := range r.claims {
		out = append(out, claim)
	}
	return out
}
