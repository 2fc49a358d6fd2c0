package core

import "strings"

// ModuleID is a dotted module identifier such as "provider.openai_compatible".
// The part before the first dot is the namespace.
type ModuleID string

// Namespace returns the segment before the first dot, or the whole ID
// when it has no dot.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the segment after the first dot, or the whole ID when it
// has no dot.
func (id ModuleID) Name() string {
	_, name, ok := strings.Cut(string(id), ".")
	if !ok {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID uniquely identifies the module.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is implemented by every pluggable component.
type Module interface {
	ModuleInfo() ModuleInfo
}
