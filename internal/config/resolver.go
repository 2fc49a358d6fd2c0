package config

import (
	"slices"
	"strings"

	"github.com/flemzord/agentchat/internal/core"
)

// Resolve returns the configured module IDs in load order: sorted, so
// that loading is deterministic.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ProviderIDs returns the provider module IDs in failover order.
func ProviderIDs(cfg *Config) []string {
	if len(cfg.Agent.Backends) > 0 {
		return slices.Clone(cfg.Agent.Backends)
	}
	var ids []string
	for _, id := range Resolve(cfg) {
		if isProvider(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func isProvider(id string) bool {
	return core.ModuleID(id).Namespace() == "provider"
}

// ModuleIDs returns every configured module ID in the given namespace.
func ModuleIDs(cfg *Config, namespace string) []string {
	var ids []string
	for _, id := range Resolve(cfg) {
		if strings.HasPrefix(id, namespace+".") {
			ids = append(ids, id)
		}
	}
	return ids
}
