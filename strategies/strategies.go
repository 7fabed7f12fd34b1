// Package strategies provides builtin decision providers and a registry
// for looking them up by name. The engine itself is strategy-agnostic: it
// only sees the sim.DecisionProvider interface, so anything from these
// rule-based providers to an external model-backed client can drive it.
package strategies

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"backtestd/sim"
)

var (
	mu       sync.RWMutex
	registry = make(map[string]sim.DecisionProvider)
)

// Register adds a provider under the given name, replacing any previous
// registration.
func Register(name string, p sim.DecisionProvider) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = p
}

// Get retrieves a provider by name.
func Get(name string) (sim.DecisionProvider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// List returns the sorted names of all registered providers.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForNames resolves each name and wraps the set in a weighted composite.
func ForNames(names []string, weights map[string]float64) (sim.DecisionProvider, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no strategies selected")
	}

	providers := make([]weighted, 0, len(names))
	for _, name := range names {
		p, ok := Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q (available: %s)",
				name, strings.Join(List(), ", "))
		}
		w := 1.0
		if v, ok := weights[name]; ok && v > 0 {
			w = v
		}
		providers = append(providers, weighted{name: name, provider: p, weight: w})
	}

	return &composite{providers: providers}, nil
}

func init() {
	Register("hold", HoldProvider{})
	Register("momentum", &Momentum{FastDays: 5, SlowDays: 20, AllocPct: 0.10})
	Register("mean-revert", &MeanRevert{Days: 20, Band: 0.05, AllocPct: 0.10})
}
