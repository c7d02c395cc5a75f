package bootstrap

import (
	"fmt"
	"slices"
	"sync"

	"storaged/pkg/config"
	"storaged/pkg/logger"
	"storaged/pkg/metrics"
)

// Server is the managed network server
type Server interface {
	Start() error
	Stop() error
	Location() string // Diagnostic identifier, the database directory
}

// Env is what a variant gets to build its server from
type Env struct {
	Config          *config.Config
	Logging         *logger.Logging
	Metrics         *metrics.Registry
	InstanceID      string
	Variant         string
	State           func() string
	RequestShutdown func() // Fires the shutdown hook as if a signal arrived
}

// ServerFactory constructs the server for a variant
type ServerFactory func(env Env) (Server, error)

// Variant is a self-registering way of building the server
type Variant struct {
	Name      string
	Refines   []string // Names of the variants this one specializes
	NewServer ServerFactory
}

// Specializes reports whether v is a refinement of other, directly or
// through registered intermediate variants. Every variant specializes
// itself.
func (v Variant) Specializes(other Variant) bool {
	return specializes(v, other.Name, index(Discover()))
}

// specializes walks v's Refines depth first, resolving ancestors by name
// in known. Unknown names end the walk; cycles are cut by the seen set.
func specializes(v Variant, target string, known map[string]Variant) bool {
	seen := map[string]bool{}
	stack := []Variant{v}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current.Name == target {
			return true
		}
		if seen[current.Name] {
			continue
		}
		seen[current.Name] = true

		for _, parent := range current.Refines {
			if parent == target {
				return true
			}
			if ancestor, ok := known[parent]; ok {
				stack = append(stack, ancestor)
			}
		}
	}
	return false
}

// index maps variant names to variants; earlier entries win
func index(groups ...[]Variant) map[string]Variant {
	known := map[string]Variant{}
	for _, group := range groups {
		for _, v := range group {
			if _, ok := known[v.Name]; !ok {
				known[v.Name] = v
			}
		}
	}
	return known
}

var registry struct {
	mu       sync.RWMutex
	variants []Variant
}

// Register makes a variant discoverable. It is meant to be called from
// init and panics on an invalid or duplicate registration.
func Register(v Variant) {
	if v.Name == "" {
		panic("bootstrap: Register variant with empty name")
	}
	if v.NewServer == nil {
		panic(fmt.Sprintf("bootstrap: Register variant %q with nil server factory", v.Name))
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	for _, existing := range registry.variants {
		if existing.Name == v.Name {
			panic(fmt.Sprintf("bootstrap: Register called twice for variant %q", v.Name))
		}
	}
	registry.variants = append(registry.variants, v)
}

// Discover returns the registered variants in registration order
func Discover() []Variant {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return slices.Clone(registry.variants)
}

// Select folds candidates left to right, replacing the winner whenever a
// candidate specializes it. Refinement is transitive over the candidates,
// the baseline and the registry, so a chain wins in any order. The result
// still depends on candidate order when unrelated specializations are
// present; baseline wins when nothing specializes it.
func Select(baseline Variant, candidates []Variant) Variant {
	known := index(candidates, []Variant{baseline}, Discover())

	winner := baseline
	for _, candidate := range candidates {
		if specializes(candidate, winner.Name, known) {
			winner = candidate
		}
	}
	return winner
}

// LoadMostSpecialized selects among every registered variant
func LoadMostSpecialized(baseline Variant) Variant {
	return Select(baseline, Discover())
}
