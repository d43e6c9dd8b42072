// Package resources holds the operator-facing collaborators bots share. Each
// resource is built from config by class name and guarded by a mutex the
// caller supplies, since several bot workers may command it at once.
package resources

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/stake-plus/ibots/src/bots/core"
)

var (
	ErrUnknownClass       = errors.New("resources: unknown class")
	ErrUnknownInstruction = errors.New("resources: unknown instruction")
	ErrMissingArg         = errors.New("resources: missing argument")
)

// Factory builds a resource. mu serializes its commands.
type Factory func(mu *sync.Mutex, args map[string]any) (core.Resource, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes a resource class available under name and aliases.
func Register(name string, f Factory, aliases ...string) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	all := append([]string{name}, aliases...)
	for _, n := range all {
		factories[strings.ToLower(n)] = f
	}
}

// New builds a resource of class. A nil mu gets a private mutex.
func New(class string, mu *sync.Mutex, args map[string]any) (core.Resource, error) {
	factoriesMu.RLock()
	f := factories[strings.ToLower(strings.TrimSpace(class))]
	factoriesMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	if mu == nil {
		mu = &sync.Mutex{}
	}
	if args == nil {
		args = map[string]any{}
	}
	return f(mu, args)
}

// Classes lists registered resource classes.
func Classes() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
