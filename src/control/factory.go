package control

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stake-plus/ibots/src/bots/core"
	"github.com/stake-plus/ibots/src/bots/waiter"
	"github.com/stake-plus/ibots/src/graphql"
	"github.com/stake-plus/ibots/src/journal"
	"github.com/stake-plus/ibots/src/logging"
	"github.com/stake-plus/ibots/src/resources"
	"github.com/stake-plus/ibots/src/state"
)

// ResourceSpec is one configured resource.
type ResourceSpec struct {
	Name  string
	Class string
	Args  map[string]any
}

// BuildResources constructs every configured resource, each with its own lock.
func BuildResources(specs []ResourceSpec) (map[string]core.Resource, error) {
	out := make(map[string]core.Resource, len(specs))
	for _, s := range specs {
		if _, dup := out[s.Name]; dup {
			return nil, fmt.Errorf("control: resource %q configured twice", s.Name)
		}
		r, err := resources.New(s.Class, &sync.Mutex{}, s.Args)
		if err != nil {
			return nil, fmt.Errorf("control: resource %q: %w", s.Name, err)
		}
		out[s.Name] = r
	}
	return out, nil
}

// RuntimeDeps is what every bot runtime shares.
type RuntimeDeps struct {
	Endpoint    string
	HTTPTimeout time.Duration
	MaxRPS      float64
	Catalog     *graphql.Catalog
	Waiter      *waiter.Waiter
	Store       state.Store
	Resources   map[string]core.Resource
	PageSize    int
	WaitSlice   time.Duration
	JournalSize int
	Sink        journal.Sink
}

// NewFactory returns a Factory that logs in as the bot's account and wires
// a runtime around a fresh instance of its class.
func NewFactory(d RuntimeDeps) Factory {
	return func(ctx context.Context, spec Spec) (*core.Bot, error) {
		logic, err := core.NewLogic(spec.Class)
		if err != nil {
			return nil, err
		}

		wired := make(map[string]core.Resource, len(spec.Resources))
		for _, name := range spec.Resources {
			r, ok := d.Resources[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q (bot %q)", ErrUnknownResource, name, spec.Name)
			}
			wired[name] = r
		}

		username := spec.Username
		if username == "" {
			username = spec.Name
		}
		client, err := graphql.Login(ctx, graphql.Config{
			Endpoint: d.Endpoint,
			Username: username,
			Password: spec.Password,
			Timeout:  d.HTTPTimeout,
			MaxRPS:   d.MaxRPS,
		})
		if err != nil {
			return nil, fmt.Errorf("control: bot %q: %w", spec.Name, err)
		}

		jr := journal.New(spec.Name, d.JournalSize, d.Sink)
		if err := jr.Restore(ctx); err != nil {
			log := logging.ForComponent("control")
			log.Warn().Err(err).Str("bot", spec.Name).Msg("journal history unavailable")
		}

		return core.New(ctx, core.Options{
			Name:      spec.Name,
			Class:     spec.Class,
			Logic:     logic,
			Transport: client,
			Catalog:   d.Catalog,
			Waiter:    d.Waiter,
			Store:     d.Store,
			Resources: wired,
			Journal:   jr,
			PageSize:  d.PageSize,
			WaitSlice: d.WaitSlice,
		})
	}
}

// ResourceNames lists configured resource names, sorted.
func ResourceNames(rs map[string]core.Resource) []string {
	out := make([]string, 0, len(rs))
	for n := range rs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
