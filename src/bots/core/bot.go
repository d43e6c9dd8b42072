// Package core is the per-bot runtime: session, persisted state, the typed
// query and mutation surface, and the cooperative wait loop bot logic
// suspends in.
package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/rs/zerolog"

	"github.com/stake-plus/ibots/src/bots/bid"
	"github.com/stake-plus/ibots/src/bots/waiter"
	"github.com/stake-plus/ibots/src/graphql"
	"github.com/stake-plus/ibots/src/journal"
	"github.com/stake-plus/ibots/src/logging"
	"github.com/stake-plus/ibots/src/state"
)

const (
	// DefaultPageSize is injected as "first" into list operations.
	DefaultPageSize = 25
	// DefaultWaitSlice bounds how long Wait blocks before rechecking flags.
	DefaultWaitSlice = time.Second
)

// Transport is the authenticated session a bot sends operations through.
// *graphql.Client implements it.
type Transport interface {
	UserID() string
	Execute(ctx context.Context, op *graphql.Operation, vars map[string]any) (*graphql.Response, error)
	ExecuteRaw(ctx context.Context, query string, vars map[string]any) (*graphql.Response, error)
	AppLink(ctx context.Context, id string) (string, error)
}

// Options wires a Bot.
type Options struct {
	Name      string
	Class     string
	Logic     Logic
	Transport Transport
	Catalog   *graphql.Catalog
	Namespace string
	Waiter    *waiter.Waiter
	Store     state.Store
	Resources map[string]Resource
	Journal   *journal.Journal
	PageSize  int
	WaitSlice time.Duration
}

// Bot is one running account. State is owned by the bot's logic and must only
// be touched from the worker running it.
type Bot struct {
	Name  string
	Class string
	BID   bid.BID
	State map[string]any

	logic     Logic
	transport Transport
	ops       *graphql.Namespace
	waiter    *waiter.Waiter
	store     state.Store
	resources map[string]Resource
	journal   *journal.Journal
	pageSize  int
	waitSlice time.Duration
	log       zerolog.Logger

	savedHash uint64
	hashValid bool

	stop     atomic.Bool
	interact atomic.Bool
	waits    atomic.Int64
	wakes    atomic.Int64

	inspectMu   sync.Mutex
	inspections []Inspection
}

// New builds a bot and loads its state. When no state is stored yet the
// empty document is written immediately.
func New(ctx context.Context, opts Options) (*Bot, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("core: %s: transport is required", opts.Name)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("core: %s: state store is required", opts.Name)
	}
	if opts.Catalog == nil {
		cat, err := graphql.DefaultCatalog()
		if err != nil {
			return nil, err
		}
		opts.Catalog = cat
	}
	if opts.Namespace == "" {
		opts.Namespace = graphql.DefaultNamespace
	}
	if opts.Waiter == nil {
		opts.Waiter = waiter.New(nil, 0)
	}
	if opts.Journal == nil {
		opts.Journal = journal.New(opts.Name, journal.DefaultSize, nil)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.WaitSlice <= 0 {
		opts.WaitSlice = DefaultWaitSlice
	}

	self, err := bid.New(opts.Transport.UserID(), bid.Bot)
	if err != nil {
		return nil, fmt.Errorf("core: %s: own id: %w", opts.Name, err)
	}

	b := &Bot{
		Name:      opts.Name,
		Class:     opts.Class,
		BID:       self,
		logic:     opts.Logic,
		transport: opts.Transport,
		ops:       opts.Catalog.Namespace(opts.Namespace),
		waiter:    opts.Waiter,
		store:     opts.Store,
		resources: opts.Resources,
		journal:   opts.Journal,
		pageSize:  opts.PageSize,
		waitSlice: opts.WaitSlice,
		log:       logging.ForBot(opts.Name, opts.Class),
	}
	if err := b.loadState(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Logger is the bot's tagged logger.
func (b *Bot) Logger() *zerolog.Logger { return &b.log }

func (b *Bot) loadState(ctx context.Context) error {
	raw, err := b.store.Load(ctx, b.Name)
	if errors.Is(err, state.ErrNotExist) {
		b.State = map[string]any{}
		b.hashValid = false
		return b.SaveState(ctx)
	}
	if err != nil {
		return fmt.Errorf("core: %s: load state: %w", b.Name, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var st map[string]any
	if err := dec.Decode(&st); err != nil {
		return fmt.Errorf("core: %s: decode state: %w", b.Name, err)
	}
	if st == nil {
		st = map[string]any{}
	}
	b.State = st
	canonical, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("core: %s: encode state: %w", b.Name, err)
	}
	b.savedHash = xxhash.Checksum64(canonical)
	b.hashValid = true
	return nil
}

// SaveState persists State. The write is skipped when the serialized
// document is unchanged since the last load or save.
func (b *Bot) SaveState(ctx context.Context) error {
	if b.State == nil {
		b.State = map[string]any{}
	}
	data, err := json.Marshal(b.State)
	if err != nil {
		return fmt.Errorf("core: %s: encode state: %w", b.Name, err)
	}
	sum := xxhash.Checksum64(data)
	if b.hashValid && sum == b.savedHash {
		return nil
	}
	if err := b.store.Save(ctx, b.Name, data); err != nil {
		return fmt.Errorf("core: %s: save state: %w", b.Name, err)
	}
	b.savedHash = sum
	b.hashValid = true
	return nil
}

// Resource returns a wired resource by name.
func (b *Bot) Resource(name string) (Resource, error) {
	r, ok := b.resources[name]
	if !ok || r == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return r, nil
}

// Run starts the logic (running its Start hook first when it has one) and
// blocks until it returns. State is saved on the way out. A stop request
// surfaces as ErrStopped.
func (b *Bot) Run(ctx context.Context, args map[string]any) error {
	if b.logic == nil {
		return fmt.Errorf("core: %s: no logic", b.Name)
	}
	if s, ok := b.logic.(Starter); ok {
		if err := s.Start(ctx, b, args); err != nil {
			return fmt.Errorf("core: %s: start: %w", b.Name, err)
		}
	}
	runErr := b.logic.Run(ctx, b)
	if err := b.SaveState(context.WithoutCancel(ctx)); err != nil {
		b.log.Error().Err(err).Msg("failed to save state on exit")
		if runErr == nil {
			runErr = err
		}
	}
	if runErr == nil && b.stop.Load() {
		runErr = ErrStopped
	}
	return runErr
}

// Command forwards an operator instruction to the logic.
func (b *Bot) Command(ctx context.Context, instruction string) (any, error) {
	if b.logic == nil {
		return nil, fmt.Errorf("core: %s: no logic", b.Name)
	}
	return b.logic.Command(ctx, b, instruction)
}

// RequestStop raises the stop flag; the bot observes it at its next wait
// check.
func (b *Bot) RequestStop() { b.stop.Store(true) }

// Stopping reports whether a stop was requested.
func (b *Bot) Stopping() bool { return b.stop.Load() }

// RequestInteract raises the interact flag; the bot records an inspection at
// its next wait check.
func (b *Bot) RequestInteract() { b.interact.Store(true) }
