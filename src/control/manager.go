// Package control runs the configured bots: it starts one worker per bot,
// stops them cooperatively, and forwards operator requests to them.
package control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stake-plus/ibots/src/bots/core"
	"github.com/stake-plus/ibots/src/logging"
	"github.com/stake-plus/ibots/src/state"
)

var (
	ErrUnknownBot      = errors.New("control: unknown bot")
	ErrAlreadyRunning  = errors.New("control: bot already running")
	ErrNotRunning      = errors.New("control: bot not running")
	ErrUnknownResource = errors.New("control: unknown resource")
)

// Lifecycle is a bot's controller-side state.
type Lifecycle int

const (
	NotStarted Lifecycle = iota
	// Starting covers the window in which Start is building the runtime
	// (logging in, loading state). The bot cannot be stopped, commanded or
	// wiped until it is Running.
	Starting
	Running
	Stopped
)

func (l Lifecycle) String() string {
	switch l {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "not started"
	}
}

func (l Lifecycle) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// Spec is one configured bot.
type Spec struct {
	Name      string
	Class     string
	Username  string
	Password  string
	Resources []string
	Args      map[string]any
}

// Factory builds a fresh runtime for spec. It is called on every start so a
// restarted bot gets a new session and reloads its state.
type Factory func(ctx context.Context, spec Spec) (*core.Bot, error)

// BotStatus is a status snapshot merged with lifecycle state.
type BotStatus struct {
	State Lifecycle `json:"State"`
	core.Report
	Error string `json:"Error,omitempty"`
}

// Options wires a Manager.
type Options struct {
	Bots      []Spec
	Factory   Factory
	Store     state.Store
	Resources map[string]core.Resource
	// InteractWait bounds how long Interact waits for the inspection.
	InteractWait time.Duration
}

type worker struct {
	bot     *core.Bot
	state   Lifecycle
	done    chan struct{}
	err     error
	started time.Time
	stopped time.Time
}

// Manager owns the bot workers.
type Manager struct {
	mu        sync.Mutex
	specs     map[string]Spec
	order     []string
	factory   Factory
	store     state.Store
	resources map[string]core.Resource
	workers   map[string]*worker
	wait      time.Duration
	baseCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	log       zerolog.Logger
}

// NewManager validates opts and returns an idle manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Factory == nil {
		return nil, fmt.Errorf("control.Manager: factory is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("control.Manager: state store is required")
	}
	if opts.InteractWait <= 0 {
		opts.InteractWait = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		specs:     make(map[string]Spec, len(opts.Bots)),
		factory:   opts.Factory,
		store:     opts.Store,
		resources: opts.Resources,
		workers:   map[string]*worker{},
		wait:      opts.InteractWait,
		baseCtx:   ctx,
		cancel:    cancel,
		log:       logging.ForComponent("control"),
	}
	if m.resources == nil {
		m.resources = map[string]core.Resource{}
	}
	for _, spec := range opts.Bots {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			cancel()
			return nil, fmt.Errorf("control.Manager: bot missing name")
		}
		if _, dup := m.specs[name]; dup {
			cancel()
			return nil, fmt.Errorf("control.Manager: bot %q configured twice", name)
		}
		spec.Name = name
		m.specs[name] = spec
		m.order = append(m.order, name)
	}
	return m, nil
}

// Names returns configured bot names in configuration order.
func (m *Manager) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// State returns the lifecycle state of name.
func (m *Manager) State(name string) (Lifecycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.specs[name]; !ok {
		return NotStarted, fmt.Errorf("%w: %q", ErrUnknownBot, name)
	}
	return m.stateLocked(name), nil
}

func (m *Manager) stateLocked(name string) Lifecycle {
	if w := m.workers[name]; w != nil {
		return w.state
	}
	return NotStarted
}

// resolve checks names against the configuration. Empty names selects every
// configured bot for which keep returns true.
func (m *Manager) resolve(names []string, keep func(Lifecycle) bool) ([]string, error) {
	if len(names) == 0 {
		var out []string
		for _, n := range m.order {
			if keep == nil || keep(m.stateLocked(n)) {
				out = append(out, n)
			}
		}
		return out, nil
	}
	out := make([]string, 0, len(names))
	seen := map[string]bool{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if _, ok := m.specs[n]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownBot, n)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out, nil
}

func isRunning(l Lifecycle) bool { return l == Running }
func isIdle(l Lifecycle) bool    { return l == NotStarted || l == Stopped }

// Start launches a worker for each target. Empty names starts every bot that
// is neither running nor starting. Targets read as Starting until their
// runtime is built. A bot whose runtime cannot be built (bad credentials, for
// example) is reported in the result and the others still start.
func (m *Manager) Start(ctx context.Context, names []string) (map[string]string, error) {
	m.mu.Lock()
	targets, err := m.resolve(names, isIdle)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	for _, n := range targets {
		if !isIdle(m.stateLocked(n)) {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %q", ErrAlreadyRunning, n)
		}
	}
	// Reserve the targets so a concurrent Start cannot double-launch them.
	for _, n := range targets {
		m.workers[n] = &worker{state: Starting, done: make(chan struct{}), started: time.Now().UTC()}
	}
	m.mu.Unlock()

	out := make(map[string]string, len(targets))
	for _, n := range targets {
		spec := m.specs[n]
		bot, err := m.factory(ctx, spec)

		m.mu.Lock()
		w := m.workers[n]
		if err != nil {
			w.state = Stopped
			w.err = err
			w.stopped = time.Now().UTC()
			close(w.done)
			m.mu.Unlock()
			m.log.Error().Err(err).Str("bot", n).Msg("failed to construct bot")
			exits.WithLabelValues(exitFault).Inc()
			out[n] = "error: " + err.Error()
			continue
		}
		w.bot = bot
		w.state = Running
		m.mu.Unlock()

		running.Inc()
		m.wg.Add(1)
		go m.run(n, spec, w)
		m.log.Info().Str("bot", n).Str("class", spec.Class).Msg("started")
		out[n] = Running.String()
	}
	return out, nil
}

func (m *Manager) run(name string, spec Spec, w *worker) {
	defer m.wg.Done()
	defer running.Dec()

	err := w.bot.Run(m.baseCtx, spec.Args)

	m.mu.Lock()
	w.state = Stopped
	w.stopped = time.Now().UTC()
	if err != nil && !errors.Is(err, core.ErrStopped) {
		w.err = err
	}
	close(w.done)
	m.mu.Unlock()

	if w.err != nil {
		exits.WithLabelValues(exitFault).Inc()
		m.log.Error().Err(err).Str("bot", name).Msg("bot exited with error")
		return
	}
	exits.WithLabelValues(exitClean).Inc()
	m.log.Info().Str("bot", name).Msg("Successfully stopped")
}

// Stop raises the stop flag of each target and blocks until all of them have
// exited or ctx ends. Empty names stops every running bot.
func (m *Manager) Stop(ctx context.Context, names []string) (map[string]string, error) {
	m.mu.Lock()
	targets, err := m.resolve(names, isRunning)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	workers := make(map[string]*worker, len(targets))
	for _, n := range targets {
		w := m.workers[n]
		if w == nil || w.state != Running || w.bot == nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %q", ErrNotRunning, n)
		}
		workers[n] = w
	}
	m.mu.Unlock()

	for _, w := range workers {
		w.bot.RequestStop()
	}
	out := make(map[string]string, len(targets))
	for _, n := range targets {
		select {
		case <-workers[n].done:
			out[n] = Stopped.String()
		case <-ctx.Done():
			return out, fmt.Errorf("control.Manager: waiting for %q to stop: %w", n, ctx.Err())
		}
	}
	return out, nil
}

// Status reports every target. Running bots are probed concurrently; a failed
// probe shows up as a disconnected report, never as an error.
func (m *Manager) Status(ctx context.Context, names []string) (map[string]BotStatus, error) {
	m.mu.Lock()
	targets, err := m.resolve(names, nil)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	type probe struct {
		name  string
		state Lifecycle
		bot   *core.Bot
		err   error
	}
	probes := make([]probe, 0, len(targets))
	for _, n := range targets {
		p := probe{name: n, state: m.stateLocked(n)}
		if w := m.workers[n]; w != nil {
			p.bot = w.bot
			p.err = w.err
		}
		probes = append(probes, p)
	}
	m.mu.Unlock()

	out := make(map[string]BotStatus, len(probes))
	var outMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range probes {
		p := p
		g.Go(func() error {
			st := BotStatus{State: p.state, Report: core.Report{Connection: core.ConnectionDisconnected}}
			if p.bot != nil {
				st.Report = p.bot.Status(gctx)
			}
			if p.err != nil {
				st.Error = p.err.Error()
			}
			outMu.Lock()
			out[p.name] = st
			outMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Command forwards instruction to each target's logic. Empty names targets
// every running bot. Per-bot failures are reported in the result.
func (m *Manager) Command(ctx context.Context, names []string, instruction string) (map[string]any, error) {
	bots, err := m.runningBots(names)
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, bots, func(ctx context.Context, b *core.Bot) (any, error) {
		return b.Command(ctx, instruction)
	})
}

// Resource forwards instruction to each named resource. Empty names targets
// every configured resource.
func (m *Manager) Resource(ctx context.Context, names []string, instruction string) (map[string]any, error) {
	if len(names) == 0 {
		names = ResourceNames(m.resources)
	}
	targets := make(map[string]core.Resource, len(names))
	for _, n := range names {
		r, ok := m.resources[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownResource, n)
		}
		targets[n] = r
	}
	return fanOut(ctx, targets, func(ctx context.Context, r core.Resource) (any, error) {
		return r.Command(ctx, instruction)
	})
}

// Interact asks name to inspect itself and waits briefly for the snapshot.
// The snapshot is nil when the bot did not reach a wait check in time.
func (m *Manager) Interact(ctx context.Context, name string) (*core.Inspection, error) {
	bots, err := m.runningBots([]string{name})
	if err != nil {
		return nil, err
	}
	b := bots[name]
	before := len(b.Inspections())
	var lastID string
	if before > 0 {
		lastID = b.Inspections()[before-1].ID
	}
	b.RequestInteract()

	ctx, cancel := context.WithTimeout(ctx, m.wait)
	defer cancel()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if got := b.Inspections(); len(got) > 0 && got[len(got)-1].ID != lastID {
			insp := got[len(got)-1]
			return &insp, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-ticker.C:
		}
	}
}

// Wipe deletes the stored state of each target. Empty names wipes every bot
// that is not running; running and starting targets are refused.
func (m *Manager) Wipe(ctx context.Context, names []string) (map[string]string, error) {
	m.mu.Lock()
	targets, err := m.resolve(names, isIdle)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	for _, n := range targets {
		if !isIdle(m.stateLocked(n)) {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %q", ErrAlreadyRunning, n)
		}
	}
	m.mu.Unlock()

	out := make(map[string]string, len(targets))
	for _, n := range targets {
		if err := m.store.Delete(ctx, n); err != nil && !errors.Is(err, state.ErrNotExist) {
			return out, fmt.Errorf("control.Manager: wipe %q: %w", n, err)
		}
		m.log.Info().Str("bot", n).Msg("state wiped")
		out[n] = "wiped"
	}
	return out, nil
}

// Shutdown stops every running bot. When ctx ends first the remaining
// workers are cancelled through their context.
func (m *Manager) Shutdown(ctx context.Context) error {
	_, err := m.Stop(ctx, nil)
	if err != nil {
		m.cancel()
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.cancel()
		return err
	case <-ctx.Done():
		m.cancel()
		return ctx.Err()
	}
}

func (m *Manager) runningBots(names []string) (map[string]*core.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	targets, err := m.resolve(names, isRunning)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*core.Bot, len(targets))
	for _, n := range targets {
		w := m.workers[n]
		if w == nil || w.state != Running || w.bot == nil {
			return nil, fmt.Errorf("%w: %q", ErrNotRunning, n)
		}
		out[n] = w.bot
	}
	return out, nil
}

// fanOut calls fn for every target concurrently. Errors become {"err": msg}
// entries so one failing target never hides the others' results.
func fanOut[T any](ctx context.Context, targets map[string]T, fn func(context.Context, T) (any, error)) (map[string]any, error) {
	out := make(map[string]any, len(targets))
	var mu sync.Mutex
	var g errgroup.Group
	for name, t := range targets {
		name, t := name, t
		g.Go(func() error {
			v, err := fn(ctx, t)
			if err != nil {
				v = map[string]string{"err": err.Error()}
			}
			mu.Lock()
			out[name] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
