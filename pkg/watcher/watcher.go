// Package watcher drives run state machines on a schedule. It discovers run
// directories, polls them with bounded parallelism and forwards changed
// snapshots to sinks.
package watcher

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/beam-cloud/runwatch/pkg/common"
	"github.com/beam-cloud/runwatch/pkg/repository"
	"github.com/beam-cloud/runwatch/pkg/rundir"
	"github.com/beam-cloud/runwatch/pkg/runstate"
	"github.com/beam-cloud/runwatch/pkg/sink"
	"github.com/beam-cloud/runwatch/pkg/types"
)

const (
	defaultInterval   = 30 * time.Second
	defaultWorkers    = 4
	defaultMaxRetired = 1024
	defaultRetiredTTL = 72 * time.Hour
	publishTimeout    = 30 * time.Second
	// The poll lease must outlive a poll whose publishing runs into the deadline
	pollLockTTL = 2 * publishTimeout
)

// trackedRun serializes polls of one machine and remembers, per sink, the
// last snapshot that sink accepted
type trackedRun struct {
	root      string
	mu        sync.Mutex
	machine   *runstate.Machine
	delivered map[string]types.RunState
}

func newTrackedRun(root string) *trackedRun {
	return &trackedRun{root: root, delivered: make(map[string]types.RunState)}
}

// markDelivered records state as accepted by every sink
func (r *trackedRun) markDelivered(sinks []sink.Sink, state types.RunState) {
	for _, s := range sinks {
		r.delivered[s.Name()] = state
	}
}

// settled reports whether every sink has accepted state
func (r *trackedRun) settled(sinks []sink.Sink, state types.RunState) bool {
	for _, s := range sinks {
		if prev, ok := r.delivered[s.Name()]; !ok || !prev.Equal(state) {
			return false
		}
	}
	return true
}

type Watcher struct {
	cfg    types.WatchConfig
	layout rundir.Layout
	repo   repository.StateRepository
	sinks  []sink.Sink
	lock   *common.RedisLock
	now    func() time.Time

	mu      sync.RWMutex
	runs    map[string]*trackedRun
	retired *expirable.LRU[string, types.RunState]
	group   singleflight.Group
}

type Option func(*Watcher)

// WithRepository sets where snapshots are restored from on startup and rediscovery
func WithRepository(repo repository.StateRepository) Option {
	return func(w *Watcher) {
		w.repo = repo
	}
}

// WithSink adds sinks. Each sink's delivery is tracked on its own, so one
// failing sink is retried on later polls without repeating the others.
// Sink names must be unique.
func WithSink(sinks ...sink.Sink) Option {
	return func(w *Watcher) {
		w.sinks = append(w.sinks, sinks...)
	}
}

// WithRedisLock makes replicas take turns polling the same run
func WithRedisLock(rdb *common.RedisClient) Option {
	return func(w *Watcher) {
		if rdb != nil {
			w.lock = common.NewRedisLock(rdb)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Watcher) {
		w.now = now
	}
}

func NewWatcher(cfg types.WatchConfig, layout rundir.Layout, opts ...Option) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxRetired <= 0 {
		cfg.MaxRetired = defaultMaxRetired
	}
	if cfg.RetiredTTL <= 0 {
		cfg.RetiredTTL = defaultRetiredTTL
	}

	w := &Watcher{
		cfg:     cfg,
		layout:  layout,
		repo:    repository.NewStateMemoryRepository(),
		now:     time.Now,
		runs:    make(map[string]*trackedRun),
		retired: expirable.NewLRU[string, types.RunState](cfg.MaxRetired, nil, cfg.RetiredTTL),
	}
	for _, opt := range opts {
		opt(w)
	}
	if len(w.sinks) == 0 {
		w.sinks = []sink.Sink{sink.NewRepositorySink(w.repo)}
	}
	return w
}

// Start polls immediately and then on every interval until ctx is done.
// Call as a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	log.Info().
		Strs("roots", w.cfg.Roots).
		Dur("interval", w.cfg.Interval).
		Int("workers", w.cfg.Workers).
		Msg("watcher started")

	t := time.NewTicker(w.cfg.Interval)
	defer t.Stop()

	w.PollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("watcher stopped")
			return
		case <-t.C:
			w.PollAll(ctx)
		}
	}
}

// Track starts watching a run directory and returns its name. Tracking an
// already tracked run is a no-op.
func (w *Watcher) Track(ctx context.Context, root string) string {
	name := types.RunName(root)

	w.mu.RLock()
	existing, ok := w.runs[name]
	w.mu.RUnlock()
	if ok {
		if existing.root != root {
			log.Warn().Str("name", name).Str("root", root).Str("tracked", existing.root).Msg("run name already tracked from another root")
		}
		return name
	}

	run := newTrackedRun(root)
	if stored, err := w.repo.GetState(ctx, name); err == nil && stored.Root == root {
		run.machine = runstate.Resume(stored, runstate.WithLayout(w.layout), runstate.WithClock(w.now))
		run.markDelivered(w.sinks, stored)
	} else {
		run.machine = runstate.NewMachine(root, runstate.WithLayout(w.layout), runstate.WithClock(w.now))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.runs[name]; ok {
		return name
	}
	w.runs[name] = run
	w.retired.Remove(name)

	log.Debug().Str("name", name).Str("root", root).Str("phase", run.machine.State().Phase.String()).Msg("tracking run")
	return name
}

// Untrack stops watching a run. Its stored snapshot is kept.
func (w *Watcher) Untrack(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.runs[name]
	delete(w.runs, name)
	return ok
}

// Restore resumes every stored run whose root is still a directory
func (w *Watcher) Restore(ctx context.Context) error {
	states, err := w.repo.ListStates(ctx)
	if err != nil {
		return err
	}
	for _, state := range states {
		if info, err := os.Stat(state.Root); err != nil || !info.IsDir() {
			continue
		}
		w.Track(ctx, state.Root)
	}
	log.Info().Int("count", len(w.Names())).Msg("restored runs")
	return nil
}

// Discover tracks configured runs and every subdirectory of the configured roots.
// Recently retired runs are skipped.
func (w *Watcher) Discover(ctx context.Context) []string {
	var found []string

	candidates := append([]string(nil), w.cfg.Runs...)
	for _, root := range w.cfg.Roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			log.Warn().Err(err).Str("root", root).Msg("watcher: cannot list root")
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				candidates = append(candidates, filepath.Join(root, e.Name()))
			}
		}
	}

	for _, root := range candidates {
		name := types.RunName(root)
		if w.retired.Contains(name) || w.isTracked(name) {
			continue
		}
		found = append(found, w.Track(ctx, root))
	}
	return found
}

func (w *Watcher) isTracked(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.runs[name]
	return ok
}

// PollAll discovers new runs, polls every tracked run once and retires old terminal runs.
func (w *Watcher) PollAll(ctx context.Context) {
	if found := w.Discover(ctx); len(found) > 0 {
		log.Info().Strs("runs", found).Msg("discovered runs")
	}

	w.mu.RLock()
	runs := maps.Clone(w.runs)
	w.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Workers)
	for name, run := range runs {
		g.Go(func() error {
			w.pollRun(gctx, name, run)
			return nil
		})
	}
	_ = g.Wait()

	w.retire()
}

// Poll polls one run now. Concurrent requests for the same run share one poll.
func (w *Watcher) Poll(ctx context.Context, name string) (types.RunState, error) {
	w.mu.RLock()
	run, ok := w.runs[name]
	w.mu.RUnlock()
	if !ok {
		if state, ok := w.retired.Get(name); ok {
			return state, nil
		}
		return types.RunState{}, &types.ErrRunNotFound{Name: name}
	}

	v, _, _ := w.group.Do(name, func() (any, error) {
		return w.pollRun(ctx, name, run), nil
	})
	return v.(types.RunState), nil
}

func (w *Watcher) pollRun(ctx context.Context, name string, run *trackedRun) types.RunState {
	if w.lock != nil {
		key := common.Keys.RunPollLock(name)
		if err := w.lock.Acquire(ctx, key, common.RedisLockOptions{TtlS: int(pollLockTTL / time.Second)}); err != nil {
			if !common.IsNotObtained(err) {
				log.Warn().Err(err).Str("name", name).Msg("watcher: poll lock failed")
			}
			run.mu.Lock()
			defer run.mu.Unlock()
			return run.machine.State()
		}
		defer func() {
			if err := w.lock.Release(key); err != nil {
				log.Warn().Err(err).Str("name", name).Msg("watcher: poll lock release failed")
			}
		}()
	}

	run.mu.Lock()
	defer run.mu.Unlock()

	w.catchUp(ctx, name, run)

	prev := run.machine.State()
	state := run.machine.Poll()
	if prev.Phase != state.Phase {
		log.Info().Str("name", name).Str("phase", state.Phase.String()).Bool("available", state.Available).Msg("run phase")
	}

	w.publish(ctx, name, run, state)
	return state
}

// publish sends state to every sink that has not accepted it yet. A sink's
// delivery only advances when it succeeds, so failures are retried next poll.
func (w *Watcher) publish(ctx context.Context, name string, run *trackedRun, state types.RunState) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	for _, s := range w.sinks {
		u := sink.Update{Name: name, Current: state}
		if prev, ok := run.delivered[s.Name()]; ok {
			if prev.Equal(state) {
				continue
			}
			u.Previous = &prev
		}

		if err := s.Publish(ctx, u); err != nil {
			log.Warn().Err(err).Str("name", name).Str("sink", s.Name()).Str("phase", state.Phase.String()).Msg("watcher: publish failed, will retry")
			continue
		}
		run.delivered[s.Name()] = state
	}
}

// catchUp adopts a stored snapshot that is further along than the local
// machine, which happens when another replica polled the run.
func (w *Watcher) catchUp(ctx context.Context, name string, run *trackedRun) {
	stored, err := w.repo.GetState(ctx, name)
	if err != nil || stored.Root != run.root {
		return
	}
	if stored.Phase.Rank() <= run.machine.State().Phase.Rank() {
		return
	}
	run.machine = runstate.Resume(stored, runstate.WithLayout(w.layout), runstate.WithClock(w.now))
	run.markDelivered(w.sinks, stored)
}

// retire stops polling runs that have been terminal for longer than RetireAfter
// and whose final snapshot every sink has accepted. The snapshot stays
// queryable until it expires from the retired cache.
func (w *Watcher) retire() {
	if w.cfg.RetireAfter <= 0 {
		return
	}
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	for name, run := range w.runs {
		if !run.mu.TryLock() {
			continue
		}
		state := run.machine.State()
		settled := run.settled(w.sinks, state)
		run.mu.Unlock()

		if !state.Phase.IsTerminal() || now.Sub(state.Since) < w.cfg.RetireAfter || !settled {
			continue
		}
		delete(w.runs, name)
		w.retired.Add(name, state)
		log.Info().Str("name", name).Str("phase", state.Phase.String()).Msg("retired run")
	}
}

// Get returns the latest known snapshot of a tracked or retired run
func (w *Watcher) Get(name string) (types.RunState, error) {
	w.mu.RLock()
	run, ok := w.runs[name]
	w.mu.RUnlock()
	if ok {
		run.mu.Lock()
		defer run.mu.Unlock()
		return run.machine.State(), nil
	}
	if state, ok := w.retired.Get(name); ok {
		return state, nil
	}
	return types.RunState{}, &types.ErrRunNotFound{Name: name}
}

// States returns the latest snapshot of every tracked and retired run
func (w *Watcher) States() map[string]types.RunState {
	out := make(map[string]types.RunState)
	for _, name := range w.retired.Keys() {
		if state, ok := w.retired.Peek(name); ok {
			out[name] = state
		}
	}

	w.mu.RLock()
	runs := maps.Clone(w.runs)
	w.mu.RUnlock()
	for name, run := range runs {
		run.mu.Lock()
		out[name] = run.machine.State()
		run.mu.Unlock()
	}
	return out
}

// Names lists tracked runs in sorted order
func (w *Watcher) Names() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Sorted(maps.Keys(w.runs))
}

// Summary describes the substructure of a tracked run
func (w *Watcher) Summary(name string) (rundir.Summary, error) {
	w.mu.RLock()
	run, ok := w.runs[name]
	w.mu.RUnlock()
	if !ok {
		if state, ok := w.retired.Peek(name); ok {
			return rundir.Summarize(rundir.NewProbe(state.Root, w.layout)), nil
		}
		return rundir.Summary{}, &types.ErrRunNotFound{Name: name}
	}
	return rundir.Summarize(rundir.NewProbe(run.root, w.layout)), nil
}
