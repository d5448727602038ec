// Package control assembles the sync engine: one explicit context object
// constructed at startup and passed by reference to every component, instead
// of hidden global state.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hackfest/syncengine/internal/core/config"
	"github.com/hackfest/syncengine/internal/core/domain"
	"github.com/hackfest/syncengine/internal/infra/kv"
	"github.com/hackfest/syncengine/internal/infra/netmon"
	"github.com/hackfest/syncengine/internal/infra/remote"
	"github.com/hackfest/syncengine/internal/sync/cache"
	"github.com/hackfest/syncengine/internal/sync/invalidation"
	"github.com/hackfest/syncengine/internal/sync/mutation"
	"github.com/hackfest/syncengine/internal/sync/notify"
	"github.com/hackfest/syncengine/internal/sync/offline"
)

// ErrQueued reports that a write was deferred to the offline queue instead
// of attempted.
var ErrQueued = errors.New("mutation queued for offline replay")

// Options configures the engine. Source is required; everything else has a
// default.
type Options struct {
	Config   *config.AppConfig
	Source   remote.Source
	KV       kv.Store
	Emitter  notify.Emitter
	Logger   *slog.Logger
	Prober   netmon.Prober
	Clock    func() time.Time
	Features []domain.OfflineFeature
	Rules    []invalidation.Rule
}

// Engine wires the cache store, network monitor, retry policy, mutation
// executor, invalidation graph, offline queue, and notification policy.
type Engine struct {
	cfg      *config.AppConfig
	log      *slog.Logger
	source   remote.Source
	store    *cache.Store
	monitor  *netmon.Monitor
	graph    *invalidation.Graph
	executor *mutation.Executor
	registry *offline.Registry
	queue    *offline.Queue
	banners  notify.Emitter
	policy   remote.Policy
	profiles map[domain.ProfileName]domain.Profile

	cancelReconnect func()
}

// New constructs the engine.
func New(opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, errors.New("remote source is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	store := opts.KV
	if store == nil {
		store = kv.NewMemory()
	}
	banners := opts.Emitter
	if banners == nil {
		banners = notify.SlogEmitter{Log: log}
	}

	cacheOpts := []cache.Option{cache.WithLogger(log)}
	if opts.Clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(opts.Clock))
	}

	e := &Engine{
		cfg:      cfg,
		log:      log,
		source:   opts.Source,
		store:    cache.New(cacheOpts...),
		banners:  banners,
		registry: offline.NewRegistry(opts.Features...),
		profiles: buildProfiles(cfg.Profiles),
	}

	e.monitor = netmon.New(opts.Prober,
		netmon.WithInterval(cfg.Network.ProbeInterval),
		netmon.WithSlowThreshold(cfg.Network.SlowThreshold),
		netmon.WithLogger(log),
	)
	e.policy = remote.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		Monitor:    e.monitor,
		Log:        log,
	}
	e.graph = invalidation.NewGraph(e.store, log, opts.Rules...)
	e.executor = mutation.NewExecutor(e.store, e.mutateRemote, e.graph, log)
	e.queue = offline.NewQueue(store, cfg.Offline.QueueKey, cfg.Offline.QueueCap, log)

	e.cancelReconnect = e.monitor.OnReconnect(func() {
		go e.recover()
	})

	return e, nil
}

// Start begins network sampling.
func (e *Engine) Start(ctx context.Context) {
	e.monitor.Start(ctx)
}

// Close tears the engine down: sampling stops, pending timers are canceled,
// subscriptions detach. In-flight fetches are left to finish.
func (e *Engine) Close() {
	e.cancelReconnect()
	e.monitor.Stop()
	e.store.Close()
}

// Store exposes the cache store, primarily for the debug server.
func (e *Engine) Store() *cache.Store { return e.store }

// Monitor exposes the network monitor.
func (e *Engine) Monitor() *netmon.Monitor { return e.monitor }

// Graph exposes the invalidation graph.
func (e *Engine) Graph() *invalidation.Graph { return e.graph }

// QueueLen returns the offline queue depth.
func (e *Engine) QueueLen(ctx context.Context) (int, error) {
	return e.queue.Len(ctx)
}

// Profile resolves a preset name, falling back to standard.
func (e *Engine) Profile(name domain.ProfileName) domain.Profile {
	if p, ok := e.profiles[name]; ok {
		return p
	}
	return e.profiles[domain.ProfileStandard]
}

// Mutate runs a write through the offline gate and the executor, emitting
// the resolved banner for every outcome. The returned error is ErrQueued,
// mutation.ErrBusy, or a *domain.ClassifiedError.
func (e *Engine) Mutate(ctx context.Context, req mutation.Request) (json.RawMessage, error) {
	if !e.monitor.State().Online {
		capability := e.registry.Capability(req.Name)
		if !capability.AvailableOffline {
			return nil, e.enqueue(ctx, req)
		}
	}

	result, err := e.executor.Run(ctx, req)
	if err != nil {
		if errors.Is(err, mutation.ErrBusy) {
			// Synchronous rejection, not a failure to surface.
			return nil, err
		}
		var ce *domain.ClassifiedError
		if !errors.As(err, &ce) {
			ce = domain.NewClassifiedError(domain.ErrUnknown, err.Error())
		}
		if (ce.Kind == domain.ErrNetwork || ce.Kind == domain.ErrTimeout) && !e.monitor.State().Online {
			// Connectivity dropped mid-write. The optimistic state has
			// already rolled back; defer the write instead of failing it.
			return nil, e.enqueue(ctx, req)
		}
		e.banners.Emit(notify.Resolve(notify.Outcome{Err: ce, Operation: req.Name}))
		return nil, ce
	}

	e.banners.Emit(notify.Resolve(notify.Outcome{Success: true, Operation: req.Name}))
	return result, nil
}

func (e *Engine) enqueue(ctx context.Context, req mutation.Request) error {
	m := domain.NewPendingMutation(req.Name, req.Resource, req.Payload, req.Context)
	if _, err := e.queue.Enqueue(ctx, m); err != nil {
		ce := domain.NewClassifiedError(domain.ErrClient, "could not queue change: "+err.Error())
		e.banners.Emit(notify.Resolve(notify.Outcome{Err: ce, Operation: req.Name}))
		return ce
	}
	e.banners.Emit(notify.Resolve(notify.Outcome{Queued: true, Operation: req.Name}))
	return ErrQueued
}

// recover is the reconnect sweep: refetch opted-in subscribed entries, then
// replay the offline queue in FIFO order through the normal mutation path.
func (e *Engine) recover() {
	ctx := context.Background()
	refetched := e.store.RefetchOnReconnect(ctx)
	e.log.Info("reconnect sweep", "refetched", refetched)

	replayed, err := e.queue.Drain(ctx, func(m domain.PendingMutation) error {
		_, runErr := e.executor.Run(ctx, mutation.Request{
			Name:     m.Name,
			Resource: m.Resource,
			Payload:  m.Payload,
			Context:  invalidation.Context(m.Context),
		})
		if runErr != nil {
			var ce *domain.ClassifiedError
			if errors.As(runErr, &ce) {
				e.banners.Emit(notify.Resolve(notify.Outcome{Err: ce, Operation: m.Name}))
			}
			return runErr
		}
		e.banners.Emit(notify.Resolve(notify.Outcome{Success: true, Operation: m.Name}))
		return nil
	})
	if err != nil {
		e.log.Error("offline queue replay failed", "error", err)
		return
	}
	if replayed > 0 {
		e.log.Info("offline queue replayed", "count", replayed)
	}
}

// fetcher wraps a read query with the deadline guard and retry policy.
func (e *Engine) fetcher(q remote.Query) cache.Fetcher {
	return func(ctx context.Context) (any, error) {
		data, err := e.policy.Do(ctx, q.Resource, func(ctx context.Context) (json.RawMessage, error) {
			return remote.Deadline(ctx, e.cfg.Remote.Timeout, func(ctx context.Context) (json.RawMessage, error) {
				return e.source.Fetch(ctx, q)
			})
		})
		if err != nil {
			return nil, err
		}
		return data, nil
	}
}

// mutateRemote wraps the write path the same way.
func (e *Engine) mutateRemote(ctx context.Context, m domain.PendingMutation) (json.RawMessage, error) {
	return e.policy.Do(ctx, m.Name, func(ctx context.Context) (json.RawMessage, error) {
		return remote.Deadline(ctx, e.cfg.Remote.Timeout, func(ctx context.Context) (json.RawMessage, error) {
			return e.source.Mutate(ctx, remote.Command{
				Name:     m.Name,
				Resource: m.Resource,
				Payload:  m.Payload,
			})
		})
	})
}

func buildProfiles(overrides map[string]config.ProfileConfig) map[domain.ProfileName]domain.Profile {
	profiles := domain.DefaultProfiles()
	for name, o := range overrides {
		p, ok := profiles[domain.ProfileName(name)]
		if !ok {
			continue
		}
		if o.StaleTime > 0 {
			p.StaleTime = o.StaleTime
		}
		if o.GCTime > 0 {
			p.GCTime = o.GCTime
		}
		if o.RefetchOnReconnect != nil {
			p.RefetchOnReconnect = *o.RefetchOnReconnect
		}
		if o.RefetchOnMount != nil {
			p.RefetchOnMount = *o.RefetchOnMount
		}
		profiles[domain.ProfileName(name)] = p
	}
	return profiles
}
