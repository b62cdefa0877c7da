package guard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/olbboy/blenderops/bridge"
	"github.com/olbboy/blenderops/cache"
	"github.com/olbboy/blenderops/config"
	"github.com/olbboy/blenderops/observe"
	"github.com/olbboy/blenderops/ratelimit"
)

// Guard runs every bridge command through admission control and, for
// queries, through the response cache.
type Guard struct {
	cfg     config.Config
	log     observe.Logger
	metrics observe.Metrics
	cache   *cache.Cache[json.RawMessage]
	limiter *ratelimit.Limiter
	exec    observe.CommandFunc
}

// Snapshot is a point-in-time view of the protection layer.
type Snapshot struct {
	Cache   cache.Stats     `json:"cache"`
	Limiter ratelimit.Stats `json:"ratelimit"`
}

// New builds a Guard from configuration, constructing its cache and
// limiter once. The Commander is required; a nil Observer disables
// telemetry. A zero-value Config yields a passthrough Guard with both
// protections off.
func New(cfg config.Config, commander bridge.Commander, obs observe.Observer) (*Guard, error) {
	if commander == nil {
		return nil, ErrNilCommander
	}

	log := observe.NopLogger()
	var mw *observe.Middleware
	if obs != nil {
		log = obs.Logger()
		var err error
		mw, err = observe.MiddlewareFromObserver(obs)
		if err != nil {
			return nil, fmt.Errorf("guard: build middleware: %w", err)
		}
	} else {
		mw = observe.NewMiddleware(observe.NopTracer(), observe.NopMetrics(), log)
	}

	g := &Guard{
		cfg:     cfg,
		log:     log.WithComponent("guard"),
		metrics: mw.Metrics(),
		cache: cache.New[json.RawMessage](cache.Config{
			Disabled:   !cfg.Cache.Enabled,
			DefaultTTL: cfg.Cache.DefaultTTL(),
			MaxEntries: cfg.Cache.MaxEntries,
			Logger:     log,
		}),
		limiter: ratelimit.New(ratelimit.Config{
			Disabled:           !cfg.RateLimit.Enabled,
			RequestsPerMinute:  cfg.RateLimit.MaxRequestsPerMinute,
			ScriptingPerMinute: cfg.RateLimit.ScriptingMaxPerMinute,
			MaxConcurrent:      cfg.RateLimit.MaxConcurrentRequests,
			Logger:             log,
		}),
	}
	g.exec = mw.Wrap(func(ctx context.Context, op observe.OpMeta, params map[string]any) (json.RawMessage, error) {
		return commander.Execute(ctx, bridge.Command{Type: op.Op, Params: params})
	})
	return g, nil
}

// Query runs a read command: token, slot, then cache before the bridge.
// A cache hit still consumes a token but never crosses the wire.
func (g *Guard) Query(ctx context.Context, q Query) (json.RawMessage, error) {
	if q.Op == "" {
		return nil, ErrEmptyOp
	}

	meta := observe.OpMeta{Op: q.Op, Kind: observe.KindQuery, Key: q.Key}
	raw, err := ratelimit.Do(ctx, g.limiter, ratelimit.DefaultKey, 0, func(ctx context.Context) (json.RawMessage, error) {
		if q.Key == "" {
			return g.exec(ctx, meta, q.Params)
		}

		computed := false
		v, err := g.cache.GetOrSet(ctx, q.Key, g.ttlFor(q.Class), func(ctx context.Context) (json.RawMessage, error) {
			computed = true
			return g.exec(ctx, meta, q.Params)
		})
		if g.cfg.Cache.Enabled {
			g.metrics.RecordCacheLookup(ctx, q.Key, !computed)
		}
		return v, err
	})
	if err != nil {
		g.recordDenial(ctx, ratelimit.DefaultKey, err)
		return nil, err
	}
	return raw, nil
}

// Mutate runs a state-changing command and, on success, drops the cache
// entries its scope dirties. Failed mutations leave the cache alone.
func (g *Guard) Mutate(ctx context.Context, m Mutation) (json.RawMessage, error) {
	if m.Op == "" {
		return nil, ErrEmptyOp
	}

	meta := observe.OpMeta{Op: m.Op, Kind: observe.KindMutate}
	raw, err := ratelimit.Do(ctx, g.limiter, ratelimit.DefaultKey, 0, func(ctx context.Context) (json.RawMessage, error) {
		return g.exec(ctx, meta, m.Params)
	})
	if err != nil {
		g.recordDenial(ctx, ratelimit.DefaultKey, err)
		return nil, err
	}

	g.invalidate(ctx, m.Op, m.InvalidateScene, m.InvalidateObject, false)
	return raw, nil
}

// Script executes arbitrary Python in Blender under the stricter
// scripting budget. Success invalidates the scene and every object entry,
// since the code may have touched anything.
func (g *Guard) Script(ctx context.Context, code string) (json.RawMessage, error) {
	if code == "" {
		return nil, ErrEmptyScript
	}

	meta := observe.OpMeta{Op: CmdExecuteCode, Kind: observe.KindScript}
	raw, err := ratelimit.DoScripting(ctx, g.limiter, func(ctx context.Context) (json.RawMessage, error) {
		return g.exec(ctx, meta, map[string]any{"code": code})
	})
	if err != nil {
		g.recordDenial(ctx, ratelimit.ScriptingKey, err)
		return nil, err
	}

	g.invalidate(ctx, CmdExecuteCode, true, "", true)
	return raw, nil
}

// Stats snapshots the cache counters and limiter occupancy.
func (g *Guard) Stats() Snapshot {
	return Snapshot{Cache: g.cache.Stats(), Limiter: g.limiter.Stats()}
}

// Cache exposes the response cache, mainly for health checks.
func (g *Guard) Cache() *cache.Cache[json.RawMessage] {
	return g.cache
}

// Limiter exposes the rate limiter, mainly for health checks.
func (g *Guard) Limiter() *ratelimit.Limiter {
	return g.limiter
}

// Close stops the limiter's bucket sweeper. The injected Commander is not
// owned by the Guard and stays open.
func (g *Guard) Close() error {
	g.limiter.Close()
	return nil
}

func (g *Guard) ttlFor(class TTLClass) time.Duration {
	switch class {
	case TTLScene:
		return g.cfg.Cache.SceneTTL()
	case TTLObject:
		return g.cfg.Cache.ObjectTTL()
	default:
		return 0 // cache default
	}
}

func (g *Guard) invalidate(ctx context.Context, op string, scene bool, object string, allObjects bool) {
	removed := 0
	if scene {
		removed += g.cache.InvalidateScene()
	}
	switch {
	case allObjects:
		removed += g.cache.InvalidateObject("")
	case object != "":
		removed += g.cache.InvalidateObject(object)
	}
	if removed > 0 {
		g.log.Debug(ctx, "invalidated cached entries",
			observe.Field{Key: "op", Value: op},
			observe.Field{Key: "removed", Value: removed},
		)
	}
}

func (g *Guard) recordDenial(ctx context.Context, key string, err error) {
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		g.metrics.RecordDenial(ctx, key, observe.DeniedByRate)
	case errors.Is(err, ratelimit.ErrConcurrencyExceeded):
		g.metrics.RecordDenial(ctx, key, observe.DeniedByConcurrency)
	}
}
