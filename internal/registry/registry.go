package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registry is the single long-lived mutable piece of state: the catalog of
// endpoint definitions, persisted synchronously after every mutation.
type Registry struct {
	mu          sync.RWMutex
	defs        map[string]rawDefinition
	store       Store
	defaultType Kind
	selector    Selector
	logger      *zap.Logger
}

// Option customizes Registry construction.
type Option func(*Registry)

// WithDefaultKind overrides the fallback payload kind for unknown types.
func WithDefaultKind(k Kind) Option {
	return func(r *Registry) {
		if ValidKind(k) {
			r.defaultType = k
		}
	}
}

// WithSelector replaces the tie-break selector, letting tests pin a
// deterministic choice.
func WithSelector(s Selector) Option {
	return func(r *Registry) {
		if s != nil {
			r.selector = s
		}
	}
}

// New loads the catalog and returns a ready Registry. The load chain never
// fails: a missing or corrupt store falls back to the seed catalog (which is
// then persisted), and a missing seed yields an empty registry with a
// warning.
func New(store Store, seed Store, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		store:       store,
		defaultType: DefaultKind,
		selector:    newRandomSelector(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.defs = r.loadInitial(seed)
	return r
}

func (r *Registry) loadInitial(seed Store) map[string]rawDefinition {
	defs, err := r.store.Load()
	if err == nil {
		r.logger.Info("catalog loaded", zap.Int("endpoints", len(defs)))
		return defs
	}
	r.logger.Warn("catalog unavailable, falling back to seed", zap.Error(err))

	if seed != nil {
		seeded, seedErr := seed.Load()
		if seedErr == nil {
			if saveErr := r.store.Save(seeded); saveErr != nil {
				r.logger.Warn("persist seeded catalog failed", zap.Error(saveErr))
			}
			r.logger.Info("catalog seeded from defaults", zap.Int("endpoints", len(seeded)))
			return seeded
		}
		r.logger.Warn("seed catalog unavailable", zap.Error(seedErr))
	}

	r.logger.Warn("starting with empty endpoint catalog")
	return make(map[string]rawDefinition)
}

// Register inserts or overwrites a definition keyed by its primary keyword
// and persists the catalog. The only rejected input is one without a keyword.
func (r *Registry) Register(def Definition) error {
	name := def.Name()
	if name == "" {
		return ErrInvalidDefinition
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[name] = fromDefinition(def)
	if err := r.persistLocked(); err != nil {
		return err
	}
	r.logger.Info("endpoint registered", zap.String("endpoint", name))
	return nil
}

// Unregister removes a definition by primary keyword. Removing an unknown
// name is a logged no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[name]; !ok {
		r.logger.Warn("unregister of unknown endpoint", zap.String("endpoint", name))
		return
	}
	delete(r.defs, name)
	if err := r.persistLocked(); err != nil {
		r.logger.Error("persist after unregister failed", zap.String("endpoint", name), zap.Error(err))
	}
	r.logger.Info("endpoint removed", zap.String("endpoint", name))
}

func (r *Registry) persistLocked() error {
	if err := r.store.Save(r.defs); err != nil {
		return fmt.Errorf("persist catalog: %w", err)
	}
	return nil
}

// Normalize returns the coerced, defaulted, deep-copied view of one
// definition. The second return is false for unknown names.
func (r *Registry) Normalize(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	raw, ok := r.defs[name]
	if !ok {
		return Definition{}, false
	}
	def := raw.normalize(r.defaultType)
	if len(def.Keywords) == 0 {
		def.Keywords = []string{name}
	}
	return def, true
}

// Names returns all primary keywords, sorted for deterministic output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of registered endpoints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Snapshot returns normalized copies of every definition, sorted by name.
// The prober consumes this to build its per-origin probe queues.
func (r *Registry) Snapshot() []Definition {
	names := r.Names()
	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		if def, ok := r.Normalize(name); ok {
			defs = append(defs, def)
		}
	}
	return defs
}

// Summary renders a type-grouped listing of registered endpoint names.
func (r *Registry) Summary() string {
	byKind := map[Kind][]string{}
	for _, def := range r.Snapshot() {
		byKind[def.Type] = append(byKind[def.Type], def.Name())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d endpoints registered\n", r.Len())
	for _, kind := range []Kind{KindText, KindImage, KindVideo, KindAudio} {
		names := byKind[kind]
		if len(names) == 0 {
			continue
		}
		fmt.Fprintf(&b, "[%s] %d: %s\n", kind, len(names), strings.Join(names, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Detail renders a human-readable view of one endpoint.
func (r *Registry) Detail(name string) (string, bool) {
	def, ok := r.Normalize(name)
	if !ok {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", def.Name())
	fmt.Fprintf(&b, "keywords: %s\n", strings.Join(def.Keywords, ", "))
	fmt.Fprintf(&b, "urls: %s\n", strings.Join(def.URLs, ", "))
	fmt.Fprintf(&b, "type: %s\n", def.Type)
	if len(def.Params) > 0 {
		keys := make([]string, 0, len(def.Params))
		for k := range def.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, def.Params[k]))
		}
		fmt.Fprintf(&b, "params: %s\n", strings.Join(pairs, ", "))
	}
	if def.Target != "" {
		fmt.Fprintf(&b, "target: %s\n", def.Target)
	}
	fmt.Fprintf(&b, "fuzzy: %t\npriority: %d", def.Fuzzy, def.Priority)
	return b.String(), true
}
