package analytics

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/de-tools/account-review/pkg/fault"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultOrder is the canonical execution order. Modules that read another
// module's results must come after it.
var DefaultOrder = []string{
	"overview.stat_codes",
	"overview.product_codes",
	"overview.eligibility",
	"dctr.penetration",
	"dctr.branches",
	"dctr.overlays",
	"rege.status",
	"attrition.rates",
	"attrition.dimensions",
	"value.analysis",
	"insights.synthesis",
}

const discoveryWorkers = 8

// Unit registers the modules of one analysis package.
type Unit struct {
	Name string
	Load func(Registry) error
}

// Registry maps module ids to modules and keeps the execution order apart
// from registration.
type Registry interface {
	// Register adds m, replacing any module with the same id.
	Register(m Module) error
	// Get looks up a module by id.
	Get(id string) (Module, error)
	// Ordered returns the registered modules in canonical order.
	Ordered(ctx context.Context) []Module
	// IDs returns the sorted registered ids.
	IDs() []string
	// Order returns the canonical order.
	Order() []string
	// Clear removes every registered module.
	Clear()
	// CheckOrder reports modules placed before the producers of results they use.
	CheckOrder() []string
	// Discover runs every unit's Load concurrently and reports all failures at once.
	Discover(ctx context.Context, units []Unit) error
}

type registry struct {
	mu      sync.RWMutex
	modules map[string]Module
	order   []string
}

// NewRegistry creates an empty registry with the given execution order.
func NewRegistry(order []string) Registry {
	return &registry{
		modules: make(map[string]Module),
		order:   append([]string(nil), order...),
	}
}

func (r *registry) Register(m Module) error {
	if m == nil {
		return fmt.Errorf("module cannot be nil")
	}
	if m.ID() == "" {
		return fmt.Errorf("module id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.ID()] = m
	return nil
}

func (r *registry) Get(id string) (Module, error) {
	r.mu.RLock()
	m, ok := r.modules[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fault.Config(map[string]any{"available": r.IDs()}, "unknown analytics module %q", id)
	}
	return m, nil
}

func (r *registry) Ordered(ctx context.Context) []Module {
	logger := zerolog.Ctx(ctx)
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Module, 0, len(r.order))
	for _, id := range r.order {
		m, ok := r.modules[id]
		if !ok {
			logger.Warn().Str("module", id).Msg("module in execution order but not registered")
			continue
		}
		out = append(out, m)
	}
	return out
}

func (r *registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.modules))
	for id := range r.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *registry) Order() []string {
	return append([]string(nil), r.order...)
}

func (r *registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules = make(map[string]Module)
}

func (r *registry) CheckOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	position := make(map[string]int, len(r.order))
	producer := map[string]string{}
	for i, id := range r.order {
		position[id] = i
		if d, ok := r.modules[id].(Dependent); ok {
			for _, key := range d.Produces() {
				producer[key] = id
			}
		}
	}

	var problems []string
	for i, id := range r.order {
		m, ok := r.modules[id]
		if !ok {
			continue
		}
		keys := append([]string(nil), m.RequiredResults()...)
		if d, ok := m.(Dependent); ok {
			keys = append(keys, d.Reads()...)
		}
		for _, key := range keys {
			p, ok := producer[key]
			switch {
			case !ok:
				problems = append(problems, fmt.Sprintf("%s reads %q which no registered module produces", id, key))
			case position[p] > i:
				problems = append(problems, fmt.Sprintf("%s reads %q before %s produces it", id, key, p))
			}
		}
	}
	return problems
}

func (r *registry) Discover(ctx context.Context, units []Unit) error {
	logger := zerolog.Ctx(ctx)

	var mu sync.Mutex
	var failed []string

	g := new(errgroup.Group)
	g.SetLimit(discoveryWorkers)
	for _, u := range units {
		g.Go(func() error {
			err := load(u, r)
			if err == nil {
				return nil
			}
			logger.Error().Err(err).Str("unit", u.Name).Msg("failed to load analytics unit")
			mu.Lock()
			failed = append(failed, u.Name)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		sort.Strings(failed)
		return fault.Config(map[string]any{"failed_modules": failed}, "failed to load %d analytics unit(s)", len(failed))
	}
	return nil
}

func load(u Unit, r Registry) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if u.Load == nil {
		return fmt.Errorf("unit %s has no loader", u.Name)
	}
	return u.Load(r)
}
