package ecosystem

import (
	"context"
	"fmt"
	"strings"
)

// A SuiteFunc runs one suite within a session
type SuiteFunc func(ctx context.Context, s *Session, opts RunOptions) error

// A Registry maps suite names to their implementation.
// Names starting with an underscore are private: they can be looked up but are not part of the catalog.
type Registry struct {
	suites map[string]SuiteFunc
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{suites: make(map[string]SuiteFunc)}
}

// DefaultRegistry holds the built-in suites and the ones declared in the config file
var DefaultRegistry = NewRegistry()

// Register adds a suite to the DefaultRegistry
func Register(name string, fn SuiteFunc) {
	DefaultRegistry.Register(name, fn)
}

// Register adds a suite under name. It panics if name is empty or already registered.
func (r *Registry) Register(name string, fn SuiteFunc) {
	if name == "" {
		panic("ecosystem: Register called with an empty suite name")
	}
	if fn == nil {
		panic(fmt.Sprintf("ecosystem: Register called with a nil func for suite %s", name))
	}
	if _, dup := r.suites[name]; dup {
		panic(fmt.Sprintf("ecosystem: Register called twice for suite %s", name))
	}
	r.suites[name] = fn
}

// RegisterDescriptor registers a suite running d
func (r *Registry) RegisterDescriptor(d SuiteDescriptor) {
	r.Register(d.Name, func(ctx context.Context, s *Session, opts RunOptions) error {
		_, err := s.RunSuite(ctx, d, opts)
		return err
	})
}

// Lookup returns the suite registered under name
func (r *Registry) Lookup(name string) (SuiteFunc, bool) {
	fn, ok := r.suites[name]
	return fn, ok
}

// Names returns the sorted catalog of public suite names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.suites))
	for _, name := range sortedKeys(r.suites) {
		if !strings.HasPrefix(name, "_") {
			names = append(names, name)
		}
	}
	return names
}

// Resolve validates the requested suite names against the catalog. No names selects the whole catalog.
func (r *Registry) Resolve(names []string) ([]string, error) {
	if len(names) == 0 {
		return r.Names(), nil
	}

	catalog := make(map[string]bool)
	for _, name := range r.Names() {
		catalog[name] = true
	}
	var invalid []string
	for _, name := range names {
		if !catalog[name] {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		return nil, configErrorf("invalid suite(s): %s. Available suites: %s", strings.Join(invalid, ", "), strings.Join(r.Names(), ", "))
	}
	return names, nil
}

// RunAll runs the named suites one after another, stopping at the first failure
func (r *Registry) RunAll(ctx context.Context, s *Session, names []string, opts RunOptions) error {
	for _, name := range names {
		fn, ok := r.Lookup(name)
		if !ok {
			return configErrorf("invalid suite %s", name)
		}
		s.logger("suite:"+name).Infof("Running suite %s", name)
		if err := fn(ctx, s, opts); err != nil {
			return fmt.Errorf("suite %s failed: %w", name, err)
		}
	}
	return nil
}
