package plugins

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// NamedTransform is a transform with the name it was registered under.
type NamedTransform struct {
	Name        string
	Transformer Transformer
}

// Registry collects every hook registered for a build.
// It is safe for concurrent use, although registration normally happens
// from a single goroutine during setup.
type Registry struct {
	transforms     []NamedTransform
	filters        map[string]any
	dataExtensions map[string]DataParser
	passthrough    []Passthrough
	watchTargets   []string
	readyFuncs     []ReadyFunc
	plugins        map[string]Plugin
	mu             sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		filters:        make(map[string]any),
		dataExtensions: make(map[string]DataParser),
		plugins:        make(map[string]Plugin),
	}
}

// AddPlugin registers a plugin and lets it install its hooks.
func (r *Registry) AddPlugin(p Plugin) error {
	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}

	r.mu.Lock()
	if _, exists := r.plugins[name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("plugin %s already registered", name)
	}
	r.plugins[name] = p
	r.mu.Unlock()

	// Register runs unlocked since it calls back into the registry.
	if err := p.Register(r); err != nil {
		r.mu.Lock()
		delete(r.plugins, name)
		r.mu.Unlock()
		return fmt.Errorf("failed to register plugin %s: %w", name, err)
	}
	return nil
}

// AddTransform appends a named transform. Transforms run in registration
// order.
func (r *Registry) AddTransform(name string, t Transformer) error {
	if name == "" || t == nil {
		return fmt.Errorf("transform requires a name and an implementation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.transforms {
		if existing.Name == name {
			return fmt.Errorf("transform %s already registered", name)
		}
	}
	r.transforms = append(r.transforms, NamedTransform{Name: name, Transformer: t})
	return nil
}

// AddFilter registers a template function under name.
func (r *Registry) AddFilter(name string, fn any) error {
	if name == "" || fn == nil {
		return fmt.Errorf("filter requires a name and a function")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.filters[name]; exists {
		return fmt.Errorf("filter %s already registered", name)
	}
	r.filters[name] = fn
	return nil
}

// AddDataExtension makes files in the data directory with extension ext
// load through p. The leading dot is optional.
func (r *Registry) AddDataExtension(ext string, p DataParser) error {
	ext = normalizeExt(ext)
	if ext == "" || p == nil {
		return fmt.Errorf("data extension requires an extension and a parser")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.dataExtensions[ext]; exists {
		return fmt.Errorf("data extension %s already registered", ext)
	}
	r.dataExtensions[ext] = p
	return nil
}

// AddPassthroughCopy copies source verbatim to dest under the output root.
func (r *Registry) AddPassthroughCopy(source, dest string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passthrough = append(r.passthrough, Passthrough{Source: source, Dest: dest})
}

// AddWatchTarget adds a path the dev server watches in addition to the
// input directory.
func (r *Registry) AddWatchTarget(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchTargets = append(r.watchTargets, path)
}

// OnDevServerReady registers fn to run when the dev server is ready.
func (r *Registry) OnDevServerReady(fn ReadyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readyFuncs = append(r.readyFuncs, fn)
}

// Transforms returns the registered transforms in order
func (r *Registry) Transforms() []NamedTransform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]NamedTransform, len(r.transforms))
	copy(result, r.transforms)
	return result
}

// Filters returns a copy of the registered template functions
func (r *Registry) Filters() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]any, len(r.filters))
	for k, v := range r.filters {
		result[k] = v
	}
	return result
}

// DataParser returns the parser registered for ext, if any.
func (r *Registry) DataParser(ext string) (DataParser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.dataExtensions[normalizeExt(ext)]
	return p, ok
}

// DataExtensions returns the registered data extensions, sorted
func (r *Registry) DataExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]string, 0, len(r.dataExtensions))
	for ext := range r.dataExtensions {
		result = append(result, ext)
	}
	sort.Strings(result)
	return result
}

// PassthroughCopies returns the registered passthrough mappings
func (r *Registry) PassthroughCopies() []Passthrough {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Passthrough, len(r.passthrough))
	copy(result, r.passthrough)
	return result
}

// WatchTargets returns the registered watch targets
func (r *Registry) WatchTargets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]string, len(r.watchTargets))
	copy(result, r.watchTargets)
	return result
}

// ReadyFuncs returns the registered dev-server callbacks
func (r *Registry) ReadyFuncs() []ReadyFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ReadyFunc, len(r.readyFuncs))
	copy(result, r.readyFuncs)
	return result
}

// PluginNames returns the names of installed plugins, sorted
func (r *Registry) PluginNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
