package grammar

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/fsnotify.v1"
)

// ErrDialectNotFound is returned when no dialect is registered under a name.
var ErrDialectNotFound = errors.New("dialect not found")

// Registry holds the comment dialects available by name. Dialects loaded
// from files shadow the built-in ones; removing the file brings the built-in
// dialect back.
type Registry struct {
	mu       sync.RWMutex
	defs     map[string]*Definition
	dir      string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	onChange func(event string, def *Definition)
	logger   zerolog.Logger
}

// NewRegistry creates a registry holding the built-in dialects.
func NewRegistry() *Registry {
	r := &Registry{
		defs:   make(map[string]*Definition),
		logger: zerolog.Nop(),
	}
	r.registerBuiltins()
	return r
}

// NewRegistryWithDirectory creates a registry and loads dialects from dir.
func NewRegistryWithDirectory(dir string) (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadDirectory(dir); err != nil {
		return nil, err
	}
	return r, nil
}

// SetLogger sets the logger used by the watch loop.
func (r *Registry) SetLogger(logger zerolog.Logger) {
	r.logger = logger
}

func (r *Registry) registerBuiltins() {
	for _, def := range builtinDefinitions() {
		if err := r.Register(def); err != nil {
			panic("grammar: registering built-in dialect: " + err.Error())
		}
	}
}

// Register compiles def and makes it available under its name. Registering
// the version already held under that name is an error.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return errors.New("nil dialect")
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid dialect: %w", err)
	}
	if err := def.Compile(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.defs[def.Name]; ok && existing.Version == def.Version {
		return fmt.Errorf("dialect %s@%s is already registered (%s)", def.Name, def.Version, existing.Origin())
	}
	r.defs[def.Name] = def
	return nil
}

// Unregister removes a dialect, built-in or not.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[name]; !ok {
		return fmt.Errorf("%w: %q", ErrDialectNotFound, name)
	}
	delete(r.defs, name)
	return nil
}

func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	return def, ok
}

// Grammar returns the compiled grammar of a dialect.
func (r *Registry) Grammar(name string) (*Grammar, error) {
	def, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDialectNotFound, name)
	}
	return def.Grammar(), nil
}

// List returns all dialects sorted by name.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// LoadDirectory registers every .yaml and .yml file in dir and remembers dir
// for Reload and Watch. A missing directory holds no dialects and is not an
// error. Files that fail to load are reported together after the rest are
// registered.
func (r *Registry) LoadDirectory(dir string) error {
	r.mu.Lock()
	r.dir = dir
	r.mu.Unlock()

	entries, err := os.ReadDir(dir)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return fmt.Errorf("reading dialect directory: %w", err)
	}

	var failed []string
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		if err := r.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			failed = append(failed, err.Error())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("loading dialects from %s: %s", dir, strings.Join(failed, "; "))
	}
	return nil
}

// LoadFile loads and registers a single YAML dialect file.
func (r *Registry) LoadFile(path string) error {
	def, err := LoadFile(path)
	if err != nil {
		return err
	}
	if err := r.Register(def); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Reload drops every loaded dialect and loads the configured directory again.
func (r *Registry) Reload() error {
	r.mu.Lock()
	dir := r.dir
	r.defs = make(map[string]*Definition)
	r.mu.Unlock()

	if dir == "" {
		return fmt.Errorf("no directory configured for reload")
	}

	r.registerBuiltins()
	return r.LoadDirectory(dir)
}

// SetOnChange sets a callback invoked after the watch loop applies a change.
func (r *Registry) SetOnChange(fn func(event string, def *Definition)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Watch starts watching the dialect directory for changes.
func (r *Registry) Watch() error {
	r.mu.RLock()
	dir := r.dir
	r.mu.RUnlock()
	if dir == "" {
		return fmt.Errorf("no directory configured for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	r.watcher = watcher
	r.stopChan = make(chan struct{})
	go r.watchLoop(watcher, r.stopChan)
	return nil
}

func (r *Registry) watchLoop(watcher *fsnotify.Watcher, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isYAML(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				r.handleFileChange(event.Name, "create")
			case event.Op&fsnotify.Write == fsnotify.Write:
				r.handleFileChange(event.Name, "modify")
			case event.Op&fsnotify.Remove == fsnotify.Remove,
				event.Op&fsnotify.Rename == fsnotify.Rename:
				r.handleFileRemove(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error().Err(err).Msg("grammar watcher error")
		}
	}
}

// fileDialect returns the name of the dialect loaded from path. The caller
// holds r.mu.
func (r *Registry) fileDialect(path string) (string, bool) {
	for name, def := range r.defs {
		if def.Source == path {
			return name, true
		}
	}
	return "", false
}

// drop removes the named dialect, putting the built-in one of the same name
// back in its place. The caller holds r.mu.
func (r *Registry) drop(name string) {
	if def := builtin(name); def != nil {
		r.defs[name] = def
		return
	}
	delete(r.defs, name)
}

func (r *Registry) handleFileChange(path string, event string) {
	def, err := LoadFile(path)
	if err != nil {
		r.logger.Warn().Err(err).Str("file", path).Msg("skipping grammar file")
		return
	}

	r.mu.Lock()
	if old, ok := r.fileDialect(path); ok && old != def.Name {
		r.drop(old)
	}
	r.defs[def.Name] = def
	fn := r.onChange
	r.mu.Unlock()

	r.logger.Debug().Str("file", path).Str("grammar", def.Name).Str("event", event).Msg("grammar reloaded")
	if fn != nil {
		fn(event, def)
	}
}

func (r *Registry) handleFileRemove(path string) {
	r.mu.Lock()
	name, ok := r.fileDialect(path)
	var removed *Definition
	if ok {
		removed = r.defs[name]
		r.drop(name)
	}
	fn := r.onChange
	r.mu.Unlock()

	if !ok {
		return
	}
	r.logger.Debug().Str("file", path).Str("grammar", name).Msg("grammar removed")
	if fn != nil {
		fn("remove", removed)
	}
}

// StopWatch stops watching the dialect directory.
func (r *Registry) StopWatch() {
	if r.stopChan != nil {
		close(r.stopChan)
		r.stopChan = nil
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
