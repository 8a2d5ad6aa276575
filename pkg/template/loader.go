package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shiftsec/eventshift/internal/logging"
	"github.com/shiftsec/eventshift/pkg/jsonpath"
	"github.com/shiftsec/eventshift/pkg/mapping"
)

type cacheKey struct {
	eventType string
	format    mapping.Format
}

// Loader resolves (event type, output format) pairs to compiled
// templates. Compiled templates cache for the loader's lifetime; the
// cache belongs to the loader instance (not a package global) and is
// safe for concurrent hosts.
type Loader struct {
	dir       string
	extractor *jsonpath.Extractor
	log       *logging.Logger

	mu    sync.RWMutex
	cache map[cacheKey]*Compiled
}

// NewLoader builds a loader over a template directory.
func NewLoader(dir string, extractor *jsonpath.Extractor, log *logging.Logger) *Loader {
	if log == nil {
		log = logging.Default()
	}
	return &Loader{
		dir:       dir,
		extractor: extractor,
		log:       log.Component("template-loader"),
		cache:     make(map[cacheKey]*Compiled),
	}
}

// Load resolves the template for a mapping and format.
//
// An explicit null reference is a disabled combination: (nil, nil)
// with no logging. An absent reference falls back to the conventional
// filename <event_type>_<format>.yaml. A missing file logs and returns
// (nil, nil). Only unreadable or invalid template files return errors.
func (l *Loader) Load(m *mapping.EventTypeMapping, format mapping.Format) (*Compiled, error) {
	key := cacheKey{eventType: m.Name, format: format}

	l.mu.RLock()
	cached, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	ref := m.TemplateFor(format)
	if ref.Disabled() {
		return nil, nil
	}

	filename, set := ref.Name()
	if !set {
		filename = fmt.Sprintf("%s_%s.yaml", m.Name, format)
	}

	path := filepath.Join(l.dir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.log.Warn("template file not found", "event_type", m.Name, "format", string(format), "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}

	compiled, err := l.compile(data, path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[key] = compiled
	l.mu.Unlock()
	return compiled, nil
}

func (l *Loader) compile(data []byte, path string) (*Compiled, error) {
	spec, err := ParseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	for name, expr := range spec.Extractors {
		if err := l.extractor.Parse(expr); err != nil {
			return nil, fmt.Errorf("template %s: extractor %q: %w", path, name, err)
		}
	}
	return Compile(spec)
}

// Invalidate drops one cached template so the next Load re-reads it.
// Hot-reload hosts call this after replacing a template file.
func (l *Loader) Invalidate(eventType string, format mapping.Format) {
	l.mu.Lock()
	delete(l.cache, cacheKey{eventType: eventType, format: format})
	l.mu.Unlock()
}

// CacheLen reports the number of cached templates.
func (l *Loader) CacheLen() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}
