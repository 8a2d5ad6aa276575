// Package jsonpath evaluates JSONPath expressions against decoded JSON
// documents. Expressions compile lazily into a bounded LRU cache; a
// compile failure is logged once and degrades every later use of that
// expression to a nil result — extraction never raises.
package jsonpath

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ohler55/ojg/jp"

	"github.com/shiftsec/eventshift/internal/logging"
)

// DefaultCacheSize bounds the compiled-expression cache.
const DefaultCacheSize = 256

type entry struct {
	expr jp.Expr
	err  error
}

// Extractor compiles and evaluates JSONPath expressions.
type Extractor struct {
	cache *lru.Cache[string, entry]
	log   *logging.Logger
}

// Option configures an Extractor.
type Option func(*config)

type config struct {
	size int
	log  *logging.Logger
}

// WithCacheSize bounds the compiled-expression cache.
func WithCacheSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithLogger sets the logger for compile-failure reporting.
func WithLogger(l *logging.Logger) Option {
	return func(c *config) { c.log = l }
}

// New constructs an Extractor.
func New(opts ...Option) *Extractor {
	cfg := config{size: DefaultCacheSize, log: logging.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	cache, _ := lru.New[string, entry](cfg.size)
	return &Extractor{cache: cache, log: cfg.log.Component("extractor")}
}

// Extract evaluates expression against doc. Zero matches return nil,
// exactly one match returns the value, multiple matches return []any.
// A compile failure returns nil for every call using that expression.
func (e *Extractor) Extract(doc any, expression string) any {
	ent := e.compile(expression)
	if ent.err != nil {
		return nil
	}
	results := ent.expr.Get(doc)
	switch len(results) {
	case 0:
		return nil
	case 1:
		return results[0]
	default:
		return results
	}
}

// Parse exposes compile-only validation of an expression, reusing the
// same cache. Authoring-time checks use this.
func (e *Extractor) Parse(expression string) error {
	return e.compile(expression).err
}

func (e *Extractor) compile(expression string) entry {
	if ent, ok := e.cache.Get(expression); ok {
		return ent
	}
	expr, err := jp.ParseString(expression)
	ent := entry{expr: expr, err: err}
	if err != nil {
		// Logged once; the negative entry keeps later calls quiet.
		e.log.Warn("jsonpath compile failed", "expression", expression, "error", err)
	}
	e.cache.Add(expression, ent)
	return ent
}
