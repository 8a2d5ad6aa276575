// Package classify resolves a raw provider event to exactly one
// event-type key using the mapping registry. Classification is total:
// unmatched events fall back to the reserved "generic" type, never an
// error.
package classify

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shiftsec/eventshift/internal/logging"
	"github.com/shiftsec/eventshift/pkg/mapping"
)

// Classifier matches events against mapping rules in specificity order.
type Classifier struct {
	candidates []*mapping.EventTypeMapping
	log        *logging.Logger
}

// New builds a Classifier over an immutable registry. The candidate
// order is computed once: mappings with detection keys sort before
// those without; among ties, longer event_type_value strings sort
// first; remaining ties break on mapping name ascending, so registry
// load order never influences the result.
func New(reg *mapping.Registry, log *logging.Logger) *Classifier {
	var candidates []*mapping.EventTypeMapping
	for _, m := range reg.All() {
		if m.Name == mapping.GenericType {
			continue
		}
		candidates = append(candidates, m)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.HasDetectionKeys() != b.HasDetectionKeys() {
			return a.HasDetectionKeys()
		}
		if len(a.EventTypeValue) != len(b.EventTypeValue) {
			return len(a.EventTypeValue) > len(b.EventTypeValue)
		}
		return a.Name < b.Name
	})
	if log == nil {
		log = logging.Default()
	}
	return &Classifier{candidates: candidates, log: log.Component("classifier")}
}

// Classify returns the event-type key for a raw event. It never fails:
// events with no recognizable payload or no matching rule classify as
// generic.
func (c *Classifier) Classify(raw map[string]any) string {
	payload, kind := Unwrap(raw)
	if kind == EnvelopeNone {
		return mapping.GenericType
	}
	for _, m := range c.candidates {
		if c.matches(m, payload) {
			return m.Name
		}
	}
	c.log.Debug("no mapping matched, falling back", "envelope", kind.String())
	return mapping.GenericType
}

func (c *Classifier) matches(m *mapping.EventTypeMapping, payload map[string]any) bool {
	hasKeys := m.HasDetectionKeys()
	hasPair := m.HasEventTypePair()

	switch {
	case hasKeys && hasPair:
		return detectionKeysPresent(m.DetectionKeys, payload) && eventTypeMatches(m, payload)
	case hasKeys:
		return detectionKeysPresent(m.DetectionKeys, payload)
	case hasPair:
		return eventTypeMatches(m, payload)
	default:
		return false
	}
}

// detectionKeysPresent requires every key to resolve to a non-empty
// value; an absent or empty value means the key is not present.
func detectionKeysPresent(keys []string, payload map[string]any) bool {
	for _, key := range keys {
		value, ok := resolveDotPath(payload, key)
		if !ok || isEmpty(value) {
			return false
		}
	}
	return true
}

func eventTypeMatches(m *mapping.EventTypeMapping, payload map[string]any) bool {
	value, ok := resolveDotPath(payload, m.EventTypeKey)
	if !ok {
		return false
	}
	actual := stringify(value)
	expected := m.EventTypeValue

	switch m.MatchMode() {
	case mapping.MatchContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(expected))
	case mapping.MatchExact, mapping.MatchNestedExact:
		return actual == expected
	case mapping.MatchStartsWith:
		return strings.HasPrefix(strings.ToLower(actual), strings.ToLower(expected))
	default:
		return false
	}
}

// resolveDotPath walks a dot-separated path through nested objects.
func resolveDotPath(payload map[string]any, path string) (any, bool) {
	var current any = payload
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		// Integral JSON numbers render without a fraction so they
		// compare naturally against configured string values.
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
