package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftsec/eventshift/pkg/classify"
	"github.com/shiftsec/eventshift/pkg/mapping"
)

func newMapping(name string) *mapping.EventTypeMapping {
	return &mapping.EventTypeMapping{
		Name:            name,
		EventSource:     "test.source",
		EventNamePrefix: "Test",
		UserAgent:       "test",
		OCSFClass:       "detection_finding",
	}
}

func buildRegistry(t *testing.T, mappings ...*mapping.EventTypeMapping) *mapping.Registry {
	t.Helper()
	byName := make(map[string]*mapping.EventTypeMapping, len(mappings))
	for _, m := range mappings {
		byName[m.Name] = m
	}
	reg, err := mapping.New(byName)
	require.NoError(t, err)
	return reg
}

func TestUnwrap(t *testing.T) {
	testCases := []struct {
		name         string
		raw          map[string]any
		expectedKind classify.EnvelopeKind
		expectedKey  string
	}{
		{
			name:         "top-level event_data",
			raw:          map[string]any{"event_data": map[string]any{"k": "v1"}},
			expectedKind: classify.EnvelopeEventData,
			expectedKey:  "v1",
		},
		{
			name:         "top-level data",
			raw:          map[string]any{"data": map[string]any{"k": "v2"}},
			expectedKind: classify.EnvelopeData,
			expectedKey:  "v2",
		},
		{
			name:         "event_data nested under data",
			raw:          map[string]any{"data": map[string]any{"event_data": map[string]any{"k": "v3"}}},
			expectedKind: classify.EnvelopeNestedData,
			expectedKey:  "v3",
		},
		{
			name:         "no object payload",
			raw:          map[string]any{"event_data": "not an object"},
			expectedKind: classify.EnvelopeNone,
		},
		{
			name:         "nil event",
			raw:          nil,
			expectedKind: classify.EnvelopeNone,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload, kind := classify.Unwrap(tc.raw)
			assert.Equal(t, tc.expectedKind, kind)
			if tc.expectedKey != "" {
				require.NotNil(t, payload)
				assert.Equal(t, tc.expectedKey, payload["k"])
			}
		})
	}
}

func TestClassify_DetectionKeys(t *testing.T) {
	m := newMapping("azure_security_alert")
	m.DetectionKeys = []string{"AlertType", "SystemAlertId"}
	c := classify.New(buildRegistry(t, m), nil)

	t.Run("all keys present", func(t *testing.T) {
		got := c.Classify(map[string]any{"event_data": map[string]any{
			"AlertType":     "TestAlert",
			"SystemAlertId": "abc-123",
		}})
		assert.Equal(t, "azure_security_alert", got)
	})

	t.Run("missing key falls back to generic", func(t *testing.T) {
		got := c.Classify(map[string]any{"event_data": map[string]any{
			"AlertType": "TestAlert",
		}})
		assert.Equal(t, mapping.GenericType, got)
	})

	t.Run("empty value counts as absent", func(t *testing.T) {
		got := c.Classify(map[string]any{"event_data": map[string]any{
			"AlertType":     "TestAlert",
			"SystemAlertId": "",
		}})
		assert.Equal(t, mapping.GenericType, got)
	})

	t.Run("nested dot-path detection key", func(t *testing.T) {
		nested := newMapping("gcp_scc_finding")
		nested.DetectionKeys = []string{"finding.name"}
		nc := classify.New(buildRegistry(t, nested), nil)

		got := nc.Classify(map[string]any{"data": map[string]any{
			"finding": map[string]any{"name": "organizations/1/findings/x"},
		}})
		assert.Equal(t, "gcp_scc_finding", got)
	})
}

func TestClassify_MatchModes(t *testing.T) {
	testCases := []struct {
		name     string
		mode     string
		value    string
		actual   any
		expected bool
	}{
		{"contains is case-insensitive", mapping.MatchContains, "alert", "SecurityAlertFired", true},
		{"contains miss", mapping.MatchContains, "flow", "SecurityAlert", false},
		{"exact match", mapping.MatchExact, "SecurityAlert", "SecurityAlert", true},
		{"exact is case-sensitive", mapping.MatchExact, "securityalert", "SecurityAlert", false},
		{"nested_exact equality", mapping.MatchNestedExact, "SecurityAlert", "SecurityAlert", true},
		{"startswith case-insensitive", mapping.MatchStartsWith, "security", "SecurityAlert", true},
		{"startswith miss", mapping.MatchStartsWith, "alert", "SecurityAlert", false},
		{"numeric value compares as string", mapping.MatchExact, "4625", float64(4625), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := newMapping("candidate")
			m.EventTypeKey = "Type"
			m.EventTypeValue = tc.value
			m.EventTypeMatchMode = tc.mode
			c := classify.New(buildRegistry(t, m), nil)

			got := c.Classify(map[string]any{"event_data": map[string]any{"Type": tc.actual}})
			if tc.expected {
				assert.Equal(t, "candidate", got)
			} else {
				assert.Equal(t, mapping.GenericType, got)
			}
		})
	}
}

func TestClassify_DetectionKeysAndPairMustBothMatch(t *testing.T) {
	m := newMapping("strict")
	m.DetectionKeys = []string{"AlertType"}
	m.EventTypeKey = "AlertType"
	m.EventTypeValue = "Ransomware"
	m.EventTypeMatchMode = mapping.MatchContains
	c := classify.New(buildRegistry(t, m), nil)

	got := c.Classify(map[string]any{"event_data": map[string]any{"AlertType": "Phishing"}})
	assert.Equal(t, mapping.GenericType, got)

	got = c.Classify(map[string]any{"event_data": map[string]any{"AlertType": "RansomwareDetected"}})
	assert.Equal(t, "strict", got)
}

func TestClassify_SpecificityOrder(t *testing.T) {
	// A detection-keys mapping must win over a key/value-only mapping
	// that also matches the same event.
	withKeys := newMapping("specific_with_keys")
	withKeys.DetectionKeys = []string{"AlertType"}

	pairOnly := newMapping("broad_pair")
	pairOnly.EventTypeKey = "AlertType"
	pairOnly.EventTypeValue = "Alert"

	c := classify.New(buildRegistry(t, pairOnly, withKeys), nil)
	got := c.Classify(map[string]any{"event_data": map[string]any{"AlertType": "TestAlert"}})
	assert.Equal(t, "specific_with_keys", got)
}

func TestClassify_LongerValueWins(t *testing.T) {
	short := newMapping("a_short")
	short.EventTypeKey = "Type"
	short.EventTypeValue = "Alert"

	long := newMapping("z_long")
	long.EventTypeKey = "Type"
	long.EventTypeValue = "SecurityAlert"

	c := classify.New(buildRegistry(t, short, long), nil)
	got := c.Classify(map[string]any{"event_data": map[string]any{"Type": "SecurityAlertFired"}})
	assert.Equal(t, "z_long", got)
}

func TestClassify_TieBreakIsDeterministic(t *testing.T) {
	a := newMapping("bravo")
	a.EventTypeKey = "Type"
	a.EventTypeValue = "Alert"

	b := newMapping("alpha")
	b.EventTypeKey = "Type"
	b.EventTypeValue = "Event" // same length as "Alert"
	// Make both match the same payload value.
	event := map[string]any{"event_data": map[string]any{"Type": "Alert Event"}}

	// Regardless of construction order, "alpha" wins the name tie-break.
	for i := 0; i < 10; i++ {
		c := classify.New(buildRegistry(t, a, b), nil)
		assert.Equal(t, "alpha", c.Classify(event))
		c = classify.New(buildRegistry(t, b, a), nil)
		assert.Equal(t, "alpha", c.Classify(event))
	}
}

func TestClassify_Deterministic(t *testing.T) {
	m := newMapping("azure_security_alert")
	m.DetectionKeys = []string{"AlertType"}
	c := classify.New(buildRegistry(t, m), nil)

	event := map[string]any{"event_data": map[string]any{"AlertType": "TestAlert"}}
	first := c.Classify(event)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, c.Classify(event))
	}
}

func TestClassify_NoPayloadIsGeneric(t *testing.T) {
	m := newMapping("something")
	m.DetectionKeys = []string{"x"}
	c := classify.New(buildRegistry(t, m), nil)

	assert.Equal(t, mapping.GenericType, c.Classify(map[string]any{"unrelated": 1}))
	assert.Equal(t, mapping.GenericType, c.Classify(nil))
}

func TestClassify_MappingWithoutRulesNeverMatches(t *testing.T) {
	m := newMapping("ruleless")
	c := classify.New(buildRegistry(t, m), nil)

	assert.Equal(t, mapping.GenericType, c.Classify(map[string]any{"event_data": map[string]any{"x": 1}}))
}
