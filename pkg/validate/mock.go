package validate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	tmpl "github.com/shiftsec/eventshift/pkg/template"
)

// --- Phase 5: JSON output -----------------------------------------------

// jsonOutputPhase renders the template against synthetic extractor
// values and confirms the output parses as JSON. Render failures are
// treated as mock-data artifacts and swallowed; only a successful
// render producing non-JSON output is a genuine structural failure.
// Mock values come from a seeded generator so runs are reproducible.
type jsonOutputPhase struct {
	seed int64
}

func (jsonOutputPhase) tag() Phase { return PhaseJSONOutput }

func (p jsonOutputPhase) run(fc *fileContext) []ValidationError {
	compiled, err := tmpl.Compile(fc.spec)
	if err != nil {
		// Earlier phases own compile diagnostics.
		return nil
	}

	faker := gofakeit.New(p.seed)
	extracted := make(map[string]any, len(fc.spec.Extractors))
	for _, name := range sortedKeys(fc.spec.Extractors) {
		extracted[name] = mockValue(faker, name)
	}

	rendered, err := compiled.Render(mockContext(extracted, fc.spec))
	if err != nil {
		return nil
	}

	var document map[string]any
	if err := json.Unmarshal(rendered, &document); err != nil {
		return []ValidationError{{
			Phase:        PhaseJSONOutput,
			Severity:     SeverityError,
			Message:      fmt.Sprintf("rendered output is not valid JSON: %v", err),
			TemplateFile: fc.file,
			FieldPath:    "template",
			RawValue:     snippet(rendered),
		}}
	}
	return nil
}

func mockContext(extracted map[string]any, s *tmpl.Spec) map[string]any {
	return map[string]any{
		"extractors": extracted,
		"config": map[string]any{
			"event_source":      "mock.source",
			"event_name_prefix": "MockEvent",
			"user_agent":        "mock.source",
			"ocsf_class":        "base_event",
		},
		"account_id": "123456789012",
		"region":     "us-east-1",
		"event_type": s.InputSchema,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"raw_event":  map[string]any{},
	}
}

// mockValue picks a plausible value for an extractor from its name:
// temporal names get timestamps, id-ish names get UUIDs, numeric-ish
// names get numbers, network-ish names get addresses. Anything else is
// a word. Field names, not template usage, drive the choice.
func mockValue(faker *gofakeit.Faker, name string) any {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, "time", "date", "created", "updated"):
		return faker.Date().UTC().Format(time.RFC3339)
	case containsAny(lower, "uuid", "uid", "guid", "id"):
		return faker.UUID()
	case containsAny(lower, "score", "count", "num", "severity", "port"):
		return faker.Number(1, 100)
	case containsAny(lower, "ip", "address"):
		return faker.IPv4Address()
	case containsAny(lower, "email"):
		return faker.Email()
	case containsAny(lower, "url", "uri", "link"):
		return faker.URL()
	case containsAny(lower, "enabled", "disabled", "active", "is_"):
		return faker.Bool()
	default:
		return faker.Word()
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func snippet(rendered []byte) string {
	const max = 200
	s := strings.TrimSpace(string(rendered))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
