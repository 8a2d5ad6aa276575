package ocsf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/shiftsec/eventshift/internal/logging"
)

// Issue severities. Only errors make an event invalid; warnings and
// info findings are advisory.
const (
	SeverityError   = "ERROR"
	SeverityWarning = "WARNING"
	SeverityInfo    = "INFO"
)

// Issue is one finding from OCSF validation.
type Issue struct {
	Severity string `json:"severity"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// Validator cross-checks candidate OCSF events against the static
// class dictionaries, and optionally against bundled JSON Schemas.
type Validator struct {
	schemaDir string
	log       *logging.Logger

	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// Option configures a Validator.
type Option func(*Validator)

// WithSchemaDir enables best-effort deep structural validation against
// JSON Schema files laid out as <dir>/<version>/<class_uid>.json. A
// missing or uncompilable schema degrades to a warning, never an
// error.
func WithSchemaDir(dir string) Option {
	return func(v *Validator) { v.schemaDir = dir }
}

// WithLogger sets the validator's logger.
func WithLogger(log *logging.Logger) Option {
	return func(v *Validator) { v.log = log }
}

// NewValidator constructs a Validator.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		log:      logging.Default(),
		compiled: make(map[string]*jsonschema.Schema),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.log = v.log.Component("ocsf-validator")
	return v
}

// Validate checks a candidate OCSF event. The returned issues carry
// severities; Valid reports whether none of them is an error.
func (v *Validator) Validate(event map[string]any) []Issue {
	var issues []Issue

	classUID, ok := intField(event, "class_uid")
	if !ok {
		issues = append(issues, Issue{Severity: SeverityError, Field: "class_uid", Message: "class_uid is required"})
	}

	version, versionOK := metadataVersion(event)
	if !versionOK {
		issues = append(issues, Issue{Severity: SeverityError, Field: "metadata.version", Message: "metadata.version is required"})
	} else if !VersionSupported(version) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Field:    "metadata.version",
			Message:  fmt.Sprintf("unsupported OCSF version %q (supported: %v)", version, SupportedVersions()),
		})
	}

	if !ok || !versionOK || !VersionSupported(version) {
		return issues
	}

	info, known := LookupClass(version, classUID)
	if !known {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Field:    "class_uid",
			Message:  fmt.Sprintf("class_uid %d is not defined in OCSF %s", classUID, version),
		})
		return issues
	}

	if info.Legacy {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Field:    "class_uid",
			Message:  fmt.Sprintf("class_uid %d (%s) is a legacy class in OCSF %s; migrate to a current findings class", classUID, info.Name, version),
		})
	}

	issues = append(issues, v.checkCanonical(event, info)...)
	issues = append(issues, v.deepValidate(event, version, classUID)...)
	return issues
}

// Valid reports whether the issue list contains no errors.
func Valid(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return false
		}
	}
	return true
}

// checkCanonical verifies that any present class_name, category_name
// and category_uid match the dictionary's canonical values.
func (v *Validator) checkCanonical(event map[string]any, info ClassInfo) []Issue {
	var issues []Issue

	if name, ok := stringField(event, "class_name"); ok && name != info.Name {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Field:    "class_name",
			Message:  fmt.Sprintf("class_name %q does not match canonical %q", name, info.Name),
		})
	}
	if name, ok := stringField(event, "category_name"); ok && name != info.CategoryName {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Field:    "category_name",
			Message:  fmt.Sprintf("category_name %q does not match canonical %q", name, info.CategoryName),
		})
	}
	if uid, ok := intField(event, "category_uid"); ok && uid != info.CategoryUID {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Field:    "category_uid",
			Message:  fmt.Sprintf("category_uid %d does not match canonical %d", uid, info.CategoryUID),
		})
	}
	return issues
}

// deepValidate runs the optional JSON-Schema pass. Every failure mode
// short of an actual schema violation degrades to a warning.
func (v *Validator) deepValidate(event map[string]any, version string, classUID int) []Issue {
	if v.schemaDir == "" {
		return nil
	}

	path := filepath.Join(v.schemaDir, version, fmt.Sprintf("%d.json", classUID))
	schema, err := v.schemaFor(path)
	if err != nil {
		return []Issue{{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("deep schema validation unavailable for class %d: %v", classUID, err),
		}}
	}

	if err := schema.Validate(map[string]any(event)); err != nil {
		return []Issue{{
			Severity: SeverityError,
			Message:  fmt.Sprintf("schema validation failed: %v", err),
		}}
	}
	return nil
}

func (v *Validator) schemaFor(path string) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if schema, ok := v.compiled[path]; ok {
		return schema, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("schema file: %w", err)
	}
	schema, err := jsonschema.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	v.compiled[path] = schema
	return schema, nil
}

func metadataVersion(event map[string]any) (string, bool) {
	metadata, ok := event["metadata"].(map[string]any)
	if !ok {
		return "", false
	}
	version, ok := metadata["version"].(string)
	return version, ok && version != ""
}

func stringField(event map[string]any, key string) (string, bool) {
	s, ok := event[key].(string)
	return s, ok && s != ""
}

func intField(event map[string]any, key string) (int, bool) {
	switch t := event[key].(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	default:
		return 0, false
	}
}
