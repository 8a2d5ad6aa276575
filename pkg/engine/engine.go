// Package engine orchestrates the per-event transform pipeline:
// classify, resolve template, extract, render, post-process. All soft
// failure modes surface as (nil, nil); hard per-event failures return
// errors for the caller to route.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shiftsec/eventshift/internal/logging"
	"github.com/shiftsec/eventshift/pkg/classify"
	"github.com/shiftsec/eventshift/pkg/jsonpath"
	"github.com/shiftsec/eventshift/pkg/mapping"
	"github.com/shiftsec/eventshift/pkg/ocsf"
	"github.com/shiftsec/eventshift/pkg/template"
)

// CloudTrailAuditEvent is the CloudTrail Lake wire shape: a fresh UUID
// plus the rendered document JSON-encoded as a string. The provider's
// native event id is preserved inside eventData but never reused as
// the wire id.
type CloudTrailAuditEvent struct {
	ID        string `json:"id"`
	EventData string `json:"eventData"`
}

// Result is one transform outcome. CloudTrail output populates
// CloudTrail; OCSF and ASFF populate Document.
type Result struct {
	EventType string
	Format    mapping.Format

	CloudTrail *CloudTrailAuditEvent
	Document   map[string]any

	// OCSFIssues carries soft validation findings for OCSF output.
	OCSFIssues []ocsf.Issue
}

// Options configure an Engine.
type Options struct {
	AccountID string
	Region    string
	// EnforceOCSF turns OCSF validation errors into hard per-event
	// failures instead of logged findings.
	EnforceOCSF bool
	// OCSFSchemaDir enables best-effort deep schema validation.
	OCSFSchemaDir string

	JSONPathCacheSize int

	Logger     *logging.Logger
	Registerer prometheus.Registerer
}

// Engine transforms raw provider events into canonical output formats.
// One engine instance owns its template and JSONPath caches; construct
// it once and share it.
type Engine struct {
	registry   *mapping.Registry
	classifier *classify.Classifier
	extractor  *jsonpath.Extractor
	loader     *template.Loader
	validator  *ocsf.Validator
	metrics    *Metrics
	opts       Options
	log        *logging.Logger
}

// New constructs an Engine over a mapping registry and a template
// directory.
func New(registry *mapping.Registry, templatesDir string, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}

	cacheSize := opts.JSONPathCacheSize
	if cacheSize <= 0 {
		cacheSize = jsonpath.DefaultCacheSize
	}
	extractor := jsonpath.New(jsonpath.WithCacheSize(cacheSize), jsonpath.WithLogger(log))

	var validatorOpts []ocsf.Option
	validatorOpts = append(validatorOpts, ocsf.WithLogger(log))
	if opts.OCSFSchemaDir != "" {
		validatorOpts = append(validatorOpts, ocsf.WithSchemaDir(opts.OCSFSchemaDir))
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Engine{
		registry:   registry,
		classifier: classify.New(registry, log),
		extractor:  extractor,
		loader:     template.NewLoader(templatesDir, extractor, log),
		validator:  ocsf.NewValidator(validatorOpts...),
		metrics:    newMetrics(reg),
		opts:       opts,
		log:        log.Component("engine"),
	}
}

// Loader exposes the engine-owned template cache, for hosts that need
// Invalidate on hot reload.
func (e *Engine) Loader() *template.Loader { return e.loader }

// Classify resolves the event type for a raw event without
// transforming it.
func (e *Engine) Classify(raw map[string]any) string {
	eventType := e.classifier.Classify(raw)
	e.metrics.classified.WithLabelValues(eventType).Inc()
	return eventType
}

// Transform renders one raw event into the requested output format.
//
// (nil, nil) means the combination produced nothing: the event type
// has no mapping, the template is explicitly disabled, or the template
// file is absent. Errors are hard per-event failures (render failure,
// output that is not JSON, enforced OCSF validation failure).
func (e *Engine) Transform(ctx context.Context, raw map[string]any, format mapping.Format) (*Result, error) {
	_ = ctx
	eventType := e.Classify(raw)

	m, ok := e.registry.Get(eventType)
	if !ok {
		// Classified generic with no generic mapping configured.
		e.log.Debug("no mapping for event type", "event_type", eventType)
		e.metrics.transforms.WithLabelValues(string(format), "unmapped").Inc()
		return nil, nil
	}

	compiled, err := e.loader.Load(m, format)
	if err != nil {
		e.metrics.transforms.WithLabelValues(string(format), "config_error").Inc()
		return nil, err
	}
	if compiled == nil {
		e.metrics.transforms.WithLabelValues(string(format), "skipped").Inc()
		return nil, nil
	}

	renderCtx := e.buildContext(raw, m, compiled, eventType)

	rendered, err := compiled.Render(renderCtx)
	if err != nil {
		e.metrics.renderFailures.WithLabelValues(eventType).Inc()
		e.metrics.transforms.WithLabelValues(string(format), "render_error").Inc()
		return nil, fmt.Errorf("event type %q: %w", eventType, err)
	}

	var document map[string]any
	if err := json.Unmarshal(rendered, &document); err != nil {
		e.metrics.transforms.WithLabelValues(string(format), "bad_output").Inc()
		return nil, fmt.Errorf("event type %q: rendered output is not valid JSON: %w", eventType, err)
	}

	result := &Result{EventType: eventType, Format: format}

	switch format {
	case mapping.FormatCloudTrail:
		compact, err := json.Marshal(document)
		if err != nil {
			return nil, fmt.Errorf("event type %q: encode eventData: %w", eventType, err)
		}
		result.CloudTrail = &CloudTrailAuditEvent{
			// Always a fresh UUID: CloudTrail Lake id constraints rule
			// out reusing the provider's native event id.
			ID:        uuid.NewString(),
			EventData: string(compact),
		}
	case mapping.FormatOCSF:
		result.Document = document
		issues := e.validator.Validate(document)
		result.OCSFIssues = issues
		if !ocsf.Valid(issues) {
			if e.opts.EnforceOCSF {
				e.metrics.transforms.WithLabelValues(string(format), "ocsf_invalid").Inc()
				return nil, fmt.Errorf("event type %q: OCSF validation failed: %v", eventType, issues)
			}
			e.log.Warn("OCSF validation findings", "event_type", eventType, "issues", len(issues))
		}
	case mapping.FormatASFF:
		result.Document = document
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}

	e.metrics.transforms.WithLabelValues(string(format), "ok").Inc()
	return result, nil
}

// buildContext assembles the per-event render context.
func (e *Engine) buildContext(raw map[string]any, m *mapping.EventTypeMapping, compiled *template.Compiled, eventType string) map[string]any {
	payload, kind := classify.Unwrap(raw)
	var doc any = raw
	if kind != classify.EnvelopeNone {
		doc = payload
	}

	extracted := make(map[string]any, len(compiled.Spec.Extractors))
	for name, expr := range compiled.Spec.Extractors {
		extracted[name] = e.extractor.Extract(doc, expr)
	}

	renderCtx := map[string]any{
		"extractors": extracted,
		"config":     m.ContextMap(),
		"account_id": e.opts.AccountID,
		"region":     e.opts.Region,
		"event_type": eventType,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"raw_event":  raw,
	}
	renderCtx[providerAlias(m.EventSource)] = raw
	return renderCtx
}

// providerAlias derives the provider-named context key from the
// mapping's event source: "azure.securitycenter" -> "azure_event".
func providerAlias(eventSource string) string {
	provider, _, _ := strings.Cut(eventSource, ".")
	if provider == "" {
		provider = "source"
	}
	return provider + "_event"
}
