package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shiftsec/eventshift/internal/logging"
	"github.com/shiftsec/eventshift/pkg/jsonpath"
)

// Pipeline runs the five validation phases over template files.
//
// Strict mode (the default) stops at the first phase that produces an
// error for a file; lenient mode runs every phase to maximize findings.
// Warnings never stop a strict run.
type Pipeline struct {
	strict    bool
	seed      int64
	extractor *jsonpath.Extractor
	log       *logging.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLenient runs all phases for every file instead of stopping at
// the first failing phase.
func WithLenient() Option {
	return func(p *Pipeline) { p.strict = false }
}

// WithSeed fixes the mock-value generator seed for the JSON output
// phase.
func WithSeed(seed int64) Option {
	return func(p *Pipeline) { p.seed = seed }
}

// WithLogger sets the pipeline's logger.
func WithLogger(log *logging.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// New constructs a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		strict: true,
		seed:   1,
		log:    logging.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.extractor = jsonpath.New(jsonpath.WithLogger(p.log))
	p.log = p.log.Component("validate")
	return p
}

// Validate runs the phases against one template's source bytes.
func (p *Pipeline) Validate(file string, data []byte) Result {
	result := Result{File: file}
	fc := &fileContext{file: file, data: data}

	phases := []phase{
		yamlStructurePhase{},
		jsonpathSyntaxPhase{parse: p.extractor.Parse},
		templateSyntaxPhase{},
		filterCodePhase{},
		jsonOutputPhase{seed: p.seed},
	}

	for _, ph := range phases {
		findings := ph.run(fc)
		result.Findings = append(result.Findings, findings...)

		failed := false
		for _, f := range findings {
			if f.Severity == SeverityError {
				failed = true
				break
			}
		}
		p.log.Debug("phase complete", "file", file, "phase", string(ph.tag()), "findings", len(findings))

		// Later phases read the parsed spec; without one there is
		// nothing left to check, strict or not.
		if fc.spec == nil {
			break
		}
		if failed && p.strict {
			break
		}
	}
	return result
}

// ValidateFile validates one template file from disk.
func (p *Pipeline) ValidateFile(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read template: %w", err)
	}
	return p.Validate(path, data), nil
}

// ValidateDir validates every .yaml/.yml file directly under dir, in
// name order.
func (p *Pipeline) ValidateDir(dir string) (*AggregatedResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	aggregated := &AggregatedResult{}
	for _, file := range files {
		result, err := p.ValidateFile(file)
		if err != nil {
			return nil, err
		}
		aggregated.Add(result)
	}
	return aggregated, nil
}
