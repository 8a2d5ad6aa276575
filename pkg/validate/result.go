// Package validate statically checks transformation template files
// through five ordered phases, reporting per-file and per-directory
// results for the authoring CLI.
package validate

// Phase tags identify which validation stage produced a finding.
type Phase string

const (
	PhaseYAMLStructure  Phase = "YAML_STRUCTURE"
	PhaseJSONPathSyntax Phase = "JSONPATH_SYNTAX"
	PhaseTemplateSyntax Phase = "TEMPLATE_SYNTAX"
	PhaseFilterCode     Phase = "FILTER_CODE"
	PhaseJSONOutput     Phase = "JSON_OUTPUT"
	// PhaseOCSFSchema tags findings surfaced from OCSF validation when a
	// host folds runtime schema checks into a validation report.
	PhaseOCSFSchema Phase = "OCSF_SCHEMA"
)

// Finding severities. Only errors block validity.
const (
	SeverityError   = "ERROR"
	SeverityWarning = "WARNING"
	SeverityInfo    = "INFO"
)

// ValidationError is one finding against one template file.
type ValidationError struct {
	Phase        Phase  `json:"phase"`
	Severity     string `json:"severity"`
	Message      string `json:"message"`
	TemplateFile string `json:"template_file"`
	Line         int    `json:"line,omitempty"`
	Column       int    `json:"column,omitempty"`
	FieldPath    string `json:"field_path,omitempty"`
	Suggestion   string `json:"suggestion,omitempty"`
	RawValue     string `json:"raw_value,omitempty"`
}

// Result is the full validation outcome for one file.
type Result struct {
	File     string            `json:"file"`
	Findings []ValidationError `json:"findings"`
}

// Valid reports whether the file has no error-severity findings.
func (r Result) Valid() bool { return r.ErrorCount() == 0 }

// ErrorCount returns the number of error-severity findings.
func (r Result) ErrorCount() int { return r.countBySeverity(SeverityError) }

// WarningCount returns the number of warning-severity findings.
func (r Result) WarningCount() int { return r.countBySeverity(SeverityWarning) }

// InfoCount returns the number of info-severity findings.
func (r Result) InfoCount() int { return r.countBySeverity(SeverityInfo) }

func (r Result) countBySeverity(severity string) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == severity {
			n++
		}
	}
	return n
}

// AggregatedResult sums validation outcomes across many files.
type AggregatedResult struct {
	Results  []Result `json:"results"`
	Files    int      `json:"files"`
	Errors   int      `json:"errors"`
	Warnings int      `json:"warnings"`
	Info     int      `json:"info"`
}

// Add folds one file result into the aggregate.
func (a *AggregatedResult) Add(r Result) {
	a.Results = append(a.Results, r)
	a.Files++
	a.Errors += r.ErrorCount()
	a.Warnings += r.WarningCount()
	a.Info += r.InfoCount()
}

// Valid reports whether no file produced an error-severity finding.
func (a *AggregatedResult) Valid() bool { return a.Errors == 0 }
