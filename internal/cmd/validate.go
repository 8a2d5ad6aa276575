package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shiftsec/eventshift/pkg/output"
	"github.com/shiftsec/eventshift/pkg/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Statically validate template files",
	Long: `Run template files through the five-phase static validator:
YAML structure, JSONPath syntax, template syntax, filter code and
JSON output. Exits non-zero when any file has ERROR findings.`,
	Example: `  eventshift validate --template templates/azure_security_alert_ocsf.yaml
  eventshift validate --templates-dir templates/ --output-format json
  eventshift validate --templates-dir templates/ --no-strict --warnings-as-errors`,
	RunE: func(cmd *cobra.Command, args []string) error {
		templateFile, _ := cmd.Flags().GetString("template")
		templatesDir, _ := cmd.Flags().GetString("templates-dir")
		outputFormat, _ := cmd.Flags().GetString("output-format")
		noStrict, _ := cmd.Flags().GetBool("no-strict")
		warningsAsErrors, _ := cmd.Flags().GetBool("warnings-as-errors")

		if templateFile != "" && templatesDir != "" {
			return fmt.Errorf("--template and --templates-dir are mutually exclusive")
		}
		if templateFile == "" && templatesDir == "" {
			templatesDir = cfg.TemplatesDir
		}
		if outputFormat != "text" && outputFormat != "json" {
			return fmt.Errorf("unknown output format %q (want text or json)", outputFormat)
		}

		var opts []validate.Option
		opts = append(opts, validate.WithLogger(log))
		if noStrict {
			opts = append(opts, validate.WithLenient())
		}
		pipeline := validate.New(opts...)

		aggregated := &validate.AggregatedResult{}
		if templateFile != "" {
			result, err := pipeline.ValidateFile(templateFile)
			if err != nil {
				return err
			}
			aggregated.Add(result)
		} else {
			var err error
			aggregated, err = pipeline.ValidateDir(templatesDir)
			if err != nil {
				return err
			}
		}

		if outputFormat == "json" {
			if err := printer.JSON(aggregated); err != nil {
				return err
			}
		} else {
			reportText(aggregated)
		}

		if aggregated.Errors > 0 {
			return fmt.Errorf("validation failed: %d error(s) across %d file(s)", aggregated.Errors, aggregated.Files)
		}
		if warningsAsErrors && aggregated.Warnings > 0 {
			return fmt.Errorf("validation failed: %d warning(s) promoted to errors", aggregated.Warnings)
		}
		return nil
	},
}

func reportText(aggregated *validate.AggregatedResult) {
	for _, result := range aggregated.Results {
		if result.Valid() && len(result.Findings) == 0 {
			printer.Success("%s", result.File)
			continue
		}
		if result.Valid() {
			printer.Warn("%s", result.File)
		} else {
			printer.Error("%s", result.File)
		}
		for _, f := range result.Findings {
			printFinding(f)
		}
	}

	table := output.NewTable("FILES", "ERRORS", "WARNINGS", "INFO")
	table.AddRow(
		strconv.Itoa(aggregated.Files),
		strconv.Itoa(aggregated.Errors),
		strconv.Itoa(aggregated.Warnings),
		strconv.Itoa(aggregated.Info),
	)
	fmt.Fprintln(os.Stdout)
	table.Render(os.Stdout)
}

func printFinding(f validate.ValidationError) {
	location := ""
	if f.Line > 0 {
		location = fmt.Sprintf(":%d", f.Line)
	}
	line := fmt.Sprintf("  [%s] %s%s %s", f.Phase, f.TemplateFile, location, f.Message)
	if f.Suggestion != "" {
		line += fmt.Sprintf(" (did you mean %q?)", f.Suggestion)
	}

	switch f.Severity {
	case validate.SeverityError:
		printer.Error("%s", line)
	case validate.SeverityWarning:
		printer.Warn("%s", line)
	default:
		printer.Info("%s", line)
	}
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().String("template", "", "validate a single template file")
	validateCmd.Flags().String("templates-dir", "", "validate every template in a directory")
	validateCmd.Flags().String("output-format", "text", "report format: text, json")
	validateCmd.Flags().Bool("no-strict", false, "run all phases per file instead of stopping at the first failing phase")
	validateCmd.Flags().Bool("warnings-as-errors", false, "exit non-zero on warnings too")
}
