package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shiftsec/eventshift/pkg/engine"
	"github.com/shiftsec/eventshift/pkg/mapping"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Transform one event through the engine",
	Long: `Read a raw provider event from a JSON file, classify it against
the mapping registry, render the matching template and print the
resulting document.`,
	Example: `  eventshift transform --event alert.json --format ocsf
  eventshift transform --event alert.json --format cloudtrail --account-id 123456789012`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eventFile, _ := cmd.Flags().GetString("event")
		formatName, _ := cmd.Flags().GetString("format")
		mappingsPath, _ := cmd.Flags().GetString("mappings")
		templatesDir, _ := cmd.Flags().GetString("templates-dir")
		accountID, _ := cmd.Flags().GetString("account-id")
		region, _ := cmd.Flags().GetString("region")

		format := mapping.Format(formatName)
		switch format {
		case mapping.FormatCloudTrail, mapping.FormatOCSF, mapping.FormatASFF:
		default:
			return fmt.Errorf("unknown format %q (want cloudtrail, ocsf or asff)", formatName)
		}

		if mappingsPath == "" {
			mappingsPath = cfg.MappingsPath
		}
		if templatesDir == "" {
			templatesDir = cfg.TemplatesDir
		}
		if accountID == "" {
			accountID = cfg.AccountID
		}
		if region == "" {
			region = cfg.Region
		}

		data, err := os.ReadFile(eventFile)
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("event file is not a JSON object: %w", err)
		}

		registry, err := mapping.Load(mappingsPath)
		if err != nil {
			return err
		}

		e := engine.New(registry, templatesDir, engine.Options{
			AccountID:         accountID,
			Region:            region,
			EnforceOCSF:       cfg.Engine.EnforceOCSF,
			OCSFSchemaDir:     cfg.Engine.OCSFSchemaDir,
			JSONPathCacheSize: cfg.Engine.JSONPathCacheSize,
			Logger:            log,
		})

		result, err := e.Transform(context.Background(), raw, format)
		if err != nil {
			return err
		}
		if result == nil {
			printer.Warn("no output: event type has no mapping or the %s template is disabled or missing", format)
			return nil
		}

		for _, issue := range result.OCSFIssues {
			printer.Warn("[%s] %s: %s", issue.Severity, issue.Field, issue.Message)
		}

		if result.CloudTrail != nil {
			return printer.JSON(result.CloudTrail)
		}
		return printer.JSON(result.Document)
	},
}

func init() {
	rootCmd.AddCommand(transformCmd)

	transformCmd.Flags().String("event", "", "JSON file holding one raw provider event")
	transformCmd.Flags().String("format", "", "output format: cloudtrail, ocsf, asff")
	transformCmd.Flags().String("mappings", "", "mapping configuration file (default from config)")
	transformCmd.Flags().String("templates-dir", "", "templates directory (default from config)")
	transformCmd.Flags().String("account-id", "", "account id placed in the render context")
	transformCmd.Flags().String("region", "", "region placed in the render context")

	_ = transformCmd.MarkFlagRequired("event")
	_ = transformCmd.MarkFlagRequired("format")
}
