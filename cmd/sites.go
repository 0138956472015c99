package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/UninstallAll/AIDAscraper/internal/importer"
	"github.com/UninstallAll/AIDAscraper/internal/sites"
	"github.com/UninstallAll/AIDAscraper/internal/validation"
)

// errInvalidConfiguration makes validate exit non-zero without repeating the report.
var errInvalidConfiguration = errors.New("configuration is invalid")

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a site configuration file (JSON or YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			result := validateDocument(data, formatFromPath(args[0]))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(result); encErr != nil {
				return encErr
			}
			if !result.Valid {
				return errInvalidConfiguration
			}
			return nil
		},
	}
}

func validateDocument(data []byte, format sites.Format) validation.Result {
	if format == sites.FormatJSON {
		return validation.ValidateJSON(data)
	}
	doc, err := sites.DecodeDocument(data, format)
	if err != nil {
		return validation.Result{Valid: false, Errors: []string{err.Error()}}
	}
	return validation.Validate(doc.Config())
}

func formatFromPath(path string) sites.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return sites.FormatYAML
	default:
		return sites.FormatJSON
	}
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the site configuration schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(validation.GetSchema())
		},
	}
}

func newTemplateCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an empty Excel workbook for bulk site import",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err = importer.Template(f); err != nil {
				_ = f.Close()
				return fmt.Errorf("write template: %w", err)
			}
			if err = f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "sites.xlsx", "output file")
	return cmd
}
