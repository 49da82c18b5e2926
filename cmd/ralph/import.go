package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"ralph-api/internal/inventory"
	"ralph-api/pkg/importer"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		mappingPath string
		opts        importer.Options
	)
	cmd := &cobra.Command{
		Use:   "import FILE.xlsx",
		Short: "Import base objects from an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mappingPath == "" && opts.Kind == "" {
				return errors.New("either --mapping or --kind is required")
			}
			if mappingPath != "" {
				f, err := os.Open(mappingPath)
				if err != nil {
					return errors.Wrap(err, "open mapping")
				}
				defer f.Close()
				if opts.Mapping, err = importer.LoadMapping(f); err != nil {
					return err
				}
			}

			file, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "open workbook")
			}
			defer file.Close()

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			inv := inventory.New(st,
				inventory.WithPathSeparator(a.cfg.ConfigPath.Separator),
				inventory.WithLogger(a.log),
			)
			summary, err := importer.New(inv, a.log).ImportExcel(cmd.Context(), file, opts)
			printSummary(cmd, summary)
			return err
		},
	}
	cmd.Flags().StringVar(&mappingPath, "mapping", "", "YAML mapping file")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "kind of every sheet when no mapping is given")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate without writing")
	cmd.Flags().IntVar(&opts.MaxErrors, "max-errors", importer.DefaultMaxErrors, "stop after this many row errors")
	return cmd
}

func printSummary(cmd *cobra.Command, summary importer.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintln(out, "IMPORT SUMMARY")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "Total inserted: %d\n", summary.Inserted)
	fmt.Fprintf(out, "Total updated: %d\n", summary.Updated)
	fmt.Fprintf(out, "Total skipped: %d\n", summary.Skipped)
	fmt.Fprintf(out, "Total errors: %d\n", summary.Errors)
	fmt.Fprintf(out, "Dry run: %v\n", summary.DryRun)

	for _, sheet := range summary.Sheets {
		fmt.Fprintf(out, "  %s (%s): inserted=%d, updated=%d, skipped=%d, errors=%d\n",
			sheet.Name, sheet.Kind, sheet.Inserted, sheet.Updated, sheet.Skipped, sheet.Errors)
		for _, sample := range sheet.Samples {
			fmt.Fprintf(out, "      Row %d: %s\n", sample.Row, sample.Message)
		}
	}
}
