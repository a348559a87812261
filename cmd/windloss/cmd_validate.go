package main

import (
	"fmt"
	"path/filepath"

	"github.com/couchcryptid/storm-data-windloss/internal/config"
	"github.com/couchcryptid/storm-data-windloss/internal/hazus"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the Hazus reference tables without running",
	Long: `Load Mapping.xlsx and huDamLossFunc.csv and report defects: probability
rows whose mass differs from 1 by more than the tolerance (a shortfall is
silently absorbed by the last category during sampling), subtypes with no
wind building types, unused schemes and missing damage curves.

Exits non-zero when any error-level issue is found.`,
	RunE: runValidate,
}

var validateHazusDir string

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateHazusDir, "hazus-dir", "", "directory holding Mapping.xlsx and huDamLossFunc.csv")
	_ = validateCmd.MarkFlagRequired("hazus-dir")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	m, err := config.LoadMethodology(methodologyPath)
	if err != nil {
		return err
	}
	tables, err := hazus.LoadWorkbook(filepath.Join(validateHazusDir, m.Files.Mapping), m)
	if err != nil {
		return err
	}
	damage, err := hazus.LoadDamageTable(filepath.Join(validateHazusDir, m.Files.DamageFunctions), m.DamageDescriptors)
	if err != nil {
		return err
	}

	report := hazus.Validate(tables, damage, m.ProbabilityTolerance)
	out := cmd.OutOrStdout()
	for _, issue := range report.Issues {
		fmt.Fprintln(out, issue.String())
	}
	fmt.Fprintf(out, "%d schemes, %d counties, %d damage curves: %d issues, %d errors\n",
		tables.Schemes(), tables.Counties(), damage.Len(), len(report.Issues), report.Errors())

	if n := report.Errors(); n > 0 {
		return fmt.Errorf("reference tables have %d errors", n)
	}
	return nil
}
