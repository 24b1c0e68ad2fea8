package main

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/delaneydunne/joint-limlam-mocker/internal/sfr"
)

var sfrGridCmd = &cobra.Command{
	Use:   "sfr-grid",
	Short: "Print the tabulated SFR on a mass and redshift grid",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := newLogger()
		cfg := loadSFRConfig(logger)
		if gridMassPoints < 2 || gridMassMin <= 0 || gridMassMax <= gridMassMin {
			return fmt.Errorf("invalid mass grid: %g..%g with %d points", gridMassMin, gridMassMax, gridMassPoints)
		}
		table, err := sfr.NewCache(sfr.SourceOpener(cmd.Context(), cfg.Path, logger), logger).Get(cfg.Extrapolate)
		if err != nil {
			return err
		}
		return printSFRGrid(cmd.OutOrStdout(), table, gridMassMin, gridMassMax, gridMassPoints, gridRedshifts)
	},
}

func printSFRGrid(w io.Writer, table *sfr.Table, mMin, mMax float64, n int, zs []float64) error {
	logM := floats.Span(make([]float64, n), math.Log10(mMin), math.Log10(mMax))

	if _, err := fmt.Fprintf(w, "%10s", "log10 M"); err != nil {
		return err
	}
	for _, z := range zs {
		fmt.Fprintf(w, " %12s", fmt.Sprintf("z=%.2f", z))
	}
	fmt.Fprintln(w)

	for _, lm := range logM {
		fmt.Fprintf(w, "%10.3f", lm)
		for _, z := range zs {
			fmt.Fprintf(w, " %12.4e", table.Evaluate(lm, math.Log10(1+z)))
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
