package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/workload"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
)

func (a *app) buildProfileCommand() *cobra.Command {
	var spec workload.Spec
	var column, out string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Generate a synthetic power CSV",
		Long:  "Generate an available-power series (constant, uniform, normal, bursty, diurnal or wind) as a CSV power file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := workload.Generate(spec)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := workload.WriteCSV(w, series, spec.TimestepHours, column); err != nil {
				return fmt.Errorf("failed to write profile: %w", err)
			}
			if out != "" {
				logger.Info("profile written", "file", out, "type", spec.Type, "steps", len(series))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&spec.Type, "type", "constant", "constant, uniform, normal, bursty, diurnal or wind")
	flags.IntVar(&spec.Steps, "steps", 24, "number of timesteps")
	flags.Float64Var(&spec.TimestepHours, "timestep-hours", 1, "timestep length in hours")
	flags.Float64Var(&spec.MeanKW, "mean-kw", 0, "mean or base power")
	flags.Float64Var(&spec.MinKW, "min-kw", 0, "uniform lower bound")
	flags.Float64Var(&spec.MaxKW, "max-kw", 0, "uniform upper bound")
	flags.Float64Var(&spec.StdDevKW, "stddev-kw", 0, "noise standard deviation")
	flags.Float64Var(&spec.PeakKW, "peak-kw", 0, "diurnal peak or wind rated power")
	flags.Float64Var(&spec.BurstKW, "burst-kw", 0, "bursty gust power")
	flags.IntVar(&spec.BurstSteps, "burst-steps", 1, "bursty gust length")
	flags.IntVar(&spec.QuietSteps, "quiet-steps", 3, "bursty quiet length")
	flags.Int64Var(&spec.Seed, "seed", 0, "random seed (0: time based)")
	flags.StringVar(&column, "column", workload.DefaultColumn, "power column name")
	flags.StringVarP(&out, "out", "o", "", "output file (default stdout)")

	return cmd
}
