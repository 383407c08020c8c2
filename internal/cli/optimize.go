package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/improvement"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
)

type optimizeFlags struct {
	file           string
	objective      string
	maxIterations  int
	stepSize       float64
	limit          int
	maxUnits       int
	thresholdsOnly bool
	out            string
	asJSON         bool
}

func (a *app) buildOptimizeCommand() *cobra.Command {
	var f optimizeFlags

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Tune dispatch thresholds and plant sizing",
		Long: "Hill-climb from a plant config over mode thresholds, stack count and tank size, " +
			"running every candidate horizon and scoring it with the chosen objective.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.LoadConfig(f.file)
			if err != nil {
				return err
			}
			objective, err := improvement.NewObjectiveFunction(f.objective)
			if err != nil {
				return err
			}

			maxUnits := f.maxUnits
			if maxUnits <= 0 {
				maxUnits = 2 * cfg.EDUnit.NumberEDMax
			}
			explorer := improvement.NewDefaultExplorer().
				WithMaxUnits(maxUnits).
				WithDesign(!f.thresholdsOnly)

			logger.Info("optimizing", "config", f.file, "objective", objective.Name(),
				"max_iterations", f.maxIterations, "step_size", f.stepSize)
			result, err := improvement.NewOptimizer(objective, f.maxIterations, f.stepSize).
				WithExplorer(explorer).
				Optimize(ctx, cfg, improvement.NewHorizonEvaluator(f.limit))
			if err != nil && result == nil {
				return err
			}

			if f.out != "" {
				if werr := writeConfig(f.out, f.file, result.BestConfig); werr != nil {
					return werr
				}
			}
			if f.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if werr := enc.Encode(result); werr != nil {
					return werr
				}
			} else {
				printOptimization(cmd.OutOrStdout(), result)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&f.file, "file", "f", "", "plant config file")
	cmd.Flags().StringVar(&f.objective, "objective", string(improvement.ObjectiveMaximizeCapture),
		"co2_captured, cost_per_tonne, specific_energy, curtailed_energy or capacity_factor")
	cmd.Flags().IntVar(&f.maxIterations, "max-iterations", 20, "maximum hill-climbing iterations")
	cmd.Flags().Float64Var(&f.stepSize, "step-size", 1, "initial step size; thresholds move by one stack per unit step")
	cmd.Flags().IntVar(&f.limit, "limit", 4, "candidate horizons run concurrently (0: unbounded)")
	cmd.Flags().IntVar(&f.maxUnits, "max-units", 0, "upper bound on number_ed_max (0: twice the initial)")
	cmd.Flags().BoolVar(&f.thresholdsOnly, "thresholds-only", false, "tune thresholds only, keep the plant size")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the best config as YAML")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// writeConfig stores cfg as YAML; a relative power file is rewritten against the source config
func writeConfig(path, source string, cfg *config.SimulationConfig) error {
	out := cfg.Clone()
	if out.Power.File != "" && !filepath.IsAbs(out.Power.File) {
		abs, err := filepath.Abs(filepath.Join(filepath.Dir(source), out.Power.File))
		if err != nil {
			return err
		}
		out.Power.File = abs
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func printOptimization(w io.Writer, r *improvement.OptimizationResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	best := r.BestConfig
	partial, full, _ := best.Policy.Thresholds(best.EDUnit)
	fmt.Fprintf(tw, "objective\t%s\n", r.Objective)
	fmt.Fprintf(tw, "initial score\t%.4f\n", r.InitialScore)
	fmt.Fprintf(tw, "best score\t%.4f\n", r.BestScore)
	fmt.Fprintf(tw, "iterations\t%d\n", r.Iterations)
	fmt.Fprintf(tw, "converged\t%v (%s)\n", r.Converged, r.ConvergenceReason)
	fmt.Fprintf(tw, "partial threshold\t%.1f kW\n", partial)
	fmt.Fprintf(tw, "full threshold\t%.1f kW\n", full)
	fmt.Fprintf(tw, "stacks\t%d x %.0f kW\n", best.EDUnit.NumberEDMax, best.EDUnit.UnitPowerKW())
	if best.EDUnit.UseStorageTanks {
		fmt.Fprintf(tw, "store hours\t%.2f\n", best.EDUnit.StoreHours)
	}
}
