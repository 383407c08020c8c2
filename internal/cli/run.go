package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/cache"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/cost"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/engine"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/simulator"
	"github.com/GoSim-25-26J-441/doc-simulation/internal/telemetry"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

func (a *app) buildRunCommand() *cobra.Command {
	var file string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one horizon and print its summary",
		Long:  "Load a plant config, run the horizon to completion and print totals, mode occupancy and cost.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runFile(ctx, cmd, file, asJSON)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "plant config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (a *app) buildValidateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a plant config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d steps of %s, %d x %.0f kW, policy %s, simulator %s)\n",
				file, cfg.Steps(), cfg.GetTimestep(), cfg.EDUnit.NumberEDMax, cfg.EDUnit.UnitPowerKW(),
				policyName(cfg), simulatorName(cfg))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "plant config file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func policyName(cfg *config.SimulationConfig) string {
	if cfg.Policy.Name == "" {
		return "threshold"
	}
	return cfg.Policy.Name
}

func simulatorName(cfg *config.SimulationConfig) string {
	if cfg.Simulator.Type == "" {
		return "linear"
	}
	return cfg.Simulator.Type
}

// runResult is the --json output of docsim run
type runResult struct {
	RunID      string                 `json:"run_id"`
	Summary    *models.HorizonSummary `json:"summary,omitempty"`
	CO2TPY     float64                `json:"co2_capture_tpy"`
	Cost       *cost.Report           `json:"cost,omitempty"`
	Error      string                 `json:"error,omitempty"`
	FailedStep *int                   `json:"failed_step,omitempty"`
}

func (a *app) runFile(ctx context.Context, cmd *cobra.Command, path string, asJSON bool) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}

	store, closeStore, err := a.stepCache(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sim, closeSim, err := simulator.FromConfig(cfg, store)
	if err != nil {
		return fmt.Errorf("failed to build simulator: %w", err)
	}
	defer closeSim()

	opts := []engine.Option{engine.WithLogger(a.horizonLogger(cmd, cfg))}
	if a.settings.MQTT.Broker != "" {
		pub, err := telemetry.Dial(a.mqttOptions(), logger.Default)
		if err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		defer pub.Close()
		opts = append(opts, engine.WithObserver(pub))
	}

	h, err := engine.NewHorizon(cfg, sim, opts...)
	if err != nil {
		return err
	}
	summary, runErr := h.Run(ctx)

	res := runResult{RunID: h.RunID(), Summary: summary}
	if summary != nil {
		res.CO2TPY = summary.AnnualCO2CaptureTonnes()
		if cfg.Cost != nil && summary.Steps > 0 {
			r, err := cost.NewModel().Evaluate(cfg, *summary)
			if err != nil {
				logger.Warn("failed to evaluate cost", "run_id", h.RunID(), "error", err)
			} else {
				res.Cost = &r
			}
		}
	}
	if runErr != nil {
		res.Error = runErr.Error()
		if step, ok := models.FailedStep(runErr); ok {
			res.FailedStep = &step
		}
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else if summary != nil {
		printSummary(out, cfg, res)
	}

	if runErr != nil {
		return fmt.Errorf("horizon %s: %w", h.RunID(), runErr)
	}
	return nil
}

// horizonLogger honours the config's log_level unless --log-level was given
func (a *app) horizonLogger(cmd *cobra.Command, cfg *config.SimulationConfig) *slog.Logger {
	if cfg.LogLevel == "" || cmd.Flags().Changed("log-level") {
		return logger.Default
	}
	return logger.NewFormat(a.settings.LogFormat, cfg.LogLevel, cmd.ErrOrStderr())
}

// stepCache returns the shared redis-backed step cache, or nil when redis is not configured
func (a *app) stepCache(ctx context.Context) (cache.Cache, func(), error) {
	r := a.settings.Redis
	if r.Addr == "" {
		return nil, func() {}, nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	shared, err := cache.DialRedis(dialCtx, r.Addr, r.Prefix, r.TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", r.Addr, err)
	}
	logger.Info("using redis step cache", "addr", r.Addr, "prefix", r.Prefix)
	closeFn := func() {
		if err := shared.Close(); err != nil {
			logger.Warn("failed to close redis", "error", err)
		}
	}
	return cache.NewTiered(cache.NewMemory(r.LocalSize), shared), closeFn, nil
}

func (a *app) mqttOptions() telemetry.Options {
	m := a.settings.MQTT
	return telemetry.Options{
		Broker:       m.Broker,
		ClientID:     m.ClientID,
		Username:     m.Username,
		Password:     m.Password,
		TopicPrefix:  m.TopicPrefix,
		QoS:          byte(m.QoS),
		PublishSteps: m.PublishSteps,
	}
}

func printSummary(out io.Writer, cfg *config.SimulationConfig, res runResult) {
	s := res.Summary
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", res.RunID)
	fmt.Fprintf(w, "status\t%s\n", s.Status)
	fmt.Fprintf(w, "steps\t%d (%.1f h)\n", s.Steps, s.DurationHours())
	fmt.Fprintf(w, "co2 captured\t%.3f t\n", s.TotalCO2CapturedTonnes())
	fmt.Fprintf(w, "co2 capture rate\t%.1f t/yr\n", res.CO2TPY)
	fmt.Fprintf(w, "energy consumed\t%.1f kWh\n", s.TotalEnergyConsumedKWh)
	fmt.Fprintf(w, "energy curtailed\t%.1f kWh\n", s.TotalEnergyCurtailedKWh)
	fmt.Fprintf(w, "capacity factor\t%.3f\n", s.CapacityFactor(cfg.EDUnit.CapacityKW()))
	if s.TotalCO2CapturedKg > 0 {
		fmt.Fprintf(w, "specific energy\t%.1f kWh/t\n", s.SpecificEnergyKWhPerTonne())
	}
	fmt.Fprintf(w, "mode switches\t%d\n", s.ModeSwitches)
	hours := s.ModeHours()
	for _, m := range models.Modes {
		fmt.Fprintf(w, "  %s\t%.1f h\n", m, hours[m])
	}
	if c := res.Cost; c != nil {
		fmt.Fprintf(w, "capex\t%s USD\n", c.CapexUSD.StringFixed(2))
		fmt.Fprintf(w, "opex\t%s USD/yr\n", c.AnnualOpexUSD.StringFixed(2))
		if c.CaptureRecorded {
			fmt.Fprintf(w, "cost of capture\t%s USD/t\n", c.CostPerTonneUSD.StringFixed(2))
		}
	}
	for _, warning := range s.Warnings {
		fmt.Fprintf(w, "warning\t%s\n", warning)
	}
	if res.Error != "" {
		fmt.Fprintf(w, "error\t%s\n", res.Error)
	}
	w.Flush()
}
