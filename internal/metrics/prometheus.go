package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/engine"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// Exporter exposes horizon progress as Prometheus metrics.
// It owns its registry so several exporters can live in one process (and in tests).
type Exporter struct {
	registry *prometheus.Registry

	stepsTotal        *prometheus.CounterVec
	co2CapturedKg     prometheus.Counter
	energyConsumedKWh prometheus.Counter
	energyCurtailed   prometheus.Counter
	horizonsTotal     *prometheus.CounterVec
	stepsRunning      prometheus.Gauge
	activeUnits       prometheus.Gauge
	tankLevelHours    prometheus.Gauge
	seawaterPH        prometheus.Gauge
	seawaterDIC       prometheus.Gauge
	captureRate       prometheus.Histogram
}

// NewExporter creates an exporter with a fresh registry
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docsim_steps_total",
			Help: "Committed timesteps by operating mode",
		}, []string{"mode"}),
		co2CapturedKg: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docsim_co2_captured_kg_total",
			Help: "CO2 captured across all horizons in kg",
		}),
		energyConsumedKWh: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docsim_energy_consumed_kwh_total",
			Help: "Energy consumed by the ED stacks in kWh",
		}),
		energyCurtailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docsim_energy_curtailed_kwh_total",
			Help: "Available energy that was curtailed in kWh",
		}),
		horizonsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docsim_horizons_total",
			Help: "Finished horizons by terminal status",
		}, []string{"status"}),
		stepsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docsim_last_step",
			Help: "Index of the most recently committed step",
		}),
		activeUnits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docsim_active_units",
			Help: "ED stacks engaged in the most recent step",
		}),
		tankLevelHours: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docsim_tank_level_hours",
			Help: "Stored processed water in hours of full-capacity operation",
		}),
		seawaterPH: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docsim_seawater_ph",
			Help: "Tracked seawater pH",
		}),
		seawaterDIC: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docsim_seawater_dic_mol_per_kg",
			Help: "Tracked dissolved inorganic carbon",
		}),
		captureRate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docsim_co2_capture_rate_kg_per_h",
			Help:    "Per-step CO2 capture rate",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}

	e.registry.MustRegister(
		e.stepsTotal,
		e.co2CapturedKg,
		e.energyConsumedKWh,
		e.energyCurtailed,
		e.horizonsTotal,
		e.stepsRunning,
		e.activeUnits,
		e.tankLevelHours,
		e.seawaterPH,
		e.seawaterDIC,
		e.captureRate,
	)
	return e
}

// Registry returns the exporter's registry
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus text format
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// OnStep updates counters and gauges for a committed step
func (e *Exporter) OnStep(ev engine.StepEvent) {
	r := ev.Result
	e.stepsTotal.WithLabelValues(string(r.Mode)).Inc()
	e.co2CapturedKg.Add(r.CO2CapturedKg)
	e.energyConsumedKWh.Add(r.EnergyConsumedKWh)
	e.energyCurtailed.Add(r.EnergyCurtailedKWh)
	e.captureRate.Observe(r.CO2CaptureRateKgH)

	e.stepsRunning.Set(float64(r.Step))
	e.activeUnits.Set(float64(r.ActiveUnits))
	e.tankLevelHours.Set(ev.State.TankLevelHours)
	e.seawaterPH.Set(ev.State.Chemistry.PH)
	e.seawaterDIC.Set(ev.State.Chemistry.DICMolPerKg)
}

// OnHorizonEnd counts the horizon under its terminal status
func (e *Exporter) OnHorizonEnd(_ string, summary models.HorizonSummary, _ error) {
	e.horizonsTotal.WithLabelValues(string(summary.Status)).Inc()
}
