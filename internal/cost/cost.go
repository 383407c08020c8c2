// Package cost rolls horizon totals up into capital and operating cost of capture.
// Money is computed with decimal arithmetic; physical quantities arrive as float64 totals.
package cost

import (
	"github.com/shopspring/decimal"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

const (
	defaultHoursPerYear   = 8760
	defaultPlantLifeYears = 20
)

// Report is the cost of one horizon scaled to a year of operation
type Report struct {
	CapexUSD                  decimal.Decimal `json:"capex_usd"`
	AnnualizedCapexUSD        decimal.Decimal `json:"annualized_capex_usd"`
	AnnualFixedOMUSD          decimal.Decimal `json:"annual_fixed_om_usd"`
	AnnualElectricityUSD      decimal.Decimal `json:"annual_electricity_usd"`
	AnnualStackReplacementUSD decimal.Decimal `json:"annual_stack_replacement_usd"`
	AnnualOpexUSD             decimal.Decimal `json:"annual_opex_usd"`
	AnnualCO2Tonnes           decimal.Decimal `json:"annual_co2_tonnes"`
	AnnualEnergyMWh           decimal.Decimal `json:"annual_energy_mwh"`
	CostPerTonneUSD           decimal.Decimal `json:"cost_per_tonne_usd"`
	CaptureRecorded           bool            `json:"capture_recorded"`
	PlantLifeYears            int             `json:"plant_life_years"`
}

// Model evaluates cost reports
type Model struct {
	HoursPerYear float64
}

// NewModel creates a model with an 8760 h year
func NewModel() *Model {
	return &Model{HoursPerYear: defaultHoursPerYear}
}

func parse(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Evaluate computes CapEx, OpEx and cost per tonne from the horizon totals.
// Energy is taken in kWh; the horizon is scaled linearly to a full year.
func (m *Model) Evaluate(cfg *config.SimulationConfig, summary models.HorizonSummary) (Report, error) {
	if cfg == nil || cfg.Cost == nil {
		return Report{}, &models.InvalidInputError{Field: "cost", Value: nil, Reason: "cost section is not configured"}
	}
	hours := summary.DurationHours()
	if hours <= 0 {
		return Report{}, &models.InvalidInputError{Field: "summary.steps", Value: summary.Steps, Reason: "horizon has no completed steps"}
	}
	hoursPerYear := m.HoursPerYear
	if hoursPerYear <= 0 {
		hoursPerYear = defaultHoursPerYear
	}
	c := cfg.Cost
	life := c.PlantLifeYears
	if life <= 0 {
		life = defaultPlantLifeYears
	}

	scale := decimal.NewFromFloat(hoursPerYear).Div(decimal.NewFromFloat(hours))

	capex := parse(c.CapexPerEDUnitUSD).Mul(decimal.NewFromInt(int64(cfg.EDUnit.NumberEDMax)))
	if cfg.EDUnit.UseStorageTanks {
		capex = capex.Add(parse(c.TankCapexPerStoreHourUSD).Mul(decimal.NewFromFloat(cfg.EDUnit.StoreHours)))
	}
	annualizedCapex := capex.Div(decimal.NewFromInt(int64(life)))

	fixedOM := capex.Mul(parse(c.FixedOMFraction))

	energyKWh := decimal.NewFromFloat(summary.TotalEnergyConsumedKWh)
	electricity := energyKWh.Mul(parse(c.ElectricityUSDPerKWh)).Mul(scale)

	stack := decimal.Zero
	if summary.FinalState != nil && c.StackReplacementHours > 0 {
		stackHours := decimal.NewFromFloat(summary.FinalState.StackHours).Mul(scale)
		stack = stackHours.Div(decimal.NewFromFloat(c.StackReplacementHours)).Mul(parse(c.StackReplacementUSD))
	}

	opex := fixedOM.Add(electricity).Add(stack)
	tonnes := decimal.NewFromFloat(summary.TotalCO2CapturedKg).Div(decimal.NewFromInt(1000)).Mul(scale)

	r := Report{
		CapexUSD:                  capex.Round(2),
		AnnualizedCapexUSD:        annualizedCapex.Round(2),
		AnnualFixedOMUSD:          fixedOM.Round(2),
		AnnualElectricityUSD:      electricity.Round(2),
		AnnualStackReplacementUSD: stack.Round(2),
		AnnualOpexUSD:             opex.Round(2),
		AnnualCO2Tonnes:           tonnes.Round(3),
		AnnualEnergyMWh:           energyKWh.Mul(scale).Div(decimal.NewFromInt(1000)).Round(3),
		PlantLifeYears:            life,
	}
	if tonnes.IsPositive() {
		r.CaptureRecorded = true
		r.CostPerTonneUSD = annualizedCapex.Add(opex).Div(tonnes).Round(2)
	}
	return r, nil
}
