package models

import "math"

// Bound is the physically valid range of one tracked quantity
type Bound struct {
	Field        string
	Min          float64
	Max          float64
	MinExclusive bool
}

// Contains reports whether v lies inside the bound. NaN and Inf never do.
func (b Bound) Contains(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if b.MinExclusive {
		if v <= b.Min {
			return false
		}
	} else if v < b.Min {
		return false
	}
	return v <= b.Max
}

// ChemistryBounds are the seawater ranges accepted by config validation and state transitions
var ChemistryBounds = []Bound{
	{Field: "ph", Min: 0, Max: 14, MinExclusive: true},
	{Field: "alkalinity_mol_per_kg", Min: 0, Max: 0.1},
	{Field: "dic_mol_per_kg", Min: 0, Max: 0.1},
	{Field: "salinity_psu", Min: 0, Max: 70},
	{Field: "temperature_c", Min: -2.5, Max: 40},
}

// Value returns the chemistry field named by a bound
func (c Chemistry) Value(field string) float64 {
	switch field {
	case "ph":
		return c.PH
	case "alkalinity_mol_per_kg":
		return c.AlkalinityMolPerKg
	case "dic_mol_per_kg":
		return c.DICMolPerKg
	case "salinity_psu":
		return c.SalinityPSU
	case "temperature_c":
		return c.TemperatureC
	}
	return math.NaN()
}

// FirstViolation returns the first bound c falls outside of
func (c Chemistry) FirstViolation() (Bound, float64, bool) {
	for _, b := range ChemistryBounds {
		v := c.Value(b.Field)
		if !b.Contains(v) {
			return b, v, true
		}
	}
	return Bound{}, 0, false
}
