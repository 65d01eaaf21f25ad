package grid

// Source labels as published by the provider.
const (
	SourceBiomass         = "Biomass"
	SourceLignite         = "Fossil Brown coal/Lignite"
	SourceGas             = "Fossil Gas"
	SourceHardCoal        = "Fossil Hard coal"
	SourceGeothermal      = "Geothermal"
	SourceHydroReservoir  = "Hydro Water Reservoir"
	SourceHydroRunOfRiver = "Hydro Run-of-river and poundage"
	SourceSolar           = "Solar"
	SourceWindOnshore     = "Wind Onshore"
)

// DerivationConfig holds the fixed tables the metric engine works from.
type DerivationConfig struct {
	RenewableSources []string
	LigniteSource    string
	GasSource        string

	// EmissionFactors in kg CO2 per MWh, keyed by source label.
	EmissionFactors map[string]float64

	// Colors maps source labels to display colours.
	Colors map[string]string

	// GaugeCeilingKgPerMWh is the intensity shown as a full CO2 gauge.
	GaugeCeilingKgPerMWh float64
}

// DefaultDerivationConfig returns the dashboard's standard tables.
func DefaultDerivationConfig() DerivationConfig {
	return DerivationConfig{
		RenewableSources: []string{SourceWindOnshore, SourceSolar, SourceHydroReservoir, SourceBiomass},
		LigniteSource:    SourceLignite,
		GasSource:        SourceGas,
		EmissionFactors: map[string]float64{
			SourceLignite: 1000,
			SourceGas:     400,
		},
		Colors: map[string]string{
			SourceWindOnshore:     "#2E8B57",
			SourceSolar:           "#FFD700",
			SourceHydroReservoir:  "#1F77B4",
			SourceHydroRunOfRiver: "#6EC1E4",
			SourceBiomass:         "#A5C45B",
			SourceGeothermal:      "#808080",
			SourceHardCoal:        "#93308C",
			SourceLignite:         "#D81C33",
			SourceGas:             "#D71F84",
		},
		GaugeCeilingKgPerMWh: 1000,
	}
}

// DerivedMetrics summarises a generation snapshot. Ratios are undefined when total output is zero.
type DerivedMetrics struct {
	TotalMW              float64   `json:"totalMW"`
	RenewableShare       NullFloat `json:"renewableShare"`
	LigniteShare         NullFloat `json:"ligniteShare"`
	GasShare             NullFloat `json:"gasShare"`
	CO2IntensityKgPerMWh NullFloat `json:"co2IntensityKgPerMWh"`
	CO2GaugePercent      NullFloat `json:"co2GaugePercent"`
}

// Verdict is the coarse network assessment shown next to the renewable gauge.
type Verdict string

const (
	VerdictUnknown     Verdict = "unknown"
	VerdictMostlyGreen Verdict = "mostly_green"
	VerdictModerate    Verdict = "moderate"
	VerdictFossilHeavy Verdict = "fossil_heavy"
)

// Analysis is the network analysis derived from metrics.
type Analysis struct {
	Verdict        Verdict `json:"verdict"`
	LigniteWarning bool    `json:"ligniteWarning"`
}

// Deriver computes DerivedMetrics from snapshots.
type Deriver struct {
	cfg       DerivationConfig
	renewable map[string]struct{}
}

// NewDeriver creates a metric engine over the given tables.
func NewDeriver(cfg DerivationConfig) *Deriver {
	renewable := make(map[string]struct{}, len(cfg.RenewableSources))
	for _, s := range cfg.RenewableSources {
		renewable[s] = struct{}{}
	}
	if cfg.GaugeCeilingKgPerMWh <= 0 {
		cfg.GaugeCeilingKgPerMWh = 1000
	}
	return &Deriver{cfg: cfg, renewable: renewable}
}

// Derive computes totals, shares and CO2 intensity. Negative inputs count as zero.
func (d *Deriver) Derive(snap GenerationSnapshot) DerivedMetrics {
	var total, renewable, lignite, gas, emissions float64
	for _, s := range snap.Sources {
		mw := s.MW
		if mw < 0 {
			mw = 0
		}
		total += mw
		if _, ok := d.renewable[s.Source]; ok {
			renewable += mw
		}
		switch s.Source {
		case d.cfg.LigniteSource:
			lignite += mw
		case d.cfg.GasSource:
			gas += mw
		}
		emissions += mw * d.cfg.EmissionFactors[s.Source]
	}

	m := DerivedMetrics{TotalMW: total}
	if total <= 0 {
		m.RenewableShare = Undefined
		m.LigniteShare = Undefined
		m.GasShare = Undefined
		m.CO2IntensityKgPerMWh = Undefined
		m.CO2GaugePercent = Undefined
		return m
	}

	intensity := emissions / total
	m.RenewableShare = Float(renewable / total * 100)
	m.LigniteShare = Float(lignite / total * 100)
	m.GasShare = Float(gas / total * 100)
	m.CO2IntensityKgPerMWh = Float(intensity)
	m.CO2GaugePercent = Float(intensity / d.cfg.GaugeCeilingKgPerMWh * 100)
	return m
}

// Analyse classifies the renewable share and flags a high lignite share.
func (d *Deriver) Analyse(m DerivedMetrics) Analysis {
	if !m.RenewableShare.Valid {
		return Analysis{Verdict: VerdictUnknown}
	}
	a := Analysis{LigniteWarning: m.LigniteShare.Valid && m.LigniteShare.Float64 > 30}
	switch share := m.RenewableShare.Float64; {
	case share > 50:
		a.Verdict = VerdictMostlyGreen
	case share > 20:
		a.Verdict = VerdictModerate
	default:
		a.Verdict = VerdictFossilHeavy
	}
	return a
}

// Colorize attaches configured display colours to snapshot sources.
func (d *Deriver) Colorize(snap GenerationSnapshot) GenerationSnapshot {
	out := GenerationSnapshot{Time: snap.Time, Sources: make([]SourceOutput, len(snap.Sources))}
	for i, s := range snap.Sources {
		s.Color = d.cfg.Colors[s.Source]
		out.Sources[i] = s
	}
	return out
}
