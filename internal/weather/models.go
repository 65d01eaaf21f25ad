package weather

import (
	"fmt"
	"strconv"
)

// Category is the generation technology of a plant.
type Category string

const (
	CategoryLignite    Category = "Lignite"
	CategoryNaturalGas Category = "Natural Gas"
	CategoryHydro      Category = "Hydro"
	CategoryWind       Category = "Wind"
	CategorySolar      Category = "Solar"
)

// CategoryColors maps plant categories to their map colours.
var CategoryColors = map[Category]string{
	CategoryLignite:    "#D81C33",
	CategoryNaturalGas: "#D71F84",
	CategoryHydro:      "#1F77B4",
	CategoryWind:       "#2E8B57",
	CategorySolar:      "#FFD700",
}

// Observation is the current weather at a location.
// Known is false when the lookup failed and the numbers carry no meaning.
type Observation struct {
	TemperatureC  float64 `json:"temperatureC"`
	WindSpeedMS   float64 `json:"windSpeedMs"`
	CloudCoverPct float64 `json:"cloudCoverPct"`
	Known         bool    `json:"known"`
}

// UnknownObservation is returned in place of a failed lookup.
var UnknownObservation = Observation{}

// Summary renders the observation as a single display line, or "-" when unknown.
func (o Observation) Summary() string {
	if !o.Known {
		return "-"
	}
	return fmt.Sprintf("%s°C, %s%% cloud cover, %s m/s wind speed",
		formatNumber(o.TemperatureC), formatNumber(o.CloudCoverPct), formatNumber(o.WindSpeedMS))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// OutputStatus is the expected output of a weather-dependent plant.
type OutputStatus string

const (
	LowOutput      OutputStatus = "low_output"
	ModerateOutput OutputStatus = "moderate_output"
	HighOutput     OutputStatus = "high_output"
	NotApplicable  OutputStatus = "not_applicable"
	StatusUnknown  OutputStatus = "unknown"
)

// Label returns the display text of the status for the given category.
func (s OutputStatus) Label(c Category) string {
	switch {
	case c == CategorySolar && s == LowOutput:
		return "Low Solar Output (Cloudy)"
	case c == CategorySolar && s == ModerateOutput:
		return "Moderate Solar Output (Partly Cloudy)"
	case c == CategorySolar && s == HighOutput:
		return "High Solar Output (Clear)"
	case c == CategoryWind && s == LowOutput:
		return "Low Wind Output (Calm)"
	case c == CategoryWind && s == ModerateOutput:
		return "Moderate Wind Output"
	case c == CategoryWind && s == HighOutput:
		return "High Wind Output (Windy)"
	}
	return "-"
}

// Reading is a weather lookup result for one plant category.
type Reading struct {
	Observation Observation  `json:"observation"`
	Status      OutputStatus `json:"status"`
	StatusLabel string       `json:"statusLabel"`
	Summary     string       `json:"summary"`
}

// NewReading classifies obs for the category and fills in display strings.
func NewReading(obs Observation, c Category) Reading {
	status := Classify(obs, c)
	return Reading{
		Observation: obs,
		Status:      status,
		StatusLabel: status.Label(c),
		Summary:     obs.Summary(),
	}
}

// Classify derives the output status of a plant from the weather at its location.
// Categories without weather dependence are NotApplicable regardless of the observation.
func Classify(obs Observation, c Category) OutputStatus {
	switch c {
	case CategorySolar:
		if !obs.Known {
			return StatusUnknown
		}
		switch {
		case obs.CloudCoverPct > 80:
			return LowOutput
		case obs.CloudCoverPct > 50:
			return ModerateOutput
		default:
			return HighOutput
		}
	case CategoryWind:
		if !obs.Known {
			return StatusUnknown
		}
		switch {
		case obs.WindSpeedMS < 3:
			return LowOutput
		case obs.WindSpeedMS < 8:
			return ModerateOutput
		default:
			return HighOutput
		}
	default:
		return NotApplicable
	}
}
