package weather

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed plants.yaml
var defaultPlantsYAML []byte

//go:embed plants.schema.json
var plantsSchemaJSON []byte

// Plant is one entry of the static power-plant reference table.
type Plant struct {
	Name        string   `yaml:"name" json:"name"`
	Category    Category `yaml:"category" json:"category"`
	Lat         float64  `yaml:"lat" json:"lat"`
	Lon         float64  `yaml:"lon" json:"lon"`
	Operator    string   `yaml:"operator" json:"operator"`
	CapacityMW  float64  `yaml:"capacity_mw" json:"capacityMW"`
	Description string   `yaml:"description" json:"description"`
}

// Color returns the map colour of the plant's category, or grey for unlisted categories.
func (p Plant) Color() string {
	if c, ok := CategoryColors[p.Category]; ok {
		return c
	}
	return "#808080"
}

type plantFile struct {
	Plants []Plant `yaml:"plants"`
}

// DefaultPlants returns the embedded plant table.
func DefaultPlants() ([]Plant, error) {
	return ParsePlants(defaultPlantsYAML)
}

// LoadPlants reads a plant table from path, or the embedded table when path is empty.
func LoadPlants(path string) ([]Plant, error) {
	if path == "" {
		return DefaultPlants()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plants file: %w", err)
	}
	return ParsePlants(data)
}

// ParsePlants validates a YAML plant table against the embedded schema and decodes it.
func ParsePlants(data []byte) ([]Plant, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse plants YAML: %w", err)
	}

	// Schema validation works on JSON
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert plants to JSON: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(plantsSchemaJSON),
		gojsonschema.NewBytesLoader(rawJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("plants schema validation failed: %w", err)
	}
	if !result.Valid() {
		return nil, formatValidationErrors(result.Errors())
	}

	var file plantFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode plants: %w", err)
	}
	return file.Plants, nil
}

func formatValidationErrors(errs []gojsonschema.ResultError) error {
	var b strings.Builder
	b.WriteString("plants validation errors:")
	for i, e := range errs {
		fmt.Fprintf(&b, "\n  %d. %s: %s", i+1, e.Field(), e.Description())
	}
	return fmt.Errorf("%s", b.String())
}
