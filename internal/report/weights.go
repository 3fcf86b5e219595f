package report

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Weights maps check column names to their score weighting.
type Weights map[string]float64

// DefaultWeights mirror the broker audit methodology: valuation and origin
// errors cost far more than cosmetic ones.
func DefaultWeights() Weights {
	return Weights{
		"OC":        15,
		"SC":        2,
		"VALUATION": 5,
		"ORIGIN":    10,
		"FTA":       4,
		"PRS/PRT":   2,
		"CURRENCY":  7,
		"INCOTERMS": 3,
		"T & I":     5,
		"OTH/DISC":  5,
	}
}

// LoadWeights reads a YAML weights override. Keys must exactly match the
// check column names; missing keys fall back to the defaults, unknown keys
// are rejected.
func LoadWeights(path string) (Weights, error) {
	if path == "" {
		return DefaultWeights(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights file: %w", err)
	}
	var override map[string]float64
	if err := yaml.Unmarshal(b, &override); err != nil {
		return nil, fmt.Errorf("parse weights file: %w", err)
	}

	w := DefaultWeights()
	for k, v := range override {
		if _, ok := w[k]; !ok {
			return nil, fmt.Errorf("unknown check column %q in weights file", k)
		}
		if v < 0 {
			return nil, fmt.Errorf("negative weight for %q", k)
		}
		w[k] = v
	}
	return w, nil
}

// Ordered returns the weights in CheckColumns order, ready for the
// Weightings sheet row.
func (w Weights) Ordered() []float64 {
	out := make([]float64, len(CheckColumns))
	for i, col := range CheckColumns {
		out[i] = w[col]
	}
	return out
}
