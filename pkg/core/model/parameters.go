package model

import (
	"fmt"
	"strconv"
)

// Parameter keys read from the parameter provider
const (
	ParamMaxConsecutiveDays = "dias_maximos_sin_descanso"
	ParamMinEfficiency      = "eficiencia_minima_conductor"
	ParamMinPunctuality     = "puntualidad_minima_conductor"
	ParamMinRestHours       = "horas_minimas_descanso"
)

// Parameters is the immutable configuration snapshot a scheduling run executes against
type Parameters struct {
	MaxConsecutiveDays int     `validate:"min=1,max=31"`
	MinEfficiency      float64 `validate:"min=0,max=100"`
	MinPunctuality     float64 `validate:"min=0,max=100"`
	MinRestHours       float64 `validate:"min=0,max=48"`
}

// DefaultParameters returns the values used when neither config nor the provider set a key
func DefaultParameters() Parameters {
	return Parameters{
		MaxConsecutiveDays: 6,
		MinEfficiency:      80,
		MinPunctuality:     85,
		MinRestHours:       12,
	}
}

// WithOverrides returns a copy of p with provider values applied.
// Unknown keys are ignored; malformed values are an error.
func (p Parameters) WithOverrides(values map[string]string) (Parameters, error) {
	for key, raw := range values {
		var err error
		switch key {
		case ParamMaxConsecutiveDays:
			p.MaxConsecutiveDays, err = strconv.Atoi(raw)
		case ParamMinEfficiency:
			p.MinEfficiency, err = strconv.ParseFloat(raw, 64)
		case ParamMinPunctuality:
			p.MinPunctuality, err = strconv.ParseFloat(raw, 64)
		case ParamMinRestHours:
			p.MinRestHours, err = strconv.ParseFloat(raw, 64)
		default:
			continue
		}
		if err != nil {
			return p, fmt.Errorf("malformed parameter %s=%q: %w", key, raw, err)
		}
	}
	return p, nil
}
