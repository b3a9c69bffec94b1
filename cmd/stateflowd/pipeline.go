package main

import (
	"fmt"

	stateflow "github.com/goliatone/go-stateflow"
)

// The sample pipeline converts a sensor reading through three stages:
//
//	to_fahrenheit (local):  celsius -> fahrenheit
//	comfort_index (remote): fahrenheit, humidity -> comfort_index
//	advice        (local):  comfort_index -> advice
//
// Both peers must build this registry with the same registration order so
// callback ids agree on the wire. withRemoteBodies controls whether the
// remote stage's body is linked in; the host plans around it either way.
func pipelineRegistry(withRemoteBodies bool) (*stateflow.Registry, error) {
	reg := stateflow.NewRegistry()

	callbacks := []stateflow.Callback{
		{
			Name:    "to_fahrenheit",
			Inputs:  []stateflow.Identifier{"celsius"},
			Outputs: []stateflow.Identifier{"fahrenheit"},
			Body: func(s stateflow.State) ([]stateflow.Value, error) {
				c, err := s.Input("celsius")
				if err != nil {
					return nil, err
				}
				return []stateflow.Value{
					stateflow.NewValue("fahrenheit", asFloat(c.Data)*9/5+32),
				}, nil
			},
		},
		{
			Name:     "comfort_index",
			Inputs:   []stateflow.Identifier{"fahrenheit", "humidity"},
			Outputs:  []stateflow.Identifier{"comfort_index"},
			Affinity: stateflow.AffinityRemote,
			Body:     nil,
		},
		{
			Name:    "advice",
			Inputs:  []stateflow.Identifier{"comfort_index"},
			Outputs: []stateflow.Identifier{"advice"},
			Body: func(s stateflow.State) ([]stateflow.Value, error) {
				idx, err := s.Input("comfort_index")
				if err != nil {
					return nil, err
				}
				advice := "open a window"
				if asFloat(idx.Data) > 75 {
					advice = "turn on the fan"
				}
				return []stateflow.Value{stateflow.NewValue("advice", advice)}, nil
			},
		},
	}

	if withRemoteBodies {
		callbacks[1].Body = func(s stateflow.State) ([]stateflow.Value, error) {
			f, err := s.Input("fahrenheit")
			if err != nil {
				return nil, err
			}
			h, err := s.Input("humidity")
			if err != nil {
				return nil, err
			}
			// Crude heat-index style blend, enough to drive the pipeline.
			index := asFloat(f.Data)*0.8 + asFloat(h.Data)*0.2
			return []stateflow.Value{stateflow.NewValue("comfort_index", index)}, nil
		}
	}

	for _, cb := range callbacks {
		if _, err := reg.Register(cb); err != nil {
			return nil, fmt.Errorf("register %s: %w", cb.Name, err)
		}
	}
	if err := reg.Freeze(); err != nil {
		return nil, err
	}
	return reg, nil
}

// asFloat tolerates the numeric shapes a JSON round trip can produce.
func asFloat(data any) float64 {
	switch v := data.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
