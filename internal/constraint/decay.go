package constraint

import (
	"fmt"
	"math"
)

// DecayFunc returns the share of capacity still installed after age years,
// given a lifetime in years. Values lie in [0, 1].
type DecayFunc func(age, lifetime float64) float64

// StepDecay keeps capacity in full until the end of its lifetime.
func StepDecay(age, lifetime float64) float64 {
	if age < lifetime {
		return 1
	}
	return 0
}

// SigmoidDecay retires capacity gradually around the end of its lifetime.
// k sets the steepness in 1/years; large values approach StepDecay.
func SigmoidDecay(k float64) DecayFunc {
	return func(age, lifetime float64) float64 {
		return 1 / (1 + math.Exp(k*(age-lifetime)))
	}
}

// DecayByName selects a decay function by its command-line name.
func DecayByName(name string) (DecayFunc, error) {
	switch name {
	case "", "step":
		return StepDecay, nil
	case "sigmoid":
		return SigmoidDecay(1), nil
	default:
		return nil, fmt.Errorf("unknown retirement policy %q (want step or sigmoid)", name)
	}
}
