package sim

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFluidPair is returned when a fluid-pair identifier is not one of
// the recognized pairings.
var ErrUnknownFluidPair = errors.New("unknown fluid pair")

// ConfigError reports a configuration input that was rejected.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FluidPair enumerates the supported phase pairings.
type FluidPair int

const (
	WaterAir FluidPair = iota + 1
	GearoilAir
	OilNovecWater
)

// FluidPairProperties holds the constant physical parameters of a run.
// Phase 1 is the droplet phase.
type FluidPairProperties struct {
	Rho1  float64 // density of phase 1 [kg/m³]
	Rho2  float64 // density of phase 2 [kg/m³]
	Mu1   float64 // dynamic viscosity of phase 1 [Pa·s]
	Mu2   float64 // dynamic viscosity of phase 2 [Pa·s]
	Sigma float64 // surface tension [N/m]
}

var fluidPairNames = map[FluidPair]string{
	WaterAir:      "water-air",
	GearoilAir:    "gearoil-air",
	OilNovecWater: "oil_novec7500-water",
}

// FluidPairs returns the recognized pairs in declaration order.
func FluidPairs() []FluidPair {
	return []FluidPair{WaterAir, GearoilAir, OilNovecWater}
}

// String returns the identifier used on the command line and in file names.
func (fp FluidPair) String() string {
	if name, ok := fluidPairNames[fp]; ok {
		return name
	}
	return fmt.Sprintf("FluidPair(%d)", int(fp))
}

// ParseFluidPair maps an identifier to its FluidPair. Matching is exact.
func ParseFluidPair(id string) (FluidPair, error) {
	for _, fp := range FluidPairs() {
		if fluidPairNames[fp] == id {
			return fp, nil
		}
	}
	known := make([]string, 0, len(fluidPairNames))
	for _, fp := range FluidPairs() {
		known = append(known, fp.String())
	}
	return 0, &ConfigError{
		Field: "fluid pair",
		Value: id,
		Err:   fmt.Errorf("%w (known: %s)", ErrUnknownFluidPair, strings.Join(known, ", ")),
	}
}

// Properties returns the literal constants for the pair. The oil/Novec pair
// deliberately places the denser Novec 7500 in phase 1: it is the droplet.
func (fp FluidPair) Properties() (FluidPairProperties, error) {
	switch fp {
	case WaterAir:
		return FluidPairProperties{Rho1: 998.2, Rho2: 1.19, Mu1: 0.0009982, Mu2: 18.21e-6, Sigma: 0.07274}, nil
	case GearoilAir:
		return FluidPairProperties{Rho1: 888.0, Rho2: 1.19, Mu1: 0.240648, Mu2: 18.21e-6, Sigma: 0.0329}, nil
	case OilNovecWater:
		return FluidPairProperties{Rho1: 1614.0, Rho2: 998.2, Mu1: 0.00124278, Mu2: 0.0009982, Sigma: 0.0495}, nil
	default:
		return FluidPairProperties{}, &ConfigError{Field: "fluid pair", Value: fp.String(), Err: ErrUnknownFluidPair}
	}
}

// ResolveFluidPair parses id and returns its properties in one step.
func ResolveFluidPair(id string) (FluidPair, FluidPairProperties, error) {
	fp, err := ParseFluidPair(id)
	if err != nil {
		return 0, FluidPairProperties{}, err
	}
	props, err := fp.Properties()
	if err != nil {
		return 0, FluidPairProperties{}, err
	}
	return fp, props, nil
}
