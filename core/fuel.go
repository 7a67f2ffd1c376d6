package core

// FuelBand is a coarse fuel-efficiency rating derived from remaining fuel.
type FuelBand int

const (
	FuelInefficient FuelBand = iota
	FuelModerate
	FuelEfficient
)

// Thresholds for ClassifyFuel. A band's lower bound is exclusive.
const (
	EfficientFuelThreshold = 4000.0
	ModerateFuelThreshold  = 2000.0
)

var fuelBandNames = map[FuelBand]string{
	FuelInefficient: "Inefficient",
	FuelModerate:    "Moderate",
	FuelEfficient:   "Efficient",
}

// String returns the band's display name.
func (b FuelBand) String() string {
	if name, ok := fuelBandNames[b]; ok {
		return name
	}
	return "Unknown"
}

// ClassifyFuel maps a fuel level onto its band:
// fuel > 4000 is Efficient, 2000 < fuel <= 4000 is Moderate, anything else
// (including negative fuel) is Inefficient.
func ClassifyFuel(fuel float64) FuelBand {
	switch {
	case fuel > EfficientFuelThreshold:
		return FuelEfficient
	case fuel > ModerateFuelThreshold:
		return FuelModerate
	default:
		return FuelInefficient
	}
}
