package model

// InitialFuel is the fuel every aircraft starts with.
const InitialFuel = 5000.0

// AircraftSpec is the data needed to put a new aircraft into the airspace.
type AircraftSpec struct {
	ID       int
	Position Vec3
	Velocity Vec3
}

// Aircraft is the simulated state of one aircraft.
//
// Fuel has no floor; an aircraft that keeps flying after it runs dry simply
// reports negative fuel.
type Aircraft struct {
	ID       int
	Position Vec3
	Velocity Vec3
	Fuel     float64
}

// NewAircraft builds an aircraft from spec with a full tank.
func NewAircraft(spec AircraftSpec) Aircraft {
	return Aircraft{
		ID:       spec.ID,
		Position: spec.Position,
		Velocity: spec.Velocity,
		Fuel:     InitialFuel,
	}
}
