package kinematics

// Position represents a position in machine coordinates
type Position struct {
	X float64
	Y float64
	Z float64
	E float64 // Extruder
}

// Axis returns the coordinate of axis i (0=X, 1=Y, 2=Z, 3=E)
func (p Position) Axis(i int) float64 {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	case 2:
		return p.Z
	default:
		return p.E
	}
}

// SetAxis sets the coordinate of axis i
func (p *Position) SetAxis(i int, v float64) {
	switch i {
	case 0:
		p.X = v
	case 1:
		p.Y = v
	case 2:
		p.Z = v
	default:
		p.E = v
	}
}

// Kinematics defines the interface for coordinate transformations
type Kinematics interface {
	// CalcPosition converts XYZ coordinates to stepper positions
	CalcPosition(pos Position) []float64

	// GetAxisNames returns the names of axes controlled by this kinematics
	GetAxisNames() []string

	// CheckLimits validates that a position is within the software endstops
	CheckLimits(pos Position) error
}

// AxisLimits represents position limits for an axis
type AxisLimits struct {
	Min float64
	Max float64
}
