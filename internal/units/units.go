// Package units provides shared constants and validation for velocity
// display units.
package units

// Unit constants
const (
	UMPS = "umps" // micrometers per second, the measurement unit
	MMPS = "mmps" // millimeters per second
	MPS  = "mps"  // meters per second
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{UMPS, MMPS, MPS}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "umps, mmps, mps"
}

// ConvertSpeed converts a speed from micrometers per second to the target
// units. Matrices and the run database store speeds in µm/s.
func ConvertSpeed(speedUMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MMPS:
		return speedUMPS / 1000
	case MPS:
		return speedUMPS / 1e6
	case UMPS:
		return speedUMPS
	default:
		return speedUMPS
	}
}

// Label returns the axis label for the given unit.
func Label(unit string) string {
	switch unit {
	case MMPS:
		return "mm/s"
	case MPS:
		return "m/s"
	default:
		return "µm/s"
	}
}
