package combinedenergy

// kwhToKW converts an hourly energy figure to power once the interval has
// been normalised to seconds.
const kwhToKW = 3.6

// EnergyToPower converts an energy value in kWh sampled over an interval in
// seconds to an instantaneous power figure in kW. A non-positive interval is
// rejected with an InvalidArgumentError; derived reading accessors absorb
// that error and report the value as absent instead.
func EnergyToPower(energy, seconds float64) (float64, error) {
	if seconds <= 0 {
		return 0, &InvalidArgumentError{Message: "seconds must be a positive value"}
	}
	return energy * kwhToKW / seconds, nil
}
