package domain

// Cents is a monetary amount in hundredths of the billing currency unit.
// Charges are stored and summed as integers so per-minute multiplication
// never loses precision.
type Cents int64

// MulMinutes returns the charge for the given number of whole minutes.
func (c Cents) MulMinutes(minutes int64) Cents {
	return c * Cents(minutes)
}
