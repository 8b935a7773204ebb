package valueobject

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	USD Currency = "USD" // US Dollar (default)
	EUR Currency = "EUR" // Euro
	GBP Currency = "GBP" // British Pound
	CAD Currency = "CAD" // Canadian Dollar
	AUD Currency = "AUD" // Australian Dollar
	JPY Currency = "JPY" // Japanese Yen
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = USD

// Exponent returns the number of decimal places the currency's minor unit
// carries. Amounts sent to or received from tax providers are rounded to
// this precision.
func (c Currency) Exponent() int32 {
	switch c {
	case JPY:
		return 0
	default:
		return 2
	}
}

// String returns the string representation of the currency
func (c Currency) String() string {
	return string(c)
}
