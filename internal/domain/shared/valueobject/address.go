package valueobject

import (
	"strings"
)

// Address is a value object representing a physical address used for tax
// jurisdiction resolution. It is immutable - all operations return new
// Address instances. All fields are optional; completeness levels are
// queried via IsComplete and HasPostal.
type Address struct {
	street     string
	city       string
	region     string
	postalCode string
	country    string
}

// NewAddress creates a new Address. Fields are trimmed; any of them may be
// empty.
func NewAddress(street, city, region, postalCode, country string) Address {
	return Address{
		street:     strings.TrimSpace(street),
		city:       strings.TrimSpace(city),
		region:     strings.TrimSpace(region),
		postalCode: strings.TrimSpace(postalCode),
		country:    strings.TrimSpace(country),
	}
}

// EmptyAddress returns an empty address (for optional address fields)
func EmptyAddress() Address {
	return Address{}
}

// Street returns the street line
func (a Address) Street() string {
	return a.street
}

// City returns the city
func (a Address) City() string {
	return a.city
}

// Region returns the state/province/region code
func (a Address) Region() string {
	return a.region
}

// PostalCode returns the postal code
func (a Address) PostalCode() string {
	return a.postalCode
}

// Country returns the country code
func (a Address) Country() string {
	return a.country
}

// IsEmpty returns true if all fields are blank
func (a Address) IsEmpty() bool {
	return a.street == "" && a.city == "" && a.region == "" && a.postalCode == "" && a.country == ""
}

// IsComplete returns true if every field needed for a full street-level
// jurisdiction lookup is present
func (a Address) IsComplete() bool {
	return a.street != "" && a.city != "" && a.region != "" && a.postalCode != "" && a.country != ""
}

// HasPostal returns true if the address carries enough information for a
// postal-code jurisdiction lookup
func (a Address) HasPostal() bool {
	return a.postalCode != "" && a.country != ""
}

// String returns the formatted single-line address
func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.street, a.city, a.region, a.postalCode, a.country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
